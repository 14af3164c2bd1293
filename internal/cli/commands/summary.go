package commands

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/sparkify/internal/cli/output"
	"github.com/leapstack-labs/sparkify/pkg/core"
)

// RunSummary is the rendered view of one ledger run.
type RunSummary struct {
	ID          string           `json:"id"`
	Environment string           `json:"environment"`
	Status      string           `json:"status"`
	WriteMode   string           `json:"write_mode"`
	StartedAt   time.Time        `json:"started_at"`
	Duration    string           `json:"duration,omitempty"`
	Error       string           `json:"error,omitempty"`
	Catalog     core.StagePaths  `json:"catalog"`
	Usage       core.StagePaths  `json:"usage"`
	Stages      []StageSummary   `json:"stages"`
	Tables      []TableSummary   `json:"tables"`
	Stats       map[string]int64 `json:"stats"`
}

// StageSummary is one stage of a run.
type StageSummary struct {
	Stage    string `json:"stage"`
	Status   string `json:"status"`
	Duration string `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}

// TableSummary is one table written by a run.
type TableSummary struct {
	Table       string   `json:"table"`
	Rows        int64    `json:"rows"`
	PartitionBy []string `json:"partition_by"`
	Destination string   `json:"destination"`
	Replaced    bool     `json:"replaced"`
}

// buildRunSummary collects a run's stages, writes and stats from the ledger.
func buildRunSummary(store core.Store, run *core.Run) (*RunSummary, error) {
	s := &RunSummary{
		ID:          run.ID,
		Environment: run.Environment,
		Status:      string(run.Status),
		WriteMode:   run.Request.Mode.String(),
		StartedAt:   run.StartedAt,
		Error:       run.Error,
		Catalog:     run.Request.Catalog,
		Usage:       run.Request.Usage,
	}
	if d := run.Duration(); d > 0 {
		s.Duration = d.Round(time.Millisecond).String()
	}

	stages, err := store.GetStages(run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stages: %w", err)
	}
	s.Stages = make([]StageSummary, 0, len(stages))
	for _, st := range stages {
		ss := StageSummary{Stage: string(st.Stage), Status: string(st.Status), Error: st.Error}
		if st.CompletedAt != nil {
			ss.Duration = st.CompletedAt.Sub(st.StartedAt).Round(time.Millisecond).String()
		}
		s.Stages = append(s.Stages, ss)
	}

	writes, err := store.GetTableWrites(run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load table writes: %w", err)
	}
	s.Tables = make([]TableSummary, 0, len(writes))
	for _, w := range writes {
		s.Tables = append(s.Tables, TableSummary{
			Table:       w.Table,
			Rows:        w.Rows,
			PartitionBy: w.PartitionBy,
			Destination: w.Destination,
			Replaced:    w.Replaced,
		})
	}

	s.Stats, err = store.GetStats(run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	return s, nil
}

func renderRunSummary(r *output.Renderer, s *RunSummary) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(s)
	case output.ModeMarkdown:
		renderRunMarkdown(r, s)
	default:
		renderRunText(r, s)
	}
	return nil
}

func renderRunText(r *output.Renderer, s *RunSummary) {
	styles := r.Styles()

	r.Println("")
	r.Header(1, "Run "+s.ID)
	r.Printf("   Status: %s %s\n", styles.StatusIcon(s.Status), s.Status)
	r.Printf("   Environment: %s | Write mode: %s\n", s.Environment, s.WriteMode)
	if s.Duration != "" {
		r.Printf("   Duration: %s\n", s.Duration)
	}
	if s.Error != "" {
		r.Println("   " + styles.Error.Render("Error: "+s.Error))
	}
	r.Println("")

	r.Header(2, "Stages")
	for _, st := range s.Stages {
		r.StatusLine(st.Stage, st.Status, stageDetail(st))
	}
	r.Println("")

	if len(s.Tables) > 0 {
		r.Header(2, "Tables")
		r.Table(tableHeader, tableRows(s.Tables))
		r.Println("")
	}

	if len(s.Stats) > 0 {
		r.Header(2, "Counters")
		r.Table([]string{"counter", "value"}, statRows(s.Stats))
	}
}

func renderRunMarkdown(r *output.Renderer, s *RunSummary) {
	r.Header(1, "Run "+s.ID)
	r.Printf("- **Status**: %s\n", s.Status)
	r.Printf("- **Environment**: %s\n", s.Environment)
	r.Printf("- **Write mode**: %s\n", s.WriteMode)
	if s.Duration != "" {
		r.Printf("- **Duration**: %s\n", s.Duration)
	}
	if s.Error != "" {
		r.Printf("- **Error**: %s\n", s.Error)
	}
	r.Println("")

	r.Header(2, "Stages")
	for _, st := range s.Stages {
		r.StatusLine(st.Stage, st.Status, stageDetail(st))
	}
	r.Println("")

	if len(s.Tables) > 0 {
		r.Header(2, "Tables")
		r.Table(tableHeader, tableRows(s.Tables))
		r.Println("")
	}

	if len(s.Stats) > 0 {
		r.Header(2, "Counters")
		r.Table([]string{"counter", "value"}, statRows(s.Stats))
	}
}

var tableHeader = []string{"table", "rows", "partition by", "destination", "replaced"}

func tableRows(tables []TableSummary) [][]string {
	rows := make([][]string, 0, len(tables))
	for _, t := range tables {
		rows = append(rows, []string{
			t.Table,
			strconv.FormatInt(t.Rows, 10),
			strings.Join(t.PartitionBy, ", "),
			t.Destination,
			strconv.FormatBool(t.Replaced),
		})
	}
	return rows
}

func statRows(stats map[string]int64) [][]string {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.FormatInt(stats[k], 10)})
	}
	return rows
}

func stageDetail(st StageSummary) string {
	switch {
	case st.Error != "":
		return "(" + st.Error + ")"
	case st.Duration != "":
		return "(" + st.Duration + ")"
	default:
		return ""
	}
}
