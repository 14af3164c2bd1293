package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/sparkify/internal/cli"
	cliconfig "github.com/leapstack-labs/sparkify/internal/cli/config"
	"github.com/leapstack-labs/sparkify/pkg/core"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// runStage describes one stage of `sparkify run` for the docs.
type runStage struct {
	stage  core.Stage
	input  string
	output string
	tables []core.Table
	reads  string
}

var runStages = []runStage{
	{
		stage:  core.StageCatalog,
		input:  "song-input",
		output: "song-output",
		tables: []core.Table{core.SongsTable, core.ArtistsTable},
		reads:  "song records",
	},
	{
		stage:  core.StageUsage,
		input:  "log-input",
		output: "log-output",
		tables: []core.Table{core.UsersTable, core.TimesTable, core.SongplaysTable},
		reads:  "NextSong log events and the songs table",
	},
}

// generateCLIDocs writes index.md plus one page per visible command.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root := cli.NewRootCmd()
	if err := writePage(outDir, "index.md", cliIndex(root)); err != nil {
		return err
	}
	for _, cmd := range visibleCommands(root) {
		w := commandPage(cmd)
		if cmd.Name() == "run" {
			writeRunStages(w, cmd)
			writeExitCodes(w)
		}
		if err := writePage(outDir, cmd.Name()+".md", w); err != nil {
			return err
		}
	}
	return nil
}

func writePage(outDir, name string, w *MarkdownWriter) error {
	if err := os.WriteFile(filepath.Join(outDir, name), w.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	log.Printf("  Generated %s", name)
	return nil
}

func visibleCommands(root *cobra.Command) []*cobra.Command {
	var cmds []*cobra.Command
	for _, cmd := range root.Commands() {
		if cmd.Hidden || cmd.Name() == "help" || cmd.Name() == "__complete" || cmd.Name() == "completion" {
			continue
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

func cliIndex(root *cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for sparkify")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph("sparkify builds the song play star schema from song and log records and keeps a history of every run.")
	w.CodeBlock("bash", "go install github.com/leapstack-labs/sparkify/cmd/sparkify@latest\nsparkify <command> [options]")

	w.Header(2, "Commands")
	var rows [][]string
	for _, cmd := range visibleCommands(root) {
		link := fmt.Sprintf("[%s](/cli/%s)", InlineCode(cmd.Name()), cmd.Name())
		rows = append(rows, []string{link, cleanDescription(cmd.Short)})
	}
	w.Table([]string{"Command", "Description"}, rows)

	w.Header(2, "Global Options")
	writeFlagsTable(w, root.PersistentFlags())

	w.Header(2, "Configuration Precedence")
	w.Paragraph("Flags override SPARKIFY_ environment variables, which override sparkify.yaml, " +
		"which overrides built-in defaults. Any key can be set from the environment: upper-case it, " +
		"prefix SPARKIFY_ and replace each dot with a double underscore.")
	var envRows [][]string
	for _, cmd := range append([]*cobra.Command{root}, visibleCommands(root)...) {
		flags := cmd.LocalNonPersistentFlags()
		if cmd == root {
			flags = root.PersistentFlags()
		}
		flags.VisitAll(func(f *pflag.Flag) {
			if key, ok := cliconfig.FlagKey(f.Name); ok && !f.Hidden {
				envRows = append(envRows, []string{InlineCode(envVar(key)), InlineCode("--" + f.Name)})
			}
		})
	}
	w.Table([]string{"Variable", "Flag"}, envRows)

	return w
}

// envVar returns the environment variable that sets a config key.
func envVar(key string) string {
	return "SPARKIFY_" + strings.ToUpper(strings.ReplaceAll(key, ".", "__"))
}

func commandPage(cmd *cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter(cmd.Name(), cmd.Short)
	w.GeneratedMarker()

	w.Header(1, cmd.Name())
	if cmd.Long != "" {
		w.Paragraph(cmd.Long)
	} else {
		w.Paragraph(cmd.Short)
	}

	w.Header(2, "Usage")
	use := cmd.UseLine()
	if cmd.HasSubCommands() {
		use = fmt.Sprintf("sparkify %s <subcommand> [options]", cmd.Name())
	}
	w.CodeBlock("bash", use)

	if len(cmd.Aliases) > 0 {
		w.Paragraph("Aliases: " + InlineCode(strings.Join(cmd.Aliases, ", ")))
	}

	if cmd.HasSubCommands() {
		w.Header(2, "Subcommands")
		var rows [][]string
		for _, sub := range cmd.Commands() {
			if !sub.Hidden {
				rows = append(rows, []string{InlineCode(sub.Name()), cleanDescription(sub.Short)})
			}
		}
		w.Table([]string{"Subcommand", "Description"}, rows)
	}

	if cmd.HasLocalFlags() {
		w.Header(2, "Options")
		writeFlagsTable(w, cmd.LocalFlags())
	}

	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", cleanExample(cmd.Example))
	}
	return w
}

// writeRunStages documents which run flags feed which stage.
func writeRunStages(w *MarkdownWriter, run *cobra.Command) {
	w.Header(2, "Stages")
	w.Paragraph("Stages run in order. When catalog fails, usage is recorded as skipped and no usage tables are written.")

	var rows [][]string
	for _, s := range runStages {
		var tables []string
		for _, t := range s.tables {
			tables = append(tables, InlineCode(t.Name))
		}
		rows = append(rows, []string{
			InlineCode(string(s.stage)),
			s.reads,
			stageFlag(run, s.input),
			stageFlag(run, s.output),
			strings.Join(tables, ", "),
		})
	}
	w.Table([]string{"Stage", "Reads", "Input", "Output", "Writes"}, rows)

	w.Paragraph("Without " + InlineCode("--overwrite") + " a stage fails if any of its tables already exists under its output location.")
}

func stageFlag(cmd *cobra.Command, name string) string {
	f := cmd.Flags().Lookup(name)
	if f == nil {
		return ""
	}
	key, _ := cliconfig.FlagKey(name)
	return fmt.Sprintf("%s (%s)", InlineCode("--"+f.Name), InlineCode(key))
}

func writeExitCodes(w *MarkdownWriter) {
	w.Header(2, "Exit Codes")
	w.Table([]string{"Code", "Meaning"}, [][]string{
		{InlineCode("0"), "Every stage completed. The run summary is printed."},
		{InlineCode("1"), "A stage failed. The run summary is still printed, the run is recorded as " +
			InlineCode(string(core.RunStatusFailed)) + " in history and the error goes to stderr."},
		{InlineCode("1"), "Configuration or setup failed before a run started. Nothing is recorded."},
	})
}

// writeFlagsTable writes one row per visible flag with the config key it sets.
func writeFlagsTable(w *MarkdownWriter, flags *pflag.FlagSet) {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		option := InlineCode("--" + f.Name)
		if f.Shorthand != "" {
			option += ", " + InlineCode("-"+f.Shorthand)
		}
		def := f.DefValue
		if def != "" && f.Value.Type() != "bool" {
			def = InlineCode(def)
		}
		key := ""
		if k, ok := cliconfig.FlagKey(f.Name); ok {
			key = InlineCode(k)
		}
		rows = append(rows, []string{option, def, key, cleanDescription(f.Usage)})
	})
	w.Table([]string{"Option", "Default", "Config key", "Description"}, rows)
}

// cleanExample removes the indentation shared by every non-blank line.
func cleanExample(example string) string {
	lines := strings.Split(example, "\n")
	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent == -1 || n < indent {
			indent = n
		}
	}
	for i, line := range lines {
		if len(line) >= indent && indent > 0 {
			lines[i] = line[indent:]
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
