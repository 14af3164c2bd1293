package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/sparkify/internal/storage"
	"github.com/leapstack-labs/sparkify/internal/transform"
	"github.com/leapstack-labs/sparkify/pkg/core"
)

// CatalogOutput is what a finished catalog stage hands to the usage stage.
// Only RunCatalog produces a complete value, and only after both of its
// table writes have returned.
type CatalogOutput struct {
	Paths   core.StagePaths
	Stats   core.CatalogStats
	Songs   *core.WriteResult
	Artists *core.WriteResult

	complete bool
}

// Complete reports whether the stage's writes have all finished.
func (o *CatalogOutput) Complete() bool {
	return o != nil && o.complete
}

// SongsLocation is where the persisted Song dimension lives.
func (o *CatalogOutput) SongsLocation() string {
	return storage.Join(o.Paths.Output, core.SongsTable.Name)
}

// Writes returns the stage's table writes in schema order.
func (o *CatalogOutput) Writes() []*core.WriteResult {
	return []*core.WriteResult{o.Songs, o.Artists}
}

// UsageOutput is what a finished usage stage produced.
type UsageOutput struct {
	Paths     core.StagePaths
	Stats     core.UsageStats
	Users     *core.WriteResult
	Times     *core.WriteResult
	Songplays *core.WriteResult
}

// Writes returns the stage's table writes in schema order.
func (o *UsageOutput) Writes() []*core.WriteResult {
	return []*core.WriteResult{o.Users, o.Times, o.Songplays}
}

// RunCatalog ingests catalog records, builds the Song and Artist dimensions
// and writes both under paths.Output. It returns once both writes are done.
func (e *Engine) RunCatalog(ctx context.Context, paths core.StagePaths, mode core.WriteMode) (*CatalogOutput, error) {
	if err := validatePaths(core.StageCatalog, paths); err != nil {
		return nil, err
	}
	e.logger.Info("catalog stage started", "input", paths.Input, "output", paths.Output)

	cat := transform.NewCatalog(e.db, e.resolver, e.logger)
	out := &CatalogOutput{Paths: paths}

	ingested, err := cat.Ingest(ctx, paths.Input)
	if err != nil {
		return nil, err
	}
	out.Stats.Ingest = ingested
	e.metrics.ObserveIngest("catalog", ingested)

	if out.Stats.Songs, err = cat.Songs(ctx); err != nil {
		return nil, err
	}
	if out.Stats.Artists, err = cat.Artists(ctx); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := e.write(gctx, core.SongsTable, transform.RelSongs, paths.Output, mode)
		out.Songs = res
		return err
	})
	g.Go(func() error {
		res, err := e.write(gctx, core.ArtistsTable, transform.RelArtists, paths.Output, mode)
		out.Artists = res
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.complete = true
	e.logger.Info("catalog stage finished", "songs", out.Stats.Songs, "artists", out.Stats.Artists)
	return out, nil
}

// RunUsage ingests usage records, builds the User and Time dimensions and
// the Play Event fact, and writes them under paths.Output. The Song
// dimension is read back from the completed catalog stage.
func (e *Engine) RunUsage(ctx context.Context, paths core.StagePaths, mode core.WriteMode, catalog *CatalogOutput) (*UsageOutput, error) {
	if !catalog.Complete() {
		return nil, core.ErrCatalogNotReady
	}
	if err := validatePaths(core.StageUsage, paths); err != nil {
		return nil, err
	}
	e.logger.Info("usage stage started", "input", paths.Input, "output", paths.Output)

	usage := transform.NewUsage(e.db, e.resolver, e.logger)
	out := &UsageOutput{Paths: paths}

	ingested, err := usage.Ingest(ctx, paths.Input)
	if err != nil {
		return nil, err
	}
	out.Stats.Ingest = ingested
	e.metrics.ObserveIngest("usage", ingested)

	if out.Stats.Filtered, err = usage.Filter(ctx); err != nil {
		return nil, err
	}
	if out.Stats.Users, err = usage.Users(ctx); err != nil {
		return nil, err
	}
	if out.Stats.Times, err = usage.Times(ctx); err != nil {
		return nil, err
	}
	if _, err := usage.LoadSongs(ctx, catalog.SongsLocation()); err != nil {
		return nil, err
	}
	if out.Stats.Join, err = usage.PlayEvents(ctx); err != nil {
		return nil, err
	}
	e.metrics.ObserveJoin(out.Stats.Join)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := e.write(gctx, core.UsersTable, transform.RelUsers, paths.Output, mode)
		out.Users = res
		return err
	})
	g.Go(func() error {
		res, err := e.write(gctx, core.TimesTable, transform.RelTimes, paths.Output, mode)
		out.Times = res
		return err
	})
	g.Go(func() error {
		res, err := e.write(gctx, core.SongplaysTable, transform.RelSongplays, paths.Output, mode)
		out.Songplays = res
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Info("usage stage finished",
		"users", out.Stats.Users,
		"times", out.Stats.Times,
		"songplays", out.Stats.Join.Matched,
	)
	return out, nil
}

func (e *Engine) write(ctx context.Context, table core.Table, source, output string, mode core.WriteMode) (*core.WriteResult, error) {
	res, err := e.sink.Write(ctx, core.WriteRequest{
		Table:       table,
		Source:      source,
		Destination: storage.Join(output, table.Name),
		Mode:        mode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", table.Name, err)
	}
	e.metrics.ObserveWrite(res)
	return res, nil
}

func validatePaths(stage core.Stage, paths core.StagePaths) error {
	if paths.Input == "" {
		return fmt.Errorf("%s stage: input location is required", stage)
	}
	if paths.Output == "" {
		return fmt.Errorf("%s stage: output location is required", stage)
	}
	return nil
}
