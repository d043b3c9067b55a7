package extractor

import (
	"context"
	"fmt"
	"os"
	"sort"

	"flickrgeo/internal/fetcher"
	"flickrgeo/pkg/checkpoint"
	"flickrgeo/pkg/config"
	"flickrgeo/pkg/errors"
	"flickrgeo/pkg/export"
	"flickrgeo/pkg/geo"
	"flickrgeo/pkg/logger"
	"flickrgeo/pkg/schedule"
)

// Summary reports what an extraction run produced
type Summary struct {
	RunName      string
	Cells        int
	SkippedCells int
	FailedCells  []int
	Records      int
	OutputPath   string
}

// Extractor orchestrates a full extraction run: it divides the area into
// grid cells, fetches each cell's records over the date range, writes part
// files, and merges them into the final export.
type Extractor struct {
	cfg         *config.Config
	client      searchClient
	writer      *export.Writer
	checkpoints *checkpoint.Store
	logger      logger.Logger

	// OnProgress, when set, is called after each cell completes
	OnProgress func(done, total int)
}

// New creates an extractor from its collaborators
func New(cfg *config.Config, client searchClient, writer *export.Writer, store *checkpoint.Store, log logger.Logger) *Extractor {
	return &Extractor{
		cfg:         cfg,
		client:      client,
		writer:      writer,
		checkpoints: store,
		logger:      log,
	}
}

// Run executes the extraction. On failure of individual cells the run
// continues; the checkpoint keeps their work recoverable and the error
// names the failed cells. Cancelling the context stops the run with the
// checkpoint intact.
func (e *Extractor) Run(ctx context.Context) (*Summary, error) {
	runName := e.cfg.Output.RunName
	if runName == "" {
		return nil, errors.InvalidArgument("run name is required")
	}

	bbox, err := geo.Parse(e.cfg.Search.BBox)
	if err != nil {
		return nil, err
	}

	cells, err := bbox.Divide(e.cfg.Search.NumSeg)
	if err != nil {
		return nil, err
	}

	dateRange := schedule.DateRange{
		StartYear: e.cfg.Search.StartYear,
		EndYear:   e.cfg.Search.EndYear,
	}
	if err := dateRange.Validate(); err != nil {
		return nil, err
	}
	start, end := dateRange.Bounds()

	state, err := e.loadOrCreateState(runName)
	if err != nil {
		return nil, err
	}

	initialStep, err := e.planStep(ctx, bbox, dateRange)
	if err != nil {
		return nil, err
	}

	e.logger.InfoWithFields("extraction started", map[string]interface{}{
		"run_name":  runName,
		"bbox":      bbox.String(),
		"cells":     len(cells),
		"years":     fmt.Sprintf("%d..%d", dateRange.StartYear, dateRange.EndYear),
		"step_days": initialStep,
		"workers":   e.cfg.Extract.Workers,
	})

	// Build jobs for cells not already completed
	var jobs []fetcher.Job
	skipped := 0
	for i, cell := range cells {
		if state.IsCellDone(i) {
			skipped++
			continue
		}
		jobs = append(jobs, fetcher.Job{Cell: i, BBox: cell})
	}

	coll := newCollector(e.client, e.cfg.Search, e.logger)
	fetch := func(ctx context.Context, job fetcher.Job) (int, error) {
		records, err := coll.collectCell(ctx, job.Cell, job.BBox, start, end, initialStep)
		if err != nil {
			return 0, err
		}
		if err := e.writer.WritePart(runName, job.Cell, records); err != nil {
			return 0, err
		}
		return len(records), nil
	}

	pool := fetcher.NewPool(e.cfg.Extract.Workers, fetch, e.logger)

	var failed []int
	done := skipped
	records := 0
	for result := range pool.Run(ctx, jobs) {
		if result.Err != nil {
			failed = append(failed, result.Cell)
			e.logger.WithField("cell", result.Cell).WithError(result.Err).Error("cell failed")
			continue
		}

		state.MarkCell(result.Cell, result.Records)
		if err := e.checkpoints.Save(state); err != nil {
			return nil, fmt.Errorf("failed to save checkpoint: %w", err)
		}

		records += result.Records
		done++
		if e.OnProgress != nil {
			e.OnProgress(done, len(cells))
		}
		logger.LogExtractProgress(runName, done, len(cells))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := &Summary{
		RunName:      runName,
		Cells:        len(cells),
		SkippedCells: skipped,
		FailedCells:  failed,
		Records:      records,
	}

	if len(failed) > 0 {
		sort.Ints(failed)
		return summary, fmt.Errorf("%d of %d cells failed: %v; re-run with --resume to retry", len(failed), len(cells), failed)
	}

	outputPath, merged, err := e.writer.Merge(runName)
	if err != nil {
		return summary, err
	}
	summary.Records = merged

	if e.cfg.Output.Zip {
		outputPath, err = e.writer.Zip(runName)
		if err != nil {
			return summary, err
		}
	}
	summary.OutputPath = outputPath

	if err := e.writer.RemoveParts(runName); err != nil {
		return summary, err
	}
	if err := e.checkpoints.Delete(runName); err != nil {
		return summary, err
	}

	e.logger.InfoWithFields("extraction finished", map[string]interface{}{
		"run_name": runName,
		"records":  summary.Records,
		"output":   summary.OutputPath,
	})

	return summary, nil
}

// loadOrCreateState resolves the run's checkpoint. Resuming requires the
// saved grid and date range to match; starting fresh discards any old
// checkpoint.
func (e *Extractor) loadOrCreateState(runName string) (*checkpoint.State, error) {
	s := e.cfg.Search

	if e.cfg.Extract.Resume && e.checkpoints.Exists(runName) {
		state, err := e.checkpoints.Load(runName)
		if err != nil {
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if !state.Matches(s.BBox, s.NumSeg, s.StartYear, s.EndYear) {
			return nil, errors.InvalidArgument(
				"checkpoint for run %q was created with different parameters; start a fresh run or drop --resume", runName)
		}
		e.logger.InfoWithFields("resuming from checkpoint", map[string]interface{}{
			"run_name":        runName,
			"completed_cells": len(state.CompletedCells),
		})
		return state, nil
	}

	if e.checkpoints.Exists(runName) {
		if err := e.checkpoints.Delete(runName); err != nil {
			return nil, err
		}
	}

	return checkpoint.NewState(runName, s.BBox, s.NumSeg, s.StartYear, s.EndYear), nil
}

// planStep probes the whole area once to estimate observation density and
// derive the initial window length per cell. A cell sees roughly an
// equal share of the area's records.
func (e *Extractor) planStep(ctx context.Context, bbox geo.BoundingBox, r schedule.DateRange) (int, error) {
	start, end := r.Bounds()

	coll := newCollector(e.client, e.cfg.Search, e.logger)
	total, err := e.client.Count(ctx, coll.query(bbox, start, end))
	if err != nil {
		return 0, fmt.Errorf("density probe failed: %w", err)
	}

	numCells := e.cfg.Search.NumSeg * e.cfg.Search.NumSeg
	density := float64(total) / float64(r.Days()) / float64(numCells)

	s := schedule.Scheduler{Cap: e.cfg.Search.Cap, Density: density}
	step := s.Timestep()

	// A static plan never needs windows longer than the range itself
	if step > r.Days() {
		step = r.Days()
	}

	e.logger.DebugWithFields("window plan computed", map[string]interface{}{
		"area_total":   total,
		"cell_density": density,
		"step_days":    step,
	})
	return step, nil
}

// CleanRun removes any artifacts of a previous run with the same name:
// part files, final export, and checkpoint. Used by --force-restart.
func (e *Extractor) CleanRun(runName string) error {
	if err := e.writer.RemoveParts(runName); err != nil {
		return err
	}
	final := e.writer.FinalPath(runName)
	if err := os.Remove(final); err != nil && !os.IsNotExist(err) {
		return err
	}
	return e.checkpoints.Delete(runName)
}
