package loader

import (
	"context"
	"fmt"
	"time"

	"studiopipe/internal/snowflake"
	"studiopipe/pkg/errors"
	"studiopipe/pkg/models"
)

// layerRowCountsSQL reads the governance view summarizing every layer.
const layerRowCountsSQL = "SELECT * FROM %s.GOVERNANCE.V_LAYER_ROW_COUNTS ORDER BY LAYER"

// RunSummary describes a completed run.
type RunSummary struct {
	RunID      string           `json:"run_id"`
	FirstBatch int              `json:"first_batch"`
	LastBatch  int              `json:"last_batch"`
	Batches    []BatchResult    `json:"batches"`
	RowCounts  *snowflake.Table `json:"row_counts"`
	Duration   time.Duration    `json:"duration"`
}

// Runner drives a sequence of batches with a pause between them.
type Runner struct {
	loader *Loader
	cfg    models.Load
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRunner runs batches StartBatch..Batches of cfg through l.
func NewRunner(l *Loader, cfg models.Load) *Runner {
	return &Runner{loader: l, cfg: cfg, sleep: sleepContext}
}

// Run loads every batch in turn, sleeping between batches but not after the
// last one, then reads the layer row counts. Cancelling ctx stops the run
// at the next statement or pause.
func (r *Runner) Run(ctx context.Context) (RunSummary, error) {
	start := time.Now()
	first := r.cfg.StartBatch
	if first < 1 {
		first = 1
	}
	summary := RunSummary{RunID: r.loader.RunID(), FirstBatch: first}

	if first > r.cfg.Batches {
		return summary, errors.ConfigError(
			fmt.Sprintf("Start batch %d is past the last batch %d", first, r.cfg.Batches), "load.start_batch")
	}

	log := r.loader.logger
	log.InfoWithFields("Load run started", map[string]interface{}{
		"first_batch": first,
		"batches":     r.cfg.Batches,
		"database":    r.loader.Database(),
	})
	r.loader.reporter.RunStarted(r.cfg.Batches)

	for batch := first; batch <= r.cfg.Batches; batch++ {
		if err := ctx.Err(); err != nil {
			return r.finish(summary, start), err
		}

		result, err := r.loader.LoadBatch(ctx, batch, r.cfg.FanCount, r.cfg.BoxOfficeCount)
		if err != nil {
			return r.finish(summary, start), err
		}
		summary.Batches = append(summary.Batches, result)
		summary.LastBatch = batch

		if batch < r.cfg.Batches && r.cfg.BatchInterval > 0 {
			r.loader.reporter.Waiting(r.cfg.BatchInterval)
			if err := r.sleep(ctx, r.cfg.BatchInterval); err != nil {
				log.WarnWithFields("Load run interrupted", map[string]interface{}{"after_batch": batch})
				return r.finish(summary, start), err
			}
		}
	}

	r.loader.reporter.RunCompleted(r.cfg.Batches)

	counts, err := r.loader.LayerRowCounts(ctx)
	if err != nil {
		return r.finish(summary, start), errors.Wrap(err, errors.GetErrorCode(err), "Failed to read layer row counts").
			WithContext("step", StepLayerSummary)
	}
	summary.RowCounts = counts
	r.loader.reporter.RowCounts(counts)

	summary = r.finish(summary, start)
	log.InfoWithFields("Load run completed", map[string]interface{}{
		"batches":     len(summary.Batches),
		"duration_ms": summary.Duration.Milliseconds(),
	})
	return summary, nil
}

func (r *Runner) finish(summary RunSummary, start time.Time) RunSummary {
	summary.Duration = time.Since(start)
	return summary
}

// LayerRowCounts reads the governance view of row counts per layer and table.
func (l *Loader) LayerRowCounts(ctx context.Context) (*snowflake.Table, error) {
	return l.wh.QueryTable(ctx, fmt.Sprintf(layerRowCountsSQL, l.Database()))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
