// Package batch drives the porting workflow over every selected source asset
// and persists the outcome of each run.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sqlport/sqlport/internal/metastore"
	"github.com/sqlport/sqlport/internal/workflow"
)

// AssetRunner runs one asset to a terminal phase. Satisfied by
// *workflow.Controller.
type AssetRunner interface {
	RunAsset(ctx context.Context, st workflow.MigrationState) workflow.MigrationState
}

// Result is the outcome for one asset.
type Result struct {
	FilePath string
	State    workflow.MigrationState
}

// Summary aggregates a whole batch run.
type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Results   []Result
}

// Runner executes the workflow per asset with bounded parallelism.
type Runner struct {
	store   *metastore.Store
	runner  AssetRunner
	workers int
	logger  *slog.Logger
}

// New builds a Runner. workers below 1 means serial execution.
func New(store *metastore.Store, runner AssetRunner, workers int, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &Runner{store: store, runner: runner, workers: workers, logger: logger}
}

// Run ports every selected asset and returns the aggregated summary. With
// onlyChanged, assets whose content is unchanged since their last rendered
// output are skipped. One asset's failure never aborts the batch; only
// context cancellation stops it early.
func (r *Runner) Run(ctx context.Context, onlyChanged bool) (Summary, error) {
	assets, err := r.store.ListSourceAssets(ctx, true, onlyChanged)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list assets for batch run: %w", err)
	}

	runID := uuid.NewString()
	summary := Summary{RunID: runID, Total: len(assets)}
	if len(assets) == 0 {
		r.logger.Info("nothing to port", "run_id", runID)
		return summary, nil
	}

	r.logger.Info("batch run starting",
		"run_id", runID, "assets", len(assets), "workers", r.workers)
	r.logEvent(ctx, runID, "info", "run_start", fmt.Sprintf("%d assets, %d workers", len(assets), r.workers))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, asset := range assets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := r.runOne(gctx, runID, asset)
			mu.Lock()
			summary.Results = append(summary.Results, res)
			if res.State.Phase == workflow.PhaseVerifiedOK {
				summary.Succeeded++
			} else {
				summary.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, fmt.Errorf("batch run interrupted: %w", err)
	}

	sort.Slice(summary.Results, func(i, j int) bool {
		return summary.Results[i].FilePath < summary.Results[j].FilePath
	})

	r.logEvent(ctx, runID, "info", "run_done",
		fmt.Sprintf("%d ok, %d failed", summary.Succeeded, summary.Failed))
	r.logger.Info("batch run finished",
		"run_id", runID, "ok", summary.Succeeded, "failed", summary.Failed)
	return summary, nil
}

func (r *Runner) runOne(ctx context.Context, runID string, asset metastore.SourceAsset) Result {
	final := r.runner.RunAsset(ctx, workflow.NewState(asset.FilePath, asset.SQLText))
	r.persist(ctx, runID, asset, final)
	return Result{FilePath: asset.FilePath, State: final}
}

// persist records the terminal state. Storage failures are logged but do not
// change the asset's outcome; the workflow already finished.
func (r *Runner) persist(ctx context.Context, runID string, asset metastore.SourceAsset, st workflow.MigrationState) {
	out := metastore.RenderedOutput{
		FilePath:   asset.FilePath,
		SQLText:    st.TargetText,
		SourceHash: asset.ContentHash,
		Status:     string(st.Phase),
		Verified:   st.Phase == workflow.PhaseVerifiedOK,
		LastError:  st.LastError,
	}
	if err := r.store.SaveRenderedOutput(ctx, out); err != nil {
		r.logger.Error("failed to persist rendered output", "asset", asset.FilePath, "error", err)
	}

	rec := metastore.MigrationRecord{
		FilePath:          asset.FilePath,
		Status:            string(st.Phase),
		RetryCount:        st.RetryCount,
		LastError:         st.LastError,
		DetectedSchemas:   st.ReferencedSchemas,
		SkippedStatements: st.Stats.SkippedStatements,
		ExecutedCount:     st.Stats.ExecutedCount,
	}
	if err := r.store.SaveMigrationRecord(ctx, rec); err != nil {
		r.logger.Error("failed to persist migration record", "asset", asset.FilePath, "error", err)
	}

	level, event := "info", "asset_done"
	detail := fmt.Sprintf("%s: %s", asset.FilePath, st.Phase)
	if st.Phase != workflow.PhaseVerifiedOK {
		level, event = "error", "asset_failed"
		detail = fmt.Sprintf("%s: %s (%s)", asset.FilePath, st.Phase, st.LastError)
	}
	r.logEvent(ctx, runID, level, event, detail)
}

func (r *Runner) logEvent(ctx context.Context, runID, level, event, detail string) {
	if err := r.store.AddExecutionLog(ctx, runID, level, event, detail); err != nil {
		r.logger.Warn("failed to append execution log", "event", event, "error", err)
	}
}
