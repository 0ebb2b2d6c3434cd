package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"voxcrawl/internal/checkpoint"
	"voxcrawl/internal/config"
	"voxcrawl/internal/logging"
	"voxcrawl/internal/services"
	"voxcrawl/internal/stage"
)

// ErrStopRequested reports that a cooperative stop was requested and the
// orchestrator halted at a checkpoint boundary. It is a clean stopping
// point, not a failure.
var ErrStopRequested = errors.New("stop requested")

// StageSet bundles the concrete stage handlers the orchestrator sequences.
type StageSet struct {
	Discovery stage.Handler
	Fetch     stage.Handler
	Transform stage.Handler
	Finalize  stage.Handler
}

// WorkRequest names one item the caller wants processed.
type WorkRequest struct {
	ID   string
	Name string
}

// Orchestrator drives work items through the staged lifecycle.
type Orchestrator struct {
	cfg    *config.Config
	store  *checkpoint.Store
	logger *slog.Logger
	stages StageSet

	stop atomic.Bool
}

// New constructs an orchestrator over the given store and stage handlers.
func New(cfg *config.Config, store *checkpoint.Store, logger *slog.Logger, stages StageSet) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		stages: stages,
	}
}

// RequestStop asks the orchestrator to halt after the current stage
// finishes and persists. Safe to call from a signal handler goroutine.
func (o *Orchestrator) RequestStop() {
	o.stop.Store(true)
}

// StopRequested reports whether a cooperative stop is pending.
func (o *Orchestrator) StopRequested() bool {
	return o.stop.Load()
}

func (o *Orchestrator) checkStop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.stop.Load() {
		return ErrStopRequested
	}
	return nil
}

// Run processes the requested items in order, resuming any item the
// persisted session left in flight first. Items already completed are
// skipped; failed items are skipped unless retries are enabled. A
// cooperative stop ends the run cleanly with a nil error.
func (o *Orchestrator) Run(ctx context.Context, requests []WorkRequest) error {
	progress, err := o.store.LoadOrCreateSession()
	if err != nil {
		return err
	}

	names := make(map[string]string, len(requests))
	for _, req := range requests {
		names[req.ID] = req.Name
	}

	// Seed the session with the whole planned list up front so items the
	// run never reaches still show up as pending on resume.
	for _, req := range requests {
		if err := o.store.AddItem(req.ID); err != nil {
			return err
		}
	}

	processed := make(map[string]bool, len(requests)+1)

	// An item interrupted mid-stage resumes before anything else. Its
	// display name comes from the fresh request list when present, else
	// from its own checkpoint.
	if inFlight := progress.InProgress; inFlight != "" {
		o.logger.Info("resuming interrupted item", logging.String(logging.FieldItemID, inFlight))
		processed[inFlight] = true
		if err := o.ProcessItem(ctx, WorkRequest{ID: inFlight, Name: names[inFlight]}); err != nil {
			if halt := o.haltErr(err); halt != nil {
				return halt
			}
		}
	}

	for _, req := range requests {
		if processed[req.ID] {
			continue
		}
		if err := o.checkStop(ctx); err != nil {
			return o.haltErr(err)
		}
		processed[req.ID] = true
		if err := o.ProcessItem(ctx, req); err != nil {
			if halt := o.haltErr(err); halt != nil {
				return halt
			}
		}
	}
	return nil
}

// haltErr translates a ProcessItem error into the run-level outcome:
// cooperative stops end the run with nil, hard cancellation propagates,
// and per-item failures (already recorded on the item) let the run
// continue by returning nothing to halt on.
func (o *Orchestrator) haltErr(err error) error {
	switch {
	case errors.Is(err, ErrStopRequested):
		o.logger.Info("run stopped at checkpoint boundary")
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		o.logger.Error("item processing failed", logging.Error(err))
		return nil
	}
}

// ProcessItem drives one item from its current stage to a terminal stage,
// a stop request, or an item-level failure. Item-level failures are
// persisted on the item and returned for the caller to log.
func (o *Orchestrator) ProcessItem(ctx context.Context, req WorkRequest) error {
	ctx = services.WithItemID(ctx, req.ID)
	logger := o.logger.With(logging.String(logging.FieldItemID, req.ID))

	item, err := o.store.LoadItem(req.ID)
	if err != nil {
		return err
	}
	if item == nil {
		if item, err = o.store.CreateItem(req.ID, req.Name); err != nil {
			return err
		}
	}
	if item.Name == "" && req.Name != "" {
		item.Name = req.Name
	}

	switch item.Stage {
	case checkpoint.StageCompleted:
		logger.Debug("item already completed, skipping")
		return nil
	case checkpoint.StageFailed:
		if !o.cfg.Workflow.RetryFailed {
			logger.Info("skipping failed item", logging.String("error", item.Error))
			return nil
		}
		if item, err = o.store.RetryItem(req.ID); err != nil {
			return err
		}
		logger.Info("retrying failed item")
	}

	for !item.Terminal() {
		if err := o.checkStop(ctx); err != nil {
			return err
		}

		var stepErr error
		switch item.Stage {
		case checkpoint.StagePending, checkpoint.StageScraping:
			stepErr = o.discover(ctx, item, logger)
		case checkpoint.StageDownloading:
			stepErr = o.fetch(ctx, item, logger)
		case checkpoint.StageProcessing:
			stepErr = o.transform(ctx, item, logger)
		case checkpoint.StageConcatenating:
			stepErr = o.finalize(ctx, item, logger)
		default:
			return services.Wrap(services.ErrValidation, string(item.Stage), "advance item",
				"no stage handler for "+string(item.Stage), nil)
		}
		if stepErr != nil {
			return stepErr
		}

		if err := o.checkStop(ctx); err != nil {
			return err
		}
	}

	if item.Stage == checkpoint.StageFailed {
		logger.Warn("item failed", logging.String("error", item.Error))
	} else {
		logger.Info("item completed",
			logging.Int("files", item.Stats.Total),
			logging.Int("transformed", item.Stats.Transformed))
	}
	return nil
}

// discover runs the discovery handler, which populates the sub-item list
// and owns the pending through downloading transitions. A reachable source
// that yields nothing is an item failure, not a run failure.
func (o *Orchestrator) discover(ctx context.Context, item *checkpoint.WorkItem, logger *slog.Logger) error {
	if err := o.runStage(ctx, o.stages.Discovery, item); err != nil {
		if cancelled(err) {
			return err
		}
		return o.failItem(item, err.Error(), logger)
	}
	return nil
}

// fetch runs the download handler over the batch, then applies the
// success-ratio gate over all sub-items. A stop requested during the batch
// leaves the item at its current stage; the gate never runs.
func (o *Orchestrator) fetch(ctx context.Context, item *checkpoint.WorkItem, logger *slog.Logger) error {
	if err := o.runStage(ctx, o.stages.Fetch, item); err != nil {
		if cancelled(err) {
			return err
		}
		return o.failItem(item, err.Error(), logger)
	}
	if err := o.checkStop(ctx); err != nil {
		return err
	}
	if !o.meetsRatio(item.Stats.Fetched, item.Stats.Total) {
		msg := fmt.Sprintf("only %d/%d files downloaded (%.1f%%)",
			item.Stats.Fetched, item.Stats.Total, percentage(item.Stats.Fetched, item.Stats.Total))
		return o.failItem(item, msg, logger)
	}
	return o.store.SetStage(item, checkpoint.StageProcessing)
}

// transform runs the audio processing handler, then gates on the share of
// fetched files that converted successfully.
func (o *Orchestrator) transform(ctx context.Context, item *checkpoint.WorkItem, logger *slog.Logger) error {
	if err := o.runStage(ctx, o.stages.Transform, item); err != nil {
		if cancelled(err) {
			return err
		}
		return o.failItem(item, err.Error(), logger)
	}
	if err := o.checkStop(ctx); err != nil {
		return err
	}
	if !o.meetsRatio(item.Stats.Transformed, item.Stats.Fetched) {
		msg := fmt.Sprintf("only %d/%d files processed (%.1f%%)",
			item.Stats.Transformed, item.Stats.Fetched, percentage(item.Stats.Transformed, item.Stats.Fetched))
		return o.failItem(item, msg, logger)
	}
	return o.store.SetStage(item, checkpoint.StageConcatenating)
}

// finalize runs the artifact assembly handler; success completes the item.
func (o *Orchestrator) finalize(ctx context.Context, item *checkpoint.WorkItem, logger *slog.Logger) error {
	if err := o.runStage(ctx, o.stages.Finalize, item); err != nil {
		if cancelled(err) {
			return err
		}
		return o.failItem(item, err.Error(), logger)
	}
	return o.store.MarkItemCompleted(item)
}

// runStage prepares and executes one handler under a context annotated
// with the stage name and a fresh correlation id.
func (o *Orchestrator) runStage(ctx context.Context, handler stage.Handler, item *checkpoint.WorkItem) error {
	if handler == nil {
		return services.Wrap(services.ErrConfiguration, string(item.Stage), "run stage", "stage handler not configured", nil)
	}
	ctx = services.WithStage(ctx, string(item.Stage))
	ctx = services.WithRequestID(ctx, uuid.NewString())
	if err := handler.Prepare(ctx, item); err != nil {
		return err
	}
	return handler.Execute(ctx, item)
}

// failItem records an item-level failure and keeps the run going.
func (o *Orchestrator) failItem(item *checkpoint.WorkItem, message string, logger *slog.Logger) error {
	logger.Warn("marking item failed",
		logging.String(logging.FieldStage, string(item.Stage)),
		logging.String("error", message))
	return o.store.MarkItemFailed(item, message)
}

func (o *Orchestrator) meetsRatio(succeeded, total int) bool {
	if total <= 0 {
		return false
	}
	return float64(succeeded)/float64(total) >= o.cfg.Workflow.SuccessRatio
}

func percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func cancelled(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrStopRequested)
}

// HealthCheck surveys every configured stage handler.
func (o *Orchestrator) HealthCheck(ctx context.Context) []stage.Health {
	handlers := []stage.Handler{o.stages.Discovery, o.stages.Fetch, o.stages.Transform, o.stages.Finalize}
	checks := make([]stage.Health, 0, len(handlers))
	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		checks = append(checks, handler.HealthCheck(ctx))
	}
	return checks
}
