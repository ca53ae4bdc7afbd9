package executor

import (
	"context"
	"log/slog"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
)

// RunCreator opens a run in the external experiment tracker and returns its
// opaque handle.
type RunCreator interface {
	CreateRun(ctx context.Context, experimentID string, tags map[string]string) (string, error)
}

// TrainExecutor runs a train stage like a generic script stage and, on
// success, opens an experiment-tracker run tagged with the pipeline run and
// stage. Tracker failures are best-effort: logged, never turned into a stage
// failure.
type TrainExecutor struct {
	inner   Executor
	tracker RunCreator
	logger  *slog.Logger
}

func NewTrainExecutor(inner Executor, tracker RunCreator, logger *slog.Logger) *TrainExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrainExecutor{inner: inner, tracker: tracker, logger: logger}
}

func (e *TrainExecutor) Kind() domain.StageType {
	return domain.StageTypeTrain
}

func (e *TrainExecutor) Execute(ctx context.Context, stage domain.StageSpec, runCtx RunContext) Outcome {
	outcome := e.inner.Execute(ctx, stage, runCtx)
	if outcome.Status != domain.StageStatusSuccess {
		return outcome
	}
	if e.tracker == nil || runCtx.ExperimentID == "" {
		return outcome
	}

	handle, err := e.tracker.CreateRun(ctx, runCtx.ExperimentID, map[string]string{
		"pipeline_run_id": runCtx.RunID,
		"stage_name":      stage.Name,
	})
	if err != nil {
		e.logger.Warn("experiment tracker run not created",
			"run_id", runCtx.RunID, "stage", stage.Name, "error", err)
		return outcome
	}
	outcome.Artifacts = append(outcome.Artifacts, handle)
	return outcome
}
