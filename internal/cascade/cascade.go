// Package cascade starts dependent pipeline runs after a retraining job
// finishes. Every enabled pipeline subscribed to the retrained model is
// triggered; one pipeline failing to start never blocks the others.
package cascade

import (
	"context"
	"log/slog"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
	"github.com/pipewright-labs/pipewright-go/internal/execution/coordinator"
	"github.com/pipewright-labs/pipewright-go/internal/repo"
)

// PipelineTrigger starts one pipeline run. Satisfied by the run coordinator.
type PipelineTrigger interface {
	Trigger(ctx context.Context, req coordinator.TriggerRequest) (domain.PipelineRun, error)
}

type Trigger struct {
	pipelines repo.PipelineRepository
	runner    PipelineTrigger
	logger    *slog.Logger
}

func New(pipelines repo.PipelineRepository, runner PipelineTrigger, logger *slog.Logger) *Trigger {
	if pipelines == nil || runner == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{pipelines: pipelines, runner: runner, logger: logger}
}

// OnRetrainingCompleted fires downstream pipelines for the model. It runs for
// deploy and hold decisions alike; subscribers decide what a fresh model
// means for them.
func (t *Trigger) OnRetrainingCompleted(ctx context.Context, modelName string, job domain.RetrainingJob) {
	defs, err := t.pipelines.ListPipelines(ctx, repo.PipelineFilter{
		ModelName:           modelName,
		TriggerOnRetraining: true,
		EnabledOnly:         true,
	})
	if err != nil {
		t.logger.Warn("cascade pipeline lookup failed", "model", modelName, "error", err)
		return
	}
	if len(defs) == 0 {
		return
	}

	for _, def := range defs {
		run, err := t.runner.Trigger(ctx, coordinator.TriggerRequest{
			PipelineID:  def.ID,
			TriggerType: "retraining",
			TriggerData: domain.Metadata{
				"model_name":        modelName,
				"retraining_job_id": job.ID,
				"tracker_run_id":    job.TrackerRunID,
				"baseline_advanced": job.Deployed,
			},
			TriggeredBy: "retraining-cascade",
		})
		if err != nil {
			t.logger.Warn("cascade trigger failed",
				"model", modelName, "pipeline_id", def.ID, "error", err)
			continue
		}
		t.logger.Info("cascade run started",
			"model", modelName, "pipeline_id", def.ID,
			"run_id", run.ID, "run_number", run.RunNumber)
	}
}
