// Package coordinator drives a pipeline run from trigger to terminal status.
// Stages execute sequentially in declaration order; a stage failure is data
// recorded on the run, never an error returned to the caller. Only lookup and
// persistence failures propagate.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
	"github.com/pipewright-labs/pipewright-go/internal/execution/executor"
	"github.com/pipewright-labs/pipewright-go/internal/execution/resolver"
	"github.com/pipewright-labs/pipewright-go/internal/repo"
)

// ErrPipelineDisabled is returned when a trigger targets a disabled pipeline.
// No run record is created in that case.
var ErrPipelineDisabled = errors.New("pipeline is disabled")

// Notifier delivers a completion message to one recipient.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// Archiver copies a finished run's stage logs to durable storage.
type Archiver interface {
	ArchiveRunLogs(ctx context.Context, run domain.PipelineRun) error
}

// TriggerRequest describes one trigger call.
type TriggerRequest struct {
	PipelineID  string
	TriggerType string
	TriggerData domain.Metadata
	TriggeredBy string
}

// Deps wires the coordinator's collaborators. Pipelines, Runs and Executors
// are required; the rest degrade to no-ops when absent.
type Deps struct {
	Pipelines repo.PipelineRepository
	Runs      repo.PipelineRunRepository
	Audit     repo.AuditEventAppender
	Executors *executor.Registry
	Notifier  Notifier
	Archiver  Archiver
	Logger    *slog.Logger
}

type Coordinator struct {
	pipelines repo.PipelineRepository
	runs      repo.PipelineRunRepository
	audit     repo.AuditEventAppender
	executors *executor.Registry
	notifier  Notifier
	archiver  Archiver
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

func New(deps Deps) *Coordinator {
	if deps.Pipelines == nil || deps.Runs == nil || deps.Executors == nil {
		return nil
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		pipelines: deps.Pipelines,
		runs:      deps.Runs,
		audit:     deps.Audit,
		executors: deps.Executors,
		notifier:  deps.Notifier,
		archiver:  deps.Archiver,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// Trigger creates a run for the pipeline and executes it to completion. The
// returned run carries the final stage states even when an execution error
// occurred after the run record was created.
func (c *Coordinator) Trigger(ctx context.Context, req TriggerRequest) (domain.PipelineRun, error) {
	def, err := c.pipelines.GetPipeline(ctx, req.PipelineID)
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("load pipeline: %w", err)
	}
	if !def.Enabled {
		return domain.PipelineRun{}, fmt.Errorf("pipeline %s: %w", def.ID, ErrPipelineDisabled)
	}

	triggerType := strings.TrimSpace(req.TriggerType)
	if triggerType == "" {
		triggerType = "manual"
	}
	triggeredBy := strings.TrimSpace(req.TriggeredBy)
	if triggeredBy == "" {
		triggeredBy = "system"
	}

	run := domain.PipelineRun{
		ID:          c.newID(),
		PipelineID:  def.ID,
		TriggerType: triggerType,
		TriggerData: req.TriggerData.Clone(),
		Status:      domain.RunStatusRunning,
		Stages:      domain.InitialStageStates(def),
		StartedAt:   c.now(),
		TriggeredBy: triggeredBy,
	}
	run, err = c.runs.CreateRun(ctx, run)
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("create run: %w", err)
	}

	c.appendAudit(ctx, run, "pipeline_run.triggered", domain.Metadata{
		"pipeline_name": def.Name,
		"trigger_type":  run.TriggerType,
		"run_number":    run.RunNumber,
	})
	c.logger.Info("pipeline run started",
		"pipeline_id", def.ID, "run_id", run.ID, "run_number", run.RunNumber,
		"trigger_type", run.TriggerType)

	anyFailed := false
	for i, stage := range def.Stages {
		state := &run.Stages[i]

		if !resolver.Ready(stage.DependsOn, run.Stages[:i]) {
			state.Status = domain.StageStatusSkipped
			if err := c.runs.UpdateRun(ctx, run); err != nil {
				return run, fmt.Errorf("persist run %s: %w", run.ID, err)
			}
			c.logger.Info("stage skipped",
				"run_id", run.ID, "stage", stage.Name, "depends_on", stage.DependsOn)
			continue
		}

		started := c.now()
		state.Status = domain.StageStatusRunning
		state.StartedAt = &started
		if err := c.runs.UpdateRun(ctx, run); err != nil {
			return run, fmt.Errorf("persist run %s: %w", run.ID, err)
		}

		outcome := c.executeStage(ctx, def, run, stage)
		completed := c.now()
		state.Status = outcome.Status
		state.Logs = outcome.Logs
		state.Artifacts = outcome.Artifacts
		state.ErrorMessage = outcome.ErrorMessage
		state.CompletedAt = &completed
		state.DurationSeconds = domain.DurationSecondsBetween(started, completed)
		if outcome.Status == domain.StageStatusFailed {
			anyFailed = true
			run.Status = domain.RunStatusFailed
		}
		if err := c.runs.UpdateRun(ctx, run); err != nil {
			return run, fmt.Errorf("persist run %s: %w", run.ID, err)
		}

		if outcome.Status == domain.StageStatusFailed {
			c.logger.Warn("stage failed",
				"run_id", run.ID, "stage", stage.Name, "error", outcome.ErrorMessage)
			if !stage.ContinueOnFailure {
				break
			}
			continue
		}
		c.logger.Info("stage finished",
			"run_id", run.ID, "stage", stage.Name, "duration_seconds", state.DurationSeconds)
	}

	completed := c.now()
	run.CompletedAt = &completed
	run.DurationSeconds = domain.DurationSecondsBetween(run.StartedAt, completed)
	if anyFailed {
		run.Status = domain.RunStatusFailed
	} else {
		run.Status = domain.RunStatusSuccess
	}
	if err := c.runs.UpdateRun(ctx, run); err != nil {
		return run, fmt.Errorf("persist run %s: %w", run.ID, err)
	}
	if err := c.pipelines.UpdateLastRun(ctx, def.ID, run.ID, string(run.Status)); err != nil {
		return run, fmt.Errorf("update pipeline last run: %w", err)
	}

	c.appendAudit(ctx, run, "pipeline_run.completed", domain.Metadata{
		"pipeline_name":    def.Name,
		"run_number":       run.RunNumber,
		"status":           string(run.Status),
		"duration_seconds": run.DurationSeconds,
	})
	c.notifyCompletion(ctx, def, run)
	c.archiveLogs(ctx, run)

	c.logger.Info("pipeline run finished",
		"pipeline_id", def.ID, "run_id", run.ID, "status", run.Status,
		"duration_seconds", run.DurationSeconds)
	return run, nil
}

func (c *Coordinator) executeStage(ctx context.Context, def domain.PipelineDefinition, run domain.PipelineRun, stage domain.StageSpec) executor.Outcome {
	exec, ok := c.executors.For(stage.Type)
	if !ok {
		return executor.Outcome{
			Status:       domain.StageStatusFailed,
			ErrorMessage: fmt.Sprintf("no executor registered for stage type %q", stage.Type),
		}
	}

	stageCtx := ctx
	if stage.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, time.Duration(stage.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	return exec.Execute(stageCtx, stage, executor.RunContext{
		RunID:        run.ID,
		PipelineID:   def.ID,
		PipelineName: def.Name,
		RunNumber:    run.RunNumber,
		ExperimentID: def.ExperimentID,
	})
}

func (c *Coordinator) appendAudit(ctx context.Context, run domain.PipelineRun, action string, details domain.Metadata) {
	if c.audit == nil {
		return
	}
	_, err := c.audit.Append(ctx, domain.AuditEvent{
		OccurredAt:   c.now(),
		Actor:        run.TriggeredBy,
		Action:       action,
		ResourceType: "pipeline_run",
		ResourceID:   run.ID,
		Details:      details,
		Outcome:      "success",
	})
	if err != nil {
		c.logger.Warn("audit append failed", "run_id", run.ID, "action", action, "error", err)
	}
}

func (c *Coordinator) notifyCompletion(ctx context.Context, def domain.PipelineDefinition, run domain.PipelineRun) {
	if c.notifier == nil || len(def.NotifyEmails) == 0 {
		return
	}
	subject := fmt.Sprintf("Pipeline %s run #%d %s", def.Name, run.RunNumber, run.Status)
	body := completionBody(def, run)
	for _, recipient := range def.NotifyEmails {
		recipient = strings.TrimSpace(recipient)
		if recipient == "" {
			continue
		}
		if err := c.notifier.Send(ctx, recipient, subject, body); err != nil {
			c.logger.Warn("completion notification failed",
				"run_id", run.ID, "recipient", recipient, "error", err)
		}
	}
}

func (c *Coordinator) archiveLogs(ctx context.Context, run domain.PipelineRun) {
	if c.archiver == nil {
		return
	}
	if err := c.archiver.ArchiveRunLogs(ctx, run); err != nil {
		c.logger.Warn("run log archive failed", "run_id", run.ID, "error", err)
	}
}

func completionBody(def domain.PipelineDefinition, run domain.PipelineRun) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pipeline: %s\nRun: #%d (%s)\nStatus: %s\nDuration: %ds\n\nStages:\n",
		def.Name, run.RunNumber, run.ID, run.Status, run.DurationSeconds)
	for _, stage := range run.Stages {
		fmt.Fprintf(&b, "  - %s: %s", stage.Name, stage.Status)
		if stage.ErrorMessage != "" {
			fmt.Fprintf(&b, " (%s)", stage.ErrorMessage)
		}
		b.WriteString("\n")
	}
	return b.String()
}
