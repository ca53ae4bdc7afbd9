package repo

import (
	"context"
	"errors"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

type PipelineFilter struct {
	ModelName           string
	TriggerOnRetraining bool
	EnabledOnly         bool
	Limit               int
}

type RunFilter struct {
	PipelineID string
	Status     string
	Limit      int
}

// PipelineRepository manages pipeline definitions.
type PipelineRepository interface {
	CreatePipeline(ctx context.Context, def domain.PipelineDefinition) error
	GetPipeline(ctx context.Context, id string) (domain.PipelineDefinition, error)
	ListPipelines(ctx context.Context, filter PipelineFilter) ([]domain.PipelineDefinition, error)
	UpdateLastRun(ctx context.Context, id, runID, runStatus string) error
}

// PipelineRunRepository manages run records. CreateRun assigns RunNumber
// atomically per pipeline (1 + highest existing) and returns the stored run.
type PipelineRunRepository interface {
	CreateRun(ctx context.Context, run domain.PipelineRun) (domain.PipelineRun, error)
	GetRun(ctx context.Context, id string) (domain.PipelineRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]domain.PipelineRun, error)
	UpdateRun(ctx context.Context, run domain.PipelineRun) error
}

// RetrainingJobRepository manages retraining job records.
type RetrainingJobRepository interface {
	CreateJob(ctx context.Context, job domain.RetrainingJob) error
	GetJob(ctx context.Context, id string) (domain.RetrainingJob, error)
	UpdateJob(ctx context.Context, job domain.RetrainingJob) error
}

// RetrainingConfigRepository manages retraining configs. UpdateBaseline is
// called only on a deploy decision.
type RetrainingConfigRepository interface {
	CreateConfig(ctx context.Context, cfg domain.RetrainingConfig) error
	GetConfig(ctx context.Context, id string) (domain.RetrainingConfig, error)
	UpdateBaseline(ctx context.Context, id string, baseline domain.MetricSet) error
}

// AuditEventAppender ensures append-only audit writes.
type AuditEventAppender interface {
	Append(ctx context.Context, event domain.AuditEvent) (int64, error)
}
