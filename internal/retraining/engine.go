// Package retraining evaluates finished retraining jobs against their
// config's baseline and decides between deploy and hold.
package retraining

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
	"github.com/pipewright-labs/pipewright-go/internal/repo"
)

// ErrConfigDisabled is returned when the job's config has retraining turned
// off. The job is left untouched.
var ErrConfigDisabled = errors.New("retraining config is disabled")

// Cascade is notified after every completed job, deploy and hold alike.
type Cascade interface {
	OnRetrainingCompleted(ctx context.Context, modelName string, job domain.RetrainingJob)
}

type Deps struct {
	Jobs    repo.RetrainingJobRepository
	Configs repo.RetrainingConfigRepository
	Audit   repo.AuditEventAppender
	Cascade Cascade
	Logger  *slog.Logger
}

type Engine struct {
	jobs    repo.RetrainingJobRepository
	configs repo.RetrainingConfigRepository
	audit   repo.AuditEventAppender
	cascade Cascade
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

func New(deps Deps) *Engine {
	if deps.Jobs == nil || deps.Configs == nil {
		return nil
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		jobs:    deps.Jobs,
		configs: deps.Configs,
		audit:   deps.Audit,
		cascade: deps.Cascade,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// ImprovementPercent is the relative change from baseline to measured,
// expressed as a percentage rounded to two decimals. The baseline must be
// nonzero; callers skip zero-baseline metrics.
func ImprovementPercent(baseline, measured float64) float64 {
	pct := (measured - baseline) / baseline * 100
	return math.Round(pct*100) / 100
}

// ComputeImprovement compares measured metrics against the baseline. It
// returns the per-metric percentage formatted with two decimals, plus the
// unweighted mean over the compared metrics. Metrics absent from either set
// or with a zero baseline do not participate.
func ComputeImprovement(baseline, measured domain.MetricSet) (map[string]string, float64) {
	improvement := make(map[string]string, len(measured))
	names := make([]string, 0, len(measured))
	for name := range measured {
		names = append(names, name)
	}
	sort.Strings(names)

	var sum float64
	var compared int
	for _, name := range names {
		base, ok := baseline[name]
		if !ok || base == 0 {
			continue
		}
		pct := ImprovementPercent(base, measured[name])
		improvement[name] = fmt.Sprintf("%.2f", pct)
		sum += pct
		compared++
	}
	if compared == 0 {
		return improvement, 0
	}
	return improvement, sum / float64(compared)
}

// Complete records a job's measured metrics and applies the deploy policy:
// deploy only when the config opts into auto-deploy and the mean improvement
// meets the threshold. On deploy the config's baseline advances to the new
// metrics. The cascade is notified for every completed job.
func (e *Engine) Complete(ctx context.Context, jobID string, measured domain.MetricSet, trackerRunID string) (domain.RetrainingJob, error) {
	job, err := e.jobs.GetJob(ctx, jobID)
	if err != nil {
		return domain.RetrainingJob{}, fmt.Errorf("load retraining job: %w", err)
	}
	cfg, err := e.configs.GetConfig(ctx, job.ConfigID)
	if err != nil {
		return domain.RetrainingJob{}, fmt.Errorf("load retraining config: %w", err)
	}
	if !cfg.Enabled {
		return domain.RetrainingJob{}, fmt.Errorf("config %s: %w", cfg.ID, ErrConfigDisabled)
	}

	started := e.now()
	job.Status = domain.RetrainingStatusRunning
	job.StartedAt = &started
	if err := e.jobs.UpdateJob(ctx, job); err != nil {
		return job, fmt.Errorf("persist job %s: %w", job.ID, err)
	}

	// The job snapshots the baseline at creation time; fall back to the
	// config when the snapshot is missing.
	baseline := job.BaselineMetrics
	if len(baseline) == 0 {
		baseline = cfg.BaselineMetrics
	}
	improvement, mean := ComputeImprovement(baseline, measured)

	job.NewMetrics = measured.Clone()
	job.Improvement = improvement
	job.TrackerRunID = trackerRunID

	deploy := cfg.AutoDeployIfImproved && mean >= cfg.ImprovementThreshold*100
	if deploy {
		job.Deployed = true
		job.DeploymentID = e.newID()
		if err := e.configs.UpdateBaseline(ctx, cfg.ID, measured.Clone()); err != nil {
			return e.fail(ctx, job, fmt.Errorf("advance baseline: %w", err))
		}
	}

	completed := e.now()
	job.Status = domain.RetrainingStatusCompleted
	job.CompletedAt = &completed
	if err := e.jobs.UpdateJob(ctx, job); err != nil {
		return job, fmt.Errorf("persist job %s: %w", job.ID, err)
	}

	e.appendAudit(ctx, job, cfg, mean, deploy)
	e.logger.Info("retraining job completed",
		"job_id", job.ID, "model", cfg.ModelName,
		"mean_improvement_pct", mean, "deployed", deploy)

	if e.cascade != nil {
		e.cascade.OnRetrainingCompleted(ctx, cfg.ModelName, job)
	}
	return job, nil
}

// fail moves the job to failed with the cause recorded; the original error is
// what the caller sees.
func (e *Engine) fail(ctx context.Context, job domain.RetrainingJob, cause error) (domain.RetrainingJob, error) {
	completed := e.now()
	job.Status = domain.RetrainingStatusFailed
	job.CompletedAt = &completed
	job.ErrorMessage = cause.Error()
	if err := e.jobs.UpdateJob(ctx, job); err != nil {
		e.logger.Warn("failed job not persisted", "job_id", job.ID, "error", err)
	}
	return job, cause
}

func (e *Engine) appendAudit(ctx context.Context, job domain.RetrainingJob, cfg domain.RetrainingConfig, mean float64, deploy bool) {
	if e.audit == nil {
		return
	}
	action := "retraining.held"
	if deploy {
		action = "retraining.deployed"
	}
	_, err := e.audit.Append(ctx, domain.AuditEvent{
		OccurredAt:   e.now(),
		Actor:        "system",
		Action:       action,
		ResourceType: "retraining_job",
		ResourceID:   job.ID,
		Details: domain.Metadata{
			"model_name":           cfg.ModelName,
			"mean_improvement_pct": mean,
			"deployment_id":        job.DeploymentID,
		},
		Outcome: "success",
	})
	if err != nil {
		e.logger.Warn("audit append failed", "job_id", job.ID, "action", action, "error", err)
	}
}
