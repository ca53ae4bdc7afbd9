package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
	"github.com/pipewright-labs/pipewright-go/internal/repo"
)

type RetrainingJobStore struct {
	db DB
}

func NewRetrainingJobStore(db DB) *RetrainingJobStore {
	if db == nil {
		return nil
	}
	return &RetrainingJobStore{db: db}
}

const retrainingJobColumns = `job_id, config_id, status, trigger_reason, baseline_metrics,
	training_params, new_metrics, improvement, deployed, deployment_id, tracker_run_id,
	created_at, started_at, completed_at, error_message`

func (s *RetrainingJobStore) CreateJob(ctx context.Context, job domain.RetrainingJob) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("retraining job store not initialized")
	}
	if err := job.Validate(); err != nil {
		return err
	}
	baselineJSON, err := encodeMetrics(job.BaselineMetrics)
	if err != nil {
		return fmt.Errorf("encode baseline metrics: %w", err)
	}
	paramsJSON, err := encodeMetadata(job.TrainingParams)
	if err != nil {
		return fmt.Errorf("encode training params: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO retraining_jobs (
			job_id,
			config_id,
			status,
			trigger_reason,
			baseline_metrics,
			training_params,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		strings.TrimSpace(job.ID),
		strings.TrimSpace(job.ConfigID),
		strings.TrimSpace(string(job.Status)),
		nullIfEmpty(job.TriggerReason),
		baselineJSON,
		paramsJSON,
		normalizeTime(job.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert retraining job: %w", err)
	}
	return nil
}

func (s *RetrainingJobStore) GetJob(ctx context.Context, id string) (domain.RetrainingJob, error) {
	if s == nil || s.db == nil {
		return domain.RetrainingJob{}, fmt.Errorf("retraining job store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.RetrainingJob{}, fmt.Errorf("job id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+retrainingJobColumns+` FROM retraining_jobs WHERE job_id = $1`,
		id,
	)
	job, err := scanRetrainingJob(row.Scan)
	if err != nil {
		return domain.RetrainingJob{}, handleNotFound(err)
	}
	return job, nil
}

func (s *RetrainingJobStore) UpdateJob(ctx context.Context, job domain.RetrainingJob) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("retraining job store not initialized")
	}
	if err := job.Validate(); err != nil {
		return err
	}
	newMetricsJSON, err := encodeMetrics(job.NewMetrics)
	if err != nil {
		return fmt.Errorf("encode new metrics: %w", err)
	}
	improvementJSON, err := encodeStringMap(job.Improvement)
	if err != nil {
		return fmt.Errorf("encode improvement: %w", err)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE retraining_jobs
		 SET status = $1,
		     new_metrics = $2,
		     improvement = $3,
		     deployed = $4,
		     deployment_id = $5,
		     tracker_run_id = $6,
		     started_at = $7,
		     completed_at = $8,
		     error_message = $9
		 WHERE job_id = $10`,
		strings.TrimSpace(string(job.Status)),
		newMetricsJSON,
		improvementJSON,
		job.Deployed,
		nullIfEmpty(job.DeploymentID),
		nullIfEmpty(job.TrackerRunID),
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		nullIfEmpty(job.ErrorMessage),
		strings.TrimSpace(job.ID),
	)
	if err != nil {
		return fmt.Errorf("update retraining job: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update retraining job: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func scanRetrainingJob(scan func(dest ...any) error) (domain.RetrainingJob, error) {
	var (
		job             domain.RetrainingJob
		status          string
		triggerReason   sql.NullString
		baselineJSON    []byte
		paramsJSON      []byte
		newMetricsJSON  []byte
		improvementJSON []byte
		deploymentID    sql.NullString
		trackerRunID    sql.NullString
		startedAt       sql.NullTime
		completedAt     sql.NullTime
		errorMessage    sql.NullString
	)
	if err := scan(&job.ID, &job.ConfigID, &status, &triggerReason, &baselineJSON,
		&paramsJSON, &newMetricsJSON, &improvementJSON, &job.Deployed, &deploymentID,
		&trackerRunID, &job.CreatedAt, &startedAt, &completedAt, &errorMessage); err != nil {
		return domain.RetrainingJob{}, err
	}
	job.Status = domain.RetrainingStatus(status)
	if triggerReason.Valid {
		job.TriggerReason = triggerReason.String
	}
	baseline, err := decodeMetrics(baselineJSON)
	if err != nil {
		return domain.RetrainingJob{}, fmt.Errorf("decode baseline metrics: %w", err)
	}
	params, err := decodeMetadata(paramsJSON)
	if err != nil {
		return domain.RetrainingJob{}, fmt.Errorf("decode training params: %w", err)
	}
	newMetrics, err := decodeMetrics(newMetricsJSON)
	if err != nil {
		return domain.RetrainingJob{}, fmt.Errorf("decode new metrics: %w", err)
	}
	improvement, err := decodeStringMap(improvementJSON)
	if err != nil {
		return domain.RetrainingJob{}, fmt.Errorf("decode improvement: %w", err)
	}
	job.BaselineMetrics = baseline
	job.TrainingParams = params
	job.NewMetrics = newMetrics
	job.Improvement = improvement
	if deploymentID.Valid {
		job.DeploymentID = deploymentID.String
	}
	if trackerRunID.Valid {
		job.TrackerRunID = trackerRunID.String
	}
	job.StartedAt = timePtr(startedAt)
	job.CompletedAt = timePtr(completedAt)
	if errorMessage.Valid {
		job.ErrorMessage = errorMessage.String
	}
	return job, nil
}

type RetrainingConfigStore struct {
	db DB
}

func NewRetrainingConfigStore(db DB) *RetrainingConfigStore {
	if db == nil {
		return nil
	}
	return &RetrainingConfigStore{db: db}
}

const retrainingConfigColumns = `config_id, model_name, enabled, auto_deploy_if_improved,
	improvement_threshold, notify_emails, baseline_metrics`

func (s *RetrainingConfigStore) CreateConfig(ctx context.Context, cfg domain.RetrainingConfig) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("retraining config store not initialized")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	emailsJSON, err := encodeStrings(cfg.NotifyEmails)
	if err != nil {
		return fmt.Errorf("encode notify emails: %w", err)
	}
	baselineJSON, err := encodeMetrics(cfg.BaselineMetrics)
	if err != nil {
		return fmt.Errorf("encode baseline metrics: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO retraining_configs (
			config_id,
			model_name,
			enabled,
			auto_deploy_if_improved,
			improvement_threshold,
			notify_emails,
			baseline_metrics
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		strings.TrimSpace(cfg.ID),
		strings.TrimSpace(cfg.ModelName),
		cfg.Enabled,
		cfg.AutoDeployIfImproved,
		cfg.ImprovementThreshold,
		emailsJSON,
		baselineJSON,
	)
	if err != nil {
		return fmt.Errorf("insert retraining config: %w", err)
	}
	return nil
}

func (s *RetrainingConfigStore) GetConfig(ctx context.Context, id string) (domain.RetrainingConfig, error) {
	if s == nil || s.db == nil {
		return domain.RetrainingConfig{}, fmt.Errorf("retraining config store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.RetrainingConfig{}, fmt.Errorf("config id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+retrainingConfigColumns+` FROM retraining_configs WHERE config_id = $1`,
		id,
	)
	var (
		cfg          domain.RetrainingConfig
		emailsJSON   []byte
		baselineJSON []byte
	)
	if err := row.Scan(&cfg.ID, &cfg.ModelName, &cfg.Enabled, &cfg.AutoDeployIfImproved,
		&cfg.ImprovementThreshold, &emailsJSON, &baselineJSON); err != nil {
		return domain.RetrainingConfig{}, handleNotFound(err)
	}
	emails, err := decodeStrings(emailsJSON)
	if err != nil {
		return domain.RetrainingConfig{}, fmt.Errorf("decode notify emails: %w", err)
	}
	baseline, err := decodeMetrics(baselineJSON)
	if err != nil {
		return domain.RetrainingConfig{}, fmt.Errorf("decode baseline metrics: %w", err)
	}
	cfg.NotifyEmails = emails
	cfg.BaselineMetrics = baseline
	return cfg, nil
}

// UpdateBaseline replaces the config's baseline metrics. Called only when a
// deploy decision is made.
func (s *RetrainingConfigStore) UpdateBaseline(ctx context.Context, id string, baseline domain.MetricSet) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("retraining config store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("config id is required")
	}
	baselineJSON, err := encodeMetrics(baseline)
	if err != nil {
		return fmt.Errorf("encode baseline metrics: %w", err)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE retraining_configs SET baseline_metrics = $1 WHERE config_id = $2`,
		baselineJSON,
		id,
	)
	if err != nil {
		return fmt.Errorf("update baseline: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update baseline: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}
