// Package sqlite provides a single-file record store for local development
// and tests. It implements the same repository interfaces as the postgres
// stores; production deployments use postgres.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
	"github.com/pipewright-labs/pipewright-go/internal/repo"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pipelines (
		pipeline_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		stages TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		experiment_id TEXT,
		notify_emails TEXT NOT NULL DEFAULT '[]',
		trigger_on_retraining INTEGER NOT NULL DEFAULT 0,
		model_name TEXT,
		last_run_id TEXT,
		last_run_status TEXT
	);

	CREATE TABLE IF NOT EXISTS pipeline_runs (
		run_id TEXT PRIMARY KEY,
		pipeline_id TEXT NOT NULL,
		run_number INTEGER NOT NULL,
		trigger_type TEXT NOT NULL,
		trigger_data TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL,
		stages TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		triggered_by TEXT,
		UNIQUE (pipeline_id, run_number),
		FOREIGN KEY (pipeline_id) REFERENCES pipelines(pipeline_id)
	);

	CREATE TABLE IF NOT EXISTS retraining_configs (
		config_id TEXT PRIMARY KEY,
		model_name TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		auto_deploy_if_improved INTEGER NOT NULL DEFAULT 0,
		improvement_threshold REAL NOT NULL DEFAULT 0,
		notify_emails TEXT NOT NULL DEFAULT '[]',
		baseline_metrics TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS retraining_jobs (
		job_id TEXT PRIMARY KEY,
		config_id TEXT NOT NULL,
		status TEXT NOT NULL,
		trigger_reason TEXT,
		baseline_metrics TEXT NOT NULL DEFAULT '{}',
		training_params TEXT NOT NULL DEFAULT '{}',
		new_metrics TEXT NOT NULL DEFAULT '{}',
		improvement TEXT NOT NULL DEFAULT '{}',
		deployed INTEGER NOT NULL DEFAULT 0,
		deployment_id TEXT,
		tracker_run_id TEXT,
		created_at DATETIME NOT NULL,
		started_at DATETIME,
		completed_at DATETIME,
		error_message TEXT,
		FOREIGN KEY (config_id) REFERENCES retraining_configs(config_id)
	);

	CREATE TABLE IF NOT EXISTS audit_events (
		event_id INTEGER PRIMARY KEY AUTOINCREMENT,
		occurred_at DATETIME NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		request_id TEXT,
		details TEXT NOT NULL DEFAULT '{}',
		outcome TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_pipeline ON pipeline_runs(pipeline_id);
	CREATE INDEX IF NOT EXISTS idx_jobs_config ON retraining_jobs(config_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) CreatePipeline(ctx context.Context, def domain.PipelineDefinition) error {
	if strings.TrimSpace(def.ID) == "" {
		return fmt.Errorf("pipeline id is required")
	}
	if err := def.Validate(); err != nil {
		return err
	}
	stagesJSON, err := repo.MarshalStageSpecs(def.Stages)
	if err != nil {
		return fmt.Errorf("encode stages: %w", err)
	}
	emailsJSON, err := json.Marshal(orEmptyStrings(def.NotifyEmails))
	if err != nil {
		return fmt.Errorf("encode notify emails: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO pipelines (pipeline_id, name, stages, enabled, experiment_id,
			notify_emails, trigger_on_retraining, model_name)
		 VALUES (?,?,?,?,?,?,?,?)`,
		strings.TrimSpace(def.ID),
		strings.TrimSpace(def.Name),
		string(stagesJSON),
		def.Enabled,
		def.ExperimentID,
		string(emailsJSON),
		def.TriggerOnRetraining,
		def.ModelName,
	)
	if err != nil {
		return fmt.Errorf("insert pipeline: %w", err)
	}
	return nil
}

func (s *Store) GetPipeline(ctx context.Context, id string) (domain.PipelineDefinition, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.PipelineDefinition{}, fmt.Errorf("pipeline id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT pipeline_id, name, stages, enabled, experiment_id, notify_emails,
			trigger_on_retraining, model_name, last_run_id, last_run_status
		 FROM pipelines WHERE pipeline_id = ?`,
		id,
	)
	return scanPipeline(row.Scan)
}

func (s *Store) ListPipelines(ctx context.Context, filter repo.PipelineFilter) ([]domain.PipelineDefinition, error) {
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 2)
	if strings.TrimSpace(filter.ModelName) != "" {
		clauses = append(clauses, "model_name = ?")
		args = append(args, strings.TrimSpace(filter.ModelName))
	}
	if filter.TriggerOnRetraining {
		clauses = append(clauses, "trigger_on_retraining = 1")
	}
	if filter.EnabledOnly {
		clauses = append(clauses, "enabled = 1")
	}
	query := `SELECT pipeline_id, name, stages, enabled, experiment_id, notify_emails,
		trigger_on_retraining, model_name, last_run_id, last_run_status FROM pipelines`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()
	defs := make([]domain.PipelineDefinition, 0)
	for rows.Next() {
		def, err := scanPipeline(rows.Scan)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (s *Store) UpdateLastRun(ctx context.Context, id, runID, runStatus string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE pipelines SET last_run_id = ?, last_run_status = ? WHERE pipeline_id = ?`,
		runID, runStatus, strings.TrimSpace(id),
	)
	if err != nil {
		return fmt.Errorf("update last run: %w", err)
	}
	return requireRows(res)
}

func (s *Store) CreateRun(ctx context.Context, run domain.PipelineRun) (domain.PipelineRun, error) {
	if strings.TrimSpace(run.ID) == "" {
		return domain.PipelineRun{}, fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(run.PipelineID) == "" {
		return domain.PipelineRun{}, fmt.Errorf("pipeline id is required")
	}
	triggerJSON, err := json.Marshal(run.TriggerData.Clone())
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("encode trigger data: %w", err)
	}
	stagesJSON, err := repo.MarshalStageStates(run.Stages)
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("encode stages: %w", err)
	}
	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	var runNumber int64
	err = s.db.QueryRowContext(
		ctx,
		`INSERT INTO pipeline_runs (run_id, pipeline_id, run_number, trigger_type,
			trigger_data, status, stages, started_at, triggered_by)
		 VALUES (?, ?,
			(SELECT COALESCE(MAX(run_number), 0) + 1 FROM pipeline_runs WHERE pipeline_id = ?),
			?, ?, ?, ?, ?, ?)
		 RETURNING run_number`,
		strings.TrimSpace(run.ID),
		strings.TrimSpace(run.PipelineID),
		strings.TrimSpace(run.PipelineID),
		strings.TrimSpace(run.TriggerType),
		string(triggerJSON),
		string(run.Status),
		string(stagesJSON),
		startedAt.UTC(),
		run.TriggeredBy,
	).Scan(&runNumber)
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("insert run: %w", err)
	}
	run.RunNumber = runNumber
	run.StartedAt = startedAt.UTC()
	return run, nil
}

func (s *Store) GetRun(ctx context.Context, id string) (domain.PipelineRun, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.PipelineRun{}, fmt.Errorf("run id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT run_id, pipeline_id, run_number, trigger_type, trigger_data, status,
			stages, started_at, completed_at, duration_seconds, triggered_by
		 FROM pipeline_runs WHERE run_id = ?`,
		id,
	)
	return scanRun(row.Scan)
}

func (s *Store) ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.PipelineRun, error) {
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if strings.TrimSpace(filter.PipelineID) != "" {
		clauses = append(clauses, "pipeline_id = ?")
		args = append(args, strings.TrimSpace(filter.PipelineID))
	}
	if strings.TrimSpace(filter.Status) != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, strings.TrimSpace(filter.Status))
	}
	query := `SELECT run_id, pipeline_id, run_number, trigger_type, trigger_data, status,
		stages, started_at, completed_at, duration_seconds, triggered_by FROM pipeline_runs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY run_number DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	runs := make([]domain.PipelineRun, 0)
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) UpdateRun(ctx context.Context, run domain.PipelineRun) error {
	if err := run.Validate(); err != nil {
		return err
	}
	stagesJSON, err := repo.MarshalStageStates(run.Stages)
	if err != nil {
		return fmt.Errorf("encode stages: %w", err)
	}
	var completedAt any
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.UTC()
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE pipeline_runs SET status = ?, stages = ?, completed_at = ?, duration_seconds = ?
		 WHERE run_id = ?`,
		string(run.Status),
		string(stagesJSON),
		completedAt,
		run.DurationSeconds,
		strings.TrimSpace(run.ID),
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return requireRows(res)
}

func (s *Store) CreateConfig(ctx context.Context, cfg domain.RetrainingConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	emailsJSON, err := json.Marshal(orEmptyStrings(cfg.NotifyEmails))
	if err != nil {
		return fmt.Errorf("encode notify emails: %w", err)
	}
	baselineJSON, err := json.Marshal(cfg.BaselineMetrics.Clone())
	if err != nil {
		return fmt.Errorf("encode baseline metrics: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO retraining_configs (config_id, model_name, enabled,
			auto_deploy_if_improved, improvement_threshold, notify_emails, baseline_metrics)
		 VALUES (?,?,?,?,?,?,?)`,
		strings.TrimSpace(cfg.ID),
		strings.TrimSpace(cfg.ModelName),
		cfg.Enabled,
		cfg.AutoDeployIfImproved,
		cfg.ImprovementThreshold,
		string(emailsJSON),
		string(baselineJSON),
	)
	if err != nil {
		return fmt.Errorf("insert retraining config: %w", err)
	}
	return nil
}

func (s *Store) GetConfig(ctx context.Context, id string) (domain.RetrainingConfig, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.RetrainingConfig{}, fmt.Errorf("config id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT config_id, model_name, enabled, auto_deploy_if_improved,
			improvement_threshold, notify_emails, baseline_metrics
		 FROM retraining_configs WHERE config_id = ?`,
		id,
	)
	var (
		cfg          domain.RetrainingConfig
		emailsJSON   string
		baselineJSON string
	)
	if err := row.Scan(&cfg.ID, &cfg.ModelName, &cfg.Enabled, &cfg.AutoDeployIfImproved,
		&cfg.ImprovementThreshold, &emailsJSON, &baselineJSON); err != nil {
		return domain.RetrainingConfig{}, notFound(err)
	}
	if err := json.Unmarshal([]byte(emailsJSON), &cfg.NotifyEmails); err != nil {
		return domain.RetrainingConfig{}, fmt.Errorf("decode notify emails: %w", err)
	}
	if err := json.Unmarshal([]byte(baselineJSON), &cfg.BaselineMetrics); err != nil {
		return domain.RetrainingConfig{}, fmt.Errorf("decode baseline metrics: %w", err)
	}
	return cfg, nil
}

func (s *Store) UpdateBaseline(ctx context.Context, id string, baseline domain.MetricSet) error {
	baselineJSON, err := json.Marshal(baseline.Clone())
	if err != nil {
		return fmt.Errorf("encode baseline metrics: %w", err)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE retraining_configs SET baseline_metrics = ? WHERE config_id = ?`,
		string(baselineJSON),
		strings.TrimSpace(id),
	)
	if err != nil {
		return fmt.Errorf("update baseline: %w", err)
	}
	return requireRows(res)
}

func (s *Store) CreateJob(ctx context.Context, job domain.RetrainingJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	baselineJSON, err := json.Marshal(job.BaselineMetrics.Clone())
	if err != nil {
		return fmt.Errorf("encode baseline metrics: %w", err)
	}
	paramsJSON, err := json.Marshal(job.TrainingParams.Clone())
	if err != nil {
		return fmt.Errorf("encode training params: %w", err)
	}
	createdAt := job.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO retraining_jobs (job_id, config_id, status, trigger_reason,
			baseline_metrics, training_params, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		strings.TrimSpace(job.ID),
		strings.TrimSpace(job.ConfigID),
		string(job.Status),
		job.TriggerReason,
		string(baselineJSON),
		string(paramsJSON),
		createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert retraining job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (domain.RetrainingJob, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.RetrainingJob{}, fmt.Errorf("job id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT job_id, config_id, status, trigger_reason, baseline_metrics, training_params,
			new_metrics, improvement, deployed, deployment_id, tracker_run_id,
			created_at, started_at, completed_at, error_message
		 FROM retraining_jobs WHERE job_id = ?`,
		id,
	)
	var (
		job             domain.RetrainingJob
		status          string
		triggerReason   sql.NullString
		baselineJSON    string
		paramsJSON      string
		newMetricsJSON  string
		improvementJSON string
		deploymentID    sql.NullString
		trackerRunID    sql.NullString
		startedAt       sql.NullTime
		completedAt     sql.NullTime
		errorMessage    sql.NullString
	)
	if err := row.Scan(&job.ID, &job.ConfigID, &status, &triggerReason, &baselineJSON,
		&paramsJSON, &newMetricsJSON, &improvementJSON, &job.Deployed, &deploymentID,
		&trackerRunID, &job.CreatedAt, &startedAt, &completedAt, &errorMessage); err != nil {
		return domain.RetrainingJob{}, notFound(err)
	}
	job.Status = domain.RetrainingStatus(status)
	job.TriggerReason = triggerReason.String
	if err := json.Unmarshal([]byte(baselineJSON), &job.BaselineMetrics); err != nil {
		return domain.RetrainingJob{}, fmt.Errorf("decode baseline metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(paramsJSON), &job.TrainingParams); err != nil {
		return domain.RetrainingJob{}, fmt.Errorf("decode training params: %w", err)
	}
	if err := json.Unmarshal([]byte(newMetricsJSON), &job.NewMetrics); err != nil {
		return domain.RetrainingJob{}, fmt.Errorf("decode new metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(improvementJSON), &job.Improvement); err != nil {
		return domain.RetrainingJob{}, fmt.Errorf("decode improvement: %w", err)
	}
	job.DeploymentID = deploymentID.String
	job.TrackerRunID = trackerRunID.String
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		job.CompletedAt = &t
	}
	job.ErrorMessage = errorMessage.String
	return job, nil
}

func (s *Store) UpdateJob(ctx context.Context, job domain.RetrainingJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	newMetricsJSON, err := json.Marshal(job.NewMetrics.Clone())
	if err != nil {
		return fmt.Errorf("encode new metrics: %w", err)
	}
	improvement := job.Improvement
	if improvement == nil {
		improvement = map[string]string{}
	}
	improvementJSON, err := json.Marshal(improvement)
	if err != nil {
		return fmt.Errorf("encode improvement: %w", err)
	}
	var startedAt, completedAt any
	if job.StartedAt != nil {
		startedAt = job.StartedAt.UTC()
	}
	if job.CompletedAt != nil {
		completedAt = job.CompletedAt.UTC()
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE retraining_jobs SET status = ?, new_metrics = ?, improvement = ?,
			deployed = ?, deployment_id = ?, tracker_run_id = ?,
			started_at = ?, completed_at = ?, error_message = ?
		 WHERE job_id = ?`,
		string(job.Status),
		string(newMetricsJSON),
		string(improvementJSON),
		job.Deployed,
		job.DeploymentID,
		job.TrackerRunID,
		startedAt,
		completedAt,
		job.ErrorMessage,
		strings.TrimSpace(job.ID),
	)
	if err != nil {
		return fmt.Errorf("update retraining job: %w", err)
	}
	return requireRows(res)
}

func (s *Store) Append(ctx context.Context, event domain.AuditEvent) (int64, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := event.Validate(); err != nil {
		return 0, err
	}
	details := event.Details
	if details == nil {
		details = domain.Metadata{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return 0, fmt.Errorf("marshal details: %w", err)
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO audit_events (occurred_at, actor, action, resource_type, resource_id, details, outcome)
		 VALUES (?,?,?,?,?,?,?)`,
		event.OccurredAt.UTC(),
		strings.TrimSpace(event.Actor),
		strings.TrimSpace(event.Action),
		strings.TrimSpace(event.ResourceType),
		strings.TrimSpace(event.ResourceID),
		string(detailsJSON),
		strings.TrimSpace(event.Outcome),
	)
	if err != nil {
		return 0, fmt.Errorf("insert audit event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert audit event: %w", err)
	}
	return id, nil
}

func scanPipeline(scan func(dest ...any) error) (domain.PipelineDefinition, error) {
	var (
		def           domain.PipelineDefinition
		stagesJSON    string
		emailsJSON    string
		experimentID  sql.NullString
		modelName     sql.NullString
		lastRunID     sql.NullString
		lastRunStatus sql.NullString
	)
	if err := scan(&def.ID, &def.Name, &stagesJSON, &def.Enabled, &experimentID, &emailsJSON,
		&def.TriggerOnRetraining, &modelName, &lastRunID, &lastRunStatus); err != nil {
		return domain.PipelineDefinition{}, notFound(err)
	}
	stages, err := repo.UnmarshalStageSpecs([]byte(stagesJSON))
	if err != nil {
		return domain.PipelineDefinition{}, fmt.Errorf("decode stages: %w", err)
	}
	def.Stages = stages
	if err := json.Unmarshal([]byte(emailsJSON), &def.NotifyEmails); err != nil {
		return domain.PipelineDefinition{}, fmt.Errorf("decode notify emails: %w", err)
	}
	def.ExperimentID = experimentID.String
	def.ModelName = modelName.String
	def.LastRunID = lastRunID.String
	def.LastRunStatus = lastRunStatus.String
	return def, nil
}

func scanRun(scan func(dest ...any) error) (domain.PipelineRun, error) {
	var (
		run         domain.PipelineRun
		status      string
		triggerJSON string
		stagesJSON  string
		completedAt sql.NullTime
		triggeredBy sql.NullString
	)
	if err := scan(&run.ID, &run.PipelineID, &run.RunNumber, &run.TriggerType, &triggerJSON,
		&status, &stagesJSON, &run.StartedAt, &completedAt, &run.DurationSeconds, &triggeredBy); err != nil {
		return domain.PipelineRun{}, notFound(err)
	}
	run.Status = domain.RunStatus(status)
	var triggerData map[string]any
	if err := json.Unmarshal([]byte(triggerJSON), &triggerData); err != nil {
		return domain.PipelineRun{}, fmt.Errorf("decode trigger data: %w", err)
	}
	run.TriggerData = domain.Metadata(triggerData)
	stages, err := repo.UnmarshalStageStates([]byte(stagesJSON))
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("decode stages: %w", err)
	}
	run.Stages = stages
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		run.CompletedAt = &t
	}
	run.TriggeredBy = triggeredBy.String
	return run, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repo.ErrNotFound
	}
	return err
}

func requireRows(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func orEmptyStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
