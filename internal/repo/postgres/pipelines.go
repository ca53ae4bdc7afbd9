package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
	"github.com/pipewright-labs/pipewright-go/internal/repo"
)

type PipelineStore struct {
	db DB
}

func NewPipelineStore(db DB) *PipelineStore {
	if db == nil {
		return nil
	}
	return &PipelineStore{db: db}
}

const pipelineColumns = `pipeline_id, name, stages, enabled, experiment_id, notify_emails,
	trigger_on_retraining, model_name, last_run_id, last_run_status`

func (s *PipelineStore) CreatePipeline(ctx context.Context, def domain.PipelineDefinition) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("pipeline store not initialized")
	}
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
	emailsJSON, err := encodeStrings(def.NotifyEmails)
	if err != nil {
		return fmt.Errorf("encode notify emails: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO pipelines (
			pipeline_id,
			name,
			stages,
			enabled,
			experiment_id,
			notify_emails,
			trigger_on_retraining,
			model_name
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		strings.TrimSpace(def.ID),
		strings.TrimSpace(def.Name),
		stagesJSON,
		def.Enabled,
		nullIfEmpty(def.ExperimentID),
		emailsJSON,
		def.TriggerOnRetraining,
		nullIfEmpty(def.ModelName),
	)
	if err != nil {
		return fmt.Errorf("insert pipeline: %w", err)
	}
	return nil
}

func (s *PipelineStore) GetPipeline(ctx context.Context, id string) (domain.PipelineDefinition, error) {
	if s == nil || s.db == nil {
		return domain.PipelineDefinition{}, fmt.Errorf("pipeline store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.PipelineDefinition{}, fmt.Errorf("pipeline id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+pipelineColumns+` FROM pipelines WHERE pipeline_id = $1`,
		id,
	)
	def, err := scanPipeline(row.Scan)
	if err != nil {
		return domain.PipelineDefinition{}, handleNotFound(err)
	}
	return def, nil
}

func (s *PipelineStore) ListPipelines(ctx context.Context, filter repo.PipelineFilter) ([]domain.PipelineDefinition, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("pipeline store not initialized")
	}
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 4)

	if strings.TrimSpace(filter.ModelName) != "" {
		args = append(args, strings.TrimSpace(filter.ModelName))
		clauses = append(clauses, fmt.Sprintf("model_name = $%d", len(args)))
	}
	if filter.TriggerOnRetraining {
		clauses = append(clauses, "trigger_on_retraining = TRUE")
	}
	if filter.EnabledOnly {
		clauses = append(clauses, "enabled = TRUE")
	}

	query := `SELECT ` + pipelineColumns + ` FROM pipelines`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
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
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	return defs, nil
}

func (s *PipelineStore) UpdateLastRun(ctx context.Context, id, runID, runStatus string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("pipeline store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("pipeline id is required")
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE pipelines SET last_run_id = $1, last_run_status = $2 WHERE pipeline_id = $3`,
		nullIfEmpty(runID),
		nullIfEmpty(runStatus),
		id,
	)
	if err != nil {
		return fmt.Errorf("update last run: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update last run: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func scanPipeline(scan func(dest ...any) error) (domain.PipelineDefinition, error) {
	var (
		def           domain.PipelineDefinition
		stagesJSON    []byte
		emailsJSON    []byte
		experimentID  sql.NullString
		modelName     sql.NullString
		lastRunID     sql.NullString
		lastRunStatus sql.NullString
	)
	if err := scan(&def.ID, &def.Name, &stagesJSON, &def.Enabled, &experimentID, &emailsJSON,
		&def.TriggerOnRetraining, &modelName, &lastRunID, &lastRunStatus); err != nil {
		return domain.PipelineDefinition{}, err
	}
	stages, err := repo.UnmarshalStageSpecs(stagesJSON)
	if err != nil {
		return domain.PipelineDefinition{}, fmt.Errorf("decode stages: %w", err)
	}
	emails, err := decodeStrings(emailsJSON)
	if err != nil {
		return domain.PipelineDefinition{}, fmt.Errorf("decode notify emails: %w", err)
	}
	def.Stages = stages
	def.NotifyEmails = emails
	if experimentID.Valid {
		def.ExperimentID = experimentID.String
	}
	if modelName.Valid {
		def.ModelName = modelName.String
	}
	if lastRunID.Valid {
		def.LastRunID = lastRunID.String
	}
	if lastRunStatus.Valid {
		def.LastRunStatus = lastRunStatus.String
	}
	return def, nil
}
