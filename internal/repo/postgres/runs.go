package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
	"github.com/pipewright-labs/pipewright-go/internal/repo"
)

type RunStore struct {
	db DB
}

func NewRunStore(db DB) *RunStore {
	if db == nil {
		return nil
	}
	return &RunStore{db: db}
}

const runColumns = `run_id, pipeline_id, run_number, trigger_type, trigger_data, status,
	stages, started_at, completed_at, duration_seconds, triggered_by`

// CreateRun inserts the run and assigns run_number in the same statement
// (1 + highest existing for the pipeline, first run = 1). A unique constraint
// on (pipeline_id, run_number) turns a concurrent-trigger collision into an
// insert error instead of a duplicate number.
func (s *RunStore) CreateRun(ctx context.Context, run domain.PipelineRun) (domain.PipelineRun, error) {
	if s == nil || s.db == nil {
		return domain.PipelineRun{}, fmt.Errorf("run store not initialized")
	}
	if strings.TrimSpace(run.ID) == "" {
		return domain.PipelineRun{}, fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(run.PipelineID) == "" {
		return domain.PipelineRun{}, fmt.Errorf("pipeline id is required")
	}
	if strings.TrimSpace(run.TriggerType) == "" {
		return domain.PipelineRun{}, fmt.Errorf("trigger type is required")
	}
	triggerJSON, err := encodeMetadata(run.TriggerData)
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("encode trigger data: %w", err)
	}
	stagesJSON, err := repo.MarshalStageStates(run.Stages)
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("encode stages: %w", err)
	}
	startedAt := normalizeTime(run.StartedAt)

	var runNumber int64
	err = s.db.QueryRowContext(
		ctx,
		`INSERT INTO pipeline_runs (
			run_id,
			pipeline_id,
			run_number,
			trigger_type,
			trigger_data,
			status,
			stages,
			started_at,
			triggered_by
		) VALUES (
			$1, $2,
			(SELECT COALESCE(MAX(run_number), 0) + 1 FROM pipeline_runs WHERE pipeline_id = $2),
			$3, $4, $5, $6, $7, $8
		)
		RETURNING run_number`,
		strings.TrimSpace(run.ID),
		strings.TrimSpace(run.PipelineID),
		strings.TrimSpace(run.TriggerType),
		triggerJSON,
		strings.TrimSpace(string(run.Status)),
		stagesJSON,
		startedAt,
		nullIfEmpty(run.TriggeredBy),
	).Scan(&runNumber)
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("insert run: %w", err)
	}
	run.RunNumber = runNumber
	run.StartedAt = startedAt
	return run, nil
}

func (s *RunStore) GetRun(ctx context.Context, id string) (domain.PipelineRun, error) {
	if s == nil || s.db == nil {
		return domain.PipelineRun{}, fmt.Errorf("run store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.PipelineRun{}, fmt.Errorf("run id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+runColumns+` FROM pipeline_runs WHERE run_id = $1`,
		id,
	)
	run, err := scanRun(row.Scan)
	if err != nil {
		return domain.PipelineRun{}, handleNotFound(err)
	}
	return run, nil
}

func (s *RunStore) ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.PipelineRun, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("run store not initialized")
	}
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 3)

	if strings.TrimSpace(filter.PipelineID) != "" {
		args = append(args, strings.TrimSpace(filter.PipelineID))
		clauses = append(clauses, fmt.Sprintf("pipeline_id = $%d", len(args)))
	}
	if strings.TrimSpace(filter.Status) != "" {
		args = append(args, strings.TrimSpace(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + runColumns + ` FROM pipeline_runs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY run_number DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
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
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// UpdateRun writes the run record back in full. Last writer wins; the
// coordinator is the only writer during a run.
func (s *RunStore) UpdateRun(ctx context.Context, run domain.PipelineRun) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	if err := run.Validate(); err != nil {
		return err
	}
	stagesJSON, err := repo.MarshalStageStates(run.Stages)
	if err != nil {
		return fmt.Errorf("encode stages: %w", err)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE pipeline_runs
		 SET status = $1, stages = $2, completed_at = $3, duration_seconds = $4
		 WHERE run_id = $5`,
		strings.TrimSpace(string(run.Status)),
		stagesJSON,
		nullTime(run.CompletedAt),
		run.DurationSeconds,
		strings.TrimSpace(run.ID),
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func scanRun(scan func(dest ...any) error) (domain.PipelineRun, error) {
	var (
		run         domain.PipelineRun
		status      string
		triggerJSON []byte
		stagesJSON  []byte
		completedAt sql.NullTime
		triggeredBy sql.NullString
	)
	if err := scan(&run.ID, &run.PipelineID, &run.RunNumber, &run.TriggerType, &triggerJSON,
		&status, &stagesJSON, &run.StartedAt, &completedAt, &run.DurationSeconds, &triggeredBy); err != nil {
		return domain.PipelineRun{}, err
	}
	run.Status = domain.RunStatus(status)
	triggerData, err := decodeMetadata(triggerJSON)
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("decode trigger data: %w", err)
	}
	stages, err := repo.UnmarshalStageStates(stagesJSON)
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("decode stages: %w", err)
	}
	run.TriggerData = triggerData
	run.Stages = stages
	run.CompletedAt = timePtr(completedAt)
	if triggeredBy.Valid {
		run.TriggeredBy = triggeredBy.String
	}
	return run, nil
}
