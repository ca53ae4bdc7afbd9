// Package executor runs the side effect of a single pipeline stage. One
// executor is registered per stage type; the coordinator looks the executor
// up by type and blocks until it returns.
package executor

import (
	"context"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
)

// RunContext carries the identity of the surrounding run into a stage
// side effect.
type RunContext struct {
	RunID        string
	PipelineID   string
	PipelineName string
	RunNumber    int64
	ExperimentID string
}

// Outcome is the terminal result of one stage side effect. Executors never
// return an error: a failing side effect is reported as a failed outcome
// with the cause captured verbatim in ErrorMessage.
type Outcome struct {
	Status       domain.StageStatus
	Logs         string
	Artifacts    []string
	ErrorMessage string
}

func succeeded(logs string) Outcome {
	return Outcome{Status: domain.StageStatusSuccess, Logs: logs}
}

func failed(logs string, err error) Outcome {
	return Outcome{Status: domain.StageStatusFailed, Logs: logs, ErrorMessage: err.Error()}
}

// Executor runs stages of one type.
type Executor interface {
	Kind() domain.StageType
	Execute(ctx context.Context, stage domain.StageSpec, runCtx RunContext) Outcome
}

// Registry resolves the executor for a stage type.
type Registry struct {
	executors map[domain.StageType]Executor
}

func NewRegistry(executors ...Executor) *Registry {
	byKind := make(map[domain.StageType]Executor, len(executors))
	for _, e := range executors {
		if e == nil {
			continue
		}
		byKind[e.Kind()] = e
	}
	return &Registry{executors: byKind}
}

func (r *Registry) For(kind domain.StageType) (Executor, bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.executors[kind]
	return e, ok
}
