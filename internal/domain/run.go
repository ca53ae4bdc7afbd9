package domain

import (
	"errors"
	"strings"
	"time"
)

// RunStatus is the overall status of a pipeline run. A run is terminal once
// its status leaves running.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// Terminal reports whether the run status is an end state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed
}

// StageStatus is the status of one stage within a run.
type StageStatus string

const (
	StageStatusPending StageStatus = "pending"
	StageStatusRunning StageStatus = "running"
	StageStatusSuccess StageStatus = "success"
	StageStatusFailed  StageStatus = "failed"
	StageStatusSkipped StageStatus = "skipped"
)

// StageState records one stage's progress within a run. Exactly one StageState
// exists per declared StageSpec per run.
type StageState struct {
	Name            string
	Status          StageStatus
	Logs            string
	Artifacts       []string
	ErrorMessage    string
	StartedAt       *time.Time
	CompletedAt     *time.Time
	DurationSeconds int64
}

// PipelineRun is one execution instance of a pipeline definition.
type PipelineRun struct {
	ID              string
	PipelineID      string
	RunNumber       int64
	TriggerType     string
	TriggerData     Metadata
	Status          RunStatus
	Stages          []StageState
	StartedAt       time.Time
	CompletedAt     *time.Time
	DurationSeconds int64
	TriggeredBy     string
}

func (r PipelineRun) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("run id is required")
	}
	if strings.TrimSpace(r.PipelineID) == "" {
		return errors.New("pipeline id is required")
	}
	if r.RunNumber < 1 {
		return errors.New("run number must be >= 1")
	}
	if strings.TrimSpace(string(r.Status)) == "" {
		return errors.New("status is required")
	}
	if strings.TrimSpace(r.TriggerType) == "" {
		return errors.New("trigger type is required")
	}
	return nil
}

// StageByName returns a pointer into Stages for the named stage, or nil.
func (r *PipelineRun) StageByName(name string) *StageState {
	for i := range r.Stages {
		if r.Stages[i].Name == name {
			return &r.Stages[i]
		}
	}
	return nil
}

// InitialStageStates builds the pending StageState list for a definition.
func InitialStageStates(def PipelineDefinition) []StageState {
	states := make([]StageState, 0, len(def.Stages))
	for _, stage := range def.Stages {
		states = append(states, StageState{
			Name:   stage.Name,
			Status: StageStatusPending,
		})
	}
	return states
}

// DurationSecondsBetween derives a whole-second floor duration. Never negative.
func DurationSecondsBetween(start, end time.Time) int64 {
	if end.Before(start) {
		return 0
	}
	return int64(end.Sub(start) / time.Second)
}
