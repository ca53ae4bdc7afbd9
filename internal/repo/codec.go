package repo

import (
	"encoding/json"
	"time"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
)

// MarshalStageSpecs serializes the declared stage list with stable field names.
func MarshalStageSpecs(stages []domain.StageSpec) ([]byte, error) {
	payload := make([]stageSpecPayload, 0, len(stages))
	for _, stage := range stages {
		payload = append(payload, stageSpecPayload{
			Name:              stage.Name,
			Type:              string(stage.Type),
			Script:            stage.Script,
			DependsOn:         stage.DependsOn,
			ContinueOnFailure: stage.ContinueOnFailure,
			TimeoutSeconds:    stage.TimeoutSeconds,
		})
	}
	return json.Marshal(payload)
}

func UnmarshalStageSpecs(raw []byte) ([]domain.StageSpec, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var payload []stageSpecPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	stages := make([]domain.StageSpec, 0, len(payload))
	for _, p := range payload {
		stages = append(stages, domain.StageSpec{
			Name:              p.Name,
			Type:              domain.StageType(p.Type),
			Script:            p.Script,
			DependsOn:         p.DependsOn,
			ContinueOnFailure: p.ContinueOnFailure,
			TimeoutSeconds:    p.TimeoutSeconds,
		})
	}
	return stages, nil
}

// MarshalStageStates serializes the per-stage progress list of a run.
func MarshalStageStates(states []domain.StageState) ([]byte, error) {
	payload := make([]stageStatePayload, 0, len(states))
	for _, state := range states {
		payload = append(payload, stageStatePayload{
			Name:            state.Name,
			Status:          string(state.Status),
			Logs:            state.Logs,
			Artifacts:       state.Artifacts,
			ErrorMessage:    state.ErrorMessage,
			StartedAt:       state.StartedAt,
			CompletedAt:     state.CompletedAt,
			DurationSeconds: state.DurationSeconds,
		})
	}
	return json.Marshal(payload)
}

func UnmarshalStageStates(raw []byte) ([]domain.StageState, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var payload []stageStatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	states := make([]domain.StageState, 0, len(payload))
	for _, p := range payload {
		states = append(states, domain.StageState{
			Name:            p.Name,
			Status:          domain.StageStatus(p.Status),
			Logs:            p.Logs,
			Artifacts:       p.Artifacts,
			ErrorMessage:    p.ErrorMessage,
			StartedAt:       p.StartedAt,
			CompletedAt:     p.CompletedAt,
			DurationSeconds: p.DurationSeconds,
		})
	}
	return states, nil
}

type stageSpecPayload struct {
	Name              string   `json:"name"`
	Type              string   `json:"type"`
	Script            string   `json:"script,omitempty"`
	DependsOn         []string `json:"dependsOn,omitempty"`
	ContinueOnFailure bool     `json:"continueOnFailure,omitempty"`
	TimeoutSeconds    int      `json:"timeoutSeconds,omitempty"`
}

type stageStatePayload struct {
	Name            string     `json:"name"`
	Status          string     `json:"status"`
	Logs            string     `json:"logs,omitempty"`
	Artifacts       []string   `json:"artifacts,omitempty"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	DurationSeconds int64      `json:"durationSeconds"`
}
