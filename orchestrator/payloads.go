package main

import (
	"time"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
)

type stageSpecView struct {
	Name              string   `json:"name"`
	Type              string   `json:"type"`
	Script            string   `json:"script,omitempty"`
	DependsOn         []string `json:"dependsOn,omitempty"`
	ContinueOnFailure bool     `json:"continueOnFailure,omitempty"`
	TimeoutSeconds    int      `json:"timeoutSeconds,omitempty"`
}

type pipelineView struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Stages              []stageSpecView `json:"stages"`
	Enabled             bool            `json:"enabled"`
	ExperimentID        string          `json:"experimentId,omitempty"`
	NotifyEmails        []string        `json:"notifyEmails,omitempty"`
	TriggerOnRetraining bool            `json:"triggerOnRetraining,omitempty"`
	ModelName           string          `json:"modelName,omitempty"`
	LastRunID           string          `json:"lastRunId,omitempty"`
	LastRunStatus       string          `json:"lastRunStatus,omitempty"`
}

func pipelinePayload(def domain.PipelineDefinition) pipelineView {
	stages := make([]stageSpecView, 0, len(def.Stages))
	for _, stage := range def.Stages {
		stages = append(stages, stageSpecView{
			Name:              stage.Name,
			Type:              string(stage.Type),
			Script:            stage.Script,
			DependsOn:         stage.DependsOn,
			ContinueOnFailure: stage.ContinueOnFailure,
			TimeoutSeconds:    stage.TimeoutSeconds,
		})
	}
	return pipelineView{
		ID:                  def.ID,
		Name:                def.Name,
		Stages:              stages,
		Enabled:             def.Enabled,
		ExperimentID:        def.ExperimentID,
		NotifyEmails:        def.NotifyEmails,
		TriggerOnRetraining: def.TriggerOnRetraining,
		ModelName:           def.ModelName,
		LastRunID:           def.LastRunID,
		LastRunStatus:       def.LastRunStatus,
	}
}

type stageStateView struct {
	Name            string     `json:"name"`
	Status          string     `json:"status"`
	Logs            string     `json:"logs,omitempty"`
	Artifacts       []string   `json:"artifacts,omitempty"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	DurationSeconds int64      `json:"durationSeconds"`
}

type runView struct {
	ID              string           `json:"id"`
	PipelineID      string           `json:"pipelineId"`
	RunNumber       int64            `json:"runNumber"`
	TriggerType     string           `json:"triggerType"`
	TriggerData     map[string]any   `json:"triggerData,omitempty"`
	Status          string           `json:"status"`
	Stages          []stageStateView `json:"stages"`
	StartedAt       time.Time        `json:"startedAt"`
	CompletedAt     *time.Time       `json:"completedAt,omitempty"`
	DurationSeconds int64            `json:"durationSeconds"`
	TriggeredBy     string           `json:"triggeredBy"`
}

func runPayload(run domain.PipelineRun) runView {
	stages := make([]stageStateView, 0, len(run.Stages))
	for _, stage := range run.Stages {
		stages = append(stages, stageStateView{
			Name:            stage.Name,
			Status:          string(stage.Status),
			Logs:            stage.Logs,
			Artifacts:       stage.Artifacts,
			ErrorMessage:    stage.ErrorMessage,
			StartedAt:       stage.StartedAt,
			CompletedAt:     stage.CompletedAt,
			DurationSeconds: stage.DurationSeconds,
		})
	}
	return runView{
		ID:              run.ID,
		PipelineID:      run.PipelineID,
		RunNumber:       run.RunNumber,
		TriggerType:     run.TriggerType,
		TriggerData:     run.TriggerData,
		Status:          string(run.Status),
		Stages:          stages,
		StartedAt:       run.StartedAt,
		CompletedAt:     run.CompletedAt,
		DurationSeconds: run.DurationSeconds,
		TriggeredBy:     run.TriggeredBy,
	}
}

type configView struct {
	ID                   string             `json:"id"`
	ModelName            string             `json:"modelName"`
	Enabled              bool               `json:"enabled"`
	AutoDeployIfImproved bool               `json:"autoDeployIfImproved"`
	ImprovementThreshold float64            `json:"improvementThreshold"`
	NotifyEmails         []string           `json:"notifyEmails,omitempty"`
	BaselineMetrics      map[string]float64 `json:"baselineMetrics,omitempty"`
}

func configPayload(cfg domain.RetrainingConfig) configView {
	return configView{
		ID:                   cfg.ID,
		ModelName:            cfg.ModelName,
		Enabled:              cfg.Enabled,
		AutoDeployIfImproved: cfg.AutoDeployIfImproved,
		ImprovementThreshold: cfg.ImprovementThreshold,
		NotifyEmails:         cfg.NotifyEmails,
		BaselineMetrics:      cfg.BaselineMetrics,
	}
}

type jobView struct {
	ID              string             `json:"id"`
	ConfigID        string             `json:"configId"`
	Status          string             `json:"status"`
	TriggerReason   string             `json:"triggerReason,omitempty"`
	BaselineMetrics map[string]float64 `json:"baselineMetrics,omitempty"`
	TrainingParams  map[string]any     `json:"trainingParams,omitempty"`
	NewMetrics      map[string]float64 `json:"newMetrics,omitempty"`
	Improvement     map[string]string  `json:"improvement,omitempty"`
	Deployed        bool               `json:"deployed"`
	DeploymentID    string             `json:"deploymentId,omitempty"`
	TrackerRunID    string             `json:"trackerRunId,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	StartedAt       *time.Time         `json:"startedAt,omitempty"`
	CompletedAt     *time.Time         `json:"completedAt,omitempty"`
	ErrorMessage    string             `json:"errorMessage,omitempty"`
}

func jobPayload(job domain.RetrainingJob) jobView {
	return jobView{
		ID:              job.ID,
		ConfigID:        job.ConfigID,
		Status:          string(job.Status),
		TriggerReason:   job.TriggerReason,
		BaselineMetrics: job.BaselineMetrics,
		TrainingParams:  job.TrainingParams,
		NewMetrics:      job.NewMetrics,
		Improvement:     job.Improvement,
		Deployed:        job.Deployed,
		DeploymentID:    job.DeploymentID,
		TrackerRunID:    job.TrackerRunID,
		CreatedAt:       job.CreatedAt,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
		ErrorMessage:    job.ErrorMessage,
	}
}
