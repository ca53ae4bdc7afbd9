package domain

import (
	"errors"
	"strings"
	"time"
)

// RetrainingStatus is the lifecycle status of a retraining job.
type RetrainingStatus string

const (
	RetrainingStatusPending   RetrainingStatus = "pending"
	RetrainingStatusRunning   RetrainingStatus = "running"
	RetrainingStatusCompleted RetrainingStatus = "completed"
	RetrainingStatusFailed    RetrainingStatus = "failed"
)

// RetrainingJob is one retraining attempt against a config's baseline.
// Created pending by an external caller; the decision engine moves it to
// running and then to completed or failed.
type RetrainingJob struct {
	ID              string
	ConfigID        string
	Status          RetrainingStatus
	TriggerReason   string
	BaselineMetrics MetricSet
	TrainingParams  Metadata
	NewMetrics      MetricSet
	// Improvement holds the per-metric relative change as a percentage
	// string with two decimals, e.g. "5.00".
	Improvement  map[string]string
	Deployed     bool
	DeploymentID string
	TrackerRunID string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string
}

func (j RetrainingJob) Validate() error {
	if strings.TrimSpace(j.ID) == "" {
		return errors.New("job id is required")
	}
	if strings.TrimSpace(j.ConfigID) == "" {
		return errors.New("config id is required")
	}
	if strings.TrimSpace(string(j.Status)) == "" {
		return errors.New("status is required")
	}
	return nil
}

// RetrainingConfig holds the per-model retraining policy. The decision engine
// reads it and, only on a deploy decision, writes the new baseline back.
type RetrainingConfig struct {
	ID                   string
	ModelName            string
	Enabled              bool
	AutoDeployIfImproved bool
	// ImprovementThreshold is a fraction, e.g. 0.03 for 3%.
	ImprovementThreshold float64
	NotifyEmails         []string
	BaselineMetrics      MetricSet
}

func (c RetrainingConfig) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("config id is required")
	}
	if strings.TrimSpace(c.ModelName) == "" {
		return errors.New("model name is required")
	}
	if c.ImprovementThreshold < 0 {
		return errors.New("improvement threshold must be >= 0")
	}
	return nil
}
