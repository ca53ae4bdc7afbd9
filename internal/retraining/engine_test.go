package retraining

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
	"github.com/pipewright-labs/pipewright-go/internal/repo"
)

func TestImprovementPercent(t *testing.T) {
	cases := []struct {
		name     string
		baseline float64
		measured float64
		want     float64
	}{
		{"five percent up", 100, 105, 5.00},
		{"fractional metrics", 0.80, 0.84, 5.00},
		{"four percent up", 0.75, 0.78, 4.00},
		{"regression", 0.90, 0.81, -10.00},
		{"unchanged", 0.5, 0.5, 0.00},
		{"rounded to two decimals", 0.3, 0.31, 3.33},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ImprovementPercent(tc.baseline, tc.measured); got != tc.want {
				t.Fatalf("ImprovementPercent(%v, %v) = %v, want %v", tc.baseline, tc.measured, got, tc.want)
			}
		})
	}
}

func TestComputeImprovement(t *testing.T) {
	baseline := domain.MetricSet{"accuracy": 0.80, "f1": 0.75, "stale": 0}
	measured := domain.MetricSet{"accuracy": 0.84, "f1": 0.78, "stale": 0.9, "brand_new": 0.5}

	improvement, mean := ComputeImprovement(baseline, measured)

	if got := improvement["accuracy"]; got != "5.00" {
		t.Fatalf("accuracy=%q, want 5.00", got)
	}
	if got := improvement["f1"]; got != "4.00" {
		t.Fatalf("f1=%q, want 4.00", got)
	}
	if _, ok := improvement["stale"]; ok {
		t.Fatal("zero-baseline metric must not be compared")
	}
	if _, ok := improvement["brand_new"]; ok {
		t.Fatal("metric without a baseline must not be compared")
	}
	if mean != 4.50 {
		t.Fatalf("mean=%v, want 4.50", mean)
	}
}

func TestComputeImprovement_NoComparableMetrics(t *testing.T) {
	improvement, mean := ComputeImprovement(domain.MetricSet{}, domain.MetricSet{"accuracy": 0.9})
	if len(improvement) != 0 || mean != 0 {
		t.Fatalf("improvement=%v mean=%v, want empty and 0", improvement, mean)
	}
}

type fakeJobRepo struct {
	jobs map[string]domain.RetrainingJob
}

func (f *fakeJobRepo) CreateJob(ctx context.Context, job domain.RetrainingJob) error {
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobRepo) GetJob(ctx context.Context, id string) (domain.RetrainingJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return domain.RetrainingJob{}, repo.ErrNotFound
	}
	return job, nil
}

func (f *fakeJobRepo) UpdateJob(ctx context.Context, job domain.RetrainingJob) error {
	f.jobs[job.ID] = job
	return nil
}

type fakeConfigRepo struct {
	configs     map[string]domain.RetrainingConfig
	baselineErr error
}

func (f *fakeConfigRepo) CreateConfig(ctx context.Context, cfg domain.RetrainingConfig) error {
	f.configs[cfg.ID] = cfg
	return nil
}

func (f *fakeConfigRepo) GetConfig(ctx context.Context, id string) (domain.RetrainingConfig, error) {
	cfg, ok := f.configs[id]
	if !ok {
		return domain.RetrainingConfig{}, repo.ErrNotFound
	}
	return cfg, nil
}

func (f *fakeConfigRepo) UpdateBaseline(ctx context.Context, id string, baseline domain.MetricSet) error {
	if f.baselineErr != nil {
		return f.baselineErr
	}
	cfg := f.configs[id]
	cfg.BaselineMetrics = baseline
	f.configs[id] = cfg
	return nil
}

type recordingCascade struct {
	modelName string
	job       domain.RetrainingJob
	calls     int
}

func (c *recordingCascade) OnRetrainingCompleted(ctx context.Context, modelName string, job domain.RetrainingJob) {
	c.calls++
	c.modelName = modelName
	c.job = job
}

func newTestEngine(t *testing.T, cfg domain.RetrainingConfig, job domain.RetrainingJob, cascade Cascade) (*Engine, *fakeJobRepo, *fakeConfigRepo) {
	t.Helper()
	jobs := &fakeJobRepo{jobs: map[string]domain.RetrainingJob{job.ID: job}}
	configs := &fakeConfigRepo{configs: map[string]domain.RetrainingConfig{cfg.ID: cfg}}
	e := New(Deps{
		Jobs:    jobs,
		Configs: configs,
		Cascade: cascade,
		Logger:  slog.New(slog.DiscardHandler),
	})
	if e == nil {
		t.Fatal("engine should construct")
	}
	e.newID = func() string { return "deploy-1" }
	return e, jobs, configs
}

func TestComplete_DeploysOnImprovement(t *testing.T) {
	cfg := domain.RetrainingConfig{
		ID:                   "cfg-1",
		ModelName:            "churn",
		Enabled:              true,
		AutoDeployIfImproved: true,
		ImprovementThreshold: 0.03,
		BaselineMetrics:      domain.MetricSet{"accuracy": 0.80, "f1": 0.75},
	}
	job := domain.RetrainingJob{ID: "job-1", ConfigID: "cfg-1", Status: domain.RetrainingStatusPending}
	cascade := &recordingCascade{}
	e, _, configs := newTestEngine(t, cfg, job, cascade)

	measured := domain.MetricSet{"accuracy": 0.84, "f1": 0.78}
	got, err := e.Complete(context.Background(), "job-1", measured, "mlf-9")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Status != domain.RetrainingStatusCompleted {
		t.Fatalf("status=%q, want completed", got.Status)
	}
	if !got.Deployed || got.DeploymentID != "deploy-1" {
		t.Fatalf("deployed=%v id=%q, want deployment recorded", got.Deployed, got.DeploymentID)
	}
	if got.Improvement["accuracy"] != "5.00" || got.Improvement["f1"] != "4.00" {
		t.Fatalf("improvement=%v, want 5.00 and 4.00", got.Improvement)
	}
	if got.TrackerRunID != "mlf-9" {
		t.Fatalf("tracker run=%q, want mlf-9", got.TrackerRunID)
	}
	if configs.configs["cfg-1"].BaselineMetrics["accuracy"] != 0.84 {
		t.Fatal("baseline must advance to the new metrics on deploy")
	}
	if cascade.calls != 1 || cascade.modelName != "churn" {
		t.Fatalf("cascade calls=%d model=%q, want fired once for churn", cascade.calls, cascade.modelName)
	}
}

func TestComplete_HoldsBelowThreshold(t *testing.T) {
	cfg := domain.RetrainingConfig{
		ID:                   "cfg-1",
		ModelName:            "churn",
		Enabled:              true,
		AutoDeployIfImproved: true,
		ImprovementThreshold: 0.05,
		BaselineMetrics:      domain.MetricSet{"accuracy": 0.80},
	}
	job := domain.RetrainingJob{ID: "job-1", ConfigID: "cfg-1", Status: domain.RetrainingStatusPending}
	cascade := &recordingCascade{}
	e, _, configs := newTestEngine(t, cfg, job, cascade)

	got, err := e.Complete(context.Background(), "job-1", domain.MetricSet{"accuracy": 0.82}, "")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Deployed {
		t.Fatal("2.50% mean must not deploy against a 5% threshold")
	}
	if got.Status != domain.RetrainingStatusCompleted {
		t.Fatalf("status=%q, want completed on hold too", got.Status)
	}
	if configs.configs["cfg-1"].BaselineMetrics["accuracy"] != 0.80 {
		t.Fatal("baseline must not move on hold")
	}
	if cascade.calls != 1 {
		t.Fatal("cascade fires on hold as well")
	}
}

func TestComplete_ThresholdBoundaryDeploys(t *testing.T) {
	cfg := domain.RetrainingConfig{
		ID:                   "cfg-1",
		ModelName:            "churn",
		Enabled:              true,
		AutoDeployIfImproved: true,
		ImprovementThreshold: 0.05,
		BaselineMetrics:      domain.MetricSet{"accuracy": 0.80},
	}
	job := domain.RetrainingJob{ID: "job-1", ConfigID: "cfg-1", Status: domain.RetrainingStatusPending}
	e, _, _ := newTestEngine(t, cfg, job, nil)

	got, err := e.Complete(context.Background(), "job-1", domain.MetricSet{"accuracy": 0.84}, "")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !got.Deployed {
		t.Fatal("exactly 5.00% mean must deploy against a 5% threshold")
	}
}

func TestComplete_NoAutoDeploy(t *testing.T) {
	cfg := domain.RetrainingConfig{
		ID:                   "cfg-1",
		ModelName:            "churn",
		Enabled:              true,
		AutoDeployIfImproved: false,
		ImprovementThreshold: 0.01,
		BaselineMetrics:      domain.MetricSet{"accuracy": 0.80},
	}
	job := domain.RetrainingJob{ID: "job-1", ConfigID: "cfg-1", Status: domain.RetrainingStatusPending}
	e, _, _ := newTestEngine(t, cfg, job, nil)

	got, err := e.Complete(context.Background(), "job-1", domain.MetricSet{"accuracy": 0.95}, "")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Deployed {
		t.Fatal("auto-deploy disabled must always hold")
	}
}

func TestComplete_DisabledConfig(t *testing.T) {
	cfg := domain.RetrainingConfig{ID: "cfg-1", ModelName: "churn", Enabled: false}
	job := domain.RetrainingJob{ID: "job-1", ConfigID: "cfg-1", Status: domain.RetrainingStatusPending}
	e, jobs, _ := newTestEngine(t, cfg, job, nil)

	_, err := e.Complete(context.Background(), "job-1", domain.MetricSet{"accuracy": 0.9}, "")
	if !errors.Is(err, ErrConfigDisabled) {
		t.Fatalf("err=%v, want ErrConfigDisabled", err)
	}
	if jobs.jobs["job-1"].Status != domain.RetrainingStatusPending {
		t.Fatal("job must stay pending when the config is disabled")
	}
}

func TestComplete_JobSnapshotBaselineWins(t *testing.T) {
	cfg := domain.RetrainingConfig{
		ID:                   "cfg-1",
		ModelName:            "churn",
		Enabled:              true,
		AutoDeployIfImproved: true,
		ImprovementThreshold: 0.01,
		BaselineMetrics:      domain.MetricSet{"accuracy": 0.99},
	}
	job := domain.RetrainingJob{
		ID:              "job-1",
		ConfigID:        "cfg-1",
		Status:          domain.RetrainingStatusPending,
		BaselineMetrics: domain.MetricSet{"accuracy": 0.80},
	}
	e, _, _ := newTestEngine(t, cfg, job, nil)

	got, err := e.Complete(context.Background(), "job-1", domain.MetricSet{"accuracy": 0.84}, "")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Improvement["accuracy"] != "5.00" {
		t.Fatalf("improvement=%v, want measured against the job snapshot", got.Improvement)
	}
}

func TestComplete_BaselineWriteFailureFailsJob(t *testing.T) {
	cfg := domain.RetrainingConfig{
		ID:                   "cfg-1",
		ModelName:            "churn",
		Enabled:              true,
		AutoDeployIfImproved: true,
		ImprovementThreshold: 0,
		BaselineMetrics:      domain.MetricSet{"accuracy": 0.80},
	}
	job := domain.RetrainingJob{ID: "job-1", ConfigID: "cfg-1", Status: domain.RetrainingStatusPending}
	e, jobs, configs := newTestEngine(t, cfg, job, nil)
	configs.baselineErr = errors.New("storage unavailable")

	_, err := e.Complete(context.Background(), "job-1", domain.MetricSet{"accuracy": 0.84}, "")
	if err == nil {
		t.Fatal("baseline write failure must propagate")
	}
	stored := jobs.jobs["job-1"]
	if stored.Status != domain.RetrainingStatusFailed {
		t.Fatalf("status=%q, want failed", stored.Status)
	}
	if stored.ErrorMessage == "" {
		t.Fatal("failure cause must be recorded on the job")
	}
}
