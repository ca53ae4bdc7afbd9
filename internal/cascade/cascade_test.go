package cascade

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
	"github.com/pipewright-labs/pipewright-go/internal/execution/coordinator"
	"github.com/pipewright-labs/pipewright-go/internal/repo"
)

type fakePipelineLister struct {
	defs       []domain.PipelineDefinition
	lastFilter repo.PipelineFilter
	err        error
}

func (f *fakePipelineLister) CreatePipeline(ctx context.Context, def domain.PipelineDefinition) error {
	return nil
}

func (f *fakePipelineLister) GetPipeline(ctx context.Context, id string) (domain.PipelineDefinition, error) {
	return domain.PipelineDefinition{}, repo.ErrNotFound
}

func (f *fakePipelineLister) ListPipelines(ctx context.Context, filter repo.PipelineFilter) ([]domain.PipelineDefinition, error) {
	f.lastFilter = filter
	return f.defs, f.err
}

func (f *fakePipelineLister) UpdateLastRun(ctx context.Context, id, runID, runStatus string) error {
	return nil
}

type fakeRunner struct {
	requests []coordinator.TriggerRequest
	failFor  string
}

func (f *fakeRunner) Trigger(ctx context.Context, req coordinator.TriggerRequest) (domain.PipelineRun, error) {
	f.requests = append(f.requests, req)
	if req.PipelineID == f.failFor {
		return domain.PipelineRun{}, errors.New("trigger refused")
	}
	return domain.PipelineRun{ID: "run-" + req.PipelineID, PipelineID: req.PipelineID, RunNumber: 1}, nil
}

func TestOnRetrainingCompleted_TriggersSubscribers(t *testing.T) {
	lister := &fakePipelineLister{defs: []domain.PipelineDefinition{
		{ID: "pl-a", Name: "refresh-a", Enabled: true},
		{ID: "pl-b", Name: "refresh-b", Enabled: true},
	}}
	runner := &fakeRunner{}
	trigger := New(lister, runner, slog.New(slog.DiscardHandler))

	job := domain.RetrainingJob{ID: "job-7", TrackerRunID: "mlf-7", Deployed: true}
	trigger.OnRetrainingCompleted(context.Background(), "churn", job)

	if lister.lastFilter.ModelName != "churn" || !lister.lastFilter.TriggerOnRetraining || !lister.lastFilter.EnabledOnly {
		t.Fatalf("filter=%+v, want model-scoped enabled subscribers", lister.lastFilter)
	}
	if len(runner.requests) != 2 {
		t.Fatalf("requests=%d, want both subscribers triggered", len(runner.requests))
	}
	req := runner.requests[0]
	if req.TriggerType != "retraining" {
		t.Fatalf("trigger type=%q, want retraining", req.TriggerType)
	}
	if req.TriggerData["retraining_job_id"] != "job-7" || req.TriggerData["tracker_run_id"] != "mlf-7" {
		t.Fatalf("trigger data=%v, want job and tracker references", req.TriggerData)
	}
}

func TestOnRetrainingCompleted_FailureDoesNotBlockOthers(t *testing.T) {
	lister := &fakePipelineLister{defs: []domain.PipelineDefinition{
		{ID: "pl-a"},
		{ID: "pl-b"},
		{ID: "pl-c"},
	}}
	runner := &fakeRunner{failFor: "pl-b"}
	trigger := New(lister, runner, slog.New(slog.DiscardHandler))

	trigger.OnRetrainingCompleted(context.Background(), "churn", domain.RetrainingJob{ID: "job-1"})

	var triggered []string
	for _, req := range runner.requests {
		triggered = append(triggered, req.PipelineID)
	}
	if got := strings.Join(triggered, ","); got != "pl-a,pl-b,pl-c" {
		t.Fatalf("triggered=%q, want every subscriber attempted", got)
	}
}

func TestOnRetrainingCompleted_NoSubscribers(t *testing.T) {
	lister := &fakePipelineLister{}
	runner := &fakeRunner{}
	trigger := New(lister, runner, slog.New(slog.DiscardHandler))

	trigger.OnRetrainingCompleted(context.Background(), "churn", domain.RetrainingJob{ID: "job-1"})
	if len(runner.requests) != 0 {
		t.Fatalf("requests=%d, want none", len(runner.requests))
	}
}
