package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
	"github.com/pipewright-labs/pipewright-go/internal/execution/executor"
	"github.com/pipewright-labs/pipewright-go/internal/repo"
)

type fakePipelineRepo struct {
	pipelines map[string]domain.PipelineDefinition
	lastRunID string
	lastRunSt string
}

func (f *fakePipelineRepo) CreatePipeline(ctx context.Context, def domain.PipelineDefinition) error {
	f.pipelines[def.ID] = def
	return nil
}

func (f *fakePipelineRepo) GetPipeline(ctx context.Context, id string) (domain.PipelineDefinition, error) {
	def, ok := f.pipelines[id]
	if !ok {
		return domain.PipelineDefinition{}, repo.ErrNotFound
	}
	return def, nil
}

func (f *fakePipelineRepo) ListPipelines(ctx context.Context, filter repo.PipelineFilter) ([]domain.PipelineDefinition, error) {
	out := make([]domain.PipelineDefinition, 0, len(f.pipelines))
	for _, def := range f.pipelines {
		out = append(out, def)
	}
	return out, nil
}

func (f *fakePipelineRepo) UpdateLastRun(ctx context.Context, id, runID, runStatus string) error {
	f.lastRunID = runID
	f.lastRunSt = runStatus
	return nil
}

type fakeRunRepo struct {
	runs        map[string]domain.PipelineRun
	nextNumber  map[string]int64
	updateCalls int
	failUpdate  bool
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: map[string]domain.PipelineRun{}, nextNumber: map[string]int64{}}
}

func (f *fakeRunRepo) CreateRun(ctx context.Context, run domain.PipelineRun) (domain.PipelineRun, error) {
	f.nextNumber[run.PipelineID]++
	run.RunNumber = f.nextNumber[run.PipelineID]
	f.runs[run.ID] = run
	return run, nil
}

func (f *fakeRunRepo) GetRun(ctx context.Context, id string) (domain.PipelineRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return domain.PipelineRun{}, repo.ErrNotFound
	}
	return run, nil
}

func (f *fakeRunRepo) ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.PipelineRun, error) {
	out := make([]domain.PipelineRun, 0, len(f.runs))
	for _, run := range f.runs {
		out = append(out, run)
	}
	return out, nil
}

func (f *fakeRunRepo) UpdateRun(ctx context.Context, run domain.PipelineRun) error {
	if f.failUpdate {
		return errors.New("storage unavailable")
	}
	f.updateCalls++
	stages := make([]domain.StageState, len(run.Stages))
	copy(stages, run.Stages)
	run.Stages = stages
	f.runs[run.ID] = run
	return nil
}

// scriptedExecutor returns canned outcomes per stage name and records the
// order stages actually reached execution.
type scriptedExecutor struct {
	kind     domain.StageType
	outcomes map[string]executor.Outcome
	executed []string
}

func (s *scriptedExecutor) Kind() domain.StageType { return s.kind }

func (s *scriptedExecutor) Execute(ctx context.Context, stage domain.StageSpec, runCtx executor.RunContext) executor.Outcome {
	s.executed = append(s.executed, stage.Name)
	if out, ok := s.outcomes[stage.Name]; ok {
		return out
	}
	return executor.Outcome{Status: domain.StageStatusSuccess, Logs: "ok"}
}

type recordingNotifier struct {
	recipients []string
	subject    string
	err        error
}

func (n *recordingNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	n.recipients = append(n.recipients, recipient)
	n.subject = subject
	return n.err
}

type fakeAudit struct {
	actions []string
	err     error
}

func (a *fakeAudit) Append(ctx context.Context, event domain.AuditEvent) (int64, error) {
	a.actions = append(a.actions, event.Action)
	if a.err != nil {
		return 0, a.err
	}
	return int64(len(a.actions)), nil
}

func trainingPipeline() domain.PipelineDefinition {
	return domain.PipelineDefinition{
		ID:      "pl-1",
		Name:    "model-training",
		Enabled: true,
		Stages: []domain.StageSpec{
			{Name: "fetch", Type: domain.StageTypeGeneric},
			{Name: "train", Type: domain.StageTypeGeneric, DependsOn: []string{"fetch"}},
			{Name: "deploy", Type: domain.StageTypeGeneric, DependsOn: []string{"train"}},
		},
	}
}

func newTestCoordinator(t *testing.T, def domain.PipelineDefinition, exec *scriptedExecutor) (*Coordinator, *fakePipelineRepo, *fakeRunRepo) {
	t.Helper()
	pipelines := &fakePipelineRepo{pipelines: map[string]domain.PipelineDefinition{def.ID: def}}
	runs := newFakeRunRepo()
	c := New(Deps{
		Pipelines: pipelines,
		Runs:      runs,
		Executors: executor.NewRegistry(exec),
		Logger:    slog.New(slog.DiscardHandler),
	})
	if c == nil {
		t.Fatal("coordinator should construct")
	}
	seq := 0
	c.newID = func() string {
		seq++
		return fmt.Sprintf("run-%d", seq)
	}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	c.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * 30 * time.Second)
	}
	return c, pipelines, runs
}

func TestTrigger_AllStagesSucceed(t *testing.T) {
	exec := &scriptedExecutor{kind: domain.StageTypeGeneric, outcomes: map[string]executor.Outcome{}}
	c, pipelines, _ := newTestCoordinator(t, trainingPipeline(), exec)

	run, err := c.Trigger(context.Background(), TriggerRequest{PipelineID: "pl-1", TriggeredBy: "alice"})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if run.Status != domain.RunStatusSuccess {
		t.Fatalf("status=%q, want success", run.Status)
	}
	if run.RunNumber != 1 {
		t.Fatalf("run number=%d, want 1", run.RunNumber)
	}
	if got, want := strings.Join(exec.executed, ","), "fetch,train,deploy"; got != want {
		t.Fatalf("execution order %q, want %q", got, want)
	}
	for _, stage := range run.Stages {
		if stage.Status != domain.StageStatusSuccess {
			t.Fatalf("stage %s status=%q, want success", stage.Name, stage.Status)
		}
		if stage.StartedAt == nil || stage.CompletedAt == nil {
			t.Fatalf("stage %s missing timestamps", stage.Name)
		}
		if stage.DurationSeconds != 30 {
			t.Fatalf("stage %s duration=%d, want 30", stage.Name, stage.DurationSeconds)
		}
	}
	if run.CompletedAt == nil || run.DurationSeconds <= 0 {
		t.Fatal("run should carry completion time and duration")
	}
	if pipelines.lastRunID != run.ID || pipelines.lastRunSt != "success" {
		t.Fatalf("last run not recorded: id=%q status=%q", pipelines.lastRunID, pipelines.lastRunSt)
	}
}

func TestTrigger_FailureSkipsDependents(t *testing.T) {
	exec := &scriptedExecutor{kind: domain.StageTypeGeneric, outcomes: map[string]executor.Outcome{
		"fetch": {Status: domain.StageStatusFailed, ErrorMessage: "download failed"},
	}}
	def := trainingPipeline()
	def.Stages[0].ContinueOnFailure = true
	c, _, _ := newTestCoordinator(t, def, exec)

	run, err := c.Trigger(context.Background(), TriggerRequest{PipelineID: "pl-1"})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if run.Status != domain.RunStatusFailed {
		t.Fatalf("status=%q, want failed", run.Status)
	}

	want := []domain.StageStatus{
		domain.StageStatusFailed,
		domain.StageStatusSkipped,
		domain.StageStatusSkipped,
	}
	for i, stage := range run.Stages {
		if stage.Status != want[i] {
			t.Fatalf("stage %s status=%q, want %q", stage.Name, stage.Status, want[i])
		}
	}
	if len(exec.executed) != 1 || exec.executed[0] != "fetch" {
		t.Fatalf("executed=%v, want only fetch", exec.executed)
	}
	skipped := run.Stages[1]
	if skipped.StartedAt != nil || skipped.CompletedAt != nil || skipped.DurationSeconds != 0 {
		t.Fatal("skipped stage must carry no timing")
	}
}

func TestTrigger_HaltLeavesRemainingPending(t *testing.T) {
	def := domain.PipelineDefinition{
		ID:      "pl-1",
		Name:    "independent-stages",
		Enabled: true,
		Stages: []domain.StageSpec{
			{Name: "a", Type: domain.StageTypeGeneric},
			{Name: "b", Type: domain.StageTypeGeneric},
			{Name: "c", Type: domain.StageTypeGeneric},
		},
	}
	exec := &scriptedExecutor{kind: domain.StageTypeGeneric, outcomes: map[string]executor.Outcome{
		"b": {Status: domain.StageStatusFailed, ErrorMessage: "boom"},
	}}
	c, _, _ := newTestCoordinator(t, def, exec)

	run, err := c.Trigger(context.Background(), TriggerRequest{PipelineID: "pl-1"})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if run.Stages[2].Status != domain.StageStatusPending {
		t.Fatalf("stage c status=%q, want pending after halt", run.Stages[2].Status)
	}
	if len(exec.executed) != 2 {
		t.Fatalf("executed=%v, want a and b only", exec.executed)
	}
}

func TestTrigger_ContinueOnFailureRunsIndependentStages(t *testing.T) {
	def := domain.PipelineDefinition{
		ID:      "pl-1",
		Name:    "tolerant",
		Enabled: true,
		Stages: []domain.StageSpec{
			{Name: "lint", Type: domain.StageTypeGeneric, ContinueOnFailure: true},
			{Name: "build", Type: domain.StageTypeGeneric},
			{Name: "package", Type: domain.StageTypeGeneric, DependsOn: []string{"lint"}},
		},
	}
	exec := &scriptedExecutor{kind: domain.StageTypeGeneric, outcomes: map[string]executor.Outcome{
		"lint": {Status: domain.StageStatusFailed, ErrorMessage: "style violations"},
	}}
	c, _, _ := newTestCoordinator(t, def, exec)

	run, err := c.Trigger(context.Background(), TriggerRequest{PipelineID: "pl-1"})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if run.Status != domain.RunStatusFailed {
		t.Fatalf("status=%q, want failed when any stage failed", run.Status)
	}
	if run.Stages[1].Status != domain.StageStatusSuccess {
		t.Fatalf("build status=%q, want success", run.Stages[1].Status)
	}
	if run.Stages[2].Status != domain.StageStatusSkipped {
		t.Fatalf("package status=%q, want skipped on failed dependency", run.Stages[2].Status)
	}
}

func TestTrigger_DisabledPipeline(t *testing.T) {
	def := trainingPipeline()
	def.Enabled = false
	exec := &scriptedExecutor{kind: domain.StageTypeGeneric}
	c, _, runs := newTestCoordinator(t, def, exec)

	_, err := c.Trigger(context.Background(), TriggerRequest{PipelineID: "pl-1"})
	if !errors.Is(err, ErrPipelineDisabled) {
		t.Fatalf("err=%v, want ErrPipelineDisabled", err)
	}
	if len(runs.runs) != 0 {
		t.Fatal("no run record may exist for a rejected trigger")
	}
}

func TestTrigger_UnknownPipeline(t *testing.T) {
	exec := &scriptedExecutor{kind: domain.StageTypeGeneric}
	c, _, runs := newTestCoordinator(t, trainingPipeline(), exec)

	_, err := c.Trigger(context.Background(), TriggerRequest{PipelineID: "missing"})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
	if len(runs.runs) != 0 {
		t.Fatal("no run record may exist for a rejected trigger")
	}
}

func TestTrigger_SequentialRunNumbers(t *testing.T) {
	exec := &scriptedExecutor{kind: domain.StageTypeGeneric}
	c, _, _ := newTestCoordinator(t, trainingPipeline(), exec)

	for want := int64(1); want <= 3; want++ {
		run, err := c.Trigger(context.Background(), TriggerRequest{PipelineID: "pl-1"})
		if err != nil {
			t.Fatalf("Trigger %d: %v", want, err)
		}
		if run.RunNumber != want {
			t.Fatalf("run number=%d, want %d", run.RunNumber, want)
		}
	}
}

func TestTrigger_PersistenceErrorPropagates(t *testing.T) {
	exec := &scriptedExecutor{kind: domain.StageTypeGeneric}
	c, _, runs := newTestCoordinator(t, trainingPipeline(), exec)
	runs.failUpdate = true

	_, err := c.Trigger(context.Background(), TriggerRequest{PipelineID: "pl-1"})
	if err == nil || !strings.Contains(err.Error(), "persist run") {
		t.Fatalf("err=%v, want persistence failure", err)
	}
}

func TestTrigger_NotifiesEveryRecipient(t *testing.T) {
	def := trainingPipeline()
	def.NotifyEmails = []string{"ml-team@example.com", "oncall@example.com"}
	exec := &scriptedExecutor{kind: domain.StageTypeGeneric}

	pipelines := &fakePipelineRepo{pipelines: map[string]domain.PipelineDefinition{def.ID: def}}
	runs := newFakeRunRepo()
	notifier := &recordingNotifier{err: errors.New("smtp refused")}
	audit := &fakeAudit{err: errors.New("audit store down")}
	c := New(Deps{
		Pipelines: pipelines,
		Runs:      runs,
		Audit:     audit,
		Executors: executor.NewRegistry(exec),
		Notifier:  notifier,
		Logger:    slog.New(slog.DiscardHandler),
	})

	run, err := c.Trigger(context.Background(), TriggerRequest{PipelineID: "pl-1"})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if run.Status != domain.RunStatusSuccess {
		t.Fatalf("status=%q, want success despite notifier and audit failures", run.Status)
	}
	if len(notifier.recipients) != 2 {
		t.Fatalf("recipients=%v, want both notified even when sends fail", notifier.recipients)
	}
	if !strings.Contains(notifier.subject, "model-training") {
		t.Fatalf("subject=%q, want pipeline name", notifier.subject)
	}
	if got, want := strings.Join(audit.actions, ","), "pipeline_run.triggered,pipeline_run.completed"; got != want {
		t.Fatalf("audit actions %q, want %q", got, want)
	}
}

func TestTrigger_UnknownStageTypeFailsStage(t *testing.T) {
	def := domain.PipelineDefinition{
		ID:      "pl-1",
		Name:    "odd-types",
		Enabled: true,
		Stages: []domain.StageSpec{
			{Name: "weird", Type: domain.StageType("spark")},
		},
	}
	exec := &scriptedExecutor{kind: domain.StageTypeGeneric}
	c, _, _ := newTestCoordinator(t, def, exec)

	run, err := c.Trigger(context.Background(), TriggerRequest{PipelineID: "pl-1"})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if run.Stages[0].Status != domain.StageStatusFailed {
		t.Fatalf("stage status=%q, want failed for unknown type", run.Stages[0].Status)
	}
	if !strings.Contains(run.Stages[0].ErrorMessage, "no executor") {
		t.Fatalf("error=%q, want missing executor message", run.Stages[0].ErrorMessage)
	}
}
