package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
	"github.com/pipewright-labs/pipewright-go/internal/execution/coordinator"
	"github.com/pipewright-labs/pipewright-go/internal/pipelinespec"
	"github.com/pipewright-labs/pipewright-go/internal/platform/httpserver"
	"github.com/pipewright-labs/pipewright-go/internal/repo"
	"github.com/pipewright-labs/pipewright-go/internal/retraining"
)

// actorHeader names the trusted header carrying the caller identity. The
// deployment's edge sets it; the service itself does not authenticate.
const actorHeader = "X-Pipewright-Actor"

type orchestratorAPI struct {
	logger *slog.Logger
	stores stores
	runner *coordinator.Coordinator
	engine *retraining.Engine
	newID  func() string
}

func newOrchestratorAPI(logger *slog.Logger, repos stores, runner *coordinator.Coordinator, engine *retraining.Engine) *orchestratorAPI {
	return &orchestratorAPI{
		logger: logger,
		stores: repos,
		runner: runner,
		engine: engine,
		newID:  uuid.NewString,
	}
}

func (api *orchestratorAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /pipelines", api.handleRegisterPipeline)
	mux.HandleFunc("GET /pipelines/{pipeline_id}", api.handleGetPipeline)
	mux.HandleFunc("POST /pipelines/{pipeline_id}/trigger", api.handleTrigger)
	mux.HandleFunc("GET /pipelines/{pipeline_id}/runs", api.handleListRuns)
	mux.HandleFunc("GET /runs/{run_id}", api.handleGetRun)
	mux.HandleFunc("POST /retraining/configs", api.handleCreateConfig)
	mux.HandleFunc("POST /retraining/jobs", api.handleCreateJob)
	mux.HandleFunc("POST /retraining/{job_id}/complete", api.handleCompleteJob)
}

// handleRegisterPipeline accepts a YAML pipeline document, validates it and
// stores the definition under a fresh id.
func (api *orchestratorAPI) handleRegisterPipeline(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "unreadable_body")
		return
	}
	doc, err := pipelinespec.Parse(raw)
	if err != nil {
		api.writeErrorDetail(w, r, http.StatusUnprocessableEntity, "invalid_pipeline", err.Error())
		return
	}

	def := doc.ToDefinition(api.newID())
	if err := api.stores.pipelines.CreatePipeline(r.Context(), def); err != nil {
		api.logger.Error("create pipeline failed", "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusCreated, pipelinePayload(def))
}

func (api *orchestratorAPI) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	def, err := api.stores.pipelines.GetPipeline(r.Context(), r.PathValue("pipeline_id"))
	if errors.Is(err, repo.ErrNotFound) {
		api.writeError(w, r, http.StatusNotFound, "pipeline_not_found")
		return
	}
	if err != nil {
		api.logger.Error("get pipeline failed", "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusOK, pipelinePayload(def))
}

type triggerPayload struct {
	TriggerType string         `json:"triggerType"`
	TriggerData map[string]any `json:"triggerData"`
}

func (api *orchestratorAPI) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerPayload
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}
	}

	run, err := api.runner.Trigger(r.Context(), coordinator.TriggerRequest{
		PipelineID:  r.PathValue("pipeline_id"),
		TriggerType: req.TriggerType,
		TriggerData: req.TriggerData,
		TriggeredBy: actorFrom(r),
	})
	switch {
	case errors.Is(err, repo.ErrNotFound):
		api.writeError(w, r, http.StatusNotFound, "pipeline_not_found")
		return
	case errors.Is(err, coordinator.ErrPipelineDisabled):
		api.writeError(w, r, http.StatusConflict, "pipeline_disabled")
		return
	case err != nil:
		api.logger.Error("trigger failed", "pipeline_id", r.PathValue("pipeline_id"), "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusCreated, runPayload(run))
}

func (api *orchestratorAPI) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := api.stores.runs.GetRun(r.Context(), r.PathValue("run_id"))
	if errors.Is(err, repo.ErrNotFound) {
		api.writeError(w, r, http.StatusNotFound, "run_not_found")
		return
	}
	if err != nil {
		api.logger.Error("get run failed", "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusOK, runPayload(run))
}

func (api *orchestratorAPI) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := api.stores.runs.ListRuns(r.Context(), repo.RunFilter{
		PipelineID: r.PathValue("pipeline_id"),
		Status:     strings.TrimSpace(r.URL.Query().Get("status")),
	})
	if err != nil {
		api.logger.Error("list runs failed", "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	out := make([]runView, 0, len(runs))
	for _, run := range runs {
		out = append(out, runPayload(run))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

type createConfigPayload struct {
	ModelName            string             `json:"modelName"`
	Enabled              *bool              `json:"enabled"`
	AutoDeployIfImproved bool               `json:"autoDeployIfImproved"`
	ImprovementThreshold float64            `json:"improvementThreshold"`
	NotifyEmails         []string           `json:"notifyEmails"`
	BaselineMetrics      map[string]float64 `json:"baselineMetrics"`
}

func (api *orchestratorAPI) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var req createConfigPayload
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	cfg := domain.RetrainingConfig{
		ID:                   api.newID(),
		ModelName:            strings.TrimSpace(req.ModelName),
		Enabled:              req.Enabled == nil || *req.Enabled,
		AutoDeployIfImproved: req.AutoDeployIfImproved,
		ImprovementThreshold: req.ImprovementThreshold,
		NotifyEmails:         req.NotifyEmails,
		BaselineMetrics:      req.BaselineMetrics,
	}
	if err := cfg.Validate(); err != nil {
		api.writeErrorDetail(w, r, http.StatusUnprocessableEntity, "invalid_config", err.Error())
		return
	}
	if err := api.stores.configs.CreateConfig(r.Context(), cfg); err != nil {
		api.logger.Error("create config failed", "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusCreated, configPayload(cfg))
}

type createJobPayload struct {
	ConfigID       string             `json:"configId"`
	TriggerReason  string             `json:"triggerReason"`
	TrainingParams map[string]any     `json:"trainingParams"`
	Baseline       map[string]float64 `json:"baselineMetrics"`
}

func (api *orchestratorAPI) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobPayload
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	cfg, err := api.stores.configs.GetConfig(r.Context(), strings.TrimSpace(req.ConfigID))
	if errors.Is(err, repo.ErrNotFound) {
		api.writeError(w, r, http.StatusNotFound, "config_not_found")
		return
	}
	if err != nil {
		api.logger.Error("get config failed", "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	baseline := domain.MetricSet(req.Baseline)
	if len(baseline) == 0 {
		baseline = cfg.BaselineMetrics.Clone()
	}
	job := domain.RetrainingJob{
		ID:              api.newID(),
		ConfigID:        cfg.ID,
		Status:          domain.RetrainingStatusPending,
		TriggerReason:   strings.TrimSpace(req.TriggerReason),
		BaselineMetrics: baseline,
		TrainingParams:  req.TrainingParams,
		CreatedAt:       time.Now().UTC(),
	}
	if err := api.stores.jobs.CreateJob(r.Context(), job); err != nil {
		api.logger.Error("create job failed", "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusCreated, jobPayload(job))
}

type completeJobPayload struct {
	NewMetrics   map[string]float64 `json:"newMetrics"`
	TrackerRunID string             `json:"trackerRunId"`
}

func (api *orchestratorAPI) handleCompleteJob(w http.ResponseWriter, r *http.Request) {
	var req completeJobPayload
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if len(req.NewMetrics) == 0 {
		api.writeError(w, r, http.StatusBadRequest, "new_metrics_required")
		return
	}

	job, err := api.engine.Complete(r.Context(), r.PathValue("job_id"), req.NewMetrics, strings.TrimSpace(req.TrackerRunID))
	switch {
	case errors.Is(err, repo.ErrNotFound):
		api.writeError(w, r, http.StatusNotFound, "job_not_found")
		return
	case errors.Is(err, retraining.ErrConfigDisabled):
		api.writeError(w, r, http.StatusConflict, "config_disabled")
		return
	case err != nil:
		api.logger.Error("complete job failed", "job_id", r.PathValue("job_id"), "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusOK, jobPayload(job))
}

func actorFrom(r *http.Request) string {
	actor := strings.TrimSpace(r.Header.Get(actorHeader))
	if actor == "" {
		return "system"
	}
	return actor
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err == nil {
		return errors.New("multiple JSON values")
	}
	return nil
}

func (api *orchestratorAPI) writeJSON(w http.ResponseWriter, status int, v any) {
	httpserver.WriteJSON(w, status, v)
}

func (api *orchestratorAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func (api *orchestratorAPI) writeErrorDetail(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"detail":     detail,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}
