package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateRun(t *testing.T) {
	var captured createRunRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/2.0/mlflow/runs/create" {
			t.Errorf("path=%q", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method=%q", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization=%q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"run":{"info":{"run_id":"mlf-42","status":"RUNNING"}}}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "secret")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	handle, err := c.CreateRun(context.Background(), "exp-1", map[string]string{
		"stage_name":      "train",
		"pipeline_run_id": "run-9",
	})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if handle != "mlf-42" {
		t.Fatalf("handle=%q, want mlf-42", handle)
	}
	if captured.ExperimentID != "exp-1" {
		t.Fatalf("experiment=%q, want exp-1", captured.ExperimentID)
	}
	if captured.StartTime == 0 {
		t.Fatal("start time must be set")
	}
	if len(captured.Tags) != 2 || captured.Tags[0].Key != "pipeline_run_id" {
		t.Fatalf("tags=%v, want sorted run tags", captured.Tags)
	}
}

func TestCreateRun_ExperimentNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error_code":"RESOURCE_DOES_NOT_EXIST"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.CreateRun(context.Background(), "missing", nil)
	if !errors.Is(err, ErrExperimentNotFound) {
		t.Fatalf("err=%v, want ErrExperimentNotFound", err)
	}
}

func TestCreateRun_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.CreateRun(context.Background(), "exp-1", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("err=%v, want APIError with status 500", err)
	}
}

func TestCreateRun_EmptyExperiment(t *testing.T) {
	c, err := NewClient("http://localhost:5000", "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.CreateRun(context.Background(), "  ", nil); err == nil {
		t.Fatal("empty experiment id must be rejected")
	}
}
