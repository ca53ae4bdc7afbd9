// Package tracker records training stage executions in an external
// experiment tracking server speaking the MLflow REST protocol.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

var (
	ErrExperimentNotFound = errors.New("tracker experiment not found")
	ErrUnauthorized       = errors.New("tracker request unauthorized")
)

type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("tracker api error (status=%d)", e.StatusCode)
	}
	return fmt.Sprintf("tracker api error (status=%d): %s", e.StatusCode, body)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	now     func() time.Time
}

// NewClient builds a client for the tracking server at baseURL. The token is
// optional; when set it is sent as a bearer credential.
func NewClient(baseURL, token string) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("tracker base url is required")
	}
	return &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 15 * time.Second},
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

type runTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type createRunRequest struct {
	ExperimentID string   `json:"experiment_id"`
	StartTime    int64    `json:"start_time"`
	Tags         []runTag `json:"tags,omitempty"`
}

type createRunResponse struct {
	Run struct {
		Info struct {
			RunID string `json:"run_id"`
		} `json:"info"`
	} `json:"run"`
}

// CreateRun opens a tracking run under the experiment and returns its handle.
func (c *Client) CreateRun(ctx context.Context, experimentID string, tags map[string]string) (string, error) {
	experimentID = strings.TrimSpace(experimentID)
	if experimentID == "" {
		return "", errors.New("experiment id is required")
	}

	payload := createRunRequest{
		ExperimentID: experimentID,
		StartTime:    c.now().UnixMilli(),
	}
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		payload.Tags = append(payload.Tags, runTag{Key: key, Value: tags[key]})
	}

	var out createRunResponse
	if err := c.post(ctx, "/api/2.0/mlflow/runs/create", payload, &out); err != nil {
		return "", err
	}
	if out.Run.Info.RunID == "" {
		return "", errors.New("tracker returned no run id")
	}
	return out.Run.Info.RunID, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal tracker request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode tracker response: %w", err)
		}
		return nil
	case http.StatusNotFound:
		return ErrExperimentNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	default:
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
}
