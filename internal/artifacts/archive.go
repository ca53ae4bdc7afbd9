// Package artifacts copies finished run output to object storage so stage
// logs survive record-store retention.
package artifacts

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
)

// ObjectPutter is the object store surface the archiver needs.
type ObjectPutter interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error
}

type Archiver struct {
	store  ObjectPutter
	bucket string
}

func NewArchiver(store ObjectPutter, bucket string) (*Archiver, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &Archiver{store: store, bucket: bucket}, nil
}

// ArchiveRunLogs writes one plain text object per run under
// <pipeline_id>/run-<number>.log. Stages without output still appear so the
// archive mirrors the run's shape.
func (a *Archiver) ArchiveRunLogs(ctx context.Context, run domain.PipelineRun) error {
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("run id is required")
	}
	body := renderRunLog(run)
	key := RunLogKey(run.PipelineID, run.RunNumber)
	if err := a.store.Put(ctx, a.bucket, key, strings.NewReader(body), int64(len(body)), "text/plain; charset=utf-8"); err != nil {
		return fmt.Errorf("archive run %s: %w", run.ID, err)
	}
	return nil
}

// RunLogKey is the object key for a run's archived logs.
func RunLogKey(pipelineID string, runNumber int64) string {
	return fmt.Sprintf("%s/run-%04d.log", pipelineID, runNumber)
}

func renderRunLog(run domain.PipelineRun) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s pipeline %s number %d status %s\n", run.ID, run.PipelineID, run.RunNumber, run.Status)
	for _, stage := range run.Stages {
		fmt.Fprintf(&b, "\n=== stage %s (%s, %ds) ===\n", stage.Name, stage.Status, stage.DurationSeconds)
		if stage.ErrorMessage != "" {
			fmt.Fprintf(&b, "error: %s\n", stage.ErrorMessage)
		}
		logs := strings.TrimRight(stage.Logs, "\n")
		if logs != "" {
			b.WriteString(logs)
			b.WriteString("\n")
		}
	}
	return b.String()
}
