package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/pipewright-labs/pipewright-go/internal/domain"
)

// ScriptExecutor runs a stage's declared script through the configured shell.
// Stdout and stderr are captured together into the outcome logs.
type ScriptExecutor struct {
	shell string
	kind  domain.StageType
}

func NewScriptExecutor(shell string) *ScriptExecutor {
	shell = strings.TrimSpace(shell)
	if shell == "" {
		shell = "/bin/sh"
	}
	return &ScriptExecutor{shell: shell, kind: domain.StageTypeGeneric}
}

func (e *ScriptExecutor) Kind() domain.StageType {
	return e.kind
}

func (e *ScriptExecutor) Execute(ctx context.Context, stage domain.StageSpec, runCtx RunContext) Outcome {
	script := strings.TrimSpace(stage.Script)
	if script == "" {
		return succeeded("")
	}

	cmd := exec.CommandContext(ctx, e.shell, "-c", script)
	cmd.Env = append(cmd.Environ(),
		"PIPEWRIGHT_RUN_ID="+runCtx.RunID,
		"PIPEWRIGHT_PIPELINE_ID="+runCtx.PipelineID,
		"PIPEWRIGHT_PIPELINE_NAME="+runCtx.PipelineName,
		fmt.Sprintf("PIPEWRIGHT_RUN_NUMBER=%d", runCtx.RunNumber),
		"PIPEWRIGHT_STAGE_NAME="+stage.Name,
	)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return failed(out.String(), fmt.Errorf("script aborted: %w", ctxErr))
		}
		return failed(out.String(), fmt.Errorf("script failed: %w", err))
	}
	return succeeded(out.String())
}
