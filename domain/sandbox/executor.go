package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/opslab/opslab/pkg/logger"
)

const playbookPath = ansibleDir + "/playbook.yml"

// timeoutExitCode is the sentinel for "no execution result exists". The
// scorer treats it as failure for every test type.
const timeoutExitCode = -1

// ExecutionResult captures one playbook run inside a controller
type ExecutionResult struct {
	Success       bool    `json:"success"`
	ExitCode      int     `json:"exit_code"`
	Stdout        string  `json:"stdout"`
	Stderr        string  `json:"stderr"`
	ExecutionTime float64 `json:"execution_time"`
	Error         string  `json:"error,omitempty"`
}

// Executor runs submitted playbooks inside a topology's controller
type Executor struct {
	client client.APIClient
	log    *slog.Logger
}

// NewExecutor creates a new playbook executor
func NewExecutor(cli client.APIClient, log *slog.Logger) *Executor {
	return &Executor{
		client: cli,
		log:    log.With(logger.Scope("sandbox.executor")),
	}
}

// PlaybookCommand is the fixed invocation run inside the controller
func PlaybookCommand() []string {
	return []string{"ansible-playbook", "-i", inventoryPath, playbookPath, "-v"}
}

// Execute writes the playbook into the controller and runs it with a
// wall-clock deadline. A timeout kills the command and returns whatever
// output accumulated, with the sentinel exit code.
func (e *Executor) Execute(ctx context.Context, topologyName, code string, timeout time.Duration) *ExecutionResult {
	controllerID, err := e.resolveController(ctx, topologyName)
	if err != nil {
		return &ExecutionResult{
			Success:  false,
			ExitCode: timeoutExitCode,
			Error:    "Container not found",
		}
	}

	// The playbook travels through the runtime API as a tar stream, never
	// through a shell, so its content cannot be interpreted as commands.
	archive, err := tarFile("playbook.yml", []byte(code))
	if err != nil {
		return &ExecutionResult{
			Success:  false,
			ExitCode: timeoutExitCode,
			Error:    fmt.Sprintf("Failed to write playbook: %v", err),
		}
	}
	if err := e.client.CopyToContainer(ctx, controllerID, ansibleDir, archive, container.CopyToContainerOptions{}); err != nil {
		return &ExecutionResult{
			Success:  false,
			ExitCode: timeoutExitCode,
			Error:    fmt.Sprintf("Failed to write playbook: %v", err),
		}
	}

	start := time.Now()

	execResp, err := e.client.ContainerExecCreate(ctx, controllerID, container.ExecOptions{
		Cmd:          PlaybookCommand(),
		WorkingDir:   ansibleDir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return &ExecutionResult{
			Success:  false,
			ExitCode: timeoutExitCode,
			Error:    fmt.Sprintf("Failed to start playbook: %v", err),
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attachResp, err := e.client.ContainerExecAttach(execCtx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return &ExecutionResult{
			Success:  false,
			ExitCode: timeoutExitCode,
			Error:    fmt.Sprintf("Failed to attach to playbook run: %v", err),
		}
	}
	defer attachResp.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	_, copyErr := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, attachResp.Reader)
	elapsed := time.Since(start).Seconds()

	if copyErr != nil && copyErr != io.EOF {
		if execCtx.Err() != nil {
			e.log.Warn("playbook execution timed out",
				slog.String("topology", topologyName),
				slog.Duration("timeout", timeout))
			return &ExecutionResult{
				Success:       false,
				ExitCode:      timeoutExitCode,
				Stdout:        stdoutBuf.String(),
				Stderr:        stderrBuf.String(),
				ExecutionTime: elapsed,
				Error:         fmt.Sprintf("Execution timed out after %.0f seconds", timeout.Seconds()),
			}
		}
		return &ExecutionResult{
			Success:       false,
			ExitCode:      timeoutExitCode,
			Stdout:        stdoutBuf.String(),
			Stderr:        stderrBuf.String(),
			ExecutionTime: elapsed,
			Error:         fmt.Sprintf("Failed to read execution output: %v", copyErr),
		}
	}

	inspect, err := e.client.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return &ExecutionResult{
			Success:       false,
			ExitCode:      timeoutExitCode,
			Stdout:        stdoutBuf.String(),
			Stderr:        stderrBuf.String(),
			ExecutionTime: elapsed,
			Error:         fmt.Sprintf("Failed to inspect execution: %v", err),
		}
	}

	e.log.Info("playbook executed",
		slog.String("topology", topologyName),
		slog.Int("exit_code", inspect.ExitCode),
		slog.Float64("seconds", elapsed))

	return &ExecutionResult{
		Success:       inspect.ExitCode == 0,
		ExitCode:      inspect.ExitCode,
		Stdout:        stdoutBuf.String(),
		Stderr:        stderrBuf.String(),
		ExecutionTime: elapsed,
	}
}

// resolveController finds the controller container for a topology by name
func (e *Executor) resolveController(ctx context.Context, topologyName string) (string, error) {
	name := topologyName + "_controller"
	containers, err := e.client.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return "", err
	}
	if len(containers) == 0 {
		return "", fmt.Errorf("controller for %s not found", topologyName)
	}
	return containers[0].ID, nil
}
