package sandbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaybookCommand(t *testing.T) {
	cmd := PlaybookCommand()

	require.Len(t, cmd, 5)
	assert.Equal(t, "ansible-playbook", cmd[0])
	assert.Equal(t, []string{"-i", "/ansible/inventory.ini"}, cmd[1:3])
	assert.Equal(t, "/ansible/playbook.yml", cmd[3])
	assert.Equal(t, "-v", cmd[4])
}

func TestExecutionResult_JSONShape(t *testing.T) {
	result := ExecutionResult{
		Success:       true,
		ExitCode:      0,
		Stdout:        "PLAY RECAP",
		Stderr:        "",
		ExecutionTime: 2.75,
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, float64(0), decoded["exit_code"])
	assert.Equal(t, 2.75, decoded["execution_time"])
	assert.NotContains(t, decoded, "error")
}

func TestTimeoutExitCodeIsSentinel(t *testing.T) {
	// The scorer relies on a negative exit code meaning "no execution
	// occurred"; zero or positive values are real command results.
	assert.Negative(t, timeoutExitCode)
}

const testTopology = "opslab_sandbox_u1_abcd1234"

// seedController registers a running controller container for testTopology
func seedController(f *fakeDockerClient) string {
	id := "ctrl0000000000000000"
	f.containers = []container.Summary{{
		ID:    id,
		Names: []string{"/" + testTopology + "_controller"},
	}}
	return id
}

func TestExecute_ControllerMissing(t *testing.T) {
	f := newFakeDockerClient()
	e := NewExecutor(f, slog.Default())

	result := e.Execute(context.Background(), testTopology, "---\n", time.Minute)

	assert.False(t, result.Success)
	assert.Equal(t, timeoutExitCode, result.ExitCode)
	assert.Equal(t, "Container not found", result.Error)
}

func TestExecute_Success(t *testing.T) {
	f := newFakeDockerClient()
	controllerID := seedController(f)
	f.execStream = func(context.Context) io.Reader {
		return framedStream("PLAY RECAP\nnode1 : ok=2 changed=1 unreachable=0 failed=0", "deprecation warning")
	}
	e := NewExecutor(f, slog.Default())

	code := "---\n- hosts: all\n  tasks: []\n"
	result := e.Execute(context.Background(), testTopology, code, time.Minute)

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Stdout, "PLAY RECAP")
	assert.Equal(t, "deprecation warning", result.Stderr)
	assert.Empty(t, result.Error)

	// The playbook reached the controller as a tar stream
	assert.Contains(t, string(f.copied[controllerID]), "- hosts: all")

	require.Len(t, f.execCmds, 1)
	assert.Equal(t, PlaybookCommand(), f.execCmds[0])
}

func TestExecute_NonZeroExit(t *testing.T) {
	f := newFakeDockerClient()
	seedController(f)
	f.execExitCode = 2
	f.execStream = func(context.Context) io.Reader {
		return framedStream("", "ERROR! 'tasks' is not a valid attribute")
	}
	e := NewExecutor(f, slog.Default())

	result := e.Execute(context.Background(), testTopology, "---\n", time.Minute)

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.ExitCode)
	assert.Contains(t, result.Stderr, "not a valid attribute")
	assert.Empty(t, result.Error)
}

func TestExecute_TimeoutReturnsSentinelAndPartialOutput(t *testing.T) {
	f := newFakeDockerClient()
	seedController(f)
	f.execExitCode = 0
	// Stream one stdout frame, then hang until the exec deadline fires.
	f.execStream = func(ctx context.Context) io.Reader {
		pr, pw := io.Pipe()
		go func() {
			_, _ = stdcopy.NewStdWriter(pw, stdcopy.Stdout).Write([]byte("TASK [Install nginx]"))
			<-ctx.Done()
			pw.CloseWithError(ctx.Err())
		}()
		return pr
	}
	e := NewExecutor(f, slog.Default())

	result := e.Execute(context.Background(), testTopology, "---\n", 50*time.Millisecond)

	assert.False(t, result.Success)
	assert.Equal(t, timeoutExitCode, result.ExitCode)
	assert.Contains(t, result.Stdout, "TASK [Install nginx]")
	assert.Contains(t, result.Error, "timed out")
	assert.Greater(t, result.ExecutionTime, 0.0)
}
