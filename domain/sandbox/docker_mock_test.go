package sandbox

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// fakeDockerClient is a scriptable in-memory Docker client. It embeds the
// real interface so only the methods the sandbox layer touches need
// implementations; anything else panics, which is the point.
type fakeDockerClient struct {
	client.APIClient

	// seeded state
	containers   []container.Summary
	createErr    map[string]error
	copyErr      error
	execExitCode int
	execStream   func(ctx context.Context) io.Reader

	// recorded activity
	createdNames []string
	createdIDs   []string
	started      []string
	removed      []string
	copied       map[string][]byte
	networkName  string
	networks     []network.Summary
	networksGone []string
	execCmds     [][]string
}

func newFakeDockerClient() *fakeDockerClient {
	return &fakeDockerClient{
		createErr: map[string]error{},
		copied:    map[string][]byte{},
	}
}

func (f *fakeDockerClient) ImageList(context.Context, image.ListOptions) ([]image.Summary, error) {
	// Images are always present locally; pulls never happen in tests.
	return []image.Summary{{}}, nil
}

func (f *fakeDockerClient) NetworkCreate(_ context.Context, name string, _ network.CreateOptions) (network.CreateResponse, error) {
	f.networkName = name
	id := fmt.Sprintf("net%012d", len(f.networks))
	f.networks = append(f.networks, network.Summary{Name: name, ID: id})
	return network.CreateResponse{ID: id}, nil
}

func (f *fakeDockerClient) NetworkList(context.Context, network.ListOptions) ([]network.Summary, error) {
	return f.networks, nil
}

func (f *fakeDockerClient) NetworkRemove(_ context.Context, networkID string) error {
	f.networksGone = append(f.networksGone, networkID)
	return nil
}

func (f *fakeDockerClient) ContainerCreate(_ context.Context, _ *container.Config, _ *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	for substr, err := range f.createErr {
		if strings.Contains(containerName, substr) {
			return container.CreateResponse{}, err
		}
	}
	// Real IDs are 64 hex chars; callers slice the first 12, so pad.
	id := fmt.Sprintf("%012d_%s", len(f.createdIDs), containerName)
	f.createdNames = append(f.createdNames, containerName)
	f.createdIDs = append(f.createdIDs, id)
	return container.CreateResponse{ID: id}, nil
}

func (f *fakeDockerClient) ContainerStart(_ context.Context, containerID string, _ container.StartOptions) error {
	f.started = append(f.started, containerID)
	return nil
}

func (f *fakeDockerClient) ContainerRemove(_ context.Context, containerID string, _ container.RemoveOptions) error {
	f.removed = append(f.removed, containerID)
	return nil
}

func (f *fakeDockerClient) ContainerList(_ context.Context, opts container.ListOptions) ([]container.Summary, error) {
	var needle string
	if opts.Filters.Len() > 0 {
		if names := opts.Filters.Get("name"); len(names) > 0 {
			needle = names[0]
		}
	}

	var out []container.Summary
	for _, c := range f.summaries() {
		if needle == "" || strings.Contains(strings.Join(c.Names, " "), needle) {
			out = append(out, c)
		}
	}
	return out, nil
}

// summaries merges seeded containers with those created through the fake,
// minus the removed ones.
func (f *fakeDockerClient) summaries() []container.Summary {
	gone := map[string]bool{}
	for _, id := range f.removed {
		gone[id] = true
	}

	out := []container.Summary{}
	for _, c := range f.containers {
		if !gone[c.ID] {
			out = append(out, c)
		}
	}
	for i, id := range f.createdIDs {
		if !gone[id] {
			out = append(out, container.Summary{ID: id, Names: []string{"/" + f.createdNames[i]}})
		}
	}
	return out
}

func (f *fakeDockerClient) CopyToContainer(_ context.Context, containerID, _ string, content io.Reader, _ container.CopyToContainerOptions) error {
	if f.copyErr != nil {
		return f.copyErr
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	f.copied[containerID] = append(f.copied[containerID], data...)
	return nil
}

func (f *fakeDockerClient) ContainerExecCreate(_ context.Context, _ string, options container.ExecOptions) (container.ExecCreateResponse, error) {
	f.execCmds = append(f.execCmds, options.Cmd)
	return container.ExecCreateResponse{ID: fmt.Sprintf("exec-%d", len(f.execCmds))}, nil
}

func (f *fakeDockerClient) ContainerExecAttach(ctx context.Context, _ string, _ container.ExecAttachOptions) (types.HijackedResponse, error) {
	var stream io.Reader = bytes.NewReader(nil)
	if f.execStream != nil {
		stream = f.execStream(ctx)
	}
	conn, _ := net.Pipe()
	return types.HijackedResponse{Conn: conn, Reader: bufio.NewReader(stream)}, nil
}

func (f *fakeDockerClient) ContainerExecInspect(context.Context, string) (container.ExecInspect, error) {
	return container.ExecInspect{ExitCode: f.execExitCode}, nil
}

// framedStream builds the multiplexed stdout/stderr stream the attach API
// returns for a non-TTY exec.
func framedStream(stdout, stderr string) io.Reader {
	var buf bytes.Buffer
	if stdout != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(stdout))
	}
	if stderr != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(stderr))
	}
	return &buf
}
