package sandbox

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"archive/tar"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opslab/opslab/internal/config"
)

func TestTopologyName(t *testing.T) {
	assert.Equal(t, "opslab_sandbox_user-1_abcd1234", TopologyName("user-1", "abcd1234"))
}

func TestNetworkName(t *testing.T) {
	assert.Equal(t, "opslab_net_user-1_abcd1234", NetworkName("user-1", "abcd1234"))
}

func TestNodeName(t *testing.T) {
	assert.Equal(t, "opslab_sandbox_u_t_node1", NodeName("opslab_sandbox_u_t", 1))
	assert.Equal(t, "opslab_sandbox_u_t_node2", NodeName("opslab_sandbox_u_t", 2))
}

func TestCPUQuota(t *testing.T) {
	tests := []struct {
		name     string
		fraction float64
		expected int64
	}{
		{"half core", 0.5, 50000},
		{"quarter core", 0.25, 25000},
		{"full core", 1.0, 100000},
		{"tenth", 0.1, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CPUQuota(tt.fraction))
		})
	}
}

func TestRenderInventory(t *testing.T) {
	inv := RenderInventory(2)

	lines := strings.Split(strings.TrimSpace(inv), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[managed]", lines[0])
	assert.Contains(t, lines[1], "node1 ansible_host=node1")
	assert.Contains(t, lines[1], "ansible_user=ansible")
	assert.Contains(t, lines[1], "ansible_ssh_pass=ansible")
	assert.Contains(t, lines[1], "StrictHostKeyChecking=no")
	assert.Contains(t, lines[2], "node2 ansible_host=node2")
}

func TestRenderInventory_SingleNode(t *testing.T) {
	inv := RenderInventory(1)

	assert.Contains(t, inv, "node1")
	assert.NotContains(t, inv, "node2")
}

func TestTarFile(t *testing.T) {
	content := []byte("---\n- hosts: all\n  tasks: []\n")

	archive, err := tarFile("playbook.yml", content)
	require.NoError(t, err)

	tr := tar.NewReader(archive)
	hdr, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, "playbook.yml", hdr.Name)
	assert.Equal(t, int64(len(content)), hdr.Size)
	assert.Equal(t, int64(0644), hdr.Mode)

	var buf bytes.Buffer
	_, err = io.Copy(&buf, tr)
	require.NoError(t, err)
	assert.Equal(t, content, buf.Bytes())

	_, err = tr.Next()
	assert.Equal(t, io.EOF, err)
}

func testSandboxConfig() *config.Config {
	return &config.Config{
		Sandbox: config.SandboxConfig{
			ControllerImage: "willhallonline/ansible:latest",
			NodeImage:       "ubuntu:22.04",
			ManagedNodes:    2,
			MemoryBytes:     512 * 1024 * 1024,
			NodeMemoryBytes: 256 * 1024 * 1024,
			CPUFraction:     0.5,
			SetupWait:       time.Millisecond,
		},
	}
}

func TestTopologyManager_Create(t *testing.T) {
	f := newFakeDockerClient()
	m := NewTopologyManager(f, testSandboxConfig(), slog.Default())

	res, err := m.Create(context.Background(), "u1", "abcd1234")
	require.NoError(t, err)

	assert.Equal(t, "opslab_sandbox_u1_abcd1234", res.TopologyName)
	assert.Equal(t, []string{
		"opslab_sandbox_u1_abcd1234_controller",
		"opslab_sandbox_u1_abcd1234_node1",
		"opslab_sandbox_u1_abcd1234_node2",
	}, f.createdNames)
	assert.Equal(t, f.createdIDs, f.started)
	assert.Equal(t, "opslab_net_u1_abcd1234", f.networkName)

	// Both nodes ran the SSH bootstrap
	require.Len(t, f.execCmds, 2)
	assert.Contains(t, f.execCmds[0][2], "sshd")

	// The controller received the rendered inventory
	inventory := string(f.copied[res.ControllerID])
	assert.Contains(t, inventory, "node1 ansible_host=node1")
	assert.Contains(t, inventory, "node2 ansible_host=node2")
}

func TestTopologyManager_Create_TearsDownOnNodeFailure(t *testing.T) {
	f := newFakeDockerClient()
	f.createErr["_node2"] = errors.New("no space left on device")
	m := NewTopologyManager(f, testSandboxConfig(), slog.Default())

	_, err := m.Create(context.Background(), "u1", "abcd1234")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node 2")

	// The controller and the surviving node were force-removed
	assert.ElementsMatch(t, f.createdIDs, f.removed)
	// The private network went with them
	require.Len(t, f.networks, 1)
	assert.Contains(t, f.networksGone, f.networks[0].ID)
	// No inventory was ever written
	assert.Empty(t, f.copied)
}

func TestTopologyManager_Destroy_NothingFound(t *testing.T) {
	f := newFakeDockerClient()
	m := NewTopologyManager(f, testSandboxConfig(), slog.Default())

	found, err := m.Destroy(context.Background(), "opslab_sandbox_gone_ffffffff")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, f.removed)
}

func TestNodeSetupScript(t *testing.T) {
	// The controller authenticates as ansible/ansible over SSH; the setup
	// script must install exactly that.
	assert.Contains(t, nodeSetupScript, "openssh-server")
	assert.Contains(t, nodeSetupScript, "python3")
	assert.Contains(t, nodeSetupScript, "useradd -m -s /bin/bash ansible")
	assert.Contains(t, nodeSetupScript, "ansible:ansible")
	assert.Contains(t, nodeSetupScript, "NOPASSWD:ALL")
	assert.Contains(t, nodeSetupScript, "/usr/sbin/sshd")
}
