package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"

	"github.com/opslab/opslab/internal/config"
	"github.com/opslab/opslab/pkg/logger"
)

const (
	appLabel = "opslab"

	labelApp    = "app"
	labelUserID = "user_id"
	labelType   = "type"
	labelParent = "parent"

	typeControlNode = "control_node"
	typeManagedNode = "managed_node"

	ansibleDir    = "/ansible"
	inventoryPath = ansibleDir + "/inventory.ini"

	cpuPeriodMicros = 100000
)

// nodeSetupScript prepares a managed node: SSH daemon, Python for Ansible
// modules, and a sudo-capable user the controller connects as.
const nodeSetupScript = `apt-get update -qq && ` +
	`DEBIAN_FRONTEND=noninteractive apt-get install -y -qq openssh-server python3 sudo && ` +
	`mkdir -p /run/sshd && ` +
	`useradd -m -s /bin/bash ansible && ` +
	`echo 'ansible:ansible' | chpasswd && ` +
	`echo 'ansible ALL=(ALL) NOPASSWD:ALL' >> /etc/sudoers && ` +
	`/usr/sbin/sshd`

// TopologyManager materializes isolated multi-container environments: one
// Ansible controller plus a set of managed nodes on a private network.
type TopologyManager struct {
	client client.APIClient
	cfg    *config.SandboxConfig
	log    *slog.Logger
}

// NewDockerClient creates the shared Docker API client
func NewDockerClient() (client.APIClient, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return cli, nil
}

// NewTopologyManager creates a new topology manager
func NewTopologyManager(cli client.APIClient, cfg *config.Config, log *slog.Logger) *TopologyManager {
	return &TopologyManager{
		client: cli,
		cfg:    &cfg.Sandbox,
		log:    log.With(logger.Scope("sandbox.topology")),
	}
}

// TopologyName computes the globally unique namespace prefix for a
// user/tag pair. Every container in the topology carries it.
func TopologyName(userID, tag string) string {
	return fmt.Sprintf("%s_sandbox_%s_%s", appLabel, userID, tag)
}

// NetworkName computes the private bridge network name for a user/tag pair
func NetworkName(userID, tag string) string {
	return fmt.Sprintf("%s_net_%s_%s", appLabel, userID, tag)
}

// NodeName computes a managed node's container name within a topology
func NodeName(topologyName string, index int) string {
	return fmt.Sprintf("%s_node%d", topologyName, index)
}

// CPUQuota converts a fractional CPU share into a CFS quota in
// microseconds per period.
func CPUQuota(fraction float64) int64 {
	return int64(fraction * cpuPeriodMicros)
}

// RenderInventory produces the INI inventory enumerating the managed
// nodes by hostname with the SSH credentials the setup script installed.
func RenderInventory(nodeCount int) string {
	var b strings.Builder
	b.WriteString("[managed]\n")
	for i := 1; i <= nodeCount; i++ {
		fmt.Fprintf(&b,
			"node%d ansible_host=node%d ansible_user=ansible ansible_ssh_pass=ansible "+
				"ansible_connection=ssh ansible_ssh_common_args='-o StrictHostKeyChecking=no'\n",
			i, i)
	}
	return b.String()
}

// CreateResult is what Create hands back to the session layer
type CreateResult struct {
	ControllerID string
	TopologyName string
}

// Create provisions a full topology: network, controller, managed nodes,
// node SSH setup, and the controller's inventory file. Any step failure
// tears down everything already created before the error is returned.
func (m *TopologyManager) Create(ctx context.Context, userID, tag string) (*CreateResult, error) {
	topologyName := TopologyName(userID, tag)
	networkName := NetworkName(userID, tag)

	log := m.log.With(slog.String("topology", topologyName))

	if err := m.ensureImage(ctx, m.cfg.ControllerImage); err != nil {
		return nil, err
	}
	if err := m.ensureImage(ctx, m.cfg.NodeImage); err != nil {
		return nil, err
	}

	netResp, err := m.client.NetworkCreate(ctx, networkName, network.CreateOptions{
		Driver: "bridge",
		Labels: map[string]string{
			labelApp:    appLabel,
			labelUserID: userID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create network: %w", err)
	}

	cleanup := func() {
		m.teardown(context.WithoutCancel(ctx), topologyName, netResp.ID)
	}

	controllerID, err := m.createController(ctx, topologyName, networkName, userID)
	if err != nil {
		cleanup()
		return nil, err
	}

	for i := 1; i <= m.cfg.ManagedNodes; i++ {
		if err := m.createManagedNode(ctx, topologyName, networkName, userID, i); err != nil {
			cleanup()
			return nil, err
		}
	}

	// Give sshd on the nodes a moment to accept connections
	select {
	case <-time.After(m.cfg.SetupWait):
	case <-ctx.Done():
		cleanup()
		return nil, ctx.Err()
	}

	inventory := RenderInventory(m.cfg.ManagedNodes)
	if err := m.copyFile(ctx, controllerID, ansibleDir, "inventory.ini", []byte(inventory)); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to write inventory: %w", err)
	}

	log.Info("topology created",
		slog.String("controller_id", controllerID[:12]),
		slog.Int("managed_nodes", m.cfg.ManagedNodes))

	return &CreateResult{
		ControllerID: controllerID,
		TopologyName: topologyName,
	}, nil
}

func (m *TopologyManager) createController(ctx context.Context, topologyName, networkName, userID string) (string, error) {
	containerConfig := &container.Config{
		Image:      m.cfg.ControllerImage,
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: ansibleDir,
		Labels: map[string]string{
			labelApp:    appLabel,
			labelUserID: userID,
			labelType:   typeControlNode,
		},
	}

	hostConfig := &container.HostConfig{
		Resources: container.Resources{
			Memory:    m.cfg.MemoryBytes,
			CPUQuota:  CPUQuota(m.cfg.CPUFraction),
			CPUPeriod: cpuPeriodMicros,
		},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyDisabled},
	}

	networkingConfig := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			networkName: {},
		},
	}

	resp, err := m.client.ContainerCreate(ctx, containerConfig, hostConfig, networkingConfig, nil, topologyName+"_controller")
	if err != nil {
		return "", fmt.Errorf("failed to create controller: %w", err)
	}

	if err := m.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start controller: %w", err)
	}

	return resp.ID, nil
}

func (m *TopologyManager) createManagedNode(ctx context.Context, topologyName, networkName, userID string, index int) error {
	hostname := fmt.Sprintf("node%d", index)

	containerConfig := &container.Config{
		Image:    m.cfg.NodeImage,
		Cmd:      []string{"sleep", "infinity"},
		Hostname: hostname,
		Labels: map[string]string{
			labelApp:    appLabel,
			labelUserID: userID,
			labelType:   typeManagedNode,
			labelParent: topologyName,
		},
	}

	hostConfig := &container.HostConfig{
		Resources: container.Resources{
			Memory: m.cfg.NodeMemoryBytes,
		},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyDisabled},
	}

	networkingConfig := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			networkName: {Aliases: []string{hostname}},
		},
	}

	resp, err := m.client.ContainerCreate(ctx, containerConfig, hostConfig, networkingConfig, nil, NodeName(topologyName, index))
	if err != nil {
		return fmt.Errorf("failed to create node %d: %w", index, err)
	}

	if err := m.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start node %d: %w", index, err)
	}

	if err := m.execSetup(ctx, resp.ID); err != nil {
		return fmt.Errorf("failed to set up node %d: %w", index, err)
	}

	return nil
}

// execSetup runs the SSH/Python bootstrap inside a managed node
func (m *TopologyManager) execSetup(ctx context.Context, containerID string) error {
	execResp, err := m.client.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          []string{"/bin/sh", "-c", nodeSetupScript},
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create setup exec: %w", err)
	}

	attachResp, err := m.client.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return fmt.Errorf("failed to attach to setup exec: %w", err)
	}
	defer attachResp.Close()

	// Drain output so the exec runs to completion
	if _, err := io.Copy(io.Discard, attachResp.Reader); err != nil && err != io.EOF {
		return fmt.Errorf("failed to read setup output: %w", err)
	}

	inspect, err := m.client.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return fmt.Errorf("failed to inspect setup exec: %w", err)
	}
	if inspect.ExitCode != 0 {
		return fmt.Errorf("node setup exited with code %d", inspect.ExitCode)
	}

	return nil
}

// copyFile writes a single file into a container directory via a tar
// stream. Content goes through the runtime API, never a shell, so playbook
// text cannot be interpreted as commands.
func (m *TopologyManager) copyFile(ctx context.Context, containerID, dir, name string, data []byte) error {
	archive, err := tarFile(name, data)
	if err != nil {
		return err
	}
	return m.client.CopyToContainer(ctx, containerID, dir, archive, container.CopyToContainerOptions{})
}

// tarFile wraps one file in an in-memory tar archive
func tarFile(name string, data []byte) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{
		Name: name,
		Mode: 0644,
		Size: int64(len(data)),
	}); err != nil {
		return nil, err
	}
	if _, err := tw.Write(data); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}

// Destroy removes every container belonging to a topology and its network.
// Returns false when nothing matching the name was found.
func (m *TopologyManager) Destroy(ctx context.Context, topologyName string) (bool, error) {
	containers, err := m.client.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", topologyName)),
	})
	if err != nil {
		return false, fmt.Errorf("failed to list topology containers: %w", err)
	}

	found := len(containers) > 0
	for _, c := range containers {
		if err := m.client.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			if !client.IsErrNotFound(err) {
				m.log.Warn("failed to remove container",
					slog.String("container_id", c.ID[:12]),
					logger.Error(err))
			}
		}
	}

	// The network name shares the user/tag suffix with the topology name
	networkName := strings.Replace(topologyName, appLabel+"_sandbox_", appLabel+"_net_", 1)
	if err := m.removeNetworkByName(ctx, networkName); err != nil {
		m.log.Warn("failed to remove network",
			slog.String("network", networkName),
			logger.Error(err))
	}

	if found {
		m.log.Info("topology destroyed", slog.String("topology", topologyName))
	}
	return found, nil
}

// ReapAllLabelled removes every container and network carrying the app
// label. Used after restarts to clear resources with no registry row.
func (m *TopologyManager) ReapAllLabelled(ctx context.Context) (int, error) {
	labelFilter := filters.NewArgs(filters.Arg("label", labelApp+"="+appLabel))

	containers, err := m.client.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: labelFilter,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list labelled containers: %w", err)
	}

	count := 0
	for _, c := range containers {
		if err := m.client.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			if !client.IsErrNotFound(err) {
				m.log.Warn("failed to reap container",
					slog.String("container_id", c.ID[:12]),
					logger.Error(err))
				continue
			}
		}
		count++
	}

	networks, err := m.client.NetworkList(ctx, network.ListOptions{Filters: labelFilter})
	if err != nil {
		return count, fmt.Errorf("failed to list labelled networks: %w", err)
	}
	for _, n := range networks {
		if err := m.client.NetworkRemove(ctx, n.ID); err != nil {
			m.log.Warn("failed to reap network",
				slog.String("network", n.Name),
				logger.Error(err))
		}
	}

	if count > 0 {
		m.log.Info("reaped labelled sandbox resources", slog.Int("containers", count))
	}
	return count, nil
}

// teardown force-removes a partially created topology during Create failure
func (m *TopologyManager) teardown(ctx context.Context, topologyName, networkID string) {
	if _, err := m.Destroy(ctx, topologyName); err != nil {
		m.log.Warn("teardown failed", slog.String("topology", topologyName), logger.Error(err))
	}
	if networkID != "" {
		_ = m.client.NetworkRemove(ctx, networkID)
	}
}

func (m *TopologyManager) removeNetworkByName(ctx context.Context, name string) error {
	networks, err := m.client.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return err
	}
	for _, n := range networks {
		if n.Name != name {
			continue
		}
		if err := m.client.NetworkRemove(ctx, n.ID); err != nil {
			return err
		}
	}
	return nil
}

// ensureImage pulls the image if it is not already present locally
func (m *TopologyManager) ensureImage(ctx context.Context, ref string) error {
	images, err := m.client.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	})
	if err == nil && len(images) > 0 {
		return nil
	}

	reader, err := m.client.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer reader.Close()

	// Pull completes when the status stream is drained
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to read pull status for %s: %w", ref, err)
	}
	return nil
}
