// Package dockerfault is a fault-only cluster adapter: it drives Docker
// containers standing in for cluster-under-test nodes, using the Docker
// Engine API for process-level faults (kill, pause) and an in-container
// iptables exec for link-level faults (clog). It deliberately implements
// only cluster.FaultOps — the data plane (cluster.Ops) belongs to
// whatever protocol the containers actually speak, which this package
// does not know.
package dockerfault

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	dockerclient "github.com/docker/docker/client"

	"jepsengo/internal/cluster"
	"jepsengo/internal/logging"
)

// LeaderFunc resolves the cluster-under-test's current leader. Docker has
// no notion of application-level leadership, so the adapter is handed one
// by its caller, the same way the refraft Cluster answers it directly
// from raft state.
type LeaderFunc func(ctx context.Context) (cluster.ServerID, error)

// dockerAPI is the narrow slice of the Docker Engine API the adapter
// needs, so tests can substitute a fake instead of a live daemon.
type dockerAPI interface {
	ContainerKill(ctx context.Context, name, signal string) error
	ContainerStart(ctx context.Context, name string, opts container.StartOptions) error
	ContainerPause(ctx context.Context, name string) error
	ContainerUnpause(ctx context.Context, name string) error
	ContainerInspect(ctx context.Context, name string) (container.InspectResponse, error)
	ContainerExecCreate(ctx context.Context, name string, opts container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, opts container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
}

// Adapter implements cluster.FaultOps against a fixed set of named Docker
// containers, one per ServerID.
type Adapter struct {
	cli           dockerAPI
	containerName func(cluster.ServerID) string
	size          int
	leader        LeaderFunc
	logger        *slog.Logger
}

// Config configures an Adapter at construction.
type Config struct {
	// Host is the Docker Engine API endpoint, e.g. "unix:///var/run/docker.sock".
	Host string
	// ContainerName maps a ServerID to its container name. Defaults to
	// fmt.Sprintf("jepsen-node-%d", id).
	ContainerName func(cluster.ServerID) string
	// Size is the fixed cluster size this adapter manages.
	Size int
	// Leader resolves the current leader for LeaderWithoutTerm.
	Leader LeaderFunc
	Logger *slog.Logger
}

// New builds an Adapter from cfg.
func New(cfg Config) (*Adapter, error) {
	cli, err := dockerclient.NewClientWithOpts(
		dockerclient.WithHost(cfg.Host),
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("dockerfault: create docker client: %w", err)
	}
	name := cfg.ContainerName
	if name == nil {
		name = func(id cluster.ServerID) string { return fmt.Sprintf("jepsen-node-%d", id) }
	}
	return &Adapter{
		cli:           cli,
		containerName: name,
		size:          cfg.Size,
		leader:        cfg.Leader,
		logger:        logging.Default(cfg.Logger).With("component", "dockerfault"),
	}, nil
}

func (a *Adapter) Kill(ctx context.Context, servers []cluster.ServerID) error {
	for _, id := range servers {
		a.logger.Info("kill", "server", id)
		if err := a.cli.ContainerKill(ctx, a.containerName(id), "KILL"); err != nil {
			return fmt.Errorf("dockerfault: kill %d: %w", id, err)
		}
	}
	return nil
}

func (a *Adapter) Restart(ctx context.Context, servers []cluster.ServerID) error {
	for _, id := range servers {
		a.logger.Info("restart", "server", id)
		if err := a.cli.ContainerStart(ctx, a.containerName(id), container.StartOptions{}); err != nil {
			return fmt.Errorf("dockerfault: restart %d: %w", id, err)
		}
	}
	return nil
}

func (a *Adapter) Pause(ctx context.Context, servers []cluster.ServerID) error {
	for _, id := range servers {
		a.logger.Info("pause", "server", id)
		if err := a.cli.ContainerPause(ctx, a.containerName(id)); err != nil {
			return fmt.Errorf("dockerfault: pause %d: %w", id, err)
		}
	}
	return nil
}

func (a *Adapter) Resume(ctx context.Context, servers []cluster.ServerID) error {
	for _, id := range servers {
		a.logger.Info("resume", "server", id)
		if err := a.cli.ContainerUnpause(ctx, a.containerName(id)); err != nil {
			return fmt.Errorf("dockerfault: resume %d: %w", id, err)
		}
	}
	return nil
}

// ClogOneWay drops outbound traffic to to's container IP inside from's
// container via an iptables exec, rather than touching the host network,
// so only the from->to direction is clogged.
func (a *Adapter) ClogOneWay(ctx context.Context, from, to cluster.ServerID) error {
	toIP, err := a.containerIP(ctx, a.containerName(to))
	if err != nil {
		return fmt.Errorf("dockerfault: resolve ip for %d: %w", to, err)
	}
	a.logger.Info("clog", "from", from, "to", to, "to-ip", toIP)
	return a.exec(ctx, a.containerName(from), []string{"iptables", "-A", "OUTPUT", "-d", toIP, "-j", "DROP"})
}

// UnclogOneWay reverses ClogOneWay.
func (a *Adapter) UnclogOneWay(ctx context.Context, from, to cluster.ServerID) error {
	toIP, err := a.containerIP(ctx, a.containerName(to))
	if err != nil {
		return fmt.Errorf("dockerfault: resolve ip for %d: %w", to, err)
	}
	a.logger.Info("unclog", "from", from, "to", to, "to-ip", toIP)
	return a.exec(ctx, a.containerName(from), []string{"iptables", "-D", "OUTPUT", "-d", toIP, "-j", "DROP"})
}

func (a *Adapter) LeaderWithoutTerm(ctx context.Context) (cluster.ServerID, error) {
	if a.leader == nil {
		return 0, fmt.Errorf("dockerfault: no LeaderFunc configured")
	}
	return a.leader(ctx)
}

func (a *Adapter) ClusterSize(ctx context.Context) (int, error) {
	return a.size, nil
}

func (a *Adapter) containerIP(ctx context.Context, name string) (string, error) {
	info, err := a.cli.ContainerInspect(ctx, name)
	if err != nil {
		return "", fmt.Errorf("inspect %s: %w", name, err)
	}
	if info.NetworkSettings == nil || info.NetworkSettings.IPAddress == "" {
		return "", fmt.Errorf("container %s has no ip address", name)
	}
	return info.NetworkSettings.IPAddress, nil
}

func (a *Adapter) exec(ctx context.Context, containerName string, cmd []string) error {
	created, err := a.cli.ContainerExecCreate(ctx, containerName, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return fmt.Errorf("exec create in %s: %w", containerName, err)
	}

	attached, err := a.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return fmt.Errorf("exec attach in %s: %w", containerName, err)
	}
	defer attached.Close()

	var out bytes.Buffer
	_, _ = out.ReadFrom(attached.Reader)

	inspect, err := a.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return fmt.Errorf("exec inspect in %s: %w", containerName, err)
	}
	if inspect.ExitCode != 0 {
		return fmt.Errorf("exec %v in %s exited %d: %s", cmd, containerName, inspect.ExitCode, out.String())
	}
	return nil
}

var _ cluster.FaultOps = (*Adapter)(nil)
