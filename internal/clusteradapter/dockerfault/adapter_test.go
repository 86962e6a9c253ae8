package dockerfault

import (
	"context"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"

	"jepsengo/internal/cluster"
)

type fakeDockerAPI struct {
	killed    []string
	started   []string
	paused    []string
	unpaused  []string
	execCmds  [][]string
	ips       map[string]string
	execExit  int
}

func (f *fakeDockerAPI) ContainerKill(ctx context.Context, name, signal string) error {
	f.killed = append(f.killed, name)
	return nil
}

func (f *fakeDockerAPI) ContainerStart(ctx context.Context, name string, opts container.StartOptions) error {
	f.started = append(f.started, name)
	return nil
}

func (f *fakeDockerAPI) ContainerPause(ctx context.Context, name string) error {
	f.paused = append(f.paused, name)
	return nil
}

func (f *fakeDockerAPI) ContainerUnpause(ctx context.Context, name string) error {
	f.unpaused = append(f.unpaused, name)
	return nil
}

func (f *fakeDockerAPI) ContainerInspect(ctx context.Context, name string) (container.InspectResponse, error) {
	return container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{},
		NetworkSettings:   nil,
	}, nil
}

func (f *fakeDockerAPI) ContainerExecCreate(ctx context.Context, name string, opts container.ExecOptions) (container.ExecCreateResponse, error) {
	f.execCmds = append(f.execCmds, opts.Cmd)
	return container.ExecCreateResponse{ID: "exec-1"}, nil
}

func (f *fakeDockerAPI) ContainerExecAttach(ctx context.Context, execID string, opts container.ExecAttachOptions) (types.HijackedResponse, error) {
	return types.HijackedResponse{}, nil
}

func (f *fakeDockerAPI) ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error) {
	return container.ExecInspect{ExitCode: f.execExit}, nil
}

func newTestAdapter(fake *fakeDockerAPI) *Adapter {
	return &Adapter{
		cli:           fake,
		containerName: func(id cluster.ServerID) string { return "node" },
		size:          3,
		leader:        func(ctx context.Context) (cluster.ServerID, error) { return 1, nil },
	}
}

func TestKillAndRestartCallDockerAPI(t *testing.T) {
	fake := &fakeDockerAPI{}
	a := newTestAdapter(fake)

	if err := a.Kill(context.Background(), []cluster.ServerID{0, 1}); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if len(fake.killed) != 2 {
		t.Fatalf("killed = %v, want 2 entries", fake.killed)
	}

	if err := a.Restart(context.Background(), []cluster.ServerID{0}); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if len(fake.started) != 1 {
		t.Fatalf("started = %v, want 1 entry", fake.started)
	}
}

func TestPauseAndResume(t *testing.T) {
	fake := &fakeDockerAPI{}
	a := newTestAdapter(fake)

	if err := a.Pause(context.Background(), []cluster.ServerID{2}); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := a.Resume(context.Background(), []cluster.ServerID{2}); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if len(fake.paused) != 1 || len(fake.unpaused) != 1 {
		t.Fatalf("paused=%v unpaused=%v, want 1 each", fake.paused, fake.unpaused)
	}
}

func TestLeaderWithoutTermDelegatesToLeaderFunc(t *testing.T) {
	a := newTestAdapter(&fakeDockerAPI{})
	leader, err := a.LeaderWithoutTerm(context.Background())
	if err != nil {
		t.Fatalf("LeaderWithoutTerm: %v", err)
	}
	if leader != 1 {
		t.Errorf("leader = %d, want 1", leader)
	}
}

func TestLeaderWithoutTermErrorsWithoutLeaderFunc(t *testing.T) {
	a := newTestAdapter(&fakeDockerAPI{})
	a.leader = nil
	if _, err := a.LeaderWithoutTerm(context.Background()); err == nil {
		t.Fatal("expected error when no LeaderFunc is configured")
	}
}

func TestClogOneWayFailsWithoutContainerIP(t *testing.T) {
	fake := &fakeDockerAPI{}
	a := newTestAdapter(fake)
	if err := a.ClogOneWay(context.Background(), 0, 1); err == nil {
		t.Fatal("expected error resolving ip from an inspect response with no network settings")
	}
}
