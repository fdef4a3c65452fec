package sandbox

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// DockerConfig holds Docker provider configuration
type DockerConfig struct {
	Image    string
	MemoryMB int64
	CPULimit float64
	PidsMax  int64
}

// DockerProvider executes runs in one-shot Docker containers. Every run
// gets a fresh container whose only mounted volume is the workspace;
// networking is disabled and memory/CPU are capped.
type DockerProvider struct {
	client *client.Client
	cfg    DockerConfig
}

// NewDockerProvider creates a Docker provider and verifies the daemon is
// reachable.
func NewDockerProvider(cfg DockerConfig) (*DockerProvider, error) {
	if cfg.Image == "" {
		cfg.Image = "looplab-sandbox:latest"
	}
	if cfg.MemoryMB == 0 {
		cfg.MemoryMB = 256
	}
	if cfg.CPULimit == 0 {
		cfg.CPULimit = 1.0
	}
	if cfg.PidsMax == 0 {
		cfg.PidsMax = 128
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker not reachable: %w", err)
	}

	return &DockerProvider{client: cli, cfg: cfg}, nil
}

// Execute runs the command in a fresh container and tears the container
// down before returning, on every path.
func (p *DockerProvider) Execute(ctx context.Context, req ExecRequest) (*ExecResult, error) {
	if err := p.ensureImage(ctx, p.cfg.Image); err != nil {
		return nil, fmt.Errorf("ensure image: %w", err)
	}

	containerCfg := &container.Config{
		Image:           p.cfg.Image,
		Cmd:             req.Command,
		WorkingDir:      "/workspace",
		NetworkDisabled: true,
		Tty:             false,
		Labels: map[string]string{
			"looplab.run": "true",
		},
	}

	pidsMax := p.cfg.PidsMax
	hostCfg := &container.HostConfig{
		Binds: []string{req.WorkspaceDir + ":/workspace"},
		Resources: container.Resources{
			Memory:    p.cfg.MemoryMB * 1024 * 1024,
			NanoCPUs:  int64(p.cfg.CPULimit * 1e9),
			PidsLimit: &pidsMax,
		},
	}

	resp, err := p.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	containerID := resp.ID
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = p.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true})
	}()

	start := time.Now()
	if err := p.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	exitCode, timedOut, err := p.waitBounded(ctx, containerID, req.Timeout)
	if err != nil {
		return nil, err
	}
	duration := time.Since(start)

	stdout, stderr, err := p.collectLogs(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("collect logs: %w", err)
	}

	return &ExecResult{
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		TimedOut: timedOut,
		Duration: duration,
	}, nil
}

// waitBounded waits for the container to exit, force-killing the whole
// container (and with it the process tree) when the wall clock expires.
func (p *DockerProvider) waitBounded(ctx context.Context, containerID string, timeout time.Duration) (exitCode int, timedOut bool, err error) {
	waitCh, errCh := p.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case body := <-waitCh:
		return int(body.StatusCode), false, nil

	case waitErr := <-errCh:
		return 0, false, fmt.Errorf("wait container: %w", waitErr)

	case <-timer.C:
		p.kill(containerID)
		return TimeoutExitCode, true, nil

	case <-ctx.Done():
		p.kill(containerID)
		return 0, false, ctx.Err()
	}
}

func (p *DockerProvider) kill(containerID string) {
	killCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = p.client.ContainerKill(killCtx, containerID, "SIGKILL")
}

func (p *DockerProvider) collectLogs(ctx context.Context, containerID string) (stdout, stderr string, err error) {
	logsCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	reader, err := p.client.ContainerLogs(logsCtx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", "", err
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", "", err
	}

	stdout, stderr = demuxOutput(raw)
	return stdout, stderr, nil
}

// Close closes the Docker client.
func (p *DockerProvider) Close() error {
	return p.client.Close()
}

func (p *DockerProvider) ensureImage(ctx context.Context, img string) error {
	_, err := p.client.ImageInspect(ctx, img)
	if err == nil {
		return nil // Already present
	}

	reader, err := p.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", img, err)
	}
	defer reader.Close()
	// Drain the reader to complete the pull
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

// demuxOutput separates Docker multiplexed stdout/stderr streams.
// Docker stream protocol uses 8-byte headers: [type][0][0][0][size1][size2][size3][size4]
// type: 1=stdout, 2=stderr
func demuxOutput(data []byte) (stdout, stderr string) {
	var outBuf, errBuf strings.Builder

	for len(data) >= 8 {
		streamType := data[0]
		size := int(data[4])<<24 | int(data[5])<<16 | int(data[6])<<8 | int(data[7])
		data = data[8:]

		if size > len(data) {
			size = len(data)
		}

		chunk := string(data[:size])
		data = data[size:]

		switch streamType {
		case 1:
			outBuf.WriteString(chunk)
		case 2:
			errBuf.WriteString(chunk)
		}
	}

	// If no headers were found, treat entire output as stdout
	if outBuf.Len() == 0 && errBuf.Len() == 0 && len(data) > 0 {
		return string(data), ""
	}

	return outBuf.String(), errBuf.String()
}
