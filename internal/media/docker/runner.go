// Package docker runs ffmpeg and ffprobe inside pre-warmed containers that
// share the upload directory with the host.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/watchme/internal/media"
)

// exitTimeout mirrors the exit status of coreutils timeout(1).
const exitTimeout = 124

var _ media.Runner = (*Runner)(nil)

// Runner implements media.Runner with docker exec.
type Runner struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *Pool
}

// New connects to the docker daemon, pulls the image and starts the pool.
func New(cfg Config, logger *slog.Logger) (*Runner, error) {
	dir, err := filepath.Abs(cfg.MediaDir)
	if err != nil {
		return nil, fmt.Errorf("resolving media dir: %w", err)
	}
	cfg.MediaDir = dir

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	logger.Info("ensuring docker image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// Drain to block until the pull completes.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	logger.Info("docker image is ready")

	r := &Runner{
		cli:    cli,
		config: cfg,
		logger: logger,
		pool:   NewPool(cli, cfg, logger),
	}
	r.pool.Start()

	return r, nil
}

// Close stops the pool and the docker client.
func (r *Runner) Close() error {
	r.pool.Stop()
	return r.cli.Close()
}

// Run executes cmd in a fresh container, which is removed afterwards.
func (r *Runner) Run(ctx context.Context, cmd media.Command) (*media.Result, error) {
	start := time.Now()

	containerID, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container from pool: %w", err)
	}
	defer r.pool.removeContainer(containerID)

	execCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	execResp, err := r.cli.ContainerExecCreate(execCtx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		WorkingDir:   mediaMount,
		Cmd:          append([]string{cmd.Name}, cmd.Args...),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attachResp, err := r.cli.ContainerExecAttach(execCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan struct{})
	go func() {
		_, _ = stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		close(done)
	}()

	var exitCode int
	select {
	case <-done:
		inspect, err := r.cli.ContainerExecInspect(ctx, execResp.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect exec: %w", err)
		}
		exitCode = inspect.ExitCode
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Closing the hijacked connection unblocks StdCopy.
		attachResp.Close()
		<-done
		exitCode = exitTimeout
		stderr.WriteString("\n" + cmd.Name + " timed out\n")
	}

	r.logger.Debug("media command finished",
		slog.String("cmd", cmd.String()),
		slog.Int("exitCode", exitCode),
		slog.Duration("duration", time.Since(start)),
	)

	return &media.Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Duration: time.Since(start),
	}, nil
}
