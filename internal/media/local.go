package media

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// LocalRunner runs ffmpeg and ffprobe installed on the host, with the
// upload directory as working directory.
type LocalRunner struct {
	Dir string
}

func NewLocalRunner(dir string) *LocalRunner {
	return &LocalRunner{Dir: dir}
}

func (l *LocalRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	start := time.Now()

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = l.Dir
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr) && ctx.Err() == nil:
		res.ExitCode = exitErr.ExitCode()
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		return nil, err
	}
	return res, nil
}
