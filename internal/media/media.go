// Package media generates the thumbnail and hover preview of uploaded
// videos.
//
// PIPELINE:
//
//	upload accepted → Task dispatched (worker pool or asynq)
//	  → ffprobe duration → ffmpeg thumbnail (.png) → ffmpeg preview (.webm)
//	  → video media status ready|failed → media.status event
//
// Commands run through a Runner so the same pipeline works with binaries
// on the host or inside a pool of ffmpeg containers. Every file name a
// command sees is relative to the upload directory.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/watchme/internal/events"
	"github.com/sakif/watchme/internal/model"
)

// Task is one media generation job. File names are relative to the
// upload directory.
type Task struct {
	VideoID string `json:"videoId"`
	OwnerID string `json:"ownerId"`
	Source  string `json:"source"`
	Thumb   string `json:"thumb"`
	Preview string `json:"preview"`
}

// Command is a program invocation inside the upload directory.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is what a finished command produced.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes commands. A non-zero exit is reported in Result, not
// as an error; the error is for failing to run at all.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Dispatcher accepts tasks for asynchronous processing.
type Dispatcher interface {
	Dispatch(ctx context.Context, t Task) error
	Close() error
}

// Handler processes one task synchronously.
type Handler interface {
	Handle(ctx context.Context, t Task) error
}

// StatusStore records the outcome on the video.
type StatusStore interface {
	SetMediaStatus(ctx context.Context, id string, status model.MediaStatus) error
}

// Publisher receives status change events.
type Publisher interface {
	Publish(ev events.Event)
}

// ErrDispatcherClosed is returned by Dispatch after Close.
var ErrDispatcherClosed = errors.New("media: dispatcher closed")

// ExitError is a command that ran and failed.
type ExitError struct {
	Cmd      string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("media: %s exited with %d: %s", e.Cmd, e.ExitCode, lastLine(e.Stderr))
}

// run executes cmd and turns a non-zero exit into an *ExitError.
func run(ctx context.Context, r Runner, cmd Command) (*Result, error) {
	res, err := r.Run(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("media: running %s: %w", cmd.Name, err)
	}
	if res.ExitCode != 0 {
		return res, &ExitError{Cmd: cmd.Name, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return res, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
