package media

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/watchme/internal/apperror"
	"github.com/sakif/watchme/internal/events"
	"github.com/sakif/watchme/internal/model"
)

// Processor runs the pipeline for one task and records the outcome.
type Processor struct {
	runner    Runner
	videos    StatusStore
	publisher Publisher
	timeout   time.Duration
	logger    *slog.Logger
}

func NewProcessor(runner Runner, videos StatusStore, publisher Publisher, timeout time.Duration, logger *slog.Logger) *Processor {
	return &Processor{
		runner:    runner,
		videos:    videos,
		publisher: publisher,
		timeout:   timeout,
		logger:    logger,
	}
}

// Handle generates the media, marks the video ready or failed and
// publishes the change. The generation error, if any, is returned after
// the failure has been recorded.
func (p *Processor) Handle(ctx context.Context, t Task) error {
	start := time.Now()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	genErr := Generate(ctx, p.runner, t)

	status := model.MediaReady
	if genErr != nil {
		status = model.MediaFailed
		p.logger.Error("media generation failed",
			slog.String("videoID", t.VideoID),
			slog.String("source", t.Source),
			slog.String("error", genErr.Error()),
		)
	}

	// The pipeline context may be spent; the status write gets its own.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := p.videos.SetMediaStatus(writeCtx, t.VideoID, status); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			p.logger.Info("video deleted before media was ready", slog.String("videoID", t.VideoID))
			return nil
		}
		return err
	}
	p.publisher.Publish(events.MediaStatusChanged(t.VideoID, t.OwnerID, status))

	if genErr == nil {
		p.logger.Info("media generated",
			slog.String("videoID", t.VideoID),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return genErr
}
