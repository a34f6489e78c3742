package media

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sakif/watchme/internal/events"
	"github.com/sakif/watchme/internal/model"
)

// PendingStore is what the sweeper needs from the video repository.
type PendingStore interface {
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]model.Video, error)
	SetMediaStatus(ctx context.Context, id string, status model.MediaStatus) error
}

// Sweeper marks videos failed when their media has been pending for longer
// than staleAfter. Tasks lost to a restart of the in-process pool end up
// here.
type Sweeper struct {
	videos     PendingStore
	publisher  Publisher
	staleAfter time.Duration
	logger     *slog.Logger
	cron       *cron.Cron
	now        func() time.Time
}

func NewSweeper(videos PendingStore, publisher Publisher, staleAfter time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		videos:     videos,
		publisher:  publisher,
		staleAfter: staleAfter,
		logger:     logger,
		cron:       cron.New(cron.WithSeconds()),
		now:        time.Now,
	}
}

// Start schedules the sweep with a six-field cron spec
// (seconds first, e.g. "0 */5 * * * *").
func (s *Sweeper) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("media sweep failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("media: scheduling sweep %q: %w", spec, err)
	}
	s.cron.Start()
	s.logger.Info("media sweep scheduled", slog.String("spec", spec), slog.Duration("staleAfter", s.staleAfter))
	return nil
}

// Stop cancels future sweeps and waits for a running one to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs once and returns how many videos were marked failed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	stale, err := s.videos.ListPendingBefore(ctx, s.now().Add(-s.staleAfter))
	if err != nil {
		return 0, err
	}

	n := 0
	for _, v := range stale {
		if err := s.videos.SetMediaStatus(ctx, v.ID, model.MediaFailed); err != nil {
			s.logger.Warn("could not fail stale video", slog.String("videoID", v.ID), slog.String("error", err.Error()))
			continue
		}
		s.publisher.Publish(events.MediaStatusChanged(v.ID, v.OwnerID, model.MediaFailed))
		n++
	}

	if n > 0 {
		s.logger.Info("stale media marked failed", slog.Int("count", n))
	}
	return n, nil
}
