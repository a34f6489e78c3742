package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/watchme/internal/apperror"
	"github.com/sakif/watchme/internal/model"
	"github.com/sakif/watchme/internal/policy"
	"github.com/sakif/watchme/internal/repository"
)

const MaxPlaylistNameLength = 100

// PlaylistService manages playlists of video snapshots.
//
// VISIBILITY:
// A private playlist does not exist for anyone but its owner and
// administrators: reads and writes both answer NotFound, so its id leaks
// nothing. Visible playlists can be changed by the same two parties.
type PlaylistService struct {
	playlists repository.PlaylistRepository
	videos    VideoReader
	logger    *slog.Logger
	now       func() time.Time
}

func NewPlaylistService(playlists repository.PlaylistRepository, videos VideoReader, logger *slog.Logger) *PlaylistService {
	return &PlaylistService{
		playlists: playlists,
		videos:    videos,
		logger:    logger,
		now:       time.Now,
	}
}

func validatePlaylistName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.ValidationFailed("name", "playlist name is required")
	}
	if len(name) > MaxPlaylistNameLength {
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("playlist name must be %d characters or fewer", MaxPlaylistNameLength))
	}
	return name, nil
}

func (s *PlaylistService) ListPublic(ctx context.Context) ([]model.Playlist, error) {
	return s.playlists.ListPublicPlaylists(ctx)
}

func (s *PlaylistService) Mine(ctx context.Context, caller model.Identity) ([]model.Playlist, error) {
	if caller.Anonymous() {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	return s.playlists.ListPlaylistsByOwner(ctx, caller.AccountID)
}

func (s *PlaylistService) Get(ctx context.Context, caller model.Identity, id string) (*model.Playlist, error) {
	p, err := s.playlists.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanView(caller, p.OwnerID, p.IsPrivate) {
		return nil, apperror.NotFound("playlist", id)
	}
	return p, nil
}

func (s *PlaylistService) modifiable(ctx context.Context, caller model.Identity, id string) (*model.Playlist, error) {
	p, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := policy.RequireOwner(caller, p.OwnerID, "playlist"); err != nil {
		return nil, err
	}
	return p, nil
}

// visibleVideo loads a video the caller may put in a playlist.
func (s *PlaylistService) visibleVideo(ctx context.Context, caller model.Identity, id string) (*model.Video, error) {
	v, err := s.videos.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanView(caller, v.OwnerID, !v.IsPublic()) {
		return nil, apperror.NotFound("video", id)
	}
	return v, nil
}

// Create makes an empty playlist. Playlists are private unless isPrivate
// says otherwise.
func (s *PlaylistService) Create(ctx context.Context, caller model.Identity, name string, isPrivate *bool) (*model.Playlist, error) {
	if caller.Anonymous() {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	name, err := validatePlaylistName(name)
	if err != nil {
		return nil, err
	}

	p := &model.Playlist{
		OwnerID:   caller.AccountID,
		Name:      name,
		IsPrivate: isPrivate == nil || *isPrivate,
		Videos:    []model.PlaylistEntry{},
		Author:    caller.Username,
	}
	if err := s.create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Auto creates a private playlist named "playlist-<username>-<unix ms>"
// holding one video.
func (s *PlaylistService) Auto(ctx context.Context, caller model.Identity, videoID string) (*model.Playlist, error) {
	if caller.Anonymous() {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	v, err := s.visibleVideo(ctx, caller, videoID)
	if err != nil {
		return nil, err
	}

	p := &model.Playlist{
		OwnerID:   caller.AccountID,
		Name:      fmt.Sprintf("playlist-%s-%d", caller.Username, s.now().UnixMilli()),
		IsPrivate: true,
		Videos:    []model.PlaylistEntry{model.SnapshotOf(v)},
		Author:    caller.Username,
	}
	if err := s.create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PlaylistService) create(ctx context.Context, p *model.Playlist) error {
	if err := s.playlists.CreatePlaylist(ctx, p); err != nil {
		return fmt.Errorf("service/playlist: creating %q: %w", p.Name, err)
	}
	s.logger.Info("playlist created", slog.String("playlistID", p.ID), slog.Int("videos", len(p.Videos)))
	return nil
}

// AddVideo appends a snapshot of the video. A video already present is a
// Conflict.
func (s *PlaylistService) AddVideo(ctx context.Context, caller model.Identity, id, videoID string) (*model.Playlist, error) {
	p, err := s.modifiable(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if p.Contains(videoID) {
		return nil, apperror.Conflict("video already exists in playlist")
	}
	v, err := s.visibleVideo(ctx, caller, videoID)
	if err != nil {
		return nil, err
	}

	entry := model.SnapshotOf(v)
	if err := s.playlists.AddPlaylistEntry(ctx, id, entry); err != nil {
		return nil, fmt.Errorf("service/playlist: adding %s to %s: %w", videoID, id, err)
	}
	p.Videos = append(p.Videos, entry)
	return p, nil
}

// RemoveVideo takes a video out. It must be in the playlist.
func (s *PlaylistService) RemoveVideo(ctx context.Context, caller model.Identity, id, videoID string) (*model.Playlist, error) {
	p, err := s.modifiable(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.playlists.RemovePlaylistEntry(ctx, id, videoID); err != nil {
		return nil, fmt.Errorf("service/playlist: removing %s from %s: %w", videoID, id, err)
	}

	kept := make([]model.PlaylistEntry, 0, len(p.Videos))
	for _, e := range p.Videos {
		if e.ID != videoID {
			kept = append(kept, e)
		}
	}
	p.Videos = kept
	return p, nil
}

// Update renames the playlist or changes its privacy.
func (s *PlaylistService) Update(ctx context.Context, caller model.Identity, id string, patch model.PlaylistPatch) (*model.Playlist, error) {
	if patch.Name == nil && patch.IsPrivate == nil {
		return nil, apperror.ValidationFailed("playlist", "nothing to update")
	}
	if patch.Name != nil {
		name, err := validatePlaylistName(*patch.Name)
		if err != nil {
			return nil, err
		}
		patch.Name = &name
	}

	p, err := s.modifiable(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.playlists.UpdatePlaylist(ctx, id, patch); err != nil {
		return nil, fmt.Errorf("service/playlist: updating %s: %w", id, err)
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.IsPrivate != nil {
		p.IsPrivate = *patch.IsPrivate
	}
	return p, nil
}

func (s *PlaylistService) Delete(ctx context.Context, caller model.Identity, id string) error {
	if _, err := s.modifiable(ctx, caller, id); err != nil {
		return err
	}
	if err := s.playlists.DeletePlaylist(ctx, id); err != nil {
		return fmt.Errorf("service/playlist: deleting %s: %w", id, err)
	}
	s.logger.Info("playlist deleted", slog.String("playlistID", id), slog.String("by", caller.AccountID))
	return nil
}
