package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sakif/watchme/internal/apperror"
	"github.com/sakif/watchme/internal/model"
)

var playlistsNewestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "id", Value: -1}}

func (s *Store) findPlaylists(ctx context.Context, match bson.M) ([]model.Playlist, error) {
	records, err := s.playlists.find(ctx, match, playlistsNewestFirst)
	if err != nil {
		return nil, err
	}
	return toModels(records, (*playlistRecord).toModel), nil
}

// CreatePlaylist appends the playlist, seed entries included, to its
// owner's document.
func (s *Store) CreatePlaylist(ctx context.Context, playlist *model.Playlist) error {
	playlist.ID = xid.New().String()
	if playlist.CreatedAt.IsZero() {
		playlist.CreatedAt = time.Now().UTC()
	}
	if playlist.Videos == nil {
		playlist.Videos = []model.PlaylistEntry{}
	}

	seen := make(map[string]bool, len(playlist.Videos))
	for _, e := range playlist.Videos {
		if seen[e.ID] {
			return apperror.Conflict("video already exists in playlist")
		}
		seen[e.ID] = true
	}

	return s.playlists.push(ctx, playlist.OwnerID, playlistDoc{
		ID:        playlist.ID,
		Name:      playlist.Name,
		IsPrivate: playlist.IsPrivate,
		Videos:    playlist.Videos,
		CreatedAt: playlist.CreatedAt.UTC(),
	})
}

func (s *Store) GetPlaylist(ctx context.Context, id string) (*model.Playlist, error) {
	r, err := s.playlists.findOne(ctx, "playlist", id)
	if err != nil {
		return nil, err
	}
	p := r.toModel()
	return &p, nil
}

func (s *Store) ListPlaylistsByOwner(ctx context.Context, ownerID string) ([]model.Playlist, error) {
	return s.findPlaylists(ctx, bson.M{"_id": ownerID})
}

func (s *Store) ListPublicPlaylists(ctx context.Context) ([]model.Playlist, error) {
	return s.findPlaylists(ctx, bson.M{"playlists.isPrivate": false})
}

func (s *Store) UpdatePlaylist(ctx context.Context, id string, patch model.PlaylistPatch) error {
	set := bson.M{}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.IsPrivate != nil {
		set["isPrivate"] = *patch.IsPrivate
	}
	if len(set) == 0 {
		_, err := s.GetPlaylist(ctx, id)
		return err
	}
	return s.playlists.update(ctx, "playlist", id, "$set", set)
}

// AddPlaylistEntry pushes the entry only when the playlist does not hold
// the video yet, in a single update.
func (s *Store) AddPlaylistEntry(ctx context.Context, playlistID string, entry model.PlaylistEntry) error {
	res, err := s.accounts.UpdateOne(ctx,
		bson.M{"playlists": bson.M{"$elemMatch": bson.M{
			"id":        playlistID,
			"videos.id": bson.M{"$ne": entry.ID},
		}}},
		bson.M{"$push": bson.M{"playlists.$.videos": entry}},
	)
	if err != nil {
		return fmt.Errorf("mongo: adding video %s to playlist %s: %w", entry.ID, playlistID, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	if _, err := s.GetPlaylist(ctx, playlistID); err != nil {
		return err
	}
	return apperror.Conflict("video already exists in playlist")
}

func (s *Store) RemovePlaylistEntry(ctx context.Context, playlistID, videoID string) error {
	res, err := s.accounts.UpdateOne(ctx,
		bson.M{"playlists": bson.M{"$elemMatch": bson.M{
			"id":        playlistID,
			"videos.id": videoID,
		}}},
		bson.M{"$pull": bson.M{"playlists.$.videos": bson.M{"id": videoID}}},
	)
	if err != nil {
		return fmt.Errorf("mongo: removing video %s from playlist %s: %w", videoID, playlistID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("playlist video", videoID)
	}
	return nil
}

func (s *Store) DeletePlaylist(ctx context.Context, id string) error {
	return s.playlists.pull(ctx, "playlist", id)
}
