package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/watchme/internal/apperror"
	"github.com/sakif/watchme/internal/model"
	"github.com/sakif/watchme/internal/repository"
)

var _ repository.PlaylistRepository = (*DB)(nil)

const playlistSelect = `
	SELECT p.id, p.owner_id, p.name, p.is_private, p.created_at, a.username
	FROM playlists p
	JOIN accounts a ON a.id = p.owner_id`

// queryPlaylists loads the playlist rows first and their entries second,
// so only one result set is open on the connection at a time.
func (db *DB) queryPlaylists(ctx context.Context, what, query string, args ...any) ([]model.Playlist, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", what, err)
	}

	playlists := []model.Playlist{}
	for rows.Next() {
		var p model.Playlist
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.IsPrivate, &p.CreatedAt, &p.Author); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning playlist row: %w", err)
		}
		p.Videos = []model.PlaylistEntry{}
		playlists = append(playlists, p)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("sqlite: iterating playlists: %w", err)
	}

	if len(playlists) == 0 {
		return playlists, nil
	}
	if err := db.loadEntries(ctx, playlists); err != nil {
		return nil, err
	}
	return playlists, nil
}

func (db *DB) loadEntries(ctx context.Context, playlists []model.Playlist) error {
	index := make(map[string]int, len(playlists))
	ids := make([]any, 0, len(playlists))
	for i, p := range playlists {
		index[p.ID] = i
		ids = append(ids, p.ID)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT playlist_id, video_id, title, author, description, thumb, cover
		 FROM playlist_entries
		 WHERE playlist_id IN (`+placeholders(len(ids))+`)
		 ORDER BY playlist_id, position`, ids...)
	if err != nil {
		return fmt.Errorf("sqlite: loading playlist entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			playlistID string
			e          model.PlaylistEntry
		)
		if err := rows.Scan(&playlistID, &e.ID, &e.Title, &e.Author, &e.Desc, &e.Thumb, &e.Cover); err != nil {
			return fmt.Errorf("sqlite: scanning playlist entry: %w", err)
		}
		i := index[playlistID]
		playlists[i].Videos = append(playlists[i].Videos, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating playlist entries: %w", err)
	}
	return nil
}

// CreatePlaylist inserts the playlist together with any seed entries.
func (db *DB) CreatePlaylist(ctx context.Context, playlist *model.Playlist) error {
	playlist.ID = xid.New().String()
	if playlist.CreatedAt.IsZero() {
		playlist.CreatedAt = time.Now().UTC()
	}
	if playlist.Videos == nil {
		playlist.Videos = []model.PlaylistEntry{}
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO playlists (id, owner_id, name, is_private, created_at) VALUES (?, ?, ?, ?, ?)`,
		playlist.ID, playlist.OwnerID, playlist.Name, playlist.IsPrivate, playlist.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating playlist %q: %w", playlist.Name, err)
	}

	for pos, e := range playlist.Videos {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO playlist_entries (playlist_id, video_id, position, title, author, description, thumb, cover)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			playlist.ID, e.ID, pos, e.Title, e.Author, e.Desc, e.Thumb, e.Cover,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict("video already exists in playlist")
			}
			return fmt.Errorf("sqlite: seeding playlist %s: %w", playlist.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing playlist %s: %w", playlist.ID, err)
	}
	return nil
}

func (db *DB) GetPlaylist(ctx context.Context, id string) (*model.Playlist, error) {
	playlists, err := db.queryPlaylists(ctx, "getting playlist "+id, playlistSelect+` WHERE p.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(playlists) == 0 {
		return nil, apperror.NotFound("playlist", id)
	}
	return &playlists[0], nil
}

func (db *DB) ListPlaylistsByOwner(ctx context.Context, ownerID string) ([]model.Playlist, error) {
	return db.queryPlaylists(ctx, "listing playlists of "+ownerID,
		playlistSelect+` WHERE p.owner_id = ? ORDER BY p.created_at DESC, p.id DESC`, ownerID)
}

func (db *DB) ListPublicPlaylists(ctx context.Context) ([]model.Playlist, error) {
	return db.queryPlaylists(ctx, "listing public playlists",
		playlistSelect+` WHERE p.is_private = 0 ORDER BY p.created_at DESC, p.id DESC`)
}

func (db *DB) UpdatePlaylist(ctx context.Context, id string, patch model.PlaylistPatch) error {
	var (
		sets []string
		args []any
	)
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.IsPrivate != nil {
		sets = append(sets, "is_private = ?")
		args = append(args, *patch.IsPrivate)
	}
	if len(sets) == 0 {
		_, err := db.GetPlaylist(ctx, id)
		return err
	}

	args = append(args, id)
	err := db.execOne(ctx, apperror.NotFound("playlist", id),
		`UPDATE playlists SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("sqlite: updating playlist %s: %w", id, err)
	}
	return err
}

func (db *DB) AddPlaylistEntry(ctx context.Context, playlistID string, entry model.PlaylistEntry) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM playlists WHERE id = ?)`, playlistID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("sqlite: checking playlist %s: %w", playlistID, err)
	}
	if !exists {
		return apperror.NotFound("playlist", playlistID)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO playlist_entries (playlist_id, video_id, position, title, author, description, thumb, cover)
		 SELECT ?, ?, COALESCE(MAX(position) + 1, 0), ?, ?, ?, ?, ?
		 FROM playlist_entries WHERE playlist_id = ?`,
		playlistID, entry.ID, entry.Title, entry.Author, entry.Desc, entry.Thumb, entry.Cover, playlistID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("video already exists in playlist")
		}
		return fmt.Errorf("sqlite: adding video %s to playlist %s: %w", entry.ID, playlistID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing playlist entry: %w", err)
	}
	return nil
}

func (db *DB) RemovePlaylistEntry(ctx context.Context, playlistID, videoID string) error {
	err := db.execOne(ctx, apperror.NotFound("playlist video", videoID),
		`DELETE FROM playlist_entries WHERE playlist_id = ? AND video_id = ?`, playlistID, videoID)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("sqlite: removing video %s from playlist %s: %w", videoID, playlistID, err)
	}
	return err
}

func (db *DB) DeletePlaylist(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_entries WHERE playlist_id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting entries of playlist %s: %w", id, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting playlist %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("playlist", id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing playlist delete: %w", err)
	}
	return nil
}
