package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/watchme/internal/apperror"
	"github.com/sakif/watchme/internal/match"
	"github.com/sakif/watchme/internal/model"
	"github.com/sakif/watchme/internal/repository"
)

var _ repository.VideoRepository = (*DB)(nil)

const videoSelect = `
	SELECT v.id, v.owner_id, v.title, v.description, v.tags, v.path, v.thumb,
	       v.cover, v.visits, v.stat, v.media_status, v.upload_date,
	       a.username, a.avatar_url
	FROM videos v
	JOIN accounts a ON a.id = v.owner_id`

func scanVideo(row interface{ Scan(...any) error }) (*model.Video, error) {
	var (
		v      model.Video
		tags   string
		status string
	)
	err := row.Scan(
		&v.ID, &v.OwnerID, &v.Title, &v.Desc, &tags, &v.Path, &v.Thumb,
		&v.Cover, &v.Visits, &v.Stat, &status, &v.UploadDate,
		&v.Author, &v.AuthorAvatar,
	)
	if err != nil {
		return nil, err
	}
	v.MediaStatus = model.MediaStatus(status)
	if err := json.Unmarshal([]byte(tags), &v.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags of video %s: %w", v.ID, err)
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	return &v, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (db *DB) queryVideos(ctx context.Context, what, query string, args ...any) ([]model.Video, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", what, err)
	}
	defer rows.Close()

	videos := []model.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning video row: %w", err)
		}
		videos = append(videos, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating videos: %w", err)
	}

	return videos, nil
}

// CreateVideo inserts the video. ID is assigned here; UploadDate and
// MediaStatus default to now and pending.
func (db *DB) CreateVideo(ctx context.Context, video *model.Video) error {
	video.ID = xid.New().String()
	if video.UploadDate.IsZero() {
		video.UploadDate = time.Now().UTC()
	}
	if video.MediaStatus == "" {
		video.MediaStatus = model.MediaPending
	}

	tags, err := encodeTags(video.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding tags: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO videos (id, owner_id, title, description, tags, path, thumb, cover,
		                     visits, stat, media_status, upload_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		video.ID, video.OwnerID, video.Title, video.Desc, tags, video.Path, video.Thumb,
		video.Cover, video.Visits, video.Stat, string(video.MediaStatus), video.UploadDate.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating video %q: %w", video.Title, err)
	}

	return nil
}

func (db *DB) GetVideo(ctx context.Context, id string) (*model.Video, error) {
	videos, err := db.queryVideos(ctx, "getting video "+id, videoSelect+` WHERE v.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, apperror.NotFound("video", id)
	}
	return &videos[0], nil
}

func (db *DB) ListPublicVideos(ctx context.Context) ([]model.Video, error) {
	return db.queryVideos(ctx, "listing videos",
		videoSelect+` WHERE v.stat = ? ORDER BY v.upload_date DESC, v.id DESC`, model.StatPublic)
}

func (db *DB) ListVideosByOwner(ctx context.Context, ownerID string) ([]model.Video, error) {
	return db.queryVideos(ctx, "listing videos of "+ownerID,
		videoSelect+` WHERE v.owner_id = ? ORDER BY v.upload_date DESC, v.id DESC`, ownerID)
}

const (
	titleLike = `fold(v.title) LIKE fold(?) ESCAPE '\'`
	descLike  = `fold(v.description) LIKE fold(?) ESCAPE '\'`
	tagLike   = `EXISTS (SELECT 1 FROM json_each(v.tags) WHERE fold(json_each.value) LIKE fold(?) ESCAPE '\')`
)

// searchCondition builds (title AND ...) OR (desc AND ...) OR (tags AND ...)
// with one LIKE per token in each group.
func searchCondition(tokens []string) (string, []any) {
	groups := []string{titleLike, descLike, tagLike}
	parts := make([]string, 0, len(groups))
	args := make([]any, 0, len(groups)*len(tokens))

	for _, cond := range groups {
		conj := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			conj = append(conj, cond)
			args = append(args, match.LikePattern(tok))
		}
		parts = append(parts, "("+strings.Join(conj, " AND ")+")")
	}

	return "(" + strings.Join(parts, " OR ") + ")", args
}

// similarCondition builds an OR of title, description and tag matches for
// every tag.
func similarCondition(tags []string) (string, []any) {
	parts := make([]string, 0, len(tags))
	args := make([]any, 0, len(tags)*3)

	for _, tag := range tags {
		p := match.LikePattern(tag)
		parts = append(parts, "("+titleLike+" OR "+descLike+" OR "+tagLike+")")
		args = append(args, p, p, p)
	}

	return "(" + strings.Join(parts, " OR ") + ")", args
}

func (db *DB) SearchVideos(ctx context.Context, tokens []string) ([]model.Video, error) {
	if len(tokens) == 0 {
		return []model.Video{}, nil
	}
	cond, args := searchCondition(tokens)
	args = append([]any{model.StatPublic}, args...)
	return db.queryVideos(ctx, "searching videos",
		videoSelect+` WHERE v.stat = ? AND `+cond+` ORDER BY v.upload_date DESC, v.id DESC`, args...)
}

func (db *DB) SimilarVideos(ctx context.Context, tags []string) ([]model.Video, error) {
	if len(tags) == 0 {
		return []model.Video{}, nil
	}
	cond, args := similarCondition(tags)
	args = append([]any{model.StatPublic}, args...)
	return db.queryVideos(ctx, "finding similar videos",
		videoSelect+` WHERE v.stat = ? AND `+cond+` ORDER BY v.upload_date DESC, v.id DESC`, args...)
}

func (db *DB) UpdateVideo(ctx context.Context, id string, patch model.VideoPatch) error {
	var (
		sets []string
		args []any
	)
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Desc != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Desc)
	}
	if patch.Tags != nil {
		tags, err := encodeTags(*patch.Tags)
		if err != nil {
			return fmt.Errorf("sqlite: encoding tags: %w", err)
		}
		sets = append(sets, "tags = ?")
		args = append(args, tags)
	}
	if len(sets) == 0 {
		_, err := db.GetVideo(ctx, id)
		return err
	}

	args = append(args, id)
	return db.videoWrite(ctx, id, "updating",
		`UPDATE videos SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
}

func (db *DB) SetVideoStat(ctx context.Context, id string, stat model.Stat) error {
	return db.videoWrite(ctx, id, "setting stat of",
		`UPDATE videos SET stat = ? WHERE id = ?`, stat, id)
}

func (db *DB) IncrementVisits(ctx context.Context, id string) (int64, error) {
	var visits int64
	err := db.conn.QueryRowContext(ctx,
		`UPDATE videos SET visits = visits + 1 WHERE id = ? RETURNING visits`, id,
	).Scan(&visits)
	if err != nil {
		if isNoRows(err) {
			return 0, apperror.NotFound("video", id)
		}
		return 0, fmt.Errorf("sqlite: incrementing visits of %s: %w", id, err)
	}
	return visits, nil
}

func (db *DB) SetMediaStatus(ctx context.Context, id string, status model.MediaStatus) error {
	return db.videoWrite(ctx, id, "setting media status of",
		`UPDATE videos SET media_status = ? WHERE id = ?`, string(status), id)
}

func (db *DB) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]model.Video, error) {
	return db.queryVideos(ctx, "listing pending videos",
		videoSelect+` WHERE v.media_status = ? AND v.upload_date < ? ORDER BY v.upload_date`,
		string(model.MediaPending), cutoff.UTC())
}

func (db *DB) DeleteVideo(ctx context.Context, id string) error {
	return db.videoWrite(ctx, id, "deleting", `DELETE FROM videos WHERE id = ?`, id)
}

func (db *DB) videoWrite(ctx context.Context, id, verb, query string, args ...any) error {
	err := db.execOne(ctx, apperror.NotFound("video", id), query, args...)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("sqlite: %s video %s: %w", verb, id, err)
	}
	return err
}
