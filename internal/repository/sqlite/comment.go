package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/watchme/internal/apperror"
	"github.com/sakif/watchme/internal/model"
	"github.com/sakif/watchme/internal/repository"
)

var _ repository.CommentRepository = (*DB)(nil)

const commentSelect = `
	SELECT c.id, c.owner_id, c.video_id, c.text, c.date, a.username, a.avatar_url
	FROM comments c
	JOIN accounts a ON a.id = c.owner_id`

func (db *DB) queryComments(ctx context.Context, what, query string, args ...any) ([]model.Comment, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", what, err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.VideoID, &c.Text, &c.Date, &c.Author, &c.AuthorAvatar); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}

	return comments, nil
}

func (db *DB) CreateComment(ctx context.Context, comment *model.Comment) error {
	comment.ID = xid.New().String()
	if comment.Date.IsZero() {
		comment.Date = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, owner_id, video_id, text, date) VALUES (?, ?, ?, ?, ?)`,
		comment.ID, comment.OwnerID, comment.VideoID, comment.Text, comment.Date.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating comment on video %s: %w", comment.VideoID, err)
	}

	return nil
}

func (db *DB) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	comments, err := db.queryComments(ctx, "getting comment "+id, commentSelect+` WHERE c.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return nil, apperror.NotFound("comment", id)
	}
	return &comments[0], nil
}

func (db *DB) ListComments(ctx context.Context) ([]model.Comment, error) {
	return db.queryComments(ctx, "listing comments",
		commentSelect+` ORDER BY c.date DESC, c.id DESC`)
}

func (db *DB) ListCommentsByVideo(ctx context.Context, videoID string) ([]model.Comment, error) {
	return db.queryComments(ctx, "listing comments of video "+videoID,
		commentSelect+` WHERE c.video_id = ? ORDER BY c.date DESC, c.id DESC`, videoID)
}

func (db *DB) ListCommentsByOwner(ctx context.Context, ownerID string) ([]model.Comment, error) {
	return db.queryComments(ctx, "listing comments of "+ownerID,
		commentSelect+` WHERE c.owner_id = ? ORDER BY c.date DESC, c.id DESC`, ownerID)
}

func (db *DB) CountComments(ctx context.Context, videoID, ownerID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE video_id = ? AND owner_id = ?`, videoID, ownerID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting comments: %w", err)
	}
	return n, nil
}

func (db *DB) UpdateCommentText(ctx context.Context, id, text string) error {
	err := db.execOne(ctx, apperror.NotFound("comment", id),
		`UPDATE comments SET text = ? WHERE id = ?`, text, id)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("sqlite: updating comment %s: %w", id, err)
	}
	return err
}

func (db *DB) DeleteComment(ctx context.Context, id string) error {
	err := db.execOne(ctx, apperror.NotFound("comment", id),
		`DELETE FROM comments WHERE id = ?`, id)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("sqlite: deleting comment %s: %w", id, err)
	}
	return err
}
