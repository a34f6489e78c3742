package mongo

import (
	"context"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sakif/watchme/internal/model"
)

var latestFirst = bson.D{{Key: "date", Value: -1}, {Key: "id", Value: -1}}

func (s *Store) findComments(ctx context.Context, match bson.M) ([]model.Comment, error) {
	records, err := s.comments.find(ctx, match, latestFirst)
	if err != nil {
		return nil, err
	}
	return toModels(records, (*commentRecord).toModel), nil
}

func (s *Store) CreateComment(ctx context.Context, comment *model.Comment) error {
	comment.ID = xid.New().String()
	if comment.Date.IsZero() {
		comment.Date = time.Now().UTC()
	}

	return s.comments.push(ctx, comment.OwnerID, commentDoc{
		ID:      comment.ID,
		VideoID: comment.VideoID,
		Text:    comment.Text,
		Date:    comment.Date.UTC(),
	})
}

func (s *Store) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	r, err := s.comments.findOne(ctx, "comment", id)
	if err != nil {
		return nil, err
	}
	c := r.toModel()
	return &c, nil
}

func (s *Store) ListComments(ctx context.Context) ([]model.Comment, error) {
	return s.findComments(ctx, nil)
}

func (s *Store) ListCommentsByVideo(ctx context.Context, videoID string) ([]model.Comment, error) {
	return s.findComments(ctx, bson.M{"comments.videoId": videoID})
}

func (s *Store) ListCommentsByOwner(ctx context.Context, ownerID string) ([]model.Comment, error) {
	return s.findComments(ctx, bson.M{"_id": ownerID})
}

func (s *Store) CountComments(ctx context.Context, videoID, ownerID string) (int, error) {
	return s.comments.count(ctx, bson.M{"_id": ownerID, "comments.videoId": videoID})
}

func (s *Store) UpdateCommentText(ctx context.Context, id, text string) error {
	return s.comments.update(ctx, "comment", id, "$set", bson.M{"text": text})
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	return s.comments.pull(ctx, "comment", id)
}
