package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/watchme/internal/apperror"
	"github.com/sakif/watchme/internal/model"
	"github.com/sakif/watchme/internal/policy"
	"github.com/sakif/watchme/internal/repository"
)

const (
	// MaxCommentsPerVideo is how many comments one account may post on one
	// video.
	MaxCommentsPerVideo = 3
	MaxCommentLength    = 1000
)

// VideoReader is the read side of the video repository.
type VideoReader interface {
	GetVideo(ctx context.Context, id string) (*model.Video, error)
}

type CommentService struct {
	comments repository.CommentRepository
	videos   VideoReader
	logger   *slog.Logger
}

func NewCommentService(comments repository.CommentRepository, videos VideoReader, logger *slog.Logger) *CommentService {
	return &CommentService{
		comments: comments,
		videos:   videos,
		logger:   logger,
	}
}

func validateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperror.ValidationFailed("text", "comment text is required")
	}
	if len(text) > MaxCommentLength {
		return "", apperror.ValidationFailed("text",
			fmt.Sprintf("comment must be %d characters or fewer", MaxCommentLength))
	}
	return text, nil
}

// List returns every comment the caller may see, newest first.
//
// Comments on a private video are left out unless the caller owns the
// video or is an administrator. Comments whose video was deleted stay
// listed.
func (s *CommentService) List(ctx context.Context, caller model.Identity) ([]model.Comment, error) {
	all, err := s.comments.ListComments(ctx)
	if err != nil {
		return nil, err
	}

	visible := make(map[string]bool)
	out := make([]model.Comment, 0, len(all))
	for _, c := range all {
		ok, seen := visible[c.VideoID]
		if !seen {
			ok, err = s.canSeeVideo(ctx, caller, c.VideoID)
			if err != nil {
				return nil, err
			}
			visible[c.VideoID] = ok
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *CommentService) canSeeVideo(ctx context.Context, caller model.Identity, videoID string) (bool, error) {
	v, err := s.videos.GetVideo(ctx, videoID)
	if errors.Is(err, apperror.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("service/comment: loading video %s: %w", videoID, err)
	}
	return policy.CanView(caller, v.OwnerID, !v.IsPublic()), nil
}

// ListByVideo returns the comments of one video, newest first. A video the
// caller cannot see is NotFound, the same answer Get gives.
func (s *CommentService) ListByVideo(ctx context.Context, caller model.Identity, videoID string) ([]model.Comment, error) {
	video, err := s.videos.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if !policy.CanView(caller, video.OwnerID, !video.IsPublic()) {
		return nil, apperror.NotFound("video", videoID)
	}
	return s.comments.ListCommentsByVideo(ctx, videoID)
}

func (s *CommentService) Mine(ctx context.Context, caller model.Identity) ([]model.Comment, error) {
	if caller.Anonymous() {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	return s.comments.ListCommentsByOwner(ctx, caller.AccountID)
}

// Post adds a comment to a video the caller can see.
//
// RATE LIMIT:
// The fourth comment by the same account on the same video is rejected and
// nothing is written. Count and insert are not atomic, so two concurrent
// posts can both pass the check.
func (s *CommentService) Post(ctx context.Context, caller model.Identity, videoID, text string) (*model.Comment, error) {
	if caller.Anonymous() {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	text, err := validateText(text)
	if err != nil {
		return nil, err
	}

	video, err := s.videos.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if !policy.CanView(caller, video.OwnerID, !video.IsPublic()) {
		return nil, apperror.NotFound("video", videoID)
	}

	n, err := s.comments.CountComments(ctx, videoID, caller.AccountID)
	if err != nil {
		return nil, fmt.Errorf("service/comment: counting comments: %w", err)
	}
	if n >= MaxCommentsPerVideo {
		return nil, apperror.LimitExceeded(
			fmt.Sprintf("You have already commented this video %d times!", MaxCommentsPerVideo))
	}

	comment := &model.Comment{
		OwnerID: caller.AccountID,
		VideoID: videoID,
		Text:    text,
		Author:  caller.Username,
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("service/comment: posting on %s: %w", videoID, err)
	}

	s.logger.Info("comment posted", slog.String("commentID", comment.ID), slog.String("videoID", videoID))
	return comment, nil
}

func (s *CommentService) modifiable(ctx context.Context, caller model.Identity, id string) (*model.Comment, error) {
	c, err := s.comments.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.RequireOwner(caller, c.OwnerID, "comment"); err != nil {
		return nil, err
	}
	return c, nil
}

// Edit replaces the text. Author or administrator only.
func (s *CommentService) Edit(ctx context.Context, caller model.Identity, id, text string) (*model.Comment, error) {
	text, err := validateText(text)
	if err != nil {
		return nil, err
	}
	c, err := s.modifiable(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.comments.UpdateCommentText(ctx, id, text); err != nil {
		return nil, fmt.Errorf("service/comment: editing %s: %w", id, err)
	}
	c.Text = text
	return c, nil
}

func (s *CommentService) Delete(ctx context.Context, caller model.Identity, id string) error {
	if _, err := s.modifiable(ctx, caller, id); err != nil {
		return err
	}
	if err := s.comments.DeleteComment(ctx, id); err != nil {
		return fmt.Errorf("service/comment: deleting %s: %w", id, err)
	}
	s.logger.Info("comment deleted", slog.String("commentID", id), slog.String("by", caller.AccountID))
	return nil
}
