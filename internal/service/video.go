package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sakif/watchme/internal/apperror"
	"github.com/sakif/watchme/internal/match"
	"github.com/sakif/watchme/internal/media"
	"github.com/sakif/watchme/internal/model"
	"github.com/sakif/watchme/internal/paginate"
	"github.com/sakif/watchme/internal/policy"
	"github.com/sakif/watchme/internal/repository"
)

// Validation limits for video metadata.
const (
	MaxTitleLength = 100
	MaxDescLength  = 5000
	MaxTags        = 20
)

// MediaFiles stores uploads and removes a video's files on delete.
// *media.FileStore implements it.
type MediaFiles interface {
	Save(name string, r io.Reader) (int64, error)
	Remove(names ...string) error
}

// TaskDispatcher hands a media task to the background workers.
type TaskDispatcher interface {
	Dispatch(ctx context.Context, t media.Task) error
}

// VideoService handles uploads, listings, search and video mutations.
//
// UPLOAD IS ASYNCHRONOUS:
// The request stores the file and the record (media status "pending") and
// returns straight away. Thumbnail and preview generation happens on the
// dispatcher; its outcome lands in the record's media status and is pushed
// to the uploader over the websocket hub.
type VideoService struct {
	videos repository.VideoRepository
	files  MediaFiles
	tasks  TaskDispatcher
	logger *slog.Logger
}

func NewVideoService(videos repository.VideoRepository, files MediaFiles, tasks TaskDispatcher, logger *slog.Logger) *VideoService {
	return &VideoService{
		videos: videos,
		files:  files,
		tasks:  tasks,
		logger: logger,
	}
}

// Upload is a new video: its metadata plus the uploaded file.
type Upload struct {
	Title    string
	Desc     string
	Tags     []string
	FileName string
	File     io.Reader
}

// VideoPage is one page of a video listing.
type VideoPage struct {
	Message string         `json:"message,omitempty"`
	Videos  []model.Video  `json:"videos"`
	Pages   paginate.Pages `json:"pages"`
}

// VideoStatus is the media generation state of one video.
type VideoStatus struct {
	ID          string            `json:"id"`
	MediaStatus model.MediaStatus `json:"mediaStatus"`
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperror.ValidationFailed("title", "title is required")
	}
	if len(title) > MaxTitleLength {
		return "", apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or fewer", MaxTitleLength))
	}
	return title, nil
}

func validateDesc(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	if len(desc) > MaxDescLength {
		return "", apperror.ValidationFailed("desc",
			fmt.Sprintf("description must be %d characters or fewer", MaxDescLength))
	}
	return desc, nil
}

// normalizeTags trims every tag and drops the blank ones.
func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) > MaxTags {
		return nil, apperror.ValidationFailed("tags", fmt.Sprintf("at most %d tags are allowed", MaxTags))
	}
	return out, nil
}

// Upload stores the file, records the video as pending and queues media
// generation.
//
// A dispatch failure does not fail the upload: the video is kept, marked
// failed, and returned with that status.
func (s *VideoService) Upload(ctx context.Context, caller model.Identity, up Upload) (*model.Video, error) {
	if caller.Anonymous() {
		return nil, apperror.Unauthorized("valid authentication required")
	}

	title, err := validateTitle(up.Title)
	if err != nil {
		return nil, err
	}
	desc, err := validateDesc(up.Desc)
	if err != nil {
		return nil, err
	}
	tags, err := normalizeTags(up.Tags)
	if err != nil {
		return nil, err
	}
	names, err := media.NamesFor(caller.AccountID, up.FileName)
	if err != nil {
		return nil, err
	}

	size, err := s.files.Save(names.Path, up.File)
	if err != nil {
		return nil, fmt.Errorf("service/video: storing upload: %w", err)
	}

	video := &model.Video{
		OwnerID:     caller.AccountID,
		Title:       title,
		Desc:        desc,
		Tags:        tags,
		Path:        names.Path,
		Thumb:       names.Thumb,
		Cover:       names.Preview,
		Stat:        model.StatPublic,
		MediaStatus: model.MediaPending,
		Author:      caller.Username,
	}
	if err := s.videos.CreateVideo(ctx, video); err != nil {
		if rmErr := s.files.Remove(names.Path); rmErr != nil {
			s.logger.Error("removing orphaned upload", slog.String("path", names.Path), slog.String("error", rmErr.Error()))
		}
		return nil, fmt.Errorf("service/video: creating video: %w", err)
	}

	s.logger.Info("video uploaded",
		slog.String("videoID", video.ID),
		slog.String("ownerID", video.OwnerID),
		slog.Int64("bytes", size),
	)

	task := media.Task{
		VideoID: video.ID,
		OwnerID: video.OwnerID,
		Source:  names.Path,
		Thumb:   names.Thumb,
		Preview: names.Preview,
	}
	if err := s.tasks.Dispatch(ctx, task); err != nil {
		s.logger.Error("dispatching media task", slog.String("videoID", video.ID), slog.String("error", err.Error()))
		if err := s.videos.SetMediaStatus(ctx, video.ID, model.MediaFailed); err != nil {
			return nil, fmt.Errorf("service/video: marking %s failed: %w", video.ID, err)
		}
		video.MediaStatus = model.MediaFailed
	}

	return video, nil
}

func page(videos []model.Video, current int) VideoPage {
	pages := paginate.New(len(videos), current, paginate.DefaultPageSize, paginate.DefaultMaxPages)
	return VideoPage{Videos: paginate.Slice(videos, pages), Pages: pages}
}

// List returns one page of public videos, newest first.
func (s *VideoService) List(ctx context.Context, current int) (*VideoPage, error) {
	videos, err := s.videos.ListPublicVideos(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/video: listing: %w", err)
	}
	p := page(videos, current)
	return &p, nil
}

// Search matches the query against public videos.
//
// EMPTY QUERY:
// A blank query is rejected here and never reaches the repository, where
// no tokens would mean "no condition".
func (s *VideoService) Search(ctx context.Context, query string, current int) (*VideoPage, error) {
	tokens := match.Tokenize(query)
	if len(tokens) == 0 {
		return nil, apperror.ValidationFailed("query", "search query is required")
	}

	videos, err := s.videos.SearchVideos(ctx, tokens)
	if err != nil {
		return nil, fmt.Errorf("service/video: searching %q: %w", query, err)
	}

	p := page(videos, current)
	p.Message = fmt.Sprintf("Found %d videos", len(videos))
	return &p, nil
}

// Similar recommends public videos sharing any tag of the reference video.
// The reference video itself is never part of the result.
func (s *VideoService) Similar(ctx context.Context, caller model.Identity, id string) ([]model.Video, error) {
	ref, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	videos, err := s.SimilarByTags(ctx, ref.Tags)
	if err != nil {
		return nil, err
	}
	return match.ExcludeID(videos, ref.ID, func(v model.Video) string { return v.ID }), nil
}

// SimilarByTags is the raw similarity lookup. Tags that sanitize to
// nothing are ignored; with none left the result is empty.
func (s *VideoService) SimilarByTags(ctx context.Context, tags []string) ([]model.Video, error) {
	clean := match.SanitizeTags(tags)
	if len(clean) == 0 {
		return []model.Video{}, nil
	}
	videos, err := s.videos.SimilarVideos(ctx, clean)
	if err != nil {
		return nil, fmt.Errorf("service/video: finding similar videos: %w", err)
	}
	return videos, nil
}

// Get returns a video. Private videos are NotFound for everyone but their
// owner and administrators.
func (s *VideoService) Get(ctx context.Context, caller model.Identity, id string) (*model.Video, error) {
	v, err := s.videos.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanView(caller, v.OwnerID, !v.IsPublic()) {
		return nil, apperror.NotFound("video", id)
	}
	return v, nil
}

// View counts one visit and returns the new total.
func (s *VideoService) View(ctx context.Context, caller model.Identity, id string) (int64, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return 0, err
	}
	return s.videos.IncrementVisits(ctx, id)
}

// Mine lists the caller's videos, private ones included.
func (s *VideoService) Mine(ctx context.Context, caller model.Identity) ([]model.Video, error) {
	if caller.Anonymous() {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	return s.videos.ListVideosByOwner(ctx, caller.AccountID)
}

// modifiable loads the video for a mutation by caller.
func (s *VideoService) modifiable(ctx context.Context, caller model.Identity, id string) (*model.Video, error) {
	v, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := policy.RequireOwner(caller, v.OwnerID, "video"); err != nil {
		return nil, err
	}
	return v, nil
}

// Edit changes title, description or tags. Author or administrator only.
func (s *VideoService) Edit(ctx context.Context, caller model.Identity, id string, patch model.VideoPatch) (*model.Video, error) {
	if patch.Empty() {
		return nil, apperror.ValidationFailed("video", "nothing to update")
	}
	if patch.Title != nil {
		title, err := validateTitle(*patch.Title)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if patch.Desc != nil {
		desc, err := validateDesc(*patch.Desc)
		if err != nil {
			return nil, err
		}
		patch.Desc = &desc
	}
	if patch.Tags != nil {
		tags, err := normalizeTags(*patch.Tags)
		if err != nil {
			return nil, err
		}
		patch.Tags = &tags
	}

	v, err := s.modifiable(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.videos.UpdateVideo(ctx, id, patch); err != nil {
		return nil, fmt.Errorf("service/video: editing %s: %w", id, err)
	}
	patch.Apply(v)
	return v, nil
}

// ToggleStat flips the video between public and private.
func (s *VideoService) ToggleStat(ctx context.Context, caller model.Identity, id string) (*model.Video, error) {
	v, err := s.modifiable(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	next := v.Stat.Toggle()
	if err := s.videos.SetVideoStat(ctx, id, next); err != nil {
		return nil, fmt.Errorf("service/video: toggling stat of %s: %w", id, err)
	}
	v.Stat = next

	s.logger.Info("video visibility changed", slog.String("videoID", id), slog.String("stat", next.String()))
	return v, nil
}

// Delete removes the record and then its media files. A crash in between
// leaves orphaned files; missing files are not an error.
func (s *VideoService) Delete(ctx context.Context, caller model.Identity, id string) error {
	v, err := s.modifiable(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.videos.DeleteVideo(ctx, id); err != nil {
		return fmt.Errorf("service/video: deleting %s: %w", id, err)
	}

	if err := s.files.Remove(v.Path, v.Thumb, v.Cover); err != nil {
		return fmt.Errorf("service/video: deleting files of %s: %w", id, err)
	}

	s.logger.Info("video deleted", slog.String("videoID", id), slog.String("by", caller.AccountID))
	return nil
}

// Status reports media generation progress.
func (s *VideoService) Status(ctx context.Context, caller model.Identity, id string) (*VideoStatus, error) {
	v, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return &VideoStatus{ID: v.ID, MediaStatus: v.MediaStatus}, nil
}
