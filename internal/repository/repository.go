// Package repository declares the storage contracts the services depend on.
//
// Two implementations exist: repository/sqlite keeps videos, comments and
// playlists in their own tables keyed by owner_id, and repository/mongo
// keeps them as arrays embedded in each account document. Both honour the
// same rules:
//
//   - a lookup that matches nothing returns apperror.ErrNotFound;
//   - list methods return an empty slice, never an error, for no rows;
//   - records carry the owning account's username and avatar;
//   - video lists exclude private videos unless scoped to one owner.
package repository

import (
	"context"
	"time"

	"github.com/sakif/watchme/internal/model"
)

// AccountRepository stores accounts of both auth kinds in one place.
type AccountRepository interface {
	// CreateAccount assigns ID and timestamps. A taken username or email
	// returns apperror.ErrConflict.
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
	GetAccountByProvider(ctx context.Context, provider string, providerID int64) (*model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	// CredentialsTaken reports whether the username and the email are in use.
	CredentialsTaken(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error)
	// RecordLogin stamps the last login time. A non-empty providerToken
	// replaces the stored external token.
	RecordLogin(ctx context.Context, id string, at time.Time, providerToken string) error
}

// VideoRepository is the video collection.
type VideoRepository interface {
	CreateVideo(ctx context.Context, video *model.Video) error
	GetVideo(ctx context.Context, id string) (*model.Video, error)
	// ListPublicVideos returns public videos, newest upload first.
	ListPublicVideos(ctx context.Context) ([]model.Video, error)
	// ListVideosByOwner returns every video of one account, newest first.
	ListVideosByOwner(ctx context.Context, ownerID string) ([]model.Video, error)
	// SearchVideos returns public videos where all tokens occur in the
	// title, or all in the description, or all among the tags.
	SearchVideos(ctx context.Context, tokens []string) ([]model.Video, error)
	// SimilarVideos returns public videos whose title, description or tags
	// contain any of the given, already sanitized, tags.
	SimilarVideos(ctx context.Context, tags []string) ([]model.Video, error)
	UpdateVideo(ctx context.Context, id string, patch model.VideoPatch) error
	SetVideoStat(ctx context.Context, id string, stat model.Stat) error
	// IncrementVisits adds one view and returns the new count.
	IncrementVisits(ctx context.Context, id string) (int64, error)
	SetMediaStatus(ctx context.Context, id string, status model.MediaStatus) error
	// ListPendingBefore returns videos still pending that were uploaded
	// before the cutoff.
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]model.Video, error)
	DeleteVideo(ctx context.Context, id string) error
}

// CommentRepository is the comment collection.
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	// ListComments returns all comments, newest first.
	ListComments(ctx context.Context) ([]model.Comment, error)
	ListCommentsByVideo(ctx context.Context, videoID string) ([]model.Comment, error)
	ListCommentsByOwner(ctx context.Context, ownerID string) ([]model.Comment, error)
	// CountComments counts the comments one account posted on one video.
	CountComments(ctx context.Context, videoID, ownerID string) (int, error)
	UpdateCommentText(ctx context.Context, id, text string) error
	DeleteComment(ctx context.Context, id string) error
}

// PlaylistRepository is the playlist collection.
type PlaylistRepository interface {
	CreatePlaylist(ctx context.Context, playlist *model.Playlist) error
	GetPlaylist(ctx context.Context, id string) (*model.Playlist, error)
	ListPlaylistsByOwner(ctx context.Context, ownerID string) ([]model.Playlist, error)
	ListPublicPlaylists(ctx context.Context) ([]model.Playlist, error)
	UpdatePlaylist(ctx context.Context, id string, patch model.PlaylistPatch) error
	// AddPlaylistEntry appends a snapshot. A video already in the
	// playlist returns apperror.ErrConflict.
	AddPlaylistEntry(ctx context.Context, playlistID string, entry model.PlaylistEntry) error
	// RemovePlaylistEntry returns apperror.ErrNotFound when the video is
	// not in the playlist.
	RemovePlaylistEntry(ctx context.Context, playlistID, videoID string) error
	DeletePlaylist(ctx context.Context, id string) error
}

// Store bundles every collection behind one handle.
type Store interface {
	AccountRepository
	VideoRepository
	CommentRepository
	PlaylistRepository
	Close() error
}
