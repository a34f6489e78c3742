package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/watchme/internal/apperror"
	"github.com/sakif/watchme/internal/model"
)

// newTestStore connects to MONGO_TEST_URI and uses a throwaway database.
// Without the variable the integration tests are skipped.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	dbName := "watchme_test_" + xid.New().String()
	s, err := Connect(ctx, uri, dbName)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.client.Database(dbName).Drop(context.Background())
		_ = s.Close()
	})
	return s
}

func createAccount(t *testing.T, s *Store, username string) *model.Account {
	t.Helper()
	a := &model.Account{
		Username:   username,
		Email:      username + "@example.com",
		Permission: model.PermissionUser,
		Auth:       model.LocalAuth("hash"),
	}
	require.NoError(t, s.CreateAccount(context.Background(), a))
	return a
}

func createVideo(t *testing.T, s *Store, owner *model.Account, title string, stat model.Stat, tags ...string) *model.Video {
	t.Helper()
	v := &model.Video{OwnerID: owner.ID, Title: title, Desc: title + " desc", Tags: tags, Stat: stat}
	require.NoError(t, s.CreateVideo(context.Background(), v))
	return v
}

func TestAccounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := createAccount(t, s, "alice")

	got, err := s.GetAccountByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "hash", got.Auth.PasswordHash)

	dup := &model.Account{Username: "alice", Auth: model.LocalAuth("x")}
	err = s.CreateAccount(ctx, dup)
	assert.True(t, errors.Is(err, apperror.ErrConflict))

	userTaken, emailTaken, err := s.CredentialsTaken(ctx, "bob", "alice@example.com")
	require.NoError(t, err)
	assert.False(t, userTaken)
	assert.True(t, emailTaken)

	gh := &model.Account{Username: "octo", Auth: model.ExternalAuth(model.ProviderGitHub, 42, "tok")}
	require.NoError(t, s.CreateAccount(ctx, gh))
	found, err := s.GetAccountByProvider(ctx, model.ProviderGitHub, 42)
	require.NoError(t, err)
	assert.Equal(t, gh.ID, found.ID)

	require.NoError(t, s.RecordLogin(ctx, gh.ID, time.Now(), "tok2"))
	found, err = s.GetAccount(ctx, gh.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok2", found.Auth.Token)
	assert.NotNil(t, found.LastLoginAt)

	_, err = s.GetAccount(ctx, "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestVideos(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createAccount(t, s, "alice")
	bob := createAccount(t, s, "bob")

	pub := createVideo(t, s, alice, "Go concurrency tour", model.StatPublic, "golang")
	priv := createVideo(t, s, alice, "Go secrets", model.StatPrivate, "golang")
	other := createVideo(t, s, bob, "Cooking pasta", model.StatPublic, "food")

	got, err := s.GetVideo(ctx, pub.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Author)
	assert.Equal(t, alice.ID, got.OwnerID)
	assert.Equal(t, model.MediaPending, got.MediaStatus)

	public, err := s.ListPublicVideos(ctx)
	require.NoError(t, err)
	assert.Len(t, public, 2)

	mine, err := s.ListVideosByOwner(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	found, err := s.SearchVideos(ctx, []string{"go", "TOUR"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, pub.ID, found[0].ID)

	similar, err := s.SimilarVideos(ctx, []string{"food"})
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, other.ID, similar[0].ID)

	n, err := s.IncrementVisits(ctx, pub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	title := "Renamed"
	require.NoError(t, s.UpdateVideo(ctx, priv.ID, model.VideoPatch{Title: &title}))
	require.NoError(t, s.SetVideoStat(ctx, priv.ID, model.StatPublic))
	require.NoError(t, s.SetMediaStatus(ctx, priv.ID, model.MediaReady))
	got, err = s.GetVideo(ctx, priv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, model.StatPublic, got.Stat)
	assert.Equal(t, model.MediaReady, got.MediaStatus)

	pending, err := s.ListPendingBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, s.DeleteVideo(ctx, pub.ID))
	_, err = s.GetVideo(ctx, pub.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	err = s.DeleteVideo(ctx, pub.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	mine, err = s.ListVideosByOwner(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1, "delete removes exactly one element")
}

func TestComments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createAccount(t, s, "alice")
	v := createVideo(t, s, alice, "clip", model.StatPublic)

	for i := 0; i < 2; i++ {
		require.NoError(t, s.CreateComment(ctx, &model.Comment{OwnerID: alice.ID, VideoID: v.ID, Text: "nice"}))
	}

	n, err := s.CountComments(ctx, v.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	byVideo, err := s.ListCommentsByVideo(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, byVideo, 2)
	assert.Equal(t, "alice", byVideo[0].Author)

	require.NoError(t, s.UpdateCommentText(ctx, byVideo[0].ID, "edited"))
	c, err := s.GetComment(ctx, byVideo[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", c.Text)

	require.NoError(t, s.DeleteComment(ctx, c.ID))
	all, err := s.ListComments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPlaylists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createAccount(t, s, "alice")
	v1 := createVideo(t, s, alice, "one", model.StatPublic)
	v2 := createVideo(t, s, alice, "two", model.StatPublic)

	p := &model.Playlist{OwnerID: alice.ID, Name: "mix", IsPrivate: true, Videos: []model.PlaylistEntry{model.SnapshotOf(v1)}}
	require.NoError(t, s.CreatePlaylist(ctx, p))

	require.NoError(t, s.AddPlaylistEntry(ctx, p.ID, model.SnapshotOf(v2)))
	err := s.AddPlaylistEntry(ctx, p.ID, model.SnapshotOf(v2))
	assert.True(t, errors.Is(err, apperror.ErrConflict))
	err = s.AddPlaylistEntry(ctx, "missing", model.SnapshotOf(v2))
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	got, err := s.GetPlaylist(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Videos, 2)
	assert.Equal(t, v1.ID, got.Videos[0].ID)
	assert.Equal(t, "alice", got.Author)

	public, err := s.ListPublicPlaylists(ctx)
	require.NoError(t, err)
	assert.Empty(t, public)

	open := false
	require.NoError(t, s.UpdatePlaylist(ctx, p.ID, model.PlaylistPatch{IsPrivate: &open}))
	public, err = s.ListPublicPlaylists(ctx)
	require.NoError(t, err)
	assert.Len(t, public, 1)

	require.NoError(t, s.RemovePlaylistEntry(ctx, p.ID, v1.ID))
	err = s.RemovePlaylistEntry(ctx, p.ID, v1.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	require.NoError(t, s.DeletePlaylist(ctx, p.ID))
	_, err = s.GetPlaylist(ctx, p.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}
