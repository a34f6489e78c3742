package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sakif/watchme/internal/apperror"
	"github.com/sakif/watchme/internal/match"
	"github.com/sakif/watchme/internal/media"
	"github.com/sakif/watchme/internal/model"
	"github.com/sakif/watchme/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================

// fakeStore is an in-memory repository.Store. It follows the same rules as
// the real stores (NotFound on empty lookups, author joined on read,
// newest first) so the services can be tested without a database.
type fakeStore struct {
	mu        sync.Mutex
	seq       int
	clock     time.Time
	accounts  map[string]*model.Account
	videos    map[string]*model.Video
	comments  map[string]*model.Comment
	playlists map[string]*model.Playlist

	searchCalls  int
	similarCalls int
	// set to a non-nil error to simulate a database failure
	failWith error
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		accounts:  map[string]*model.Account{},
		videos:    map[string]*model.Video{},
		comments:  map[string]*model.Comment{},
		playlists: map[string]*model.Playlist{},
	}
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s%d", prefix, f.seq)
}

// tick advances the fake clock so creation order is strictly increasing.
func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) Close() error { return nil }

// --- accounts ---

func (f *fakeStore) CreateAccount(_ context.Context, a *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	for _, other := range f.accounts {
		if other.Username == a.Username ||
			(a.Auth.Kind == model.AuthLocal && other.Auth.Kind == model.AuthLocal && a.Email != "" && other.Email == a.Email) {
			return apperror.Conflict("User already exists")
		}
	}
	a.ID = f.nextID("acc")
	a.CreatedAt = f.tick()
	a.UpdatedAt = a.CreatedAt
	copied := *a
	f.accounts[a.ID] = &copied
	return nil
}

func (f *fakeStore) GetAccount(_ context.Context, id string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, apperror.NotFound("account", id)
	}
	copied := *a
	return &copied, nil
}

func (f *fakeStore) findAccount(pred func(*model.Account) bool, what string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, a := range f.accounts {
		if pred(a) {
			copied := *a
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("account", what)
}

func (f *fakeStore) GetAccountByUsername(_ context.Context, username string) (*model.Account, error) {
	return f.findAccount(func(a *model.Account) bool { return a.Username == username }, username)
}

func (f *fakeStore) GetAccountByProvider(_ context.Context, provider string, providerID int64) (*model.Account, error) {
	return f.findAccount(func(a *model.Account) bool {
		return a.Auth.IsExternal() && a.Auth.Provider == provider && a.Auth.ProviderID == providerID
	}, fmt.Sprint(providerID))
}

func (f *fakeStore) ListAccounts(_ context.Context) ([]model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Account{}
	for _, a := range f.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) CredentialsTaken(_ context.Context, username, email string) (bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return false, false, f.failWith
	}
	var u, e bool
	for _, a := range f.accounts {
		u = u || a.Username == username
		e = e || (a.Auth.Kind == model.AuthLocal && email != "" && a.Email == email)
	}
	return u, e, nil
}

func (f *fakeStore) RecordLogin(_ context.Context, id string, at time.Time, providerToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return apperror.NotFound("account", id)
	}
	a.LastLoginAt = &at
	if providerToken != "" {
		a.Auth.Token = providerToken
	}
	return nil
}

// --- videos ---

func (f *fakeStore) joinVideo(v *model.Video) model.Video {
	out := *v
	out.Tags = slices.Clone(v.Tags)
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if a, ok := f.accounts[v.OwnerID]; ok {
		out.Author = a.Username
		out.AuthorAvatar = a.AvatarURL
	}
	return out
}

func (f *fakeStore) videoList(pred func(*model.Video) bool) []model.Video {
	out := []model.Video{}
	for _, v := range f.videos {
		if pred(v) {
			out = append(out, f.joinVideo(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadDate.After(out[j].UploadDate) })
	return out
}

func (f *fakeStore) CreateVideo(_ context.Context, v *model.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	v.ID = f.nextID("vid")
	if v.UploadDate.IsZero() {
		v.UploadDate = f.tick()
	}
	if v.MediaStatus == "" {
		v.MediaStatus = model.MediaPending
	}
	copied := *v
	f.videos[v.ID] = &copied
	return nil
}

func (f *fakeStore) GetVideo(_ context.Context, id string) (*model.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok {
		return nil, apperror.NotFound("video", id)
	}
	out := f.joinVideo(v)
	return &out, nil
}

func (f *fakeStore) ListPublicVideos(_ context.Context) ([]model.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.videoList(func(v *model.Video) bool { return v.IsPublic() }), nil
}

func (f *fakeStore) ListVideosByOwner(_ context.Context, ownerID string) ([]model.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.videoList(func(v *model.Video) bool { return v.OwnerID == ownerID }), nil
}

func fieldsOf(v *model.Video) match.Fields {
	return match.Fields{Title: v.Title, Desc: v.Desc, Tags: v.Tags}
}

func (f *fakeStore) SearchVideos(_ context.Context, tokens []string) ([]model.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	return f.videoList(func(v *model.Video) bool { return v.IsPublic() && match.MatchesAll(fieldsOf(v), tokens) }), nil
}

func (f *fakeStore) SimilarVideos(_ context.Context, tags []string) ([]model.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.similarCalls++
	return f.videoList(func(v *model.Video) bool { return v.IsPublic() && match.MatchesAny(fieldsOf(v), tags) }), nil
}

func (f *fakeStore) withVideo(id string, fn func(v *model.Video)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	v, ok := f.videos[id]
	if !ok {
		return apperror.NotFound("video", id)
	}
	fn(v)
	return nil
}

func (f *fakeStore) UpdateVideo(_ context.Context, id string, patch model.VideoPatch) error {
	return f.withVideo(id, func(v *model.Video) { patch.Apply(v) })
}

func (f *fakeStore) SetVideoStat(_ context.Context, id string, stat model.Stat) error {
	return f.withVideo(id, func(v *model.Video) { v.Stat = stat })
}

func (f *fakeStore) IncrementVisits(_ context.Context, id string) (int64, error) {
	var visits int64
	err := f.withVideo(id, func(v *model.Video) {
		v.Visits++
		visits = v.Visits
	})
	return visits, err
}

func (f *fakeStore) SetMediaStatus(_ context.Context, id string, status model.MediaStatus) error {
	return f.withVideo(id, func(v *model.Video) { v.MediaStatus = status })
}

func (f *fakeStore) ListPendingBefore(_ context.Context, cutoff time.Time) ([]model.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.videoList(func(v *model.Video) bool {
		return v.MediaStatus == model.MediaPending && v.UploadDate.Before(cutoff)
	}), nil
}

func (f *fakeStore) DeleteVideo(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.videos[id]; !ok {
		return apperror.NotFound("video", id)
	}
	delete(f.videos, id)
	return nil
}

// --- comments ---

func (f *fakeStore) commentList(pred func(*model.Comment) bool) []model.Comment {
	out := []model.Comment{}
	for _, c := range f.comments {
		if pred(c) {
			copied := *c
			if a, ok := f.accounts[c.OwnerID]; ok {
				copied.Author = a.Username
				copied.AuthorAvatar = a.AvatarURL
			}
			out = append(out, copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func (f *fakeStore) CreateComment(_ context.Context, c *model.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.nextID("com")
	c.Date = f.tick()
	copied := *c
	f.comments[c.ID] = &copied
	return nil
}

func (f *fakeStore) GetComment(_ context.Context, id string) (*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.commentList(func(c *model.Comment) bool { return c.ID == id })
	if len(list) == 0 {
		return nil, apperror.NotFound("comment", id)
	}
	return &list[0], nil
}

func (f *fakeStore) ListComments(_ context.Context) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commentList(func(*model.Comment) bool { return true }), nil
}

func (f *fakeStore) ListCommentsByVideo(_ context.Context, videoID string) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commentList(func(c *model.Comment) bool { return c.VideoID == videoID }), nil
}

func (f *fakeStore) ListCommentsByOwner(_ context.Context, ownerID string) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commentList(func(c *model.Comment) bool { return c.OwnerID == ownerID }), nil
}

func (f *fakeStore) CountComments(_ context.Context, videoID, ownerID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commentList(func(c *model.Comment) bool { return c.VideoID == videoID && c.OwnerID == ownerID })), nil
}

func (f *fakeStore) UpdateCommentText(_ context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return apperror.NotFound("comment", id)
	}
	c.Text = text
	return nil
}

func (f *fakeStore) DeleteComment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.comments[id]; !ok {
		return apperror.NotFound("comment", id)
	}
	delete(f.comments, id)
	return nil
}

// --- playlists ---

func (f *fakeStore) playlistList(pred func(*model.Playlist) bool) []model.Playlist {
	out := []model.Playlist{}
	for _, p := range f.playlists {
		if pred(p) {
			copied := *p
			copied.Videos = slices.Clone(p.Videos)
			if a, ok := f.accounts[p.OwnerID]; ok {
				copied.Author = a.Username
			}
			out = append(out, copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeStore) CreatePlaylist(_ context.Context, p *model.Playlist) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.nextID("pl")
	p.CreatedAt = f.tick()
	copied := *p
	copied.Videos = slices.Clone(p.Videos)
	f.playlists[p.ID] = &copied
	return nil
}

func (f *fakeStore) GetPlaylist(_ context.Context, id string) (*model.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.playlistList(func(p *model.Playlist) bool { return p.ID == id })
	if len(list) == 0 {
		return nil, apperror.NotFound("playlist", id)
	}
	return &list[0], nil
}

func (f *fakeStore) ListPlaylistsByOwner(_ context.Context, ownerID string) ([]model.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playlistList(func(p *model.Playlist) bool { return p.OwnerID == ownerID }), nil
}

func (f *fakeStore) ListPublicPlaylists(_ context.Context) ([]model.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playlistList(func(p *model.Playlist) bool { return !p.IsPrivate }), nil
}

func (f *fakeStore) UpdatePlaylist(_ context.Context, id string, patch model.PlaylistPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.playlists[id]
	if !ok {
		return apperror.NotFound("playlist", id)
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.IsPrivate != nil {
		p.IsPrivate = *patch.IsPrivate
	}
	return nil
}

func (f *fakeStore) AddPlaylistEntry(_ context.Context, playlistID string, e model.PlaylistEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.playlists[playlistID]
	if !ok {
		return apperror.NotFound("playlist", playlistID)
	}
	if p.Contains(e.ID) {
		return apperror.Conflict("video already exists in playlist")
	}
	p.Videos = append(p.Videos, e)
	return nil
}

func (f *fakeStore) RemovePlaylistEntry(_ context.Context, playlistID, videoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.playlists[playlistID]
	if !ok || !p.Contains(videoID) {
		return apperror.NotFound("playlist video", videoID)
	}
	p.Videos = slices.DeleteFunc(p.Videos, func(e model.PlaylistEntry) bool { return e.ID == videoID })
	return nil
}

func (f *fakeStore) DeletePlaylist(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.playlists[id]; !ok {
		return apperror.NotFound("playlist", id)
	}
	delete(f.playlists, id)
	return nil
}

// =========================================================================
// FAKE FILES AND DISPATCHER
// =========================================================================

type fakeFiles struct {
	saved   map[string]string
	removed []string
	saveErr error
}

func newFakeFiles() *fakeFiles { return &fakeFiles{saved: map[string]string{}} }

func (f *fakeFiles) Save(name string, r io.Reader) (int64, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	if _, ok := f.saved[name]; ok {
		return 0, apperror.Conflict("a video with this file name already exists")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	f.saved[name] = string(b)
	return int64(len(b)), nil
}

func (f *fakeFiles) Remove(names ...string) error {
	for _, n := range names {
		delete(f.saved, n)
		f.removed = append(f.removed, n)
	}
	return nil
}

type fakeDispatcher struct {
	tasks []media.Task
	err   error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, t media.Task) error {
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, t)
	return nil
}

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedAccount stores an account directly and returns its identity.
func seedAccount(t *testing.T, store *fakeStore, username string, perm model.Permission) model.Identity {
	t.Helper()
	a := &model.Account{
		Username:   username,
		Email:      username + "@example.com",
		Permission: perm,
		Auth:       model.LocalAuth("hash"),
	}
	if err := store.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("seeding account %q: %v", username, err)
	}
	return a.Identity()
}

// seedVideo stores a video owned by owner and returns its id.
func seedVideo(t *testing.T, store *fakeStore, owner model.Identity, title string, stat model.Stat, tags ...string) string {
	t.Helper()
	v := &model.Video{
		OwnerID: owner.AccountID,
		Title:   title,
		Tags:    tags,
		Path:    owner.AccountID + "_" + title + ".mp4",
		Thumb:   owner.AccountID + "_" + title + ".png",
		Cover:   owner.AccountID + "_" + title + "_preview.webm",
		Stat:    stat,
	}
	if err := store.CreateVideo(context.Background(), v); err != nil {
		t.Fatalf("seeding video %q: %v", title, err)
	}
	return v.ID
}
