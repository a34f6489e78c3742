package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/watchme/internal/auth"
	"github.com/sakif/watchme/internal/events"
	"github.com/sakif/watchme/internal/handler"
	"github.com/sakif/watchme/internal/media"
	"github.com/sakif/watchme/internal/model"
	"github.com/sakif/watchme/internal/repository/sqlite"
	"github.com/sakif/watchme/internal/service"
)

// =========================================================================
// TEST API
// =========================================================================
//
// The handlers run against the real services and an in-memory SQLite
// store. Only media dispatch and GitHub are faked, so a test exercises the
// same path as a real request from routing to SQL.

const testPassword = "correct-horse"

type testAPI struct {
	router    http.Handler
	store     *sqlite.DB
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	hub       *events.Hub
	tasks     *recordingDispatcher
	uploadDir string
}

type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []media.Task
	err   error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, t media.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.tasks = append(d.tasks, t)
	return nil
}

func (d *recordingDispatcher) Tasks() []media.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]media.Task(nil), d.tasks...)
}

// fakeGitHub stands in for the OAuth endpoints.
type fakeGitHub struct {
	user  *auth.GitHubUser
	token string
	err   error
}

func (f *fakeGitHub) AuthURL(state string) string {
	return "https://github.example/login/oauth/authorize?state=" + state
}

func (f *fakeGitHub) Exchange(_ context.Context, code string) (*auth.GitHubUser, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.user, f.token, nil
}

type apiOptions struct {
	github    handler.GitHubAuthenticator
	maxUpload int64
}

func newTestAPI(t *testing.T) *testAPI {
	return newTestAPIWith(t, apiOptions{})
}

func newTestAPIWith(t *testing.T, opts apiOptions) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	dir := t.TempDir()
	files, err := media.NewFileStore(dir)
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("handler-test-secret-0123", time.Hour)
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceWithCost(bcrypt.MinCost)

	if opts.maxUpload == 0 {
		opts.maxUpload = 8 << 20
	}

	tasks := &recordingDispatcher{}
	hub := events.NewHub(logger)
	t.Cleanup(hub.Close)

	accounts := service.NewAccountService(store, tokens, passwords, nil, logger)
	videos := service.NewVideoService(store, files, tasks, logger)
	comments := service.NewCommentService(store, store, logger)
	playlists := service.NewPlaylistService(store, store, logger)

	authH := handler.NewAuthHandler(accounts, opts.github, time.Hour, "http://front.test/app", logger)
	userH := handler.NewUserHandler(accounts, videos, comments, logger)
	videoH := handler.NewVideoHandler(videos, opts.maxUpload, logger)
	commentH := handler.NewCommentHandler(comments, logger)
	playlistH := handler.NewPlaylistHandler(playlists, logger)
	eventsH := handler.NewEventsHandler(hub, tokens)

	r := chi.NewRouter()
	r.Get("/ws", eventsH.HandleWS)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authH.HandleRegister)
		r.Post("/login", authH.HandleLogin)
		r.Post("/check-credentials", authH.HandleCheckCredentials)
		r.Post("/logout", authH.HandleLogout)
		r.Get("/github", authH.HandleGitHubLogin)
		r.Get("/github/callback", authH.HandleGitHubCallback)
	})
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			r.Get("/videos", videoH.HandleList)
			r.Get("/videos/search", videoH.HandleSearch)
			r.Post("/videos/similar", videoH.HandleSimilarByTags)
			r.Get("/videos/{id}", videoH.HandleGet)
			r.Get("/videos/{id}/similar", videoH.HandleSimilar)
			r.Get("/videos/{id}/status", videoH.HandleStatus)
			r.Post("/videos/{id}/views", videoH.HandleView)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/users", userH.HandleList)
			r.Get("/users/me", userH.HandleMe)
			r.Get("/users/me/videos", userH.HandleMyVideos)
			r.Get("/users/me/comments", userH.HandleMyComments)
			r.Get("/users/github/repos", userH.HandleGitHubRepos)

			r.Post("/videos", videoH.HandleUpload)
			r.Patch("/videos/{id}", videoH.HandleEdit)
			r.Post("/videos/{id}/stat", videoH.HandleToggleStat)
			r.Delete("/videos/{id}", videoH.HandleDelete)

			r.Get("/comments", commentH.HandleList)
			r.Get("/comments/video/{videoId}", commentH.HandleListByVideo)
			r.Post("/comments/video/{videoId}", commentH.HandlePost)
			r.Patch("/comments/{id}", commentH.HandleEdit)
			r.Delete("/comments/{id}", commentH.HandleDelete)

			r.Get("/playlists", playlistH.HandleListPublic)
			r.Get("/playlists/mine", playlistH.HandleMine)
			r.Post("/playlists", playlistH.HandleCreate)
			r.Post("/playlists/auto", playlistH.HandleAuto)
			r.Get("/playlists/{id}", playlistH.HandleGet)
			r.Patch("/playlists/{id}", playlistH.HandleUpdate)
			r.Delete("/playlists/{id}", playlistH.HandleDelete)
			r.Post("/playlists/{id}/videos", playlistH.HandleAddVideo)
			r.Delete("/playlists/{id}/videos/{videoId}", playlistH.HandleRemoveVideo)
		})
	})

	return &testAPI{
		router:    r,
		store:     store,
		tokens:    tokens,
		passwords: passwords,
		hub:       hub,
		tasks:     tasks,
		uploadDir: dir,
	}
}

// =========================================================================
// REQUEST HELPERS
// =========================================================================

// do sends a request. body is JSON-encoded unless it is a string, which is
// sent verbatim so tests can post malformed JSON. token may be empty.
func (a *testAPI) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

// upload posts a multipart video. An empty meta or fileName leaves that
// part out.
func (a *testAPI) upload(t *testing.T, token, meta, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if meta != "" {
		require.NoError(t, mw.WriteField("video", meta))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/videos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

// account creates a local account with testPassword and returns it with a
// valid token.
func (a *testAPI) account(t *testing.T, username string, perm model.Permission) (*model.Account, string) {
	t.Helper()

	hash, err := a.passwords.Hash(testPassword)
	require.NoError(t, err)

	acc := &model.Account{
		Username:   username,
		Email:      username + "@example.com",
		Permission: perm,
		Auth:       model.LocalAuth(hash),
	}
	require.NoError(t, a.store.CreateAccount(context.Background(), acc))

	token, err := a.tokens.Generate(acc.Identity())
	require.NoError(t, err)
	return acc, token
}

// video stores a ready video owned by owner directly in the store.
func (a *testAPI) video(t *testing.T, owner *model.Account, title string, stat model.Stat, tags ...string) string {
	t.Helper()

	v := &model.Video{
		OwnerID:     owner.ID,
		Title:       title,
		Desc:        "about " + title,
		Tags:        tags,
		Path:        owner.ID + "_" + title + ".mp4",
		Thumb:       owner.ID + "_" + title + ".png",
		Cover:       owner.ID + "_" + title + "_preview.webm",
		Stat:        stat,
		MediaStatus: model.MediaReady,
	}
	require.NoError(t, a.store.CreateVideo(context.Background(), v))
	return v.ID
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out), "body: %s", rr.Body.String())
	return out
}

