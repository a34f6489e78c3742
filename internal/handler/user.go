package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/watchme/internal/auth"
	"github.com/sakif/watchme/internal/service"
)

// UserHandler serves the caller's own account, the admin account list,
// the caller's videos and comments, and the GitHub repository proxy.
//
// Every route sits behind RequireAuth; the identity always comes from the
// request context, never from the URL.
type UserHandler struct {
	accounts *service.AccountService
	videos   *service.VideoService
	comments *service.CommentService
	logger   *slog.Logger
}

func NewUserHandler(
	accounts *service.AccountService,
	videos *service.VideoService,
	comments *service.CommentService,
	logger *slog.Logger,
) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		videos:   videos,
		comments: comments,
		logger:   logger,
	}
}

// HandleList returns every account. Administrators only.
//
// HTTP: GET /api/users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// HandleMe returns the currently authenticated account.
//
// HTTP: GET /api/users/me
//
// The frontend calls this on load to learn who is signed in.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.Me(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// HandleMyVideos lists the caller's videos, private ones included.
//
// HTTP: GET /api/users/me/videos
func (h *UserHandler) HandleMyVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.videos.Mine(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, videos)
}

// HandleMyComments lists the caller's comments.
//
// HTTP: GET /api/users/me/comments
func (h *UserHandler) HandleMyComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.Mine(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// =========================================================================
// GITHUB PROXY
// =========================================================================

type createRepoRequest struct {
	Name        string `json:"name"        validate:"required,max=100"`
	Description string `json:"description" validate:"max=350"`
	Private     bool   `json:"private"`
}

// HandleGitHubRepos lists the caller's GitHub repositories.
//
// HTTP: GET /api/users/github/repos
func (h *UserHandler) HandleGitHubRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.accounts.GitHubRepos(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repos)
}

// HandleGitHubCreateRepo creates a repository on the caller's GitHub account.
//
// HTTP: POST /api/users/github/repos
// REQUEST BODY: {"name": "demo", "description": "...", "private": false}
func (h *UserHandler) HandleGitHubCreateRepo(w http.ResponseWriter, r *http.Request) {
	var req createRepoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	repo, err := h.accounts.GitHubCreateRepo(r.Context(), auth.IdentityFromContext(r.Context()), auth.NewRepo{
		Name:        req.Name,
		Description: req.Description,
		Private:     req.Private,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, repo)
}

// HandleGitHubCommits lists commits of one repository.
//
// HTTP: GET /api/users/github/repos/{repo}/commits
func (h *UserHandler) HandleGitHubCommits(w http.ResponseWriter, r *http.Request) {
	commits, err := h.accounts.GitHubCommits(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "repo"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commits)
}
