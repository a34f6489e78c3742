package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/watchme/internal/auth"
	"github.com/sakif/watchme/internal/service"
)

// CommentHandler serves comments on videos.
type CommentHandler struct {
	comments *service.CommentService
	logger   *slog.Logger
}

func NewCommentHandler(comments *service.CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

type commentRequest struct {
	Text string `json:"text" validate:"required,max=1000"`
}

// HandleList returns every comment, newest first, minus those on private
// videos the caller cannot see.
//
// HTTP: GET /api/comments
func (h *CommentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.List(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// HandleListByVideo returns the comments on one video.
//
// HTTP: GET /api/comments/video/{videoId}
func (h *CommentHandler) HandleListByVideo(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.ListByVideo(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "videoId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// HandlePost comments on a video.
//
// HTTP: POST /api/comments/video/{videoId}
// REQUEST BODY: {"text": "nice one"}
//
// A fourth comment by the same account on the same video is refused
// with 429 and nothing is written.
func (h *CommentHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.comments.Post(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "videoId"), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleEdit rewrites a comment's text. Author or administrator only.
//
// HTTP: PATCH /api/comments/{id}
func (h *CommentHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.comments.Edit(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleDelete removes a comment. Author or administrator only.
//
// HTTP: DELETE /api/comments/{id}
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.comments.Delete(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
