package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/watchme/internal/auth"
	"github.com/sakif/watchme/internal/model"
	"github.com/sakif/watchme/internal/service"
)

// PlaylistHandler serves playlists. Reads of a private playlist by anyone
// but its owner or an administrator answer 404, like a missing one.
type PlaylistHandler struct {
	playlists *service.PlaylistService
	logger    *slog.Logger
}

func NewPlaylistHandler(playlists *service.PlaylistService, logger *slog.Logger) *PlaylistHandler {
	return &PlaylistHandler{playlists: playlists, logger: logger}
}

type createPlaylistRequest struct {
	Name      string `json:"name"      validate:"required,max=100"`
	IsPrivate *bool  `json:"isPrivate"`
}

type updatePlaylistRequest struct {
	Name      *string `json:"name"      validate:"omitnil,max=100"`
	IsPrivate *bool   `json:"isPrivate"`
}

type playlistVideoRequest struct {
	VideoID string `json:"videoId" validate:"required"`
}

// HandleListPublic returns every public playlist.
//
// HTTP: GET /api/playlists
func (h *PlaylistHandler) HandleListPublic(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.playlists.ListPublic(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

// HandleMine returns the caller's playlists.
//
// HTTP: GET /api/playlists/mine
func (h *PlaylistHandler) HandleMine(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.playlists.Mine(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

// HandleGet returns one playlist.
//
// HTTP: GET /api/playlists/{id}
func (h *PlaylistHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.playlists.Get(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleCreate makes an empty playlist. isPrivate defaults to true.
//
// HTTP: POST /api/playlists
// REQUEST BODY: {"name": "watch later", "isPrivate": false}
func (h *PlaylistHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createPlaylistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.playlists.Create(r.Context(), auth.IdentityFromContext(r.Context()), req.Name, req.IsPrivate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleAuto creates a generated-name playlist seeded with one video.
//
// HTTP: POST /api/playlists/auto
// REQUEST BODY: {"videoId": "..."}
func (h *PlaylistHandler) HandleAuto(w http.ResponseWriter, r *http.Request) {
	var req playlistVideoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.playlists.Auto(r.Context(), auth.IdentityFromContext(r.Context()), req.VideoID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleAddVideo appends a video snapshot.
//
// HTTP: POST /api/playlists/{id}/videos
// REQUEST BODY: {"videoId": "..."}
func (h *PlaylistHandler) HandleAddVideo(w http.ResponseWriter, r *http.Request) {
	var req playlistVideoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.playlists.AddVideo(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), req.VideoID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleRemoveVideo takes a video out of the playlist.
//
// HTTP: DELETE /api/playlists/{id}/videos/{videoId}
func (h *PlaylistHandler) HandleRemoveVideo(w http.ResponseWriter, r *http.Request) {
	p, err := h.playlists.RemoveVideo(r.Context(), auth.IdentityFromContext(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "videoId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUpdate renames the playlist or changes its privacy.
//
// HTTP: PATCH /api/playlists/{id}
// REQUEST BODY: any of {"name", "isPrivate"}
func (h *PlaylistHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updatePlaylistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.playlists.Update(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), model.PlaylistPatch{
		Name:      req.Name,
		IsPrivate: req.IsPrivate,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDelete removes a playlist.
//
// HTTP: DELETE /api/playlists/{id}
func (h *PlaylistHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.playlists.Delete(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
