package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/watchme/internal/apperror"
	"github.com/sakif/watchme/internal/auth"
	"github.com/sakif/watchme/internal/model"
	"github.com/sakif/watchme/internal/service"
)

// multipartMemory is how much of an upload is buffered in memory before
// the rest spills to a temporary file.
const multipartMemory = 32 << 20

// VideoHandler serves the video catalogue: listing, search, similar videos,
// uploads and author edits.
type VideoHandler struct {
	videos    *service.VideoService
	maxUpload int64
	logger    *slog.Logger
}

// NewVideoHandler creates a VideoHandler. maxUpload caps the whole upload
// request body in bytes.
func NewVideoHandler(videos *service.VideoService, maxUpload int64, logger *slog.Logger) *VideoHandler {
	return &VideoHandler{
		videos:    videos,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// videoMeta is the JSON "video" part of an upload.
type videoMeta struct {
	Title string   `json:"title" validate:"required,max=100"`
	Desc  string   `json:"desc"  validate:"max=5000"`
	Tags  []string `json:"tags"  validate:"max=20,dive,tag"`
}

// editVideoRequest uses pointers so an absent field means "leave as is".
type editVideoRequest struct {
	Title *string   `json:"title" validate:"omitnil,max=100"`
	Desc  *string   `json:"desc"  validate:"omitnil,max=5000"`
	Tags  *[]string `json:"tags"  validate:"omitnil,max=20,dive,tag"`
}

type similarRequest struct {
	Tags []string `json:"tags" validate:"max=20,dive,tag"`
}

type viewsResponse struct {
	Visits int64 `json:"visits"`
}

// HandleList returns one page of public videos.
//
// HTTP: GET /api/videos?page=N
func (h *VideoHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := h.videos.List(r.Context(), pageParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleSearch matches ?query= against public videos.
//
// HTTP: GET /api/videos/search?query=cats+dogs&page=N
func (h *VideoHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	page, err := h.videos.Search(r.Context(), r.URL.Query().Get("query"), pageParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleSimilar recommends videos sharing a tag with the given one.
//
// HTTP: GET /api/videos/{id}/similar
func (h *VideoHandler) HandleSimilar(w http.ResponseWriter, r *http.Request) {
	videos, err := h.videos.Similar(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, videos)
}

// HandleSimilarByTags is the raw similarity lookup.
//
// HTTP: POST /api/videos/similar
// REQUEST BODY: {"tags": ["go", "tutorial"]}
func (h *VideoHandler) HandleSimilarByTags(w http.ResponseWriter, r *http.Request) {
	var req similarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	videos, err := h.videos.SimilarByTags(r.Context(), req.Tags)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, videos)
}

// HandleGet returns one video.
//
// HTTP: GET /api/videos/{id}
func (h *VideoHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	v, err := h.videos.Get(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleView counts one visit.
//
// HTTP: POST /api/videos/{id}/views
func (h *VideoHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	visits, err := h.videos.View(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewsResponse{Visits: visits})
}

// HandleStatus reports media generation progress.
//
// HTTP: GET /api/videos/{id}/status
func (h *VideoHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.videos.Status(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleUpload accepts a new video.
//
// HTTP: POST /api/videos (multipart/form-data)
// PARTS:
//
//	file  → the .mp4 itself
//	video → JSON {"title": "...", "desc": "...", "tags": ["..."]}
//
// 202 ACCEPTED, NOT 201:
// The record exists when we respond but its thumbnail and preview are still
// being generated. The response carries mediaStatus "pending"; the final
// status arrives over /ws or from GET /api/videos/{id}/status.
//
// SIZE LIMIT:
// http.MaxBytesReader fails the read once the body passes maxUpload, so an
// oversized upload is refused with 413 without being written out in full.
func (h *VideoHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, apperror.TooLarge("file", "upload exceeds the size limit"))
			return
		}
		writeError(w, apperror.ValidationFailed("file", "expected a multipart upload"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var meta videoMeta
	if err := json.NewDecoder(strings.NewReader(r.FormValue("video"))).Decode(&meta); err != nil {
		writeError(w, apperror.ValidationFailed("video", "video must be a JSON object with a title"))
		return
	}
	if err := validateStruct(&meta); err != nil {
		writeError(w, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperror.ValidationFailed("file", "file is required"))
		return
	}
	defer file.Close()

	video, err := h.videos.Upload(r.Context(), auth.IdentityFromContext(r.Context()), service.Upload{
		Title:    meta.Title,
		Desc:     meta.Desc,
		Tags:     meta.Tags,
		FileName: header.Filename,
		File:     file,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, video)
}

// HandleEdit changes title, description or tags.
//
// HTTP: PATCH /api/videos/{id}
// REQUEST BODY: any of {"title", "desc", "tags"}
func (h *VideoHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	var req editVideoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	v, err := h.videos.Edit(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), model.VideoPatch{
		Title: req.Title,
		Desc:  req.Desc,
		Tags:  req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleToggleStat flips the video between public and private.
//
// HTTP: POST /api/videos/{id}/stat
func (h *VideoHandler) HandleToggleStat(w http.ResponseWriter, r *http.Request) {
	v, err := h.videos.ToggleStat(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleDelete removes a video and its files.
//
// HTTP: DELETE /api/videos/{id}
func (h *VideoHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.videos.Delete(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
