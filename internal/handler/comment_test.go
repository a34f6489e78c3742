package handler_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/watchme/internal/handler"
	"github.com/sakif/watchme/internal/model"
)

func TestComments(t *testing.T) {
	api := newTestAPI(t)
	alice, aliceToken := api.account(t, "alice", model.PermissionUser)
	_, bobToken := api.account(t, "bob", model.PermissionUser)
	_, adminToken := api.account(t, "root", model.PermissionAdmin)

	video := api.video(t, alice, "clip", model.StatPublic)
	post := func(token, text string) int {
		return api.do(t, http.MethodPost, "/api/comments/video/"+video, map[string]string{"text": text}, token).Code
	}

	t.Run("fourth comment is refused", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.Equal(t, http.StatusCreated, post(bobToken, "nice"))
		}

		rr := api.do(t, http.MethodPost, "/api/comments/video/"+video, map[string]string{"text": "again"}, bobToken)
		require.Equal(t, http.StatusTooManyRequests, rr.Code)
		e := decode[handler.ErrorResponse](t, rr)
		assert.Equal(t, "limit_exceeded", e.Error)
		assert.Equal(t, "You have already commented this video 3 times!", e.Message)

		// The limit is per author.
		assert.Equal(t, http.StatusCreated, post(aliceToken, "thanks"))
	})

	t.Run("list by video", func(t *testing.T) {
		rr := api.do(t, http.MethodGet, "/api/comments/video/"+video, nil, aliceToken)
		require.Equal(t, http.StatusOK, rr.Code)

		comments := decode[[]model.Comment](t, rr)
		require.Len(t, comments, 4)
		assert.Equal(t, "alice", comments[0].Author, "newest first")
	})

	t.Run("mine", func(t *testing.T) {
		rr := api.do(t, http.MethodGet, "/api/users/me/comments", nil, bobToken)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decode[[]model.Comment](t, rr), 3)
	})

	t.Run("unknown video", func(t *testing.T) {
		rr := api.do(t, http.MethodPost, "/api/comments/video/nope", map[string]string{"text": "hello?"}, aliceToken)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("text validation", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, post(aliceToken, ""))
		assert.Equal(t, http.StatusBadRequest, post(aliceToken, strings.Repeat("a", 1001)))
	})

	t.Run("edit and delete are author or admin", func(t *testing.T) {
		rr := api.do(t, http.MethodGet, "/api/comments", nil, bobToken)
		require.Equal(t, http.StatusOK, rr.Code)
		var bobs model.Comment
		for _, c := range decode[[]model.Comment](t, rr) {
			if c.Author == "bob" {
				bobs = c
				break
			}
		}
		require.NotEmpty(t, bobs.ID)

		path := "/api/comments/" + bobs.ID
		assert.Equal(t, http.StatusForbidden,
			api.do(t, http.MethodPatch, path, map[string]string{"text": "hijacked"}, aliceToken).Code)

		rr = api.do(t, http.MethodPatch, path, map[string]string{"text": "edited"}, bobToken)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "edited", decode[model.Comment](t, rr).Text)

		assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodDelete, path, nil, aliceToken).Code)
		assert.Equal(t, http.StatusNoContent, api.do(t, http.MethodDelete, path, nil, adminToken).Code)
		assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodDelete, path, nil, adminToken).Code)
	})
}

func TestComments_PrivateVideoHidden(t *testing.T) {
	api := newTestAPI(t)
	alice, aliceToken := api.account(t, "alice", model.PermissionUser)
	_, bobToken := api.account(t, "bob", model.PermissionUser)
	_, adminToken := api.account(t, "root", model.PermissionAdmin)

	video := api.video(t, alice, "diary", model.StatPublic)
	rr := api.do(t, http.MethodPost, "/api/comments/video/"+video, map[string]string{"text": "private note"}, aliceToken)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/api/videos/"+video+"/stat", nil, aliceToken).Code)

	t.Run("by video answers like a missing video", func(t *testing.T) {
		rr := api.do(t, http.MethodGet, "/api/comments/video/"+video, nil, bobToken)
		require.Equal(t, http.StatusNotFound, rr.Code)
		assert.NotContains(t, rr.Body.String(), "private note")

		assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/comments/video/"+video, nil, aliceToken).Code)
		assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/comments/video/"+video, nil, adminToken).Code)
	})

	t.Run("left out of the full list", func(t *testing.T) {
		rr := api.do(t, http.MethodGet, "/api/comments", nil, bobToken)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, decode[[]model.Comment](t, rr))

		rr = api.do(t, http.MethodGet, "/api/comments", nil, aliceToken)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decode[[]model.Comment](t, rr), 1)
	})
}
