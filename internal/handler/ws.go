package handler

import (
	"net/http"

	"github.com/sakif/watchme/internal/apperror"
	"github.com/sakif/watchme/internal/auth"
	"github.com/sakif/watchme/internal/events"
)

// EventsHandler upgrades authenticated clients to a websocket that
// receives media status events.
type EventsHandler struct {
	hub    *events.Hub
	tokens *auth.TokenService
}

func NewEventsHandler(hub *events.Hub, tokens *auth.TokenService) *EventsHandler {
	return &EventsHandler{hub: hub, tokens: tokens}
}

// HandleWS serves the event socket.
//
// HTTP: GET /ws?token=<jwt>
//
// WHY A QUERY PARAMETER?
// Browsers cannot set an Authorization header on a websocket handshake, so
// the token may come in the URL. The header and the cookie still work for
// other clients and are tried when the query has no token.
func (h *EventsHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = auth.TokenFromRequest(r)
	}

	id, err := h.tokens.Validate(token)
	if err != nil {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	h.hub.ServeWS(w, r, id)
}
