// Package events pushes server-side events to websocket clients.
//
// Each connected client is bound to the identity that opened the socket.
// An event addressed to an owner reaches that owner's sockets and every
// admin socket; an event without owner reaches everyone.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"nhooyr.io/websocket"

	"github.com/sakif/watchme/internal/model"
)

// MediaStatus is published when a video's media generation settles.
const MediaStatus = "media.status"

// Event is one message on the wire: {"event": ..., "data": ...}.
type Event struct {
	Name    string `json:"event"`
	OwnerID string `json:"-"`
	Data    any    `json:"data"`
}

// MediaStatusData is the payload of MediaStatus events.
type MediaStatusData struct {
	VideoID     string            `json:"videoId"`
	OwnerID     string            `json:"ownerId"`
	MediaStatus model.MediaStatus `json:"mediaStatus"`
}

// MediaStatusChanged builds the event for a video's new status.
func MediaStatusChanged(videoID, ownerID string, status model.MediaStatus) Event {
	return Event{
		Name:    MediaStatus,
		OwnerID: ownerID,
		Data:    MediaStatusData{VideoID: videoID, OwnerID: ownerID, MediaStatus: status},
	}
}

// sendBuffer is how many events may queue for a slow client before new
// ones are dropped for it.
const sendBuffer = 64

type client struct {
	conn     *websocket.Conn
	identity model.Identity
	send     chan []byte
}

func (c *client) wants(ev Event) bool {
	return ev.OwnerID == "" || c.identity.IsAdmin() || c.identity.AccountID == ev.OwnerID
}

// Hub tracks live sockets and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
	}
}

// Publish delivers ev to every interested client without blocking.
func (h *Hub) Publish(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encoding event", slog.String("event", ev.Name), slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("dropping event for slow client",
				slog.String("event", ev.Name),
				slog.String("accountID", c.identity.AccountID),
			)
		}
	}
}

// ServeWS upgrades the request and serves the socket until either side
// closes it. The caller has already authenticated id.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, id model.Identity) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.logger.Warn("websocket accept failed", slog.String("error", err.Error()))
		return
	}

	c := &client{conn: conn, identity: id, send: make(chan []byte, sendBuffer)}
	if !h.add(c) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	h.logger.Debug("websocket client connected", slog.String("username", id.Username))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer conn.Close(websocket.StatusNormalClosure, "")
		for {
			select {
			case msg, ok := <-c.send:
				if !ok {
					return
				}
				if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Clients only listen; reading keeps control frames flowing and
	// notices the close.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}

	h.remove(c)
	h.logger.Debug("websocket client disconnected", slog.String("username", id.Username))
}

// ClientCount is the number of open sockets.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}
