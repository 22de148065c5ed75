package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"dispatchline/internal/domain"
	"dispatchline/internal/engine/auth"
)

const (
	streamCall        = "call"
	streamCallRemoved = "call_removed"
	streamUnit        = "unit"
	streamIncident    = "incident"
)

const (
	hubSendBuffer = 64
	hubWriteWait  = 10 * time.Second
	hubPingPeriod = 30 * time.Second
)

type streamEvent struct {
	Type     string           `json:"type"`
	Call     *domain.Call     `json:"call,omitempty"`
	Unit     *domain.Unit     `json:"unit,omitempty"`
	Incident *domain.Incident `json:"incident,omitempty"`
}

type hubClient struct {
	perms []string
	send  chan streamEvent
}

// Hub pushes committed dispatch changes to websocket subscribers.
type Hub struct {
	logger   logrus.FieldLogger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*hubClient]struct{}
}

func NewHub(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*hubClient]struct{}),
	}
}

func (h *Hub) PublishCall(c domain.Call) {
	h.broadcast(streamEvent{Type: streamCall, Call: &c})
}

func (h *Hub) PublishUnit(u domain.Unit) {
	h.broadcast(streamEvent{Type: streamUnit, Unit: &u})
}

func (h *Hub) PublishIncident(inc domain.Incident) {
	h.broadcast(streamEvent{Type: streamIncident, Incident: &inc})
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcast drops the event for clients whose buffer is full. Clients that
// may not see a call get a removal carrying only its id.
func (h *Hub) broadcast(evt streamEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		out := evt
		if evt.Call != nil && !evt.Call.Ended && !auth.CanSeeCall(c.perms, *evt.Call) {
			out = streamEvent{Type: streamCallRemoved, Call: &domain.Call{ID: evt.Call.ID}}
		}
		select {
		case c.send <- out:
		default:
			h.logger.WithField("type", evt.Type).Warn("stream subscriber lagging; event dropped")
		}
	}
}

func (h *Hub) register(c *hubClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// ServeWS upgrades the request and streams events until the client leaves.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFromContext(r.Context())
	if !ok || !auth.HasPermission(p.Permissions, auth.PermUnit) {
		respondStatusError(w, newAPIError(http.StatusForbidden, "forbidden", "permission unit required", map[string]any{"permission": auth.PermUnit}))
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	client := &hubClient{perms: p.Permissions, send: make(chan streamEvent, hubSendBuffer)}
	h.register(client)
	defer h.unregister(client)
	log := h.logger.WithField("actor_id", p.ActorID)
	log.Debug("stream subscriber connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.WithError(err).Debug("stream subscriber read failed")
				}
				return
			}
		}
	}()

	ping := time.NewTicker(hubPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-done:
			log.Debug("stream subscriber disconnected")
			return
		case evt := <-client.send:
			data, err := json.Marshal(evt)
			if err != nil {
				log.WithError(err).Warn("encode stream event")
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
