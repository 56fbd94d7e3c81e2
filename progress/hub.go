package progress

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smallnest/lexgraph/log"
)

const (
	writeWait      = 10 * time.Second
	defaultBacklog = 32
)

// Hub pushes updates to websocket clients subscribed to a session.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*subscriber]struct{}
	upgrader websocket.Upgrader
	backlog  int
	onDrop   func()
	logger   log.Logger
}

type subscriber struct {
	conn *websocket.Conn
	send chan Event
}

// HubOptions configures NewHub.
type HubOptions struct {
	// Backlog is the per-client send buffer. Zero means 32.
	Backlog int
	// CheckOrigin overrides the upgrader origin check.
	CheckOrigin func(r *http.Request) bool
	// OnDrop is called for every update dropped because a client is slow.
	OnDrop func()
	Logger log.Logger
}

// NewHub creates an empty hub.
func NewHub(opts HubOptions) *Hub {
	if opts.Backlog <= 0 {
		opts.Backlog = defaultBacklog
	}
	return &Hub{
		sessions: make(map[string]map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
		backlog: opts.Backlog,
		onDrop:  opts.OnDrop,
		logger:  log.OrDefault(opts.Logger),
	}
}

// Notify implements Emitter.
func (h *Hub) Notify(ctx context.Context, sessionID, text string) {
	ev := Event{SessionID: sessionID, Status: text, Time: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions[sessionID] {
		select {
		case s.send <- ev:
		default:
			if h.onDrop != nil {
				h.onDrop()
			}
		}
	}
}

// Subscribers returns the number of clients connected for sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// ServeWS upgrades the request and streams sessionID's updates until the
// client disconnects. Inbound messages are read and discarded.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("progress: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s := &subscriber{conn: conn, send: make(chan Event, h.backlog)}
	h.register(sessionID, s)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for ev := range s.send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("progress: write to %s subscriber failed: %v", sessionID, err)
				// Keep draining so unregister never blocks.
				for range s.send {
				}
				return
			}
		}
	}()

	conn.SetReadLimit(4096)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.unregister(sessionID, s)
	<-writerDone
}

func (h *Hub) register(sessionID string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.sessions[sessionID]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.sessions[sessionID] = subs
	}
	subs[s] = struct{}{}
}

func (h *Hub) unregister(sessionID string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.sessions[sessionID]
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(h.sessions, sessionID)
	}
	close(s.send)
}
