package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"KineJump/internal/domain/models"
	xlogger "KineJump/pkg/logger"
)

const (
	liveSendBuffer = 64
	liveWriteWait  = 5 * time.Second
	livePingPeriod = 30 * time.Second
)

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// liveEvent is the wire format pushed to websocket subscribers.
type liveEvent struct {
	Type      string              `json:"type"`
	SessionID string              `json:"session_id"`
	Phase     *models.PhaseEvent  `json:"phase,omitempty"`
	Attempt   *models.JumpAttempt `json:"attempt,omitempty"`
}

type liveClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *liveClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// LiveHub fans engine events out to websocket subscribers, one subscription
// per session. Publishing never blocks: a subscriber whose buffer is full
// misses events rather than stalling the pipeline.
type LiveHub struct {
	log *xlogger.Logger

	mu      sync.RWMutex
	clients map[string]map[*liveClient]struct{}
}

// NewLiveHub builds an empty hub.
func NewLiveHub(log *xlogger.Logger) *LiveHub {
	return &LiveHub{
		log:     log,
		clients: make(map[string]map[*liveClient]struct{}),
	}
}

// OnPhase implements repository.EventSink.
func (h *LiveHub) OnPhase(sessionID string, ev models.PhaseEvent) {
	h.publish(sessionID, liveEvent{Type: "phase", SessionID: sessionID, Phase: &ev})
}

// OnAttempt implements repository.EventSink.
func (h *LiveHub) OnAttempt(sessionID string, a *models.JumpAttempt) {
	h.publish(sessionID, liveEvent{Type: "attempt", SessionID: sessionID, Attempt: a})
}

func (h *LiveHub) publish(sessionID string, ev liveEvent) {
	h.mu.RLock()
	subs := h.clients[sessionID]
	if len(subs) == 0 {
		h.mu.RUnlock()
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		h.mu.RUnlock()
		h.log.Error("marshal live event", xlogger.Error(err))
		return
	}
	for c := range subs {
		select {
		case c.send <- payload:
		default:
			// slow consumer, drop the event for this client
		}
	}
	h.mu.RUnlock()
}

// Serve upgrades the connection and streams events for one session until the
// client disconnects.
func (h *LiveHub) Serve(c echo.Context) error {
	sessionID := c.Param("id")

	conn, err := liveUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &liveClient{
		conn: conn,
		send: make(chan []byte, liveSendBuffer),
		done: make(chan struct{}),
	}
	h.add(sessionID, client)
	h.log.Debug("live subscriber connected", xlogger.String("session_id", sessionID))

	go h.writeLoop(client)
	h.readLoop(client)

	h.remove(sessionID, client)
	h.log.Debug("live subscriber disconnected", xlogger.String("session_id", sessionID))
	return nil
}

func (h *LiveHub) add(sessionID string, c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.clients[sessionID]
	if !ok {
		subs = make(map[*liveClient]struct{})
		h.clients[sessionID] = subs
	}
	subs[c] = struct{}{}
}

func (h *LiveHub) remove(sessionID string, c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.clients[sessionID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.clients, sessionID)
		}
	}
	c.close()
}

func (h *LiveHub) writeLoop(c *liveClient) {
	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()
	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// readLoop drains client messages so pings and close frames are processed.
func (h *LiveHub) readLoop(c *liveClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.close()
			return
		}
	}
}
