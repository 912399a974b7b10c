package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/onvif-discover/internal/discovery"
	"github.com/muurk/onvif-discover/internal/logging"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Messages queued per client before it is considered too slow and dropped
	clientBuffer = 64
)

// Message is one discovery event as pushed to feed clients.
type Message struct {
	Type      string             `json:"type"`
	RunID     string             `json:"run_id"`
	Mode      discovery.Mode     `json:"mode"`
	Timestamp time.Time          `json:"timestamp"`
	Host      string             `json:"host,omitempty"`
	Count     int                `json:"count"`
	Devices   []discovery.Device `json:"devices,omitempty"`
}

func newMessage(ev discovery.Event, mode discovery.Mode) Message {
	return Message{
		Type:      ev.Kind.String(),
		RunID:     ev.RunID,
		Mode:      mode,
		Timestamp: time.Now().UTC(),
		Host:      ev.Host,
		Count:     ev.Count,
		Devices:   ev.Devices,
	}
}

type client struct {
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

// hub fans discovery events out to connected websocket clients.
type hub struct {
	upgrader  websocket.Upgrader
	onConnect func(delta int)

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

func newHub(onConnect func(delta int)) *hub {
	if onConnect == nil {
		onConnect = func(int) {}
	}
	return &hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The feed is read-only and carries no credentials.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		onConnect: onConnect,
		clients:   make(map[*client]struct{}),
	}
}

// serveWS upgrades the request and streams events until the peer goes away.
func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("Failed to upgrade websocket connection",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer), remoteAddr: r.RemoteAddr}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	logging.LogConnection(c.remoteAddr, "websocket_connected")

	go c.writePump()
	c.readPump(h)
}

func (h *hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.onConnect(1)
	return true
}

// unregister removes c and closes its send queue, which ends its write pump.
func (h *hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.onConnect(-1)
}

// broadcast queues msg for every client. Clients whose queue is full are dropped.
func (h *hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error("Failed to marshal feed message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			logging.Warn("Feed client too slow, dropping", zap.String("remote_addr", c.remoteAddr))
			h.removeLocked(c)
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// close disconnects every client and refuses new ones.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// readPump discards client input and keeps the read deadline alive via pongs.
func (c *client) readPump(h *hub) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
		logging.LogConnection(c.remoteAddr, "websocket_closed")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Debug("Websocket closed unexpectedly",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
