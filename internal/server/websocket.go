package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jeongseonghan/fft-ocean/internal/logger"
	"github.com/jeongseonghan/fft-ocean/internal/ocean"
	"github.com/jeongseonghan/fft-ocean/internal/protocol"
)

// Per-client write limits. A client whose queue fills up, or whose socket
// stays unwritable for writeWait, is dropped.
const (
	clientQueueSize = 16
	writeWait       = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage represents a JSON WebSocket message.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// inboundMessage is a client request; Payload is decoded by Type.
type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outbound struct {
	messageType int
	data        []byte
}

// wsClient is one connection with its own write queue. Only the writer
// goroutine writes to conn.
type wsClient struct {
	conn *websocket.Conn
	send chan outbound
}

// WSHub manages WebSocket connections. Height frames go out as binary
// messages, everything else as JSON text. Broadcasts never block on a
// client socket.
type WSHub struct {
	clients map[*websocket.Conn]*wsClient
	log     *zap.Logger
	mu      sync.Mutex
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients: make(map[*websocket.Conn]*wsClient),
		log:     logger.Named("ws"),
	}
}

// AddClient registers a new WebSocket connection and starts its writer.
func (h *WSHub) AddClient(conn *websocket.Conn) {
	c := &wsClient{
		conn: conn,
		send: make(chan outbound, clientQueueSize),
	}

	h.mu.Lock()
	h.clients[conn] = c
	n := len(h.clients)
	h.mu.Unlock()

	go h.writeLoop(c)
	h.log.Info("Client connected", zap.Int("clients", n))
}

func (h *WSHub) writeLoop(c *wsClient) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(msg.messageType, msg.data); err != nil {
			h.log.Warn("Write failed", zap.Error(err))
			h.RemoveClient(c.conn)
			return
		}
	}
}

// RemoveClient removes a WebSocket connection. Removing an unknown or
// already removed connection is a no-op.
func (h *WSHub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	c, ok := h.clients[conn]
	if ok {
		h.dropLocked(c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.log.Info("Client disconnected", zap.Int("clients", n))
	}
}

// dropLocked unregisters c, stops its writer and closes the socket so the
// read loop ends too. h.mu must be held.
func (h *WSHub) dropLocked(c *wsClient) {
	h.unregisterLocked(c)
	c.conn.Close()
}

func (h *WSHub) unregisterLocked(c *wsClient) {
	delete(h.clients, c.conn)
	close(c.send)
}

// Clients returns the number of connected clients.
func (h *WSHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// enqueueLocked queues msg for c, dropping c if its queue is full.
// h.mu must be held.
func (h *WSHub) enqueueLocked(c *wsClient, msg outbound) {
	select {
	case c.send <- msg:
	default:
		h.log.Warn("Client too slow, dropping", zap.String("remote", c.conn.RemoteAddr().String()))
		h.dropLocked(c)
	}
}

// send queues one message for every client.
func (h *WSHub) send(messageType int, data []byte) {
	msg := outbound{messageType: messageType, data: data}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		h.enqueueLocked(c, msg)
	}
}

// Broadcast sends a JSON message to all connected clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("Marshal failed", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	h.send(websocket.TextMessage, data)
}

// SendTo sends a JSON message to a single client.
func (h *WSHub) SendTo(conn *websocket.Conn, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("Marshal failed", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[conn]; ok {
		h.enqueueLocked(c, outbound{messageType: websocket.TextMessage, data: data})
	}
}

// BroadcastFrame sends an encoded height frame to all clients.
func (h *WSHub) BroadcastFrame(f *protocol.HeightFrame) {
	h.send(websocket.BinaryMessage, f.Encode())
}

// Publish implements FrameSink.
func (h *WSHub) Publish(f *protocol.HeightFrame) {
	if h.Clients() == 0 {
		return
	}
	h.BroadcastFrame(f)
}

// ParamsChanged implements ParamsListener. Browsers get parameter changes
// as one JSON "params" message.
func (h *WSHub) ParamsChanged(p ocean.Params) {
	h.Broadcast(WSMessage{Type: "params", Payload: newParamsResponse(p)})
}

// BroadcastStatus sends a status update to all clients.
func (h *WSHub) BroadcastStatus(status, message string) {
	h.Broadcast(WSMessage{
		Type: "status",
		Payload: map[string]string{
			"status":  status,
			"message": message,
		},
	})
}

func logMessage(level, message string) WSMessage {
	return WSMessage{
		Type: "log",
		Payload: map[string]string{
			"level":   level,
			"message": message,
		},
	}
}

// CloseAll disconnects every client.
func (h *WSHub) CloseAll() {
	closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")

	h.mu.Lock()
	var closing []*wsClient
	for _, c := range h.clients {
		h.unregisterLocked(c)
		closing = append(closing, c)
	}
	h.mu.Unlock()

	for _, c := range closing {
		c.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
		c.conn.Close()
	}
}
