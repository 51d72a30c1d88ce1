package transport

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"vjlink/internal/protocol"
)

// Hub is the hosting side of the websocket backend. The receiver process is
// itself a participant: inbound frames from any peer reach the local
// handlers and are relayed to every other peer, and local sends fan out to
// all peers. It implements Transport.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	peers    map[*websocket.Conn]*sync.Mutex
	handlers []Handler
	closed   bool
}

// NewHub creates a hub with no connected peers.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:   log,
		peers: make(map[*websocket.Conn]*sync.Mutex),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handle upgrades an HTTP request to a websocket peer connection. Mount it
// on the receiver's HTTP server, e.g. at /ws.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", "err", err)
		return
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.peers[conn] = &sync.Mutex{}
	h.mu.Unlock()
	h.log.Info("peer connected", "remote", conn.RemoteAddr().String())
	go h.readLoop(conn)
}

// Send stamps the message and fans it out to every connected peer.
func (h *Hub) Send(msg protocol.Message) {
	msg.Stamp()
	data, ok := protocol.Encode(msg)
	if !ok {
		h.log.Warn("dropping unserializable message", "type", msg.Type)
		return
	}
	h.fanOut(nil, data)
}

// OnMessage registers a handler for frames received from any peer.
func (h *Hub) OnMessage(fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, fn)
}

func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.drop(conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, ok := protocol.Decode(data)
		if !ok {
			continue
		}
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return
		}
		handlers := make([]Handler, len(h.handlers))
		copy(handlers, h.handlers)
		h.mu.Unlock()
		for _, fn := range handlers {
			fn(msg)
		}
		h.fanOut(conn, data)
	}
}

// fanOut writes data to every peer except from. Per-connection write locks
// keep concurrent read loops from interleaving frames.
func (h *Hub) fanOut(from *websocket.Conn, data []byte) {
	h.mu.Lock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(h.peers))
	for conn, lock := range h.peers {
		if conn == from {
			continue
		}
		targets[conn] = lock
	}
	h.mu.Unlock()

	for conn, lock := range targets {
		lock.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		lock.Unlock()
		if err != nil {
			h.log.Debug("peer write failed", "err", err)
			h.drop(conn)
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, known := h.peers[conn]
	delete(h.peers, conn)
	h.mu.Unlock()
	if known {
		h.log.Info("peer disconnected", "remote", conn.RemoteAddr().String())
	}
	conn.Close()
}

// Close disconnects every peer exactly once.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.peers))
	for conn := range h.peers {
		conns = append(conns, conn)
	}
	h.peers = make(map[*websocket.Conn]*sync.Mutex)
	h.mu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}
	return nil
}
