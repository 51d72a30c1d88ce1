package transport

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"vjlink/internal/protocol"
)

// Socket is the low-latency websocket backend for an endpoint that dials a
// Hub. Delivery through the hub is exactly-once per peer, so no
// deduplication is needed on this path.
type Socket struct {
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	handlers []Handler
	closed   bool

	done      chan struct{}
	closeOnce sync.Once
}

// DialSocket connects to a hub at url (e.g. ws://host:8080/ws).
func DialSocket(url string, log *slog.Logger) (*Socket, error) {
	if log == nil {
		log = slog.Default()
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	s := &Socket{conn: conn, log: log, done: make(chan struct{})}
	go s.readLoop()
	return s, nil
}

// Send stamps and publishes the message. Write failures are swallowed; the
// connection monitor is what surfaces a dead link, not a send error.
func (s *Socket) Send(msg protocol.Message) {
	msg.Stamp()
	data, ok := protocol.Encode(msg)
	if !ok {
		s.log.Warn("dropping unserializable message", "type", msg.Type)
		return
	}
	s.writeMu.Lock()
	err := s.conn.WriteMessage(websocket.TextMessage, data)
	s.writeMu.Unlock()
	if err != nil {
		s.log.Debug("socket write failed", "err", err)
	}
}

// OnMessage registers a handler for inbound messages.
func (s *Socket) OnMessage(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

func (s *Socket) readLoop() {
	defer s.Close()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.log.Debug("socket read failed", "err", err)
			}
			return
		}
		msg, ok := protocol.Decode(data)
		if !ok {
			continue
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		handlers := make([]Handler, len(s.handlers))
		copy(handlers, s.handlers)
		s.mu.Unlock()
		for _, h := range handlers {
			h(msg)
		}
	}
}

// Close shuts the connection down exactly once.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
		s.conn.Close()
	})
	return nil
}
