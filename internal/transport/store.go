package transport

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"vjlink/internal/protocol"
)

// Role picks which shared slot an endpoint writes versus polls. The store
// keeps one slot per direction: the panel writes the message slot and polls
// the response slot, the receiver does the opposite.
type Role string

const (
	RoleControl Role = "control"
	RoleVisual  Role = "visual"
)

// Store is the polling fallback transport: a shared key-value store holding
// the single most-recently-written message per direction as JSON. The same
// write may be read on several poll ticks, so inbound messages are
// deduplicated by last-seen ID.
type Store struct {
	dir     string
	channel string
	role    Role
	poll    time.Duration
	log     *slog.Logger

	mu       sync.Mutex
	handlers []Handler
	lastSeen string
	closed   bool

	done      chan struct{}
	closeOnce sync.Once
}

// NewStore creates a store transport rooted at dir and starts its poll loop.
func NewStore(dir, channel string, role Role, poll time.Duration, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	s := &Store{
		dir:     dir,
		channel: channel,
		role:    role,
		poll:    poll,
		log:     log,
		done:    make(chan struct{}),
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		// The poll loop keeps running; writes will fail and be swallowed.
		log.Warn("store dir unavailable", "dir", dir, "err", err)
	}
	go s.run()
	return s
}

func (s *Store) outboundPath() string {
	suffix := "_message"
	if s.role == RoleVisual {
		suffix = "_response"
	}
	return filepath.Join(s.dir, s.channel+suffix+".json")
}

func (s *Store) inboundPath() string {
	suffix := "_response"
	if s.role == RoleVisual {
		suffix = "_message"
	}
	return filepath.Join(s.dir, s.channel+suffix+".json")
}

// Send stamps and writes the message into this side's slot, replacing the
// previous write. Serialization and storage failures are swallowed.
func (s *Store) Send(msg protocol.Message) {
	msg.Stamp()
	data, ok := protocol.Encode(msg)
	if !ok {
		s.log.Warn("dropping unserializable message", "type", msg.Type)
		return
	}
	if err := os.WriteFile(s.outboundPath(), data, 0o644); err != nil {
		s.log.Debug("store write failed", "path", s.outboundPath(), "err", err)
	}
}

// OnMessage registers a handler fired once per distinct message ID.
func (s *Store) OnMessage(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

func (s *Store) run() {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.pollOnce()
		case <-s.done:
			return
		}
	}
}

// pollOnce reads the inbound slot and dispatches its message unless the ID
// was already processed.
func (s *Store) pollOnce() {
	data, err := os.ReadFile(s.inboundPath())
	if err != nil {
		return
	}
	msg, ok := protocol.Decode(data)
	if !ok {
		return
	}
	s.mu.Lock()
	if s.closed || msg.ID == "" || msg.ID == s.lastSeen {
		s.mu.Unlock()
		return
	}
	s.lastSeen = msg.ID
	handlers := make([]Handler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
}

// Close stops the poll loop. Closing twice is a no-op.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
	return nil
}
