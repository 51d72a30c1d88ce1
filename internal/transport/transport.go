// Duplex control-message channel with interchangeable backends.
package transport

import (
	"sync"

	"vjlink/internal/protocol"
)

// Handler is invoked once per distinct message ID observed on a transport.
type Handler func(protocol.Message)

// Transport is a duplex, at-most-once, unordered-but-timestamped message
// channel between the control panel and the visual receiver. Send never
// fails from the caller's point of view: an installation must not crash on
// communication errors, so write failures are swallowed by the backend.
type Transport interface {
	Send(protocol.Message)
	OnMessage(Handler)
	Close() error
}

// dedup tracks recently seen message IDs with bounded memory. Backends that
// can observe the same write more than once (polling, mirrored channels)
// use it to enforce at-most-once local processing.
type dedup struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
	limit int
}

func newDedup(limit int) *dedup {
	if limit <= 0 {
		limit = 256
	}
	return &dedup{seen: make(map[string]struct{}), limit: limit}
}

// observe records id and reports whether it was seen for the first time.
// Empty IDs are never deduplicated; a message without an ID is processed
// as-is rather than silently merged with other anonymous messages.
func (d *dedup) observe(id string) bool {
	if id == "" {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return false
	}
	d.seen[id] = struct{}{}
	d.order = append(d.order, id)
	if len(d.order) > d.limit {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
	return true
}

// Mirror sends every message on the primary backend and additionally sends
// critical messages (liveness replies) on the secondary, guarding against one
// transport silently failing. Inbound messages from either backend are
// deduplicated by ID so handlers fire once per logical send.
type Mirror struct {
	primary   Transport
	secondary Transport

	mu       sync.Mutex
	handlers []Handler
	dedup    *dedup
	closed   bool
}

// NewMirror wraps primary and secondary into a single transport.
func NewMirror(primary, secondary Transport) *Mirror {
	m := &Mirror{primary: primary, secondary: secondary, dedup: newDedup(0)}
	primary.OnMessage(m.receive)
	secondary.OnMessage(m.receive)
	return m
}

// Send publishes on the primary backend, mirroring critical messages.
func (m *Mirror) Send(msg protocol.Message) {
	msg.Stamp()
	m.primary.Send(msg)
	if msg.Critical() {
		m.secondary.Send(msg)
	}
}

// OnMessage registers a handler fired once per distinct message ID across
// both backends.
func (m *Mirror) OnMessage(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

func (m *Mirror) receive(msg protocol.Message) {
	if !m.dedup.observe(msg.ID) {
		return
	}
	m.mu.Lock()
	handlers := make([]Handler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()
	for _, h := range handlers {
		h(msg)
	}
}

// Close tears down both backends exactly once.
func (m *Mirror) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	err := m.primary.Close()
	if e := m.secondary.Close(); e != nil && err == nil {
		err = e
	}
	return err
}
