package transport

import (
	"sync"

	"vjlink/internal/protocol"
)

// Bus is an in-process broadcast channel: every endpoint on the bus receives
// each message exactly once, except the sender. Delivery is synchronous, so
// timer callbacks and message handlers interleave on one logical thread the
// way the rest of the system assumes.
type Bus struct {
	mu        sync.Mutex
	endpoints []*BusEndpoint
	closed    bool
}

// NewBus creates an empty broadcast bus.
func NewBus() *Bus {
	return &Bus{}
}

// Endpoint attaches a new endpoint to the bus.
func (b *Bus) Endpoint() *BusEndpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := &BusEndpoint{bus: b}
	b.endpoints = append(b.endpoints, e)
	return e
}

func (b *Bus) broadcast(from *BusEndpoint, msg protocol.Message) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	endpoints := make([]*BusEndpoint, len(b.endpoints))
	copy(endpoints, b.endpoints)
	b.mu.Unlock()

	for _, e := range endpoints {
		if e == from {
			continue
		}
		e.deliver(msg)
	}
}

func (b *Bus) detach(e *BusEndpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cur := range b.endpoints {
		if cur == e {
			b.endpoints = append(b.endpoints[:i], b.endpoints[i+1:]...)
			return
		}
	}
}

// BusEndpoint is one participant on a Bus. It implements Transport.
type BusEndpoint struct {
	bus *Bus

	mu       sync.Mutex
	handlers []Handler
	closed   bool
}

// Send stamps and broadcasts the message to every other endpoint.
func (e *BusEndpoint) Send(msg protocol.Message) {
	msg.Stamp()
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}
	e.bus.broadcast(e, msg)
}

// OnMessage registers a handler for inbound messages. Broadcast delivery is
// exactly-once per endpoint, so no deduplication is needed here.
func (e *BusEndpoint) OnMessage(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

func (e *BusEndpoint) deliver(msg protocol.Message) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	handlers := make([]Handler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.Unlock()
	for _, h := range handlers {
		h(msg)
	}
}

// Close detaches the endpoint from the bus. Closing twice is a no-op.
func (e *BusEndpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	e.bus.detach(e)
	return nil
}
