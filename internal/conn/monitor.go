// Connection liveness monitoring over the control transport.
package conn

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vjlink/internal/protocol"
	"vjlink/internal/transport"
)

// State is a snapshot of the monitor's view of the link.
type State struct {
	Connected      bool          `json:"connected"`
	LastResponseAt time.Time     `json:"last_response_at"`
	Timeout        time.Duration `json:"timeout"`
}

// Monitor declares the link connected or disconnected based on how recently
// a liveness-confirming message arrived. There is no disconnect message in
// the protocol: the only way back to disconnected is elapsed time.
type Monitor struct {
	timeout time.Duration
	tr      transport.Transport
	log     *slog.Logger

	mu           sync.Mutex
	connected    bool
	lastResponse time.Time
	onChange     func(bool)
	now          func() time.Time
}

// New creates a monitor in the disconnected state. onChange fires exactly
// once per transition and may be nil.
func New(tr transport.Transport, timeout time.Duration, onChange func(bool), log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Monitor{
		timeout:  timeout,
		tr:       tr,
		log:      log,
		onChange: onChange,
		now:      time.Now,
	}
}

// Run probes and checks staleness every timeout interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.timeout)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Tick()
		case <-ctx.Done():
			return
		}
	}
}

// Tick performs one staleness check and then re-sends a liveness probe.
// Probing continues even while believed connected so a future silent drop
// is still detected.
func (m *Monitor) Tick() {
	m.mu.Lock()
	var notify func(bool)
	if m.connected && m.now().Sub(m.lastResponse) > 2*m.timeout {
		m.connected = false
		notify = m.onChange
		m.log.Warn("connection lost", "last_response", m.lastResponse)
	}
	m.mu.Unlock()
	if notify != nil {
		notify(false)
	}
	m.tr.Send(protocol.New(protocol.TypePing))
}

// OnLiveness records proof that the remote side is alive. The first liveness
// message after a disconnected period flips the state and notifies once.
func (m *Monitor) OnLiveness() {
	m.mu.Lock()
	m.lastResponse = m.now()
	var notify func(bool)
	if !m.connected {
		m.connected = true
		notify = m.onChange
		m.log.Info("connection established")
	}
	m.mu.Unlock()
	if notify != nil {
		notify(true)
	}
}

// Connected reports the current liveness belief.
func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Snapshot returns the current state for diagnostics.
func (m *Monitor) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{Connected: m.connected, LastResponseAt: m.lastResponse, Timeout: m.timeout}
}
