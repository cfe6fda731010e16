// Package supervisor manages the lifecycle of a single database
// connection: connect, health-check, disconnect, and bounded automatic
// reconnection.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotConnected is returned by HealthCheck when no connection is
// currently established; Disconnect treats that case as a no-op.
var ErrNotConnected = errors.New("supervisor: not connected")

// ErrAlreadyConnected is returned by Connect when a session is already
// established; the manager owns at most one active session.
var ErrAlreadyConnected = errors.New("supervisor: already connected")

// ConnectionBackend opens and probes a single live connection. Connect and
// Ping must leave no partial state behind on failure: a failed Connect
// must not require a Close call, and a failed Ping must not itself tear
// the connection down (the supervisor decides whether to disconnect).
type ConnectionBackend interface {
	Connect(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Status is a snapshot of the supervisor's current connection state.
type Status struct {
	ProfileName       string
	IsConnected       bool
	LastLatency       time.Duration
	LastHealthCheckAt time.Time
	HasHealthCheck    bool
	ConsecutiveFails  int
}

// AutoReconnectLimit bounds how many consecutive automatic reconnect
// attempts the supervisor will make before giving up and surfacing the
// failure to the caller.
const AutoReconnectLimit = 2

// Manager owns one ConnectionBackend's lifecycle and serializes access to
// it with a mutex.
type Manager struct {
	mu sync.Mutex

	profileName string
	backend     ConnectionBackend

	connected         bool
	lastLatency       time.Duration
	lastHealthCheckAt time.Time
	hasHealthCheck    bool
	consecutiveFails  int

	now func() time.Time
}

// New builds a Manager for profileName backed by backend. The manager
// starts disconnected.
func New(profileName string, backend ConnectionBackend) *Manager {
	return &Manager{profileName: profileName, backend: backend, now: time.Now}
}

// Status returns a snapshot of the manager's current state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		ProfileName:       m.profileName,
		IsConnected:       m.connected,
		LastLatency:       m.lastLatency,
		LastHealthCheckAt: m.lastHealthCheckAt,
		HasHealthCheck:    m.hasHealthCheck,
		ConsecutiveFails:  m.consecutiveFails,
	}
}

// Connect establishes the connection and issues one health ping. On
// failure of either step the manager remains in its prior disconnected
// state; no partial state is retained. Fails with ErrAlreadyConnected if a
// session is already established.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrAlreadyConnected
	}

	start := m.now()

	if err := m.backend.Connect(ctx); err != nil {
		m.connected = false
		return fmt.Errorf("supervisor: connect %s: %w", m.profileName, err)
	}

	if err := m.backend.Ping(ctx); err != nil {
		return fmt.Errorf("supervisor: connect %s: health ping: %w", m.profileName, err)
	}
	elapsed := m.now().Sub(start)

	m.connected = true
	m.consecutiveFails = 0
	m.lastLatency = elapsed
	m.hasHealthCheck = true
	m.lastHealthCheckAt = m.now()
	return nil
}

// HealthCheck pings the live connection and records latency. A failed
// ping does not itself disconnect; it increments the consecutive-failure
// counter so a caller can decide to reconnect (see MaybeReconnect).
func (m *Manager) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}

	start := m.now()
	err := m.backend.Ping(ctx)
	elapsed := m.now().Sub(start)

	m.hasHealthCheck = true
	m.lastHealthCheckAt = m.now()

	if err != nil {
		m.consecutiveFails++
		return fmt.Errorf("supervisor: health check %s: %w", m.profileName, err)
	}

	m.lastLatency = elapsed
	m.consecutiveFails = 0
	return nil
}

// Disconnect tears the connection down. Idempotent: calling it while
// already disconnected is a no-op, not an error.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	err := m.backend.Close(ctx)
	m.connected = false
	m.consecutiveFails = 0
	if err != nil {
		return fmt.Errorf("supervisor: disconnect %s: %w", m.profileName, err)
	}
	return nil
}

// MaybeReconnect attempts to reconnect when the consecutive-failure count
// has crossed AutoReconnectLimit, using exponential backoff between
// attempts. It reports whether a reconnect attempt was made and its
// outcome.
func (m *Manager) MaybeReconnect(ctx context.Context) (attempted bool, err error) {
	m.mu.Lock()
	shouldAttempt := m.consecutiveFails >= AutoReconnectLimit
	m.mu.Unlock()

	if !shouldAttempt {
		return false, nil
	}

	// The existing session is presumed dead after AutoReconnectLimit
	// consecutive failed pings; tear it down so Connect doesn't reject the
	// reconnect attempt with ErrAlreadyConnected.
	_ = m.Disconnect(ctx)

	backoff := time.Second
	var lastErr error
	for attempt := 0; attempt < AutoReconnectLimit; attempt++ {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case <-time.After(backoff):
		}

		if err := m.Connect(ctx); err == nil {
			return true, nil
		} else {
			lastErr = err
		}
		backoff *= 2
	}

	return true, fmt.Errorf("supervisor: reconnect %s exhausted %d attempts: %w", m.profileName, AutoReconnectLimit, lastErr)
}
