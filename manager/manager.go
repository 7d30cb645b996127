// File: manager/manager.go
// Package manager implements the process-wide connection registry:
// add, remove, and broadcast under concurrent reads and writes.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package manager

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/momentics/wsgateway/protocol"
)

// Manager is a mapping from connection id to live Connection, guarded by
// a readers-writer discipline: add and remove take the exclusive lock,
// broadcast enumerates under the shared lock.
type Manager struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*protocol.Connection

	logger  *zap.Logger
	metrics *Metrics
}

var _ protocol.Registry = (*Manager)(nil)

// ManagerOption configures a Manager at construction time.
type ManagerOption func(*Manager)

// WithLogger injects a structured logger used for warning-level logs on
// per-recipient broadcast failures.
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics injects a Metrics recorder (see metrics.go). When omitted,
// NewManager registers one against the default Prometheus registry.
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager constructs an empty Manager. The process-wide singleton is
// exposed through an injectable interface rather than a bare
// package-level global; DefaultManager (below) is that one convenience
// instance, constructed the same way as any other.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{conns: make(map[uuid.UUID]*protocol.Connection)}
	for _, o := range opts {
		o(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.metrics == nil {
		m.metrics = NewMetrics()
	}
	return m
}

var (
	defaultManagerOnce sync.Once
	defaultManager      *Manager
)

// DefaultManager returns the process's single Manager instance, created
// lazily on first use. Its lifetime is the process lifetime.
func DefaultManager() *Manager {
	defaultManagerOnce.Do(func() {
		defaultManager = NewManager()
	})
	return defaultManager
}

// Add registers conn and spawns its receive loop: insert under the
// exclusive lock, release it, start Serve, then — once the task is
// started — invoke handler.OnConnectionEstablished(conn, r).
func (m *Manager) Add(conn *protocol.Connection, r *http.Request) {
	m.mu.Lock()
	m.conns[conn.ID()] = conn
	m.mu.Unlock()

	m.metrics.observeConnectionOpened()

	go conn.Serve(m)
	conn.NotifyEstablished(r)
}

// Remove deletes conn from the registry and closes it. conn.Close is
// itself tolerant of already-closed state.
func (m *Manager) Remove(conn *protocol.Connection) {
	m.mu.Lock()
	_, registered := m.conns[conn.ID()]
	delete(m.conns, conn.ID())
	m.mu.Unlock()

	if registered {
		m.metrics.observeConnectionClosed()
	}
	_ = conn.Close()
}

// Count returns the number of live connections, read under the shared
// lock like a broadcast enumeration.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// BroadcastText sends s to every live connection. The shared lock is held
// for the duration of the enumeration; individual send failures are
// logged at warning level and do not stop delivery to the rest.
func (m *Manager) BroadcastText(s string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for id, conn := range m.conns {
		if err := conn.SendText(s); err != nil {
			m.logger.Warn("broadcast text send failed", zap.Stringer("conn", id), zap.Error(err))
			m.metrics.observeBroadcastFailure()
			continue
		}
		m.metrics.observeBroadcastSuccess(len(s))
	}
}

// BroadcastBinary sends b to every live connection, with the same
// per-recipient failure policy as BroadcastText.
func (m *Manager) BroadcastBinary(b []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for id, conn := range m.conns {
		if err := conn.SendBinary(b); err != nil {
			m.logger.Warn("broadcast binary send failed", zap.Stringer("conn", id), zap.Error(err))
			m.metrics.observeBroadcastFailure()
			continue
		}
		m.metrics.observeBroadcastSuccess(len(b))
	}
}
