// Package health gates service availability on a live backing store. The
// monitor never returns errors to its caller: every failure becomes a
// Degraded snapshot with a masked detail string.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
)

// Pinger is the store connectivity primitive: a trivial round trip that
// confirms reachability.
type Pinger interface {
	HealthPing(ctx context.Context) error
}

// PingerFunc adapts a function to the Pinger interface.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) HealthPing(ctx context.Context) error { return f(ctx) }

// Snapshot is the pull-based view polled by the transport layer.
type Snapshot struct {
	Status        Status    `json:"status"`
	LastCheckedAt time.Time `json:"last_checked_at"`
	Detail        string    `json:"detail,omitempty"`
}

// Monitor re-evaluates store liveness on every check; there is no terminal
// state. A failed check at startup leaves the process running and Degraded.
type Monitor struct {
	pinger  Pinger
	timeout time.Duration
	onCheck func(Snapshot)

	mu       sync.RWMutex
	snapshot Snapshot
}

// Option configures Monitor.
type Option func(*Monitor)

// WithCheckHook registers a callback invoked after every check, e.g. to set
// a metrics gauge.
func WithCheckHook(fn func(Snapshot)) Option {
	return func(m *Monitor) { m.onCheck = fn }
}

func NewMonitor(p Pinger, timeout time.Duration, opts ...Option) *Monitor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	m := &Monitor{
		pinger:  p,
		timeout: timeout,
		snapshot: Snapshot{
			Status: StatusDegraded,
			Detail: "no check performed yet",
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check races the store probe against the configured timeout. The probe runs
// detached: if the timer wins, the attempt is abandoned rather than
// cancelled, and its late result is discarded through the buffered channel.
func (m *Monitor) Check(ctx context.Context) Snapshot {
	done := make(chan error, 1)
	go func() {
		done <- m.pinger.HealthPing(context.Background())
	}()

	var detail string
	status := StatusHealthy
	select {
	case err := <-done:
		if err != nil {
			status = StatusDegraded
			detail = MaskSecrets(err.Error())
		}
	case <-time.After(m.timeout):
		status = StatusDegraded
		detail = fmt.Sprintf("store check timed out after %s", m.timeout)
	case <-ctx.Done():
		status = StatusDegraded
		detail = MaskSecrets(ctx.Err().Error())
	}

	snap := Snapshot{Status: status, LastCheckedAt: time.Now().UTC(), Detail: detail}
	m.mu.Lock()
	m.snapshot = snap
	m.mu.Unlock()
	if m.onCheck != nil {
		m.onCheck(snap)
	}
	return snap
}

// Snapshot returns the most recent check result.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Run checks immediately, then on every interval tick until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	m.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
