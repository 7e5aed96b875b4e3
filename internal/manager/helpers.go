package manager

import (
	"context"
	"time"
)

// acquireSession takes the session slot, waiting for a superseded job to
// unwind its engine call.
func (m *Manager) acquireSession(ctx context.Context) error {
	select {
	case m.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) releaseSession() { <-m.slot }

func (m *Manager) setLastError(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	m.lastErr = err.Error()
	m.mu.Unlock()
}

// recreate is called with the session slot held. A closed manager keeps
// the stale session for releaseEngine instead of opening a new one.
func (m *Manager) recreate(reason string) {
	if m.sm.current() == StateClosed {
		return
	}
	if err := m.sess.recreate(reason); err != nil {
		m.setLastError(err)
	}
}

func (m *Manager) observe(j *job, kind EventKind) {
	generationsTotal.WithLabelValues(j.kind(), kind.String()).Inc()
	generationDuration.WithLabelValues(j.kind()).Observe(time.Since(j.started).Seconds())
}
