package manager

import (
	"time"

	"sightspeak/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	lastErr := m.lastErr
	m.mu.RUnlock()
	return Snapshot{
		State:         m.sm.current(),
		MemoryEntries: m.memory.Len(),
		Sessions:      int(m.sess.created.Load()),
		LastError:     lastErr,
	}
}

// Ready reports whether the manager can accept requests.
func (m *Manager) Ready() bool { return m.sm.current() != StateClosed }

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	snap := m.Snapshot()
	now := time.Now()
	return types.StatusResponse{
		State:           snap.State.String(),
		Generating:      snap.State == StateGenerating || snap.State == StateBusy,
		Busy:            snap.State == StateBusy,
		MemoryEntries:   snap.MemoryEntries,
		MemoryCapacity:  m.memory.Capacity(),
		SessionsCreated: snap.Sessions,
		Model:           m.cfg.ModelPath,
		Locale:          string(m.cfg.Locale),
		Vision:          m.cfg.VisionEnabled,
		LastError:       snap.LastError,
		UptimeSeconds:   int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix:  now.Unix(),
	}
}

// MemoryItems returns the memory ring as API items.
func (m *Manager) MemoryItems() []types.MemoryItem {
	entries := m.memory.Entries()
	out := make([]types.MemoryItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, types.MemoryItem{Question: e.Question, Answer: e.Answer})
	}
	return out
}
