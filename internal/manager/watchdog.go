package manager

import "time"

// watch enforces the watchdog and caller cancellation for one job. The
// worker recreates the session once the engine call unwinds.
func (m *Manager) watch(j *job) {
	t := time.NewTimer(m.cfg.Watchdog)
	defer t.Stop()
	select {
	case <-j.done:
	case <-j.ctx.Done():
		if m.sm.release(j.id, nil) {
			m.abort(j, KindCancelled, CancelledNotice, j.ctx.Err())
		}
	case <-t.C:
		if m.sm.release(j.id, nil) {
			m.log.Warn().Str("event", "generation_timeout").Str("request_id", j.reqID).Dur("watchdog", m.cfg.Watchdog).Msg("generation timed out")
			m.setLastError(ErrTimeoutExpired)
			m.publisher.Publish(LifecycleEvent{Name: EventGenerationFailed, RequestID: j.reqID, Fields: map[string]any{"error": ErrTimeoutExpired.Error(), "outcome": "timeout", "query": j.prompt, "kind": j.kind()}})
			m.abort(j, KindTimeout, TimeoutNotice, ErrTimeoutExpired)
		}
	}
}
