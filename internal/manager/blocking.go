package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateBlocking runs a text query to completion and returns the whole
// answer. It never fails: while another blocking call runs it returns
// BusySentinel, on engine failure ErrorSentinel and on an empty answer
// EmptySentinel. A running streaming query is superseded. Blocking answers
// are not remembered.
func (m *Manager) GenerateBlocking(ctx context.Context, query string) string {
	if ctx == nil {
		ctx = context.Background()
	}
	reqID := uuid.NewString()
	id, preempted, err := m.sm.admitBlocking()
	if errors.Is(err, ErrClosed) {
		return ErrorSentinel
	}
	if err != nil {
		busyRejections.WithLabelValues("blocking").Inc()
		m.log.Info().Str("event", EventBusyRejected).Str("request_id", reqID).Str("kind", "blocking").Err(err).Msg("blocking generation rejected")
		m.publisher.Publish(LifecycleEvent{Name: EventBusyRejected, RequestID: reqID, Fields: map[string]any{"kind": "blocking"}})
		return BusySentinel
	}
	defer m.sm.release(id, nil)
	if preempted != nil {
		m.abort(preempted, KindCancelled, CancelledNotice, context.Canceled)
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Watchdog)
	defer cancel()
	ctx, span := tracer.Start(ctx, "manager.GenerateBlocking")
	defer span.End()
	if err := m.acquireSession(ctx); err != nil {
		m.log.Warn().Str("event", EventGenerationFailed).Str("request_id", reqID).Err(err).Msg("session unavailable")
		return ErrorSentinel
	}
	defer m.releaseSession()

	answer, err := m.blocking(ctx, reqID, query)
	if err != nil {
		span.RecordError(err)
		m.setLastError(err)
		m.recreate("error")
		m.log.Error().Str("event", EventGenerationFailed).Str("request_id", reqID).Str("kind", "blocking").Err(err).Msg("blocking generation failed")
		m.publisher.Publish(LifecycleEvent{Name: EventGenerationFailed, RequestID: reqID, Fields: map[string]any{"error": err.Error(), "outcome": KindError.String(), "query": query, "kind": "blocking"}})
		generationsTotal.WithLabelValues("blocking", KindError.String()).Inc()
		return ErrorSentinel
	}
	m.recreate("complete")
	generationsTotal.WithLabelValues("blocking", KindDone.String()).Inc()
	answer = strings.TrimSpace(answer)
	m.log.Info().Str("event", EventGenerationDone).Str("request_id", reqID).Str("kind", "blocking").Int("answer_len", len(answer)).Msg("blocking generation done")
	m.publisher.Publish(LifecycleEvent{Name: EventGenerationDone, RequestID: reqID, Fields: map[string]any{"answer": answer, "query": query, "kind": "blocking"}})
	if answer == "" {
		return EmptySentinel
	}
	return answer
}

func (m *Manager) blocking(ctx context.Context, reqID, query string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panicked: %v", r)
		}
	}()
	if err := m.sess.submit(m.buildPrompt(reqID, query), nil); err != nil {
		return "", err
	}
	out, err = m.sess.generateSync(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return out, err
}
