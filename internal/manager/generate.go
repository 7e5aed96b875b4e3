package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// GenerateStreaming admits a query and streams its answer. The returned
// stream always ends with exactly one final event.
//
// A text query supersedes a running streaming query, which ends with
// KindCancelled. A query with an image is rejected with a KindBusy event
// while anything runs. Both kinds are rejected while a blocking call is
// active. ctx bounds the request; its cancellation ends the stream with
// KindCancelled.
func (m *Manager) GenerateStreaming(ctx context.Context, query string, image []byte) *Stream {
	if ctx == nil {
		ctx = context.Background()
	}
	reqID := uuid.NewString()
	vision := image != nil
	j, preempted, err := m.sm.admitStreaming(vision, func(id uint64) *job {
		jctx, cancel := context.WithCancel(ctx)
		nj := &job{id: id, reqID: reqID, ctx: jctx, cancel: cancel, prompt: query, image: image, started: time.Now(), done: make(chan struct{})}
		nj.stream = newStream(reqID, func() { m.cancelJob(nj) })
		return nj
	})
	if err != nil {
		kind := "text"
		if vision {
			kind = "vision"
		}
		if errors.Is(err, ErrClosed) {
			return terminalStream(reqID, Event{Text: "[Error: " + err.Error() + "]", Kind: KindError, Err: err})
		}
		busyRejections.WithLabelValues(kind).Inc()
		m.log.Info().Str("event", EventBusyRejected).Str("request_id", reqID).Str("kind", kind).Msg("generation rejected, busy")
		m.publisher.Publish(LifecycleEvent{Name: EventBusyRejected, RequestID: reqID, Fields: map[string]any{"kind": kind}})
		return terminalStream(reqID, Event{Text: BusyNotice, Kind: KindBusy, Err: ErrBusy})
	}
	if preempted != nil {
		m.log.Debug().Str("event", "generation_preempted").Str("request_id", preempted.reqID).Str("by", reqID).Msg("superseded by newer query")
		m.abort(preempted, KindCancelled, CancelledNotice, context.Canceled)
	}
	m.log.Info().Str("event", EventGenerationStart).Str("request_id", reqID).Str("kind", j.kind()).Int("query_len", len(query)).Msg("generation started")
	m.publisher.Publish(LifecycleEvent{Name: EventGenerationStart, RequestID: reqID, Fields: map[string]any{"kind": j.kind(), "query": query}})
	go m.watch(j)
	go m.run(j)
	return j.stream
}

// cancelJob is Stream.Cancel: it only acts while j still owns the state.
func (m *Manager) cancelJob(j *job) {
	if m.sm.release(j.id, nil) {
		m.abort(j, KindCancelled, CancelledNotice, context.Canceled)
	}
}

// run executes one job on the session. Whatever the outcome, the session is
// recreated before the slot is handed to the next job.
func (m *Manager) run(j *job) {
	defer j.cancel()
	defer close(j.done)
	if err := m.acquireSession(j.ctx); err != nil {
		return
	}
	defer m.releaseSession()
	if j.ctx.Err() != nil {
		// Superseded while waiting for the slot; the session is untouched.
		return
	}

	ctx, span := tracer.Start(j.ctx, "manager.generate")
	span.SetAttributes(attribute.String("request_id", j.reqID), attribute.String("kind", j.kind()))
	defer span.End()

	answer, tail, err := m.execute(ctx, j)
	switch {
	case err == nil:
		m.recreate("complete")
		text := strings.TrimSpace(answer + tail)
		var stored bool
		won := m.sm.release(j.id, func() { stored = m.memory.Record(j.prompt, text) })
		if !won {
			return
		}
		memoryEntries.Set(float64(m.memory.Len()))
		m.observe(j, KindDone)
		m.log.Info().Str("event", EventGenerationDone).Str("request_id", j.reqID).Dur("dur", time.Since(j.started)).Bool("remembered", stored).Int("answer_len", len(text)).Msg("generation done")
		m.publisher.Publish(LifecycleEvent{Name: EventGenerationDone, RequestID: j.reqID, Fields: map[string]any{"answer": text, "query": j.prompt, "kind": j.kind()}})
		j.stream.finish(Event{Text: tail, Kind: KindDone})
	case j.ctx.Err() != nil:
		// Cancelled, preempted or timed out: the stream already ended.
		m.recreate("cancelled")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.setLastError(err)
		overflow := m.cfg.IsOverflow(err)
		if overflow {
			m.recreate("overflow")
		} else {
			m.recreate("error")
		}
		if !m.sm.release(j.id, nil) {
			return
		}
		ev := Event{Text: fmt.Sprintf("[Error: %v]", err), Kind: KindError, Err: &EngineError{Err: err}}
		if overflow {
			ev = Event{Text: OverflowNotice, Kind: KindOverflow, Err: fmt.Errorf("%w: %v", ErrContextOverflow, err)}
		}
		m.observe(j, ev.Kind)
		m.log.Error().Str("event", EventGenerationFailed).Str("request_id", j.reqID).Str("outcome", ev.Kind.String()).Err(err).Msg("generation failed")
		m.publisher.Publish(LifecycleEvent{Name: EventGenerationFailed, RequestID: j.reqID, Fields: map[string]any{"error": err.Error(), "outcome": ev.Kind.String(), "query": j.prompt, "kind": j.kind()}})
		j.stream.finish(ev)
	}
}

// execute builds the prompt, stages it and streams tokens to j. It returns
// the streamed text and the text carried by the engine's final callback.
func (m *Manager) execute(ctx context.Context, j *job) (answer, tail string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panicked: %v", r)
		}
	}()
	prompt := m.buildPrompt(j.reqID, j.prompt)
	if err := m.sess.submit(prompt, j.image); err != nil {
		return "", "", err
	}
	var b strings.Builder
	err = m.sess.generate(ctx, func(tok string, final bool) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if final {
			tail = tok
			return nil
		}
		if tok == "" {
			return nil
		}
		b.WriteString(tok)
		if !j.stream.send(Event{Text: tok, Kind: KindToken}) {
			return context.Canceled
		}
		return nil
	})
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return b.String(), tail, err
}

func (m *Manager) buildPrompt(reqID, query string) string {
	return BuildPrompt(PromptInput{
		Instructions: m.cfg.SystemInstructions,
		Directive:    m.cfg.Locale.Directive(),
		Memory:       m.memory.Render(),
		Query:        query,
		Budget:       m.cfg.PromptBudget,
		OnTruncate: func(size int) {
			m.log.Warn().Str("event", "prompt_truncated").Str("request_id", reqID).Int("size", size).Int("budget", m.cfg.PromptBudget).Msg("prompt too long, memory dropped")
		},
	})
}
