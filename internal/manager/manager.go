package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("sightspeak/internal/manager")

// Manager is the single authority over the inference session. It admits one
// generation at a time, streams tokens, augments prompts with a memory ring
// and recovers from engine failures by recreating the session.
type Manager struct {
	cfg       ManagerConfig
	log       zerolog.Logger
	publisher EventPublisher

	engine Engine
	sess   *sessionHandle
	memory *MemoryRing
	sm     stateMachine

	// slot is held by whoever touches sess: size 1, single in-flight engine call.
	slot chan struct{}

	mu        sync.RWMutex
	lastErr   string
	startTime time.Time
}

// New loads the engine and opens the first session. Failures are returned as
// *EngineInitError.
func New(cfg ManagerConfig) (*Manager, error) {
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg:       cfg,
		log:       cfg.Logger.With().Str("component", "manager").Logger(),
		publisher: cfg.Publisher,
		memory:    NewMemoryRing(cfg.MemoryCapacity),
		slot:      make(chan struct{}, 1),
		startTime: time.Now(),
	}
	eng, err := cfg.Engine(EngineOptions{
		ModelPath:   cfg.ModelPath,
		MaxTopK:     cfg.MaxTopK,
		MaxImages:   cfg.MaxImages,
		ContextSize: cfg.ContextSize,
		Threads:     cfg.Threads,
	})
	if err != nil {
		return nil, &EngineInitError{ModelPath: cfg.ModelPath, Err: err}
	}
	sess, err := newSessionHandle(eng, SessionOptions{VisionEnabled: cfg.VisionEnabled, Params: cfg.Params}, m.log)
	if err != nil {
		_ = eng.Close()
		return nil, &EngineInitError{ModelPath: cfg.ModelPath, Err: err}
	}
	m.engine, m.sess = eng, sess
	m.log.Info().Str("event", "manager_ready").Str("model", cfg.ModelPath).Str("locale", string(cfg.Locale)).Bool("vision", cfg.VisionEnabled).Msg("inference session ready")
	return m, nil
}

// Generating reports whether a streaming or blocking generation is active.
func (m *Manager) Generating() bool {
	st := m.sm.current()
	return st == StateGenerating || st == StateBusy
}

// Busy reports whether a blocking generation is active.
func (m *Manager) Busy() bool { return m.sm.current() == StateBusy }

// State returns the admission state.
func (m *Manager) State() State { return m.sm.current() }

// Memory returns the remembered exchanges, oldest first.
func (m *Manager) Memory() []MemoryEntry { return m.memory.Entries() }

// Cancel stops the in-flight streaming job, if any. Cancellation is
// cooperative: the engine call unwinds on its own and the session is
// recreated before reuse. Calling Cancel twice is a no-op.
func (m *Manager) Cancel() {
	j := m.sm.cancelActive()
	if j == nil {
		return
	}
	m.abort(j, KindCancelled, CancelledNotice, context.Canceled)
}

// abort cancels a job that already lost the state machine and ends its stream.
func (m *Manager) abort(j *job, kind EventKind, notice string, cause error) {
	j.cancel()
	if j.stream.finish(Event{Text: notice, Kind: kind, Err: cause}) {
		m.observe(j, kind)
		m.log.Info().Str("event", "generation_"+kind.String()).Str("request_id", j.reqID).Dur("dur", time.Since(j.started)).Msg("generation stopped")
	}
}

// Reset recreates the session and clears the memory ring. It is rejected
// while a generation is in flight; callers must Cancel first.
func (m *Manager) Reset() error {
	if err := m.sm.beginReset(); err != nil {
		m.log.Warn().Str("event", EventResetRejected).Err(err).Msg("generation in progress, cannot reset now")
		m.publisher.Publish(LifecycleEvent{Name: EventResetRejected, Fields: map[string]any{"error": err.Error()}})
		return err
	}
	defer m.sm.endReset()
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Watchdog)
	defer cancel()
	_, span := tracer.Start(ctx, "manager.Reset")
	defer span.End()
	// A cancelled job may still be unwinding its engine call.
	if err := m.acquireSession(ctx); err != nil {
		m.log.Warn().Str("event", EventResetRejected).Err(err).Msg("session still in use")
		return ErrGenerationInFlight
	}
	defer m.releaseSession()
	err := m.sess.recreate("reset")
	m.memory.Clear()
	memoryEntries.Set(0)
	m.publisher.Publish(LifecycleEvent{Name: EventSessionReset, Fields: map[string]any{"reason": "reset"}})
	if err != nil {
		m.setLastError(err)
		span.RecordError(err)
		return err
	}
	return nil
}

// Close cancels any job and releases the session, the engine and every owned
// collaborator. The manager is unusable afterward.
//
// The engine is only released by the holder of the session slot. When an
// engine call is still running after the watchdog, Close returns and the
// engine is released as soon as that call unwinds.
func (m *Manager) Close() error {
	j, first := m.sm.close()
	if !first {
		return nil
	}
	if j != nil {
		m.abort(j, KindCancelled, CancelledNotice, ErrClosed)
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Watchdog)
	defer cancel()
	var errs []error
	if err := m.acquireSession(ctx); err != nil {
		m.log.Warn().Str("event", "close_deferred").Msg("engine call still running, engine released when it returns")
		go func() {
			m.slot <- struct{}{}
			if err := m.releaseEngine(); err != nil {
				m.log.Warn().Str("event", "engine_close_failed").Err(err).Msg("close engine")
			}
		}()
	} else if err := m.releaseEngine(); err != nil {
		errs = append(errs, err)
	}
	for _, c := range m.cfg.Owned {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.log.Info().Str("event", "manager_closed").Msg("manager closed")
	return errors.Join(errs...)
}

// releaseEngine closes the session and the engine. The caller holds the
// session slot and never gives it back.
func (m *Manager) releaseEngine() error {
	if res := m.sess.teardown(); res.Err != nil {
		m.log.Warn().Str("event", "session_close_failed").Err(res.Err).Msg("close session")
	}
	return m.engine.Close()
}
