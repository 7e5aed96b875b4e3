package manager

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// TeardownResult describes closing a stale session. Teardown failures are
// logged by the caller and never escalated.
type TeardownResult struct {
	Closed bool
	Err    error
}

// sessionHandle owns the single live Session bound to the loaded engine.
// It is only touched by the holder of the manager's session slot.
type sessionHandle struct {
	engine  Engine
	opts    SessionOptions
	log     zerolog.Logger
	cur     Session
	created atomic.Int64
}

func newSessionHandle(engine Engine, opts SessionOptions, log zerolog.Logger) (*sessionHandle, error) {
	h := &sessionHandle{engine: engine, opts: opts, log: log}
	if err := h.open(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *sessionHandle) open() error {
	s, err := h.engine.NewSession(h.opts)
	if err != nil {
		return err
	}
	h.cur = s
	h.created.Add(1)
	return nil
}

// ensure reopens a session when a previous recreate failed half way.
func (h *sessionHandle) ensure() error {
	if h.cur != nil {
		return nil
	}
	if err := h.open(); err != nil {
		return fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	return nil
}

// submit stages the query text and optional image on the live session.
func (h *sessionHandle) submit(prompt string, image []byte) error {
	if err := h.ensure(); err != nil {
		return err
	}
	if err := h.cur.AddText(prompt); err != nil {
		return err
	}
	if image != nil {
		return h.cur.AddImage(image)
	}
	return nil
}

func (h *sessionHandle) generate(ctx context.Context, onToken TokenFunc) error {
	if h.cur == nil {
		return ErrNoSession
	}
	return h.cur.Generate(ctx, onToken)
}

func (h *sessionHandle) generateSync(ctx context.Context) (string, error) {
	if h.cur == nil {
		return "", ErrNoSession
	}
	return h.cur.GenerateSync(ctx)
}

// teardown closes the live session, recovering from adapters that panic on a
// stale handle.
func (h *sessionHandle) teardown() (res TeardownResult) {
	s := h.cur
	h.cur = nil
	if s == nil {
		return res
	}
	defer func() {
		if r := recover(); r != nil {
			res = TeardownResult{Err: fmt.Errorf("session close panicked: %v", r)}
		}
	}()
	if err := s.Close(); err != nil {
		return TeardownResult{Err: err}
	}
	return TeardownResult{Closed: true}
}

// recreate discards the current session and opens a new one. A close failure
// is only logged; the replacement proceeds regardless.
func (h *sessionHandle) recreate(reason string) error {
	start := time.Now()
	if res := h.teardown(); res.Err != nil {
		h.log.Warn().Str("event", "session_close_failed").Str("reason", reason).Err(res.Err).Msg("closing stale session failed, continuing")
	}
	if err := h.open(); err != nil {
		h.log.Error().Str("event", "session_recreate_failed").Str("reason", reason).Err(err).Msg("recreate session")
		sessionResets.WithLabelValues(reason, "error").Inc()
		return err
	}
	sessionResets.WithLabelValues(reason, "ok").Inc()
	h.log.Debug().Str("event", "session_recreated").Str("reason", reason).Dur("dur", time.Since(start)).Int64("sessions", h.created.Load()).Msg("session recreated")
	return nil
}
