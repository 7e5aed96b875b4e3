package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// genFunc scripts what a fake session does for one query.
type genFunc func(ctx context.Context, prompt string, image []byte, onToken TokenFunc) error

// fakeEngine is an in-memory Engine that records every submitted query.
type fakeEngine struct {
	mu         sync.Mutex
	newErr     error
	closeErr   error
	closePanic bool
	gen        genFunc
	onNew      func()

	prompts     []string
	images      int
	inflight    int
	maxInflight int
	opened      int
	closed      int
	released    bool

	// releasedBusy is set when Close ran while a Generate call was in flight.
	releasedBusy bool
}

func (e *fakeEngine) NewSession(opts SessionOptions) (Session, error) {
	e.mu.Lock()
	hook := e.onNew
	e.mu.Unlock()
	if hook != nil {
		hook()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.newErr != nil {
		return nil, e.newErr
	}
	e.opened++
	return &fakeSession{pendingQuery: pendingQuery{vision: opts.VisionEnabled}, e: e}, nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	e.released = true
	e.releasedBusy = e.releasedBusy || e.inflight > 0
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) setOnNew(fn func()) {
	e.mu.Lock()
	e.onNew = fn
	e.mu.Unlock()
}

func (e *fakeEngine) releaseState() (released, whileBusy bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.released, e.releasedBusy
}

func (e *fakeEngine) setGen(g genFunc) {
	e.mu.Lock()
	e.gen = g
	e.mu.Unlock()
}

func (e *fakeEngine) lastPrompt() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.prompts) == 0 {
		return ""
	}
	return e.prompts[len(e.prompts)-1]
}

func (e *fakeEngine) peak() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxInflight
}

func (e *fakeEngine) counts() (prompts, opened, closed int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.prompts), e.opened, e.closed
}

type fakeSession struct {
	pendingQuery
	e *fakeEngine
}

func (s *fakeSession) Generate(ctx context.Context, onToken TokenFunc) error {
	prompt, image := s.take()
	s.e.mu.Lock()
	s.e.prompts = append(s.e.prompts, prompt)
	if image != nil {
		s.e.images++
	}
	g := s.e.gen
	s.e.inflight++
	if s.e.inflight > s.e.maxInflight {
		s.e.maxInflight = s.e.inflight
	}
	s.e.mu.Unlock()
	defer func() {
		s.e.mu.Lock()
		s.e.inflight--
		s.e.mu.Unlock()
	}()
	if g == nil {
		g = tokens("Hello", " world")
	}
	return g(ctx, prompt, image, onToken)
}

func (s *fakeSession) GenerateSync(ctx context.Context) (string, error) {
	return collect(ctx, s.Generate)
}

func (s *fakeSession) Close() error {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	s.e.closed++
	if s.e.closePanic {
		panic("stale handle")
	}
	return s.e.closeErr
}

// tokens streams toks then a final empty event.
func tokens(toks ...string) genFunc {
	return func(ctx context.Context, _ string, _ []byte, onToken TokenFunc) error {
		for _, t := range toks {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := onToken(t, false); err != nil {
				return err
			}
		}
		return onToken("", true)
	}
}

// failAfter streams toks then fails with err.
func failAfter(err error, toks ...string) genFunc {
	return func(ctx context.Context, _ string, _ []byte, onToken TokenFunc) error {
		for _, t := range toks {
			if cbErr := onToken(t, false); cbErr != nil {
				return cbErr
			}
		}
		return err
	}
}

// hang emits one token, signals started and blocks until ctx ends or release closes.
func hang(started chan<- struct{}, release <-chan struct{}) genFunc {
	return func(ctx context.Context, _ string, _ []byte, onToken TokenFunc) error {
		_ = onToken("partial", false)
		if started != nil {
			started <- struct{}{}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-release:
			return onToken("", true)
		}
	}
}

func newTestManager(t *testing.T, eng *fakeEngine, mutate ...func(*ManagerConfig)) *Manager {
	t.Helper()
	cfg := ManagerConfig{
		ModelPath:     "test.gguf",
		Engine:        func(EngineOptions) (Engine, error) { return eng, nil },
		VisionEnabled: true,
		Watchdog:      2 * time.Second,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// collectStream drains s within the test deadline.
func collectStream(t *testing.T, s *Stream) (string, Event) {
	t.Helper()
	text, final, err := s.Collect(testCtx(t))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if !final.Final {
		t.Fatalf("stream ended without final event: %+v", final)
	}
	return text, final
}

// waitState polls until the manager reaches want.
func waitState(t *testing.T, m *Manager, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state=%s, want %s", m.State(), want)
}

// waitSessions polls until at least n sessions were opened.
func waitSessions(t *testing.T, eng *fakeEngine, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, opened, _ := eng.counts(); opened >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	_, opened, _ := eng.counts()
	t.Fatalf("sessions opened=%d, want >= %d", opened, n)
}

var errBoom = errors.New("boom")

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}
