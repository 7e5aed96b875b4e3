package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sightspeak/internal/httpapi"
	"sightspeak/internal/manager"
	"sightspeak/internal/registry"
	"sightspeak/internal/transcript"
	"sightspeak/pkg/types"
)

// createTempModelsDir creates a temporary directory populated with empty model
// files and returns its path.
func createTempModelsDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte(""), 0o644); err != nil {
			t.Fatalf("write temp model %s: %v", p, err)
		}
	}
	return dir
}

// echoEngine returns a factory whose sessions stream answer word by word and
// return it from GenerateSync.
func echoEngine(answer string) manager.EngineFactory {
	return func(manager.EngineOptions) (manager.Engine, error) {
		return &echoModel{answer: answer}, nil
	}
}

type echoModel struct{ answer string }

func (m *echoModel) NewSession(manager.SessionOptions) (manager.Session, error) {
	return &echoSession{answer: m.answer}, nil
}
func (m *echoModel) Close() error { return nil }

type echoSession struct{ answer string }

func (s *echoSession) AddText(string) error  { return nil }
func (s *echoSession) AddImage([]byte) error { return nil }
func (s *echoSession) Close() error          { return nil }
func (s *echoSession) GenerateSync(context.Context) (string, error) {
	return s.answer, nil
}
func (s *echoSession) Generate(ctx context.Context, onToken manager.TokenFunc) error {
	for _, w := range strings.SplitAfter(s.answer, " ") {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onToken(w, false); err != nil {
			return err
		}
	}
	return onToken("", true)
}

type dirLister string

func (d dirLister) ListModels() []types.Model {
	models, _ := registry.LoadDir(string(d))
	return models
}

type stack struct {
	srv   *httptest.Server
	mgr   *manager.Manager
	store *transcript.Store
}

// newStack wires registry, manager, transcript store and HTTP API the way
// the serve command does, with engine as the model backend.
func newStack(t *testing.T, modelsDir string, engine manager.EngineFactory) *stack {
	t.Helper()
	log := zerolog.Nop()
	store, err := transcript.Open(filepath.Join(t.TempDir(), "transcript.db"), log)
	if err != nil {
		t.Fatalf("open transcript: %v", err)
	}
	var path string
	if models, _ := registry.LoadDir(modelsDir); len(models) > 0 {
		path = models[0].Path
	}
	mgr, err := manager.New(manager.ManagerConfig{
		ModelPath:      path,
		Engine:         engine,
		VisionEnabled:  true,
		MemoryCapacity: 5,
		Watchdog:       5 * time.Second,
		Logger:         &log,
		Publisher:      manager.MultiPublisher{store},
	})
	if err != nil {
		_ = store.Close()
		t.Fatalf("manager: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(mgr, httpapi.WithModels(dirLister(modelsDir)), httpapi.WithHistory(store)))
	t.Cleanup(func() {
		srv.Close()
		_ = mgr.Close()
		_ = store.Close()
	})
	return &stack{srv: srv, mgr: mgr, store: store}
}

func (s *stack) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, body)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	out, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, out
}

// readNDJSON decodes a streamed body into its events.
func readNDJSON(t *testing.T, body []byte) []types.StreamEvent {
	t.Helper()
	var evs []types.StreamEvent
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var ev types.StreamEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		evs = append(evs, ev)
	}
	return evs
}

// answerOf concatenates token and final text of a stream.
func answerOf(evs []types.StreamEvent) string {
	var b strings.Builder
	for _, ev := range evs {
		b.WriteString(ev.Text)
	}
	return strings.TrimSpace(b.String())
}
