//go:build integration
// +build integration

package manager

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// sseWriter helps write SSE-style lines.
type sseWriter struct{ w http.ResponseWriter }

func (sw sseWriter) writeLine(line string) {
	sw.w.Write([]byte(line))
	sw.w.Write([]byte("\n"))
	if f, ok := sw.w.(http.Flusher); ok {
		f.Flush()
	}
}

func openServerSession(t *testing.T, url string, vision bool, reqTimeout time.Duration) Session {
	t.Helper()
	eng, err := NewLlamaServerEngine(ServerOptions{BaseURL: url, RequestTimeout: reqTimeout, ConnectTimeout: time.Second})(EngineOptions{ModelPath: "test-model", MaxTopK: 32})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	sess, err := eng.NewSession(SessionOptions{VisionEnabled: vision, Params: InferParams{MaxTokens: 16, TopK: 64}})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func TestLlamaServerEngine_OpenAIStream(t *testing.T) {
	var got openAICompletionRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "text/event-stream")
		sw := sseWriter{w: w}
		sw.writeLine(`data: {"choices":[{"text":"Hello"}]}`)
		sw.writeLine(`data: {"choices":[{"text":" World","finish_reason":"stop"}]}`)
		sw.writeLine("data: [DONE]")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	sess := openServerSession(t, ts.URL, false, 5*time.Second)
	_ = sess.AddText("Say hi")
	var b strings.Builder
	finals := 0
	err := sess.Generate(testCtx(t), func(tok string, final bool) error {
		if final {
			finals++
		}
		b.WriteString(tok)
		return nil
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if b.String() != "Hello World" || finals != 1 {
		t.Fatalf("output=%q finals=%d", b.String(), finals)
	}
	if got.Prompt != "Say hi" || got.Model != "test-model" || got.TopK != 32 || !got.Stream {
		t.Fatalf("request=%+v", got)
	}
}

func TestLlamaServerEngine_ImageUsesNativeEndpoint(t *testing.T) {
	var got nativeCompletionRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/completion", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		sw := sseWriter{w: w}
		sw.writeLine(`data: {"content":"A mug","stop":false}`)
		sw.writeLine(`data: {"content":".","stop":true}`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	sess := openServerSession(t, ts.URL, true, 5*time.Second)
	_ = sess.AddText("Describe")
	if err := sess.AddImage([]byte{0xff, 0xd8}); err != nil {
		t.Fatalf("AddImage: %v", err)
	}
	out, err := sess.GenerateSync(testCtx(t))
	if err != nil || out != "A mug." {
		t.Fatalf("out=%q err=%v", out, err)
	}
	if len(got.ImageData) != 1 || got.ImageData[0].ID != imageSlot || !strings.HasPrefix(got.Prompt, "[img-10]") {
		t.Fatalf("request=%+v", got)
	}
	if raw, _ := base64.StdEncoding.DecodeString(got.ImageData[0].Data); len(raw) != 2 {
		t.Fatalf("image payload=%q", got.ImageData[0].Data)
	}
}

func TestLlamaServerEngine_OverflowIsStructured(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"type":"exceed_context_size_error"}}`))
	}))
	defer ts.Close()
	sess := openServerSession(t, ts.URL, false, time.Second)
	_ = sess.AddText("long")
	err := sess.Generate(testCtx(t), func(string, bool) error { return nil })
	if !errors.Is(err, ErrContextOverflow) {
		t.Fatalf("expected ErrContextOverflow, got %v", err)
	}
}

func TestLlamaServerEngine_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "boom"}})
	}))
	defer ts.Close()
	sess := openServerSession(t, ts.URL, false, time.Second)
	_ = sess.AddText("hello")
	err := sess.Generate(testCtx(t), func(string, bool) error { return nil })
	if err == nil || errors.Is(err, ErrContextOverflow) {
		t.Fatalf("expected opaque error on HTTP 500, got %v", err)
	}
}

func TestLlamaServerEngine_ContextCancel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 5; i++ {
			_, _ = w.Write([]byte("data: {\"choices\":[{\"text\":\"x\"}]}\n"))
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			time.Sleep(200 * time.Millisecond)
		}
		_, _ = w.Write([]byte("data: [DONE]\n"))
	}))
	defer ts.Close()
	sess := openServerSession(t, ts.URL, false, 250*time.Millisecond)
	_ = sess.AddText("hello")
	if err := sess.Generate(context.Background(), func(string, bool) error { return nil }); err == nil {
		t.Fatalf("expected deadline error due to short request timeout")
	}
}

func TestManagerOverLlamaServer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sseWriter{w: w}.writeLine(`data: {"choices":[{"text":"A red mug."}]}`)
	}))
	defer ts.Close()
	m, err := New(ManagerConfig{ModelPath: "m", Engine: NewLlamaServerEngine(ServerOptions{BaseURL: ts.URL})})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()
	text, final, err := m.GenerateStreaming(testCtx(t), "What is on the table?", nil).Collect(testCtx(t))
	if err != nil || final.Kind != KindDone || text != "A red mug." {
		t.Fatalf("text=%q final=%+v err=%v", text, final, err)
	}
}

func TestLlamaServerEngine_MidStreamError(t *testing.T) {
	cases := []struct {
		name     string
		line     string
		overflow bool
	}{
		{"data overflow", `data: {"error":{"code":400,"message":"the request exceeds the available context size","type":"exceed_context_size_error"}}`, true},
		{"legacy prefix overflow", `error: {"code":400,"message":"context full","type":"exceed_context_size_error"}`, true},
		{"data server error", `data: {"error":{"code":500,"message":"slot crashed","type":"server_error"}}`, false},
		{"legacy prefix text", `error: upstream closed`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				sw := sseWriter{w: w}
				sw.writeLine(`data: {"choices":[{"text":"Partial answer"}]}`)
				sw.writeLine(tc.line)
			}))
			defer ts.Close()
			sess := openServerSession(t, ts.URL, false, time.Second)
			_ = sess.AddText("long")
			var got strings.Builder
			finals := 0
			err := sess.Generate(testCtx(t), func(tok string, final bool) error {
				if final {
					finals++
				}
				got.WriteString(tok)
				return nil
			})
			if err == nil {
				t.Fatalf("expected error, got nil (text=%q)", got.String())
			}
			if errors.Is(err, ErrContextOverflow) != tc.overflow {
				t.Fatalf("overflow=%v want %v: %v", errors.Is(err, ErrContextOverflow), tc.overflow, err)
			}
			if finals != 0 || got.String() != "Partial answer" {
				t.Fatalf("text=%q finals=%d", got.String(), finals)
			}
		})
	}
}

func TestManagerOverLlamaServer_MidStreamOverflowIsNotRemembered(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := sseWriter{w: w}
		sw.writeLine(`data: {"choices":[{"text":"Partial answer"}]}`)
		sw.writeLine(`data: {"error":{"code":400,"message":"the request exceeds the available context size","type":"exceed_context_size_error"}}`)
	}))
	defer ts.Close()
	m, err := New(ManagerConfig{ModelPath: "m", Engine: NewLlamaServerEngine(ServerOptions{BaseURL: ts.URL})})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()
	_, final, err := m.GenerateStreaming(testCtx(t), "What is on the table?", nil).Collect(testCtx(t))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if final.Kind != KindOverflow || final.Text != OverflowNotice {
		t.Fatalf("final=%+v", final)
	}
	if mem := m.Memory(); len(mem) != 0 {
		t.Fatalf("partial answer remembered: %+v", mem)
	}
	waitState(t, m, StateIdle)
}
