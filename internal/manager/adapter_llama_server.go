package manager

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// imageSlot is the placeholder id llama-server binds image_data to.
const imageSlot = 10

// ServerOptions configures the llama-server backed engine.
type ServerOptions struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	Logger         *zerolog.Logger
}

// llamaServerEngine talks to a running llama.cpp server over HTTP. Text
// queries use the OpenAI-compatible /v1/completions endpoint; queries with an
// image use the native /completion endpoint with image_data.
type llamaServerEngine struct {
	baseURL    string
	apiKey     string
	modelID    string
	reqTimeout time.Duration
	maxTopK    int
	httpClient *http.Client
	log        zerolog.Logger
}

// NewLlamaServerEngine returns an EngineFactory bound to a llama-server URL.
// The model path is passed to the server as the model id.
func NewLlamaServerEngine(so ServerOptions) EngineFactory {
	return func(opts EngineOptions) (Engine, error) {
		if strings.TrimSpace(so.BaseURL) == "" {
			return nil, errors.New("llama server url is empty")
		}
		return newLlamaServerEngine(so, opts), nil
	}
}

func newLlamaServerEngine(so ServerOptions, opts EngineOptions) *llamaServerEngine {
	connect := so.ConnectTimeout
	if connect <= 0 {
		connect = 5 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connect,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	log := zerolog.Nop()
	if so.Logger != nil {
		log = *so.Logger
	}
	// Timeout=0: every request carries a context deadline.
	return &llamaServerEngine{
		baseURL:    strings.TrimRight(so.BaseURL, "/"),
		apiKey:     so.APIKey,
		modelID:    strings.TrimSpace(opts.ModelPath),
		reqTimeout: so.RequestTimeout,
		maxTopK:    opts.MaxTopK,
		httpClient: &http.Client{Transport: tr, Timeout: 0},
		log:        log.With().Str("adapter", "llama_server").Logger(),
	}
}

func (e *llamaServerEngine) NewSession(opts SessionOptions) (Session, error) {
	p := opts.Params
	if e.maxTopK > 0 && p.TopK > e.maxTopK {
		p.TopK = e.maxTopK
	}
	return &llamaServerSession{pendingQuery: pendingQuery{vision: opts.VisionEnabled}, engine: e, params: p}, nil
}

func (e *llamaServerEngine) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

type llamaServerSession struct {
	pendingQuery
	engine *llamaServerEngine
	params InferParams
}

// openAICompletionRequest represents the payload for /v1/completions.
type openAICompletionRequest struct {
	Model         string   `json:"model,omitempty"`
	Prompt        string   `json:"prompt"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	Temperature   float32  `json:"temperature,omitempty"`
	TopP          float32  `json:"top_p,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	Stop          []string `json:"stop,omitempty"`
	Seed          int      `json:"seed,omitempty"`
	Stream        bool     `json:"stream"`
	RepeatPenalty float32  `json:"repeat_penalty,omitempty"`
}

// nativeCompletionRequest is the payload for llama-server's /completion.
type nativeCompletionRequest struct {
	Prompt        string       `json:"prompt"`
	NPredict      int          `json:"n_predict,omitempty"`
	Temperature   float32      `json:"temperature,omitempty"`
	TopP          float32      `json:"top_p,omitempty"`
	TopK          int          `json:"top_k,omitempty"`
	Stop          []string     `json:"stop,omitempty"`
	Seed          int          `json:"seed,omitempty"`
	RepeatPenalty float32      `json:"repeat_penalty,omitempty"`
	Stream        bool         `json:"stream"`
	ImageData     []imageDatum `json:"image_data,omitempty"`
}

type imageDatum struct {
	Data string `json:"data"`
	ID   int    `json:"id"`
}

type openAIStreamChoiceDelta struct {
	Text  string `json:"text"`
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type openAIStreamResponse struct {
	Object  string                    `json:"object"`
	Choices []openAIStreamChoiceDelta `json:"choices"`
	// native /completion fields
	Content string `json:"content"`
	Stop    bool   `json:"stop"`
	// set when the server fails after the stream started
	Error *streamError `json:"error"`
}

type streamError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// err classifies a mid-stream failure; overflows wrap ErrContextOverflow.
func (e *streamError) err() error {
	serr := fmt.Errorf("llama server stream error: %s (%s, code %d)", e.Message, e.Type, e.Code)
	if isServerOverflow(e.Message + " " + e.Type) {
		return errors.Join(ErrContextOverflow, serr)
	}
	return serr
}

func (s *llamaServerSession) Generate(ctx context.Context, onToken TokenFunc) error {
	prompt, image := s.take()
	if s.engine.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.engine.reqTimeout)
		defer cancel()
	}
	path, body := s.payload(prompt, image)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.engine.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.engine.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.engine.apiKey)
	}
	resp, err := s.engine.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		herr := fmt.Errorf("llama server http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
		if isServerOverflow(string(b)) {
			return errors.Join(ErrContextOverflow, herr)
		}
		return herr
	}
	if err := s.readStream(ctx, resp.Body, onToken); err != nil {
		return err
	}
	return onToken("", true)
}

func (s *llamaServerSession) GenerateSync(ctx context.Context) (string, error) {
	return collect(ctx, s.Generate)
}

func (s *llamaServerSession) Close() error {
	s.take()
	return nil
}

func (s *llamaServerSession) payload(prompt string, image []byte) (string, []byte) {
	p := s.params
	if image == nil {
		body, _ := json.Marshal(openAICompletionRequest{
			Model:         s.engine.modelID,
			Prompt:        prompt,
			MaxTokens:     p.MaxTokens,
			Temperature:   p.Temperature,
			TopP:          p.TopP,
			TopK:          p.TopK,
			Stop:          p.Stop,
			Seed:          p.Seed,
			Stream:        true,
			RepeatPenalty: p.RepeatPenalty,
		})
		return "/v1/completions", body
	}
	body, _ := json.Marshal(nativeCompletionRequest{
		Prompt:        fmt.Sprintf("[img-%d]\n%s", imageSlot, prompt),
		NPredict:      p.MaxTokens,
		Temperature:   p.Temperature,
		TopP:          p.TopP,
		TopK:          p.TopK,
		Stop:          p.Stop,
		Seed:          p.Seed,
		RepeatPenalty: p.RepeatPenalty,
		Stream:        true,
		ImageData:     []imageDatum{{Data: base64.StdEncoding.EncodeToString(image), ID: imageSlot}},
	})
	return "/completion", body
}

// readStream parses Server-Sent Events ("data: {...}", "error: {...}") from
// either endpoint. An error payload ends the stream with an error.
func (s *llamaServerSession) readStream(ctx context.Context, body io.Reader, onToken TokenFunc) error {
	r := bufio.NewReader(body)
	for {
		line, err := r.ReadString('\n')
		if l := strings.TrimSpace(line); l != "" {
			if done, serr := s.handleLine(l, onToken); serr != nil || done {
				return serr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.engine.log.Warn().Str("event", "stream_read_error").Err(err).Msg("llama server stream")
			return err
		}
	}
}

// handleLine processes one SSE line and reports whether the stream is over.
func (s *llamaServerSession) handleLine(l string, onToken TokenFunc) (bool, error) {
	lower := strings.ToLower(l)
	var data string
	switch {
	case strings.HasPrefix(lower, "data:"):
		data = strings.TrimSpace(l[len("data:"):])
	case strings.HasPrefix(lower, "error:"):
		data = strings.TrimSpace(l[len("error:"):])
		var se streamError
		if jerr := json.Unmarshal([]byte(data), &se); jerr != nil || (se.Message == "" && se.Type == "") {
			var wrapped openAIStreamResponse
			if json.Unmarshal([]byte(data), &wrapped) == nil && wrapped.Error != nil {
				return true, wrapped.Error.err()
			}
			se = streamError{Message: data}
		}
		return true, se.err()
	default:
		return false, nil
	}
	if data == "[DONE]" {
		return true, nil
	}
	var msg openAIStreamResponse
	if jerr := json.Unmarshal([]byte(data), &msg); jerr != nil {
		s.engine.log.Debug().Str("event", "unknown_stream_line").Str("line", l).Msg("skipping stream line")
		return false, nil
	}
	if msg.Error != nil {
		return true, msg.Error.err()
	}
	frag := msg.Content
	if len(msg.Choices) > 0 {
		frag = msg.Choices[0].Text + msg.Choices[0].Delta.Content
	}
	if frag != "" {
		if cbErr := onToken(frag, false); cbErr != nil {
			return true, cbErr
		}
	}
	return msg.Stop, nil
}

func isServerOverflow(body string) bool {
	b := strings.ToLower(body)
	return strings.Contains(b, "exceed_context_size") || strings.Contains(b, "exceeds the available context size")
}
