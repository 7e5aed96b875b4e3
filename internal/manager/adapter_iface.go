package manager

import (
	"context"
	"strings"
)

// EngineOptions configures a model load.
type EngineOptions struct {
	ModelPath string
	// MaxTopK bounds sampling candidates the engine allocates for.
	MaxTopK int
	// MaxImages bounds images per query.
	MaxImages   int
	ContextSize int
	Threads     int
}

// EngineFactory loads a model and returns a handle able to open sessions.
type EngineFactory func(opts EngineOptions) (Engine, error)

// Engine is a loaded model. Concrete implementations (e.g., llama.cpp) should
// satisfy this interface.
type Engine interface {
	// NewSession opens a fresh session with an empty context buffer.
	NewSession(opts SessionOptions) (Session, error)
	// Close releases the model.
	Close() error
}

// SessionOptions configures one session.
type SessionOptions struct {
	VisionEnabled bool
	Params        InferParams
}

// TokenFunc receives streamed output. It is called zero or more times with
// final=false and exactly once with final=true. Returning an error stops
// generation.
type TokenFunc func(tok string, final bool) error

// Session is a stateful engine session. A session accumulates one pending
// query (text chunks plus at most one image) and consumes it on generation.
// Sessions are not safe for concurrent use.
type Session interface {
	AddText(text string) error
	AddImage(jpeg []byte) error
	// Generate streams the answer for the pending query. Implementations must
	// return when ctx is canceled.
	Generate(ctx context.Context, onToken TokenFunc) error
	// GenerateSync blocks until the full answer is available.
	GenerateSync(ctx context.Context) (string, error)
	// Close releases session resources. It must tolerate a partially invalid session.
	Close() error
}

// InferParams captures generation parameters passed to the adapter.
type InferParams struct {
	Temperature   float32
	TopP          float32
	TopK          int
	MaxTokens     int
	Stop          []string
	Seed          int
	RepeatPenalty float32
}

// pendingQuery accumulates the text chunks and optional image of one query.
// Adapters embed it to share the submission rules.
type pendingQuery struct {
	text   []string
	image  []byte
	vision bool
}

func (q *pendingQuery) AddText(text string) error {
	q.text = append(q.text, text)
	return nil
}

func (q *pendingQuery) AddImage(jpeg []byte) error {
	if !q.vision {
		return ErrDependencyUnavailable("vision modality not enabled for this session")
	}
	if q.image != nil {
		return ErrTooManyImages
	}
	q.image = append([]byte(nil), jpeg...)
	return nil
}

// take returns and clears the pending query.
func (q *pendingQuery) take() (string, []byte) {
	prompt := strings.Join(q.text, "\n")
	img := q.image
	q.text, q.image = nil, nil
	return prompt, img
}

// collect drives a streaming generate into a single string.
func collect(ctx context.Context, gen func(context.Context, TokenFunc) error) (string, error) {
	var b strings.Builder
	err := gen(ctx, func(tok string, _ bool) error {
		b.WriteString(tok)
		return nil
	})
	return b.String(), err
}
