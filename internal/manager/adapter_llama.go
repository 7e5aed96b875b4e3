//go:build llama

package manager

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// llamaEngine owns the loaded model; sessions share it.
type llamaEngine struct {
	model   *llama.LLama
	threads int
	maxTopK int
}

// NewLlamaEngine loads a GGUF model in process through go-llama.cpp.
func NewLlamaEngine(opts EngineOptions) (Engine, error) {
	if strings.TrimSpace(opts.ModelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{}
	if opts.ContextSize > 0 {
		mo = append(mo, llama.SetContext(opts.ContextSize))
	}
	m, err := llama.New(opts.ModelPath, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaEngine{model: m, threads: opts.Threads, maxTopK: opts.MaxTopK}, nil
}

func (e *llamaEngine) NewSession(opts SessionOptions) (Session, error) {
	if e.model == nil {
		return nil, errors.New("llama model not initialized")
	}
	if opts.VisionEnabled {
		return nil, ErrDependencyUnavailable("vision modality not supported by the in-process llama engine")
	}
	return &llamaSession{engine: e, params: opts.Params}, nil
}

func (e *llamaEngine) Close() error {
	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	return nil
}

// llamaSession is a pending query bound to the shared model. Each Predict
// call starts from an empty context, so a session is consumed by one query.
type llamaSession struct {
	pendingQuery
	engine *llamaEngine
	params InferParams
	closed bool
}

func (s *llamaSession) Generate(ctx context.Context, onToken TokenFunc) error {
	if s.closed || s.engine.model == nil {
		return errors.New("llama session closed")
	}
	prompt, _ := s.take()
	var cbErr error
	s.engine.model.SetTokenCallback(func(tok string) bool {
		if ctx.Err() != nil {
			return false
		}
		if err := onToken(tok, false); err != nil {
			cbErr = err
			return false
		}
		return true
	})
	_, err := s.engine.model.Predict(prompt, mapInferParamsToPredictOptions(s.params, s.engine.threads, s.engine.maxTopK)...)
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case cbErr != nil:
		return cbErr
	case err != nil:
		return err
	}
	return onToken("", true)
}

func (s *llamaSession) GenerateSync(ctx context.Context) (string, error) {
	return collect(ctx, s.Generate)
}

func (s *llamaSession) Close() error {
	s.closed = true
	s.take()
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// mapInferParamsToPredictOptions converts our adapter params into go-llama.cpp options
func mapInferParamsToPredictOptions(params InferParams, threads, maxTopK int) []llama.PredictOption {
	topK := zn(params.TopK, llama.DefaultOptions.TopK)
	if maxTopK > 0 && topK > maxTopK {
		topK = maxTopK
	}
	po := []llama.PredictOption{
		llama.SetTokens(max(1, params.MaxTokens)),
		llama.SetThreads(max(1, threads)),
		llama.SetTopP(zf(params.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(topK),
		llama.SetTemperature(zf(params.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(zf(params.RepeatPenalty, llama.DefaultOptions.Penalty)),
	}
	if params.Seed != 0 {
		po = append(po, llama.SetSeed(params.Seed))
	}
	if len(params.Stop) > 0 {
		po = append(po, llama.SetStopWords(params.Stop...))
	}
	return po
}
