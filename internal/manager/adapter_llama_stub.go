//go:build !llama

package manager

// No-CGO stub compiled when the 'llama' build tag is not set. Default builds
// stay CGO-free and fail fast instead of faking inference.

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = false

// NewLlamaEngine refuses to load a model without the 'llama' build tag.
func NewLlamaEngine(opts EngineOptions) (Engine, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
