package manager

import (
	"os"

	"sightspeak/internal/common/fsutil"
)

// SanityReport describes runtime checks for the inference dependencies.
type SanityReport struct {
	LlamaBuilt  bool   `json:"llama_built"`
	ModelFound  bool   `json:"model_found"`
	ModelPath   string `json:"model_path,omitempty"`
	SessionOpen bool   `json:"session_open"`
	Error       string `json:"error,omitempty"`
}

// SanityCheck validates that the model file is present. It does not mutate
// state and is safe to call at any time.
func (m *Manager) SanityCheck() SanityReport {
	r := SanityReport{LlamaBuilt: llamaBuilt, ModelPath: m.cfg.ModelPath, SessionOpen: m.Ready()}
	return checkModelPath(r)
}

func checkModelPath(r SanityReport) SanityReport {
	path, err := fsutil.ExpandHome(r.ModelPath)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	if path == "" {
		r.Error = "model path not configured"
		return r
	}
	r.ModelPath = path
	fi, err := os.Stat(path)
	switch {
	case err != nil:
		r.Error = err.Error()
	case fi.IsDir():
		r.Error = "model path is a directory"
	default:
		r.ModelFound = true
	}
	return r
}
