package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"sightspeak/internal/common/fsutil"
	"sightspeak/pkg/types"
)

// ErrModelNotFound is returned when no model matches the requested id.
var ErrModelNotFound = errors.New("model not found")

// formats maps recognized extensions to the reported format.
var formats = map[string]string{
	".gguf": "gguf",
	".task": "task",
}

var quantRe = regexp.MustCompile(`(?i)(?:^|[-_.])((?:i?q\d+(?:_[a-z0-9]+)*)|f16|bf16|f32|int4|int8)(?:[-_.]|$)`)

// LoadDir scans a directory for *.gguf and *.task files and builds a registry
// from filenames. ID is the full filename; Path is the absolute file path.
// Results are sorted by ID.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		format, ok := formats[ext]
		if !ok {
			continue
		}
		m := types.Model{
			ID:     name,
			Name:   strings.TrimSuffix(name, filepath.Ext(name)),
			Path:   filepath.Join(abs, name),
			Format: format,
			Quant:  quantOf(name),
		}
		if info, err := e.Info(); err == nil {
			m.SizeBytes = info.Size()
		}
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// Find returns the model whose ID or Name equals id (case-insensitive).
func Find(models []types.Model, id string) (types.Model, error) {
	for _, m := range models {
		if strings.EqualFold(m.ID, id) || strings.EqualFold(m.Name, id) {
			return m, nil
		}
	}
	return types.Model{}, fmt.Errorf("%w: %s", ErrModelNotFound, id)
}

// Resolve turns a configured model reference into a file path. A reference
// that names an existing file is used as is; otherwise it is looked up in dir.
func Resolve(dir, ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("%w: empty model reference", ErrModelNotFound)
	}
	p, err := fsutil.ExpandHome(ref)
	if err != nil {
		return "", err
	}
	if st, err := os.Stat(p); err == nil && !st.IsDir() {
		return p, nil
	}
	models, err := LoadDir(dir)
	if err != nil {
		return "", err
	}
	m, err := Find(models, ref)
	if err != nil {
		return "", err
	}
	return m.Path, nil
}

func quantOf(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if m := quantRe.FindStringSubmatch(stem); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}
