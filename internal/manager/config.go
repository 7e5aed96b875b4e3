package manager

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"sightspeak/internal/locale"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMemoryCapacity = 5
	defaultPromptBudget   = 4000
	defaultWatchdog       = 10 * time.Second
	defaultMaxTopK        = 32
	defaultMaxImages      = 1
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	ModelPath string
	// Engine loads the model. Defaults to the in-process llama adapter.
	Engine        EngineFactory
	MaxTopK       int
	MaxImages     int
	ContextSize   int
	Threads       int
	VisionEnabled bool
	Params        InferParams

	Locale             locale.Locale
	SystemInstructions string
	MemoryCapacity     int
	PromptBudget       int
	Watchdog           time.Duration

	// IsOverflow classifies generation errors; defaults to OverflowMarkers(OverflowMarkers...).
	IsOverflow      OverflowPredicate
	OverflowMarkers []string

	Logger    *zerolog.Logger
	Publisher EventPublisher
	// Owned collaborators (ASR, TTS...) closed together with the manager.
	Owned []io.Closer
}

// withDefaults returns a copy of cfg with package defaults applied.
func (cfg ManagerConfig) withDefaults() ManagerConfig {
	if cfg.Engine == nil {
		cfg.Engine = NewLlamaEngine
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = defaultMaxTopK
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = defaultMaxImages
	}
	cfg.Locale = cfg.Locale.Normalize()
	if cfg.SystemInstructions == "" {
		cfg.SystemInstructions = DefaultSystemInstructions
	}
	if cfg.MemoryCapacity <= 0 {
		cfg.MemoryCapacity = defaultMemoryCapacity
	}
	if cfg.PromptBudget <= 0 {
		cfg.PromptBudget = defaultPromptBudget
	}
	if cfg.Watchdog <= 0 {
		cfg.Watchdog = defaultWatchdog
	}
	if cfg.IsOverflow == nil {
		markers := cfg.OverflowMarkers
		if len(markers) == 0 {
			markers = DefaultOverflowMarkers
		}
		cfg.IsOverflow = OverflowMarkers(markers...)
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	return cfg
}
