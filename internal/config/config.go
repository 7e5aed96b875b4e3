package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sightspeak/internal/locale"
)

// Engine kinds.
const (
	EngineLlama       = "llama"
	EngineLlamaServer = "llama-server"
	EngineSpawn       = "spawn"
)

// Config holds runtime parameters for the daemon and the CLI.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	Model     string `json:"model" yaml:"model" toml:"model"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`

	Engine         string `json:"engine" yaml:"engine" toml:"engine"`
	LlamaServerURL string `json:"llama_server_url" yaml:"llama_server_url" toml:"llama_server_url"`
	LlamaAPIKey    string `json:"llama_api_key" yaml:"llama_api_key" toml:"llama_api_key"`
	LlamaBin       string `json:"llama_bin" yaml:"llama_bin" toml:"llama_bin"`
	LlamaCtx       int    `json:"llama_ctx" yaml:"llama_ctx" toml:"llama_ctx"`
	LlamaThreads   int    `json:"llama_threads" yaml:"llama_threads" toml:"llama_threads"`
	LlamaGPULayers int    `json:"llama_gpu_layers" yaml:"llama_gpu_layers" toml:"llama_gpu_layers"`

	Vision      bool    `json:"vision" yaml:"vision" toml:"vision"`
	MaxTopK     int     `json:"max_top_k" yaml:"max_top_k" toml:"max_top_k"`
	MaxImages   int     `json:"max_images" yaml:"max_images" toml:"max_images"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	Temperature float32 `json:"temperature" yaml:"temperature" toml:"temperature"`

	Locale          string   `json:"locale" yaml:"locale" toml:"locale"`
	MemoryCapacity  int      `json:"memory_capacity" yaml:"memory_capacity" toml:"memory_capacity"`
	PromptBudget    int      `json:"prompt_budget" yaml:"prompt_budget" toml:"prompt_budget"`
	Watchdog        Duration `json:"watchdog" yaml:"watchdog" toml:"watchdog"`
	OverflowMarkers []string `json:"overflow_markers" yaml:"overflow_markers" toml:"overflow_markers"`

	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFile  string `json:"log_file" yaml:"log_file" toml:"log_file"`
	LogJSON  bool   `json:"log_json" yaml:"log_json" toml:"log_json"`

	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
	CORSAllowedMethods []string `json:"cors_allowed_methods" yaml:"cors_allowed_methods" toml:"cors_allowed_methods"`
	CORSAllowedHeaders []string `json:"cors_allowed_headers" yaml:"cors_allowed_headers" toml:"cors_allowed_headers"`
	MaxBodyBytes       int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	TranscriptDB string `json:"transcript_db" yaml:"transcript_db" toml:"transcript_db"`
	TTSCommand   string `json:"tts_command" yaml:"tts_command" toml:"tts_command"`
	STTCommand   string `json:"stt_command" yaml:"stt_command" toml:"stt_command"`
	OCRCommand   string `json:"ocr_command" yaml:"ocr_command" toml:"ocr_command"`
	CapturePath  string `json:"capture_path" yaml:"capture_path" toml:"capture_path"`
	CaptureWidth int    `json:"capture_width" yaml:"capture_width" toml:"capture_width"`
	TraceFile    string `json:"trace_file" yaml:"trace_file" toml:"trace_file"`
}

// Defaults returns the configuration used when nothing is specified.
func Defaults() Config {
	return Config{
		Addr:           ":8080",
		ModelsDir:      "~/models/llm",
		Engine:         EngineLlama,
		Vision:         true,
		MaxTopK:        32,
		MaxImages:      1,
		MaxTokens:      256,
		Locale:         string(locale.Default),
		MemoryCapacity: 5,
		PromptBudget:   4000,
		Watchdog:       Duration(10 * time.Second),
		LogLevel:       "info",
		MaxBodyBytes:   8 << 20,
		TTSCommand:     "espeak-ng -v {voice}",
		OCRCommand:     "tesseract",
		CaptureWidth:   640,
	}
}

// ApplyEnv overrides fields from SIGHTSPEAK_* environment variables.
func (c *Config) ApplyEnv() {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("SIGHTSPEAK_ADDR", &c.Addr)
	str("SIGHTSPEAK_MODEL", &c.Model)
	str("SIGHTSPEAK_ENGINE", &c.Engine)
	str("SIGHTSPEAK_LLAMA_SERVER_URL", &c.LlamaServerURL)
	str("SIGHTSPEAK_LLAMA_API_KEY", &c.LlamaAPIKey)
	str("SIGHTSPEAK_LOCALE", &c.Locale)
	str("SIGHTSPEAK_LOG_LEVEL", &c.LogLevel)
	if v := os.Getenv("SIGHTSPEAK_WATCHDOG"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Watchdog = Duration(d)
		}
	}
	if v := os.Getenv("SIGHTSPEAK_LLAMA_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LlamaThreads = n
		}
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Engine {
	case EngineLlama:
	case EngineLlamaServer:
		if strings.TrimSpace(c.LlamaServerURL) == "" {
			errs = append(errs, errors.New("llama_server_url is required for engine llama-server"))
		}
	case EngineSpawn:
		if strings.TrimSpace(c.LlamaBin) == "" {
			errs = append(errs, errors.New("llama_bin is required for engine spawn"))
		}
	default:
		errs = append(errs, fmt.Errorf("engine must be one of llama|llama-server|spawn, got %q", c.Engine))
	}
	if _, ok := locale.Parse(c.Locale); !ok {
		errs = append(errs, fmt.Errorf("unsupported locale %q", c.Locale))
	}
	if c.MaxImages != 1 {
		errs = append(errs, fmt.Errorf("max_images must be 1, got %d", c.MaxImages))
	}
	if c.MaxTopK < 1 {
		errs = append(errs, fmt.Errorf("max_top_k must be positive, got %d", c.MaxTopK))
	}
	if c.MemoryCapacity < 1 {
		errs = append(errs, fmt.Errorf("memory_capacity must be positive, got %d", c.MemoryCapacity))
	}
	if c.PromptBudget < 0 {
		errs = append(errs, fmt.Errorf("prompt_budget must not be negative, got %d", c.PromptBudget))
	}
	if c.Watchdog <= 0 {
		errs = append(errs, fmt.Errorf("watchdog must be positive, got %s", c.Watchdog))
	}
	if c.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("max_body_bytes must not be negative, got %d", c.MaxBodyBytes))
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "trace", "debug", "info", "warn", "warning", "error", "err", "off", "disabled", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

// ResponseLocale returns the parsed locale, falling back to the default.
func (c Config) ResponseLocale() locale.Locale {
	l, _ := locale.Parse(c.Locale)
	return l.Normalize()
}

// Duration is a time.Duration written as a Go duration string ("10s").
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}
