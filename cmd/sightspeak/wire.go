package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"sightspeak/internal/assistant"
	"sightspeak/internal/config"
	"sightspeak/internal/manager"
	"sightspeak/internal/registry"
	"sightspeak/internal/speech"
	"sightspeak/internal/transcript"
	"sightspeak/internal/vision"
)

// app is the wired runtime shared by serve and the one-shot commands.
type app struct {
	mgr   *manager.Manager
	store *transcript.Store
	asst  *assistant.Assistant
}

// appOptions select optional collaborators.
type appOptions struct {
	// Mute replaces the configured voice engine with speech.Discard.
	Mute bool
	// TranslateMode routes voice commands to translation.
	TranslateMode bool
}

// newApp builds the manager and its collaborators. Everything is released by
// app.Close.
func newApp(cfg config.Config, log zerolog.Logger, opts appOptions) (*app, error) {
	factory, path, err := engineFor(cfg, log)
	if err != nil {
		return nil, err
	}

	var (
		owned []io.Closer
		pubs  manager.MultiPublisher
		store *transcript.Store
	)
	if cfg.TranscriptDB != "" {
		store, err = transcript.Open(cfg.TranscriptDB, log)
		if err != nil {
			return nil, err
		}
		owned = append(owned, store)
		pubs = append(pubs, store)
	}

	speaker, closer, err := speakerFor(cfg, log, opts.Mute)
	if err != nil {
		closeAll(owned)
		return nil, err
	}
	if closer != nil {
		owned = append(owned, closer)
	}

	var publisher manager.EventPublisher
	if len(pubs) > 0 {
		publisher = pubs
	}
	visionEnabled := cfg.Vision
	if visionEnabled && cfg.Engine == config.EngineLlama {
		log.Warn().Msg("in-process llama engine has no image input; vision disabled")
		visionEnabled = false
	}
	mgr, err := manager.New(manager.ManagerConfig{
		ModelPath:     path,
		Engine:        factory,
		MaxTopK:       cfg.MaxTopK,
		MaxImages:     cfg.MaxImages,
		ContextSize:   cfg.LlamaCtx,
		Threads:       cfg.LlamaThreads,
		VisionEnabled: visionEnabled,
		Params: manager.InferParams{
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		},
		Locale:          cfg.ResponseLocale(),
		MemoryCapacity:  cfg.MemoryCapacity,
		PromptBudget:    cfg.PromptBudget,
		Watchdog:        cfg.Watchdog.Std(),
		OverflowMarkers: cfg.OverflowMarkers,
		Logger:          &log,
		Publisher:       publisher,
		Owned:           owned,
	})
	if err != nil {
		closeAll(owned)
		return nil, err
	}

	asstOpts := assistant.Options{
		Generator:     mgr,
		Speaker:       speaker,
		Locale:        cfg.ResponseLocale(),
		TranslateMode: opts.TranslateMode,
		Logger:        &log,
	}
	if cfg.STTCommand != "" {
		cmd, err := speech.ParseCommand(cfg.STTCommand)
		if err != nil {
			_ = mgr.Close()
			return nil, fmt.Errorf("stt_command: %w", err)
		}
		asstOpts.Listener = &speech.Listener{Recognizer: speech.CommandRecognizer{Cmd: cmd}, Log: log}
	}
	if cfg.CapturePath != "" {
		asstOpts.Capturer = vision.FileCapturer{Path: cfg.CapturePath, Width: cfg.CaptureWidth}
	}
	if cfg.OCRCommand != "" {
		cmd, err := speech.ParseCommand(cfg.OCRCommand)
		if err != nil {
			_ = mgr.Close()
			return nil, fmt.Errorf("ocr_command: %w", err)
		}
		asstOpts.OCR = vision.TesseractOCR{Path: cmd.Path, Args: cmd.Args}
	}
	asst, err := assistant.New(asstOpts)
	if err != nil {
		_ = mgr.Close()
		return nil, err
	}
	return &app{mgr: mgr, store: store, asst: asst}, nil
}

// Close shuts the manager down; the transcript store and voice engine are
// closed with it.
func (a *app) Close() error { return a.mgr.Close() }

// engineFor returns the engine factory for cfg.Engine and the model path it
// loads. llama-server reports the configured model id instead of a path.
func engineFor(cfg config.Config, log zerolog.Logger) (manager.EngineFactory, string, error) {
	switch cfg.Engine {
	case config.EngineLlamaServer:
		return manager.NewLlamaServerEngine(manager.ServerOptions{
			BaseURL:        cfg.LlamaServerURL,
			APIKey:         cfg.LlamaAPIKey,
			RequestTimeout: cfg.Watchdog.Std() * 3,
			Logger:         &log,
		}), cfg.Model, nil
	case config.EngineSpawn:
		path, err := modelPath(cfg)
		if err != nil {
			return nil, "", err
		}
		return manager.NewLlamaSubprocessEngine(manager.SpawnOptions{
			Bin:       cfg.LlamaBin,
			GPULayers: cfg.LlamaGPULayers,
			Logger:    &log,
		}), path, nil
	case config.EngineLlama, "":
		path, err := modelPath(cfg)
		if err != nil {
			return nil, "", err
		}
		return manager.NewLlamaEngine, path, nil
	}
	return nil, "", fmt.Errorf("unknown engine %q", cfg.Engine)
}

// modelPath resolves cfg.Model, falling back to the first model found in
// cfg.ModelsDir.
func modelPath(cfg config.Config) (string, error) {
	if cfg.Model != "" {
		return registry.Resolve(cfg.ModelsDir, cfg.Model)
	}
	models, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		return "", err
	}
	if len(models) == 0 {
		return "", fmt.Errorf("%w: no models in %s", registry.ErrModelNotFound, cfg.ModelsDir)
	}
	return models[0].Path, nil
}

// speakerFor returns the voice engine and, when it owns a process, its closer.
func speakerFor(cfg config.Config, log zerolog.Logger, mute bool) (speech.Speaker, io.Closer, error) {
	if mute || cfg.TTSCommand == "" {
		return speech.Discard{}, nil, nil
	}
	cmd, err := speech.ParseCommand(cfg.TTSCommand)
	if err != nil {
		return nil, nil, fmt.Errorf("tts_command: %w", err)
	}
	voice := cfg.ResponseLocale().SpeechTag()
	rs, err := speech.NewResilientSpeaker(func() (speech.Speaker, error) {
		return speech.CommandSpeaker{Cmd: cmd, Voice: voice}, nil
	}, log)
	if err != nil {
		return nil, nil, err
	}
	return rs, rs, nil
}

func closeAll(cs []io.Closer) {
	for _, c := range cs {
		_ = c.Close()
	}
}
