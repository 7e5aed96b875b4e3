package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"sightspeak/internal/config"
	"sightspeak/internal/httpapi"
	"sightspeak/internal/registry"
	"sightspeak/internal/telemetry"
	"sightspeak/pkg/types"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	var (
		addr        string
		corsOrigins string
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Serve the HTTP API",
		Example: "  sightspeak serve --addr :8080\n  sightspeak serve --engine llama-server --cors-origins http://localhost:5173",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			if addr != "" {
				cfg.Addr = addr
			}
			if origins := splitCSV(corsOrigins); len(origins) > 0 {
				cfg.CORSEnabled = true
				cfg.CORSAllowedOrigins = origins
			}
			return runServe(cmd.Context(), c, serveOptions{addr: cfg.Addr, requestTimeout: timeout, cfg: cfg})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :8080 (defaults SIGHTSPEAK_ADDR)")
	cmd.Flags().StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins; enables CORS")
	cmd.Flags().DurationVar(&timeout, "request-timeout", 0, "Upper bound for one streaming request (0 = none)")
	return cmd
}

type serveOptions struct {
	addr           string
	requestTimeout time.Duration
	cfg            config.Config
}

func runServe(parent context.Context, c *cli, so serveOptions) error {
	cfg := so.cfg
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Options{TraceFile: cfg.TraceFile, Version: version})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	a, err := newApp(cfg, c.log, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()
	if rep := a.mgr.SanityCheck(); rep.Error != "" && cfg.Engine != config.EngineLlamaServer {
		c.log.Warn().Str("model", rep.ModelPath).Str("error", rep.Error).Msg("sanity check failed")
	} else {
		c.log.Debug().Bool("llama_built", rep.LlamaBuilt).Bool("session_open", rep.SessionOpen).Msg("sanity check ok")
	}

	httpapi.SetLogger(c.log)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetRequestTimeout(so.requestTimeout)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSAllowedOrigins, cfg.CORSAllowedMethods, cfg.CORSAllowedHeaders)

	opts := []httpapi.Option{httpapi.WithModels(dirModels{dir: cfg.ModelsDir, log: c.log})}
	if a.store != nil {
		opts = append(opts, httpapi.WithHistory(a.store))
	}
	srv := &http.Server{
		Addr:              so.addr,
		Handler:           httpapi.NewMux(a.mgr, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		c.log.Info().Str("addr", so.addr).Str("models_dir", cfg.ModelsDir).Str("engine", cfg.Engine).Msg("sightspeak listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	c.log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		c.log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

// dirModels rescans the models directory on every request.
type dirModels struct {
	dir string
	log zerolog.Logger
}

func (d dirModels) ListModels() []types.Model {
	models, err := registry.LoadDir(d.dir)
	if err != nil {
		d.log.Warn().Err(err).Str("dir", d.dir).Msg("list models failed")
		return nil
	}
	return models
}
