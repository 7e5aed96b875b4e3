package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"sightspeak/internal/config"
	"sightspeak/internal/logging"
)

// version is overridden at link time.
var version = "dev"

// cli carries state resolved in PersistentPreRunE to every subcommand.
type cli struct {
	configPath string
	logLevel   string
	model      string
	engine     string
	locale     string

	cfg       config.Config
	log       zerolog.Logger
	logCloser io.Closer
}

func buildRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "sightspeak",
		Short:         "On-device voice and vision assistant backed by a local LLM",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "Config file (yaml|json|toml; defaults SIGHTSPEAK_CONFIG)")
	pf.StringVar(&c.logLevel, "log-level", "", "Log level: trace|debug|info|warn|error|off")
	pf.StringVar(&c.model, "model", "", "Model id, name or path")
	pf.StringVar(&c.engine, "engine", "", "Inference engine: llama|llama-server|spawn")
	pf.StringVar(&c.locale, "locale", "", "Response locale, e.g. default, de, ja")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || isCompletion(cmd) {
			return nil
		}
		return c.init()
	}
	root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if c.logCloser != nil {
			return c.logCloser.Close()
		}
		return nil
	}

	root.AddCommand(
		newServeCmd(c),
		newAskCmd(c),
		newDescribeCmd(c),
		newReadCmd(c),
		newListenCmd(c),
		newHistoryCmd(c),
		newModelsCmd(c),
		newCompletionCmd(),
	)
	return root
}

// init resolves the configuration and the root logger.
func (c *cli) init() error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if c.model != "" {
		cfg.Model = c.model
	}
	if c.engine != "" {
		cfg.Engine = c.engine
	}
	if c.locale != "" {
		cfg.Locale = c.locale
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON, File: cfg.LogFile})
	if err != nil {
		return err
	}
	c.cfg, c.log, c.logCloser = cfg, log, closer
	return nil
}

// loadConfig overlays the config file, when one is named, and the
// environment on the defaults.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		path = os.Getenv("SIGHTSPEAK_CONFIG")
	}
	cfg := config.Defaults()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv()
	return cfg, nil
}

func isCompletion(cmd *cobra.Command) bool {
	for p := cmd; p != nil; p = p.Parent() {
		if p.Name() == "completion" {
			return true
		}
	}
	return false
}

func newCompletionCmd() *cobra.Command {
	comp := &cobra.Command{Use: "completion", Short: "Generate shell completion scripts"}
	bash := &cobra.Command{Use: "bash", Short: "Generate bash completion", RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Root().GenBashCompletion(os.Stdout)
	}}
	zsh := &cobra.Command{Use: "zsh", Short: "Generate zsh completion", RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Root().GenZshCompletion(os.Stdout)
	}}
	fish := &cobra.Command{Use: "fish", Short: "Generate fish completion", RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Root().GenFishCompletion(os.Stdout, true)
	}}
	pwsh := &cobra.Command{Use: "powershell", Short: "Generate PowerShell completion", RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
	}}
	comp.AddCommand(bash, zsh, fish, pwsh)
	return comp
}
