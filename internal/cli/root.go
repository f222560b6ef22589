// Package cli implements the imageloop command-line interface using Cobra.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mhpenta/imageloop/internal/config"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// App holds what the commands share: where they write, the filesystem they
// use and how they build a backend. Tests swap these out.
type App struct {
	out        io.Writer
	errOut     io.Writer
	fs         afero.Fs
	newBackend BackendFactory

	cfgFile   string
	logLevel  string
	logFormat string

	loader *config.Loader
	cfg    *config.Config
	logger *slog.Logger
}

// Option configures an App.
type Option func(*App)

// WithOutput sets the writers for results and logs.
func WithOutput(out, errOut io.Writer) Option {
	return func(a *App) {
		a.out = out
		a.errOut = errOut
	}
}

// WithFs sets the filesystem used for artifacts and the session config.
func WithFs(fs afero.Fs) Option {
	return func(a *App) {
		a.fs = fs
	}
}

// WithBackendFactory replaces how the generator, evaluator and prompter are built.
func WithBackendFactory(factory BackendFactory) Option {
	return func(a *App) {
		a.newBackend = factory
	}
}

// NewRootCommand creates the imageloop command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	app := &App{
		out:        os.Stdout,
		errOut:     os.Stderr,
		fs:         afero.NewOsFs(),
		newBackend: NewBackend,
		loader:     config.NewLoader(),
	}
	for _, opt := range opts {
		opt(app)
	}

	rootCmd := &cobra.Command{
		Use:   "imageloop",
		Short: "Iteratively generate, judge and refine images",
		Long: `imageloop drives an image model in a loop: each round's image is scored
by an evaluator model, and a prompter model rewrites the prompt from the
evaluator's feedback until the score clears a threshold or the round
budget runs out.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.initConfig(cmd)
		},
	}
	rootCmd.SetOut(app.out)
	rootCmd.SetErr(app.errOut)

	rootCmd.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default is $HOME/.config/imageloop/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "override logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&app.logFormat, "log-format", "", "override logging format (text, json)")
	rootCmd.PersistentFlags().String("session", "", "path of the prompter session config")

	rootCmd.AddCommand(
		newRunCmd(app),
		newInitCmd(app),
	)
	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context, version string) error {
	rootCmd := NewRootCommand()
	rootCmd.Version = version
	return rootCmd.ExecuteContext(ctx)
}

// flagBindings maps CLI flags onto config keys. Flags only win when set.
var flagBindings = map[string]string{
	"session":            "session.path",
	"provider":           "provider.name",
	"model":              "provider.image_model",
	"max-iterations":     "loop.max_iterations",
	"threshold":          "loop.score_threshold",
	"resend-primary-ref": "loop.resend_primary_reference",
	"quality":            "generation.quality",
	"size":               "generation.size",
	"background":         "generation.background",
	"format":             "generation.format",
	"artifacts":          "storage.dir",
	"s3-bucket":          "storage.s3.bucket",
}

// initConfig loads configuration using Viper with proper precedence:
// defaults < config file < env vars < CLI flags
func (a *App) initConfig(cmd *cobra.Command) error {
	if a.cfgFile != "" {
		a.loader.SetConfigFile(a.cfgFile)
	}

	v := a.loader.Viper()
	for name, key := range flagBindings {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			if err := v.BindPFlag(key, flag); err != nil {
				return fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}
	// Naming an artifacts directory or bucket picks the backend too.
	if cmd.Flags().Changed("s3-bucket") {
		a.loader.Set("storage.backend", config.StorageS3)
	} else if cmd.Flags().Changed("artifacts") {
		a.loader.Set("storage.backend", config.StorageLocal)
	}
	if a.logLevel != "" {
		a.loader.Set("logging.level", a.logLevel)
	}
	if a.logFormat != "" {
		a.loader.Set("logging.format", a.logFormat)
	}

	cfg, err := a.loader.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(a.errOut, cfg.Logging)

	if used := a.loader.ConfigFileUsed(); used != "" {
		a.logger.Debug("loaded config file", "config_file", used)
	}
	return nil
}

func newLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}
