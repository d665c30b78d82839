package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/foldersync/internal/config"
	"github.com/tonimelisma/foldersync/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// skipConfigCommands lists commands that build their CLIContext themselves:
// sync folds its positional arguments into the config overrides, and
// config init must work while the existing config is broken.
var skipConfigCommands = map[string]bool{
	"foldersync sync":        true,
	"foldersync config init": true,
}

// CLIContext carries the resolved config and logger for one command.
type CLIContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Quiet  bool
	JSON   bool

	closeLog func() error
}

// Statusf prints a status message to stderr unless quiet mode is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Quiet, format, args...)
}

type cliContextKey struct{}

func withCLIContext(ctx context.Context, cc *CLIContext) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cc)
}

// cliContextFrom returns nil when no CLIContext was attached.
func cliContextFrom(ctx context.Context) *CLIContext {
	if ctx == nil {
		return nil
	}

	cc, _ := ctx.Value(cliContextKey{}).(*CLIContext)

	return cc
}

func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not initialized; PersistentPreRunE did not run")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "foldersync",
		Short: "One-way periodic directory mirroring",
		Long: `Keep a replica directory an exact copy of a source directory.

Each pass copies new and changed files (compared by content fingerprint),
creates missing directories, and removes replica entries that no longer
exist in the source. Passes repeat on an interval until interrupted.`,
		Version: version,
		// Errors are printed by main.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfigCommands[cmd.CommandPath()] {
				return nil
			}

			return setupCLIContext(cmd, globalOverrides())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return closeCLIContext(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "only log errors to the console")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func globalOverrides() config.CLIOverrides {
	return config.CLIOverrides{ConfigPath: flagConfigPath}
}

// setupCLIContext resolves the configuration through the override chain,
// builds the logger and attaches both to cmd's context.
func setupCLIContext(cmd *cobra.Command, cli config.CLIOverrides) error {
	cfg, err := config.Resolve(config.ReadEnvOverrides(), cli, bootstrapLogger(cmd))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, closeLog, err := buildLogger(cmd, cfg)
	if err != nil {
		return err
	}

	cmd.SetContext(withCLIContext(cmd.Context(), &CLIContext{
		Cfg:      cfg,
		Logger:   logger,
		Quiet:    flagQuiet,
		JSON:     flagJSON,
		closeLog: closeLog,
	}))

	return nil
}

func closeCLIContext(cmd *cobra.Command) error {
	cc := cliContextFrom(cmd.Context())
	if cc == nil || cc.closeLog == nil {
		return nil
	}

	err := cc.closeLog()
	cc.closeLog = nil

	return err
}

// bootstrapLogger is used while the config itself is being loaded.
func bootstrapLogger(cmd *cobra.Command) *slog.Logger {
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: consoleLevel(slog.LevelWarn)}))
}

// consoleLevel applies --verbose and --quiet over the configured level.
// CLI flags always win.
func consoleLevel(configured slog.Level) slog.Level {
	switch {
	case flagVerbose:
		return slog.LevelDebug
	case flagQuiet:
		return slog.LevelError
	default:
		return configured
	}
}

// buildLogger creates the console logger and, when log_file is set, the
// file handler that records every action with a timestamp.
func buildLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, func() error, error) {
	logger, closeLog, err := logging.New(logging.Options{
		Level:   consoleLevel(cfg.Level()),
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
		Console: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("setting up logging: %w", err)
	}

	return logger, closeLog, nil
}
