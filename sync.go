package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/foldersync/internal/config"
	"github.com/tonimelisma/foldersync/internal/journal"
	"github.com/tonimelisma/foldersync/internal/mirror"
	"github.com/tonimelisma/foldersync/internal/schedule"
	"github.com/tonimelisma/foldersync/internal/watch"
)

// Positional argument indices of the sync command.
const (
	argSource = iota
	argReplica
	argLogFile
	argInterval
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync SOURCE REPLICA [LOG_FILE] [INTERVAL]",
		Short: "Mirror SOURCE into REPLICA, repeating on an interval",
		Long: `Run mirror passes from SOURCE to REPLICA until interrupted.

Each pass copies new and changed files, creates missing directories, and then
removes replica entries that are gone from the source. INTERVAL is the pause
after each pass, in seconds ("60") or as a duration ("1m30s"). LOG_FILE, when
given, receives a timestamped record of every action.

With --watch, a change under SOURCE starts the next pass early. With --once,
a single pass runs and the command exits.`,
		Args: cobra.RangeArgs(argLogFile, argInterval+1),
		RunE: runSync,
	}

	cmd.Flags().String("log-file", "", "append a timestamped action log to this file")
	cmd.Flags().String("interval", "", "pause between passes (seconds or duration)")
	cmd.Flags().Bool("once", false, "run a single pass and exit")
	cmd.Flags().Bool("watch", false, "start a pass early when the source changes")
	cmd.Flags().String("hash", "", "content fingerprint: md5, sha256, quickxor")

	return cmd
}

// syncOverrides folds the sync flags and optional positional arguments into
// CLI overrides. A value given both ways is rejected.
func syncOverrides(cmd *cobra.Command, args []string) (config.CLIOverrides, error) {
	cli := globalOverrides()

	var err error

	if cli.LogFile, err = positionalOrFlag(cmd, args, argLogFile, "LOG_FILE", "log-file"); err != nil {
		return cli, err
	}

	if cli.Interval, err = positionalOrFlag(cmd, args, argInterval, "INTERVAL", "interval"); err != nil {
		return cli, err
	}

	if cmd.Flags().Changed("hash") {
		v, _ := cmd.Flags().GetString("hash")
		cli.HashAlgorithm = &v
	}

	if cmd.Flags().Changed("watch") {
		v, _ := cmd.Flags().GetBool("watch")
		cli.Watch = &v
	}

	return cli, nil
}

func positionalOrFlag(cmd *cobra.Command, args []string, idx int, name, flag string) (*string, error) {
	changed := cmd.Flags().Changed(flag)

	if len(args) > idx {
		if changed {
			return nil, fmt.Errorf("%s given both as argument and as --%s", name, flag)
		}

		v := args[idx]

		return &v, nil
	}

	if changed {
		v, _ := cmd.Flags().GetString(flag)
		return &v, nil
	}

	return nil, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	source, replica, err := absRoots(args[argSource], args[argReplica])
	if err != nil {
		return err
	}

	// Refuse before anything touches the disk, the log file included.
	if err := mirror.CheckRoots(source, replica); err != nil {
		return err
	}

	cli, err := syncOverrides(cmd, args)
	if err != nil {
		return err
	}

	if err := setupCLIContext(cmd, cli); err != nil {
		return err
	}

	cc := mustCLIContext(cmd.Context())
	once, _ := cmd.Flags().GetBool("once")

	release, err := acquireReplicaLock(config.LockDir(), replica)
	if err != nil {
		return err
	}
	defer release()

	d := &syncDriver{
		engine:  mirror.NewEngine(cc.Cfg.MirrorOptions(cc.Logger)),
		source:  source,
		replica: replica,
		logger:  cc.Logger,
	}

	if cc.Cfg.JournalEnabled {
		j, jErr := openJournal(cmd.Context(), cc, replica)
		if jErr != nil {
			return jErr
		}
		defer j.Close()

		d.journal = j
	}

	if !once {
		cc.Statusf("Mirroring %s -> %s every %s (Ctrl-C to stop)\n", source, replica, cc.Cfg.IntervalDuration())
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	return runLoop(shutdownContext(ctx, cc.Logger), cc, d, once)
}

func absRoots(source, replica string) (string, string, error) {
	src, err := filepath.Abs(source)
	if err != nil {
		return "", "", fmt.Errorf("resolving source path: %w", err)
	}

	dst, err := filepath.Abs(replica)
	if err != nil {
		return "", "", fmt.Errorf("resolving replica path: %w", err)
	}

	return src, dst, nil
}

// openJournal opens the pass history, closes out passes a previous driver
// of replica left running, and drops passes older than the retention
// window. The caller must hold the replica lock.
func openJournal(ctx context.Context, cc *CLIContext, replica string) (*journal.Journal, error) {
	j, err := journal.Open(ctx, cc.Cfg.JournalFile(), cc.Logger)
	if err != nil {
		return nil, err
	}

	if _, err := j.RecoverInterrupted(ctx, replica); err != nil {
		cc.Logger.Warn("recovering interrupted passes failed", slog.String("error", err.Error()))
	}

	if _, err := j.Prune(ctx, cc.Cfg.JournalRetentionDays); err != nil {
		cc.Logger.Warn("pruning pass history failed", slog.String("error", err.Error()))
	}

	return j, nil
}

// runLoop runs the scheduler and, when enabled, the source watcher. The
// watcher stops when the loop ends; a failing watcher stops the loop after
// its current pass.
func runLoop(ctx context.Context, cc *CLIContext, d *syncDriver, once bool) error {
	cfg := cc.Cfg

	loop := &schedule.Loop{
		Interval: cfg.IntervalDuration(),
		Pass:     d.pass,
		Once:     once,
		Logger:   cc.Logger,
	}

	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stopWatch := context.WithCancel(gctx)

	if cfg.Watch && !once {
		trigger := make(chan struct{}, 1)
		loop.Trigger = trigger

		filter := mirror.NewFilter(cfg.FilterOptions(), afero.NewOsFs(), d.source, cc.Logger)
		w := watch.New(d.source, watch.Options{
			Debounce: cfg.DebounceDuration(),
			Exclude:  watchExclude(filter),
			Logger:   cc.Logger,
		})

		g.Go(func() error {
			return w.Run(loopCtx, trigger)
		})
	}

	g.Go(func() error {
		defer stopWatch()
		return loop.Run(loopCtx)
	})

	return g.Wait()
}

// watchExclude adapts a filter that outlives passes to the watcher: an event
// on an ignore file reloads its rules before the event itself is judged.
func watchExclude(filter *mirror.Filter) func(rel string, isDir bool) bool {
	return func(rel string, isDir bool) bool {
		filter.Reload(rel)
		return filter.Excluded(rel, isDir)
	}
}

// syncDriver runs one pass and records it in the journal.
type syncDriver struct {
	engine  *mirror.Engine
	journal *journal.Journal
	source  string
	replica string
	logger  *slog.Logger
}

// pass is a schedule.PassFunc. An inaccessible root on the first pass is
// fatal; later it is logged and retried on the next pass.
func (d *syncDriver) pass(ctx context.Context, n int) error {
	sink := mirror.MultiSink{mirror.NewLogSink(d.logger)}

	passID := d.beginPass(ctx)
	if passID != "" {
		sink = append(sink, d.journal.Recorder(passID))
	}

	res, err := d.engine.Sync(ctx, d.source, d.replica, sink)

	if passID != "" {
		if finErr := d.journal.FinishPass(context.WithoutCancel(ctx), passID, res, err); finErr != nil {
			d.logger.Warn("recording pass result failed",
				slog.String("pass_id", passID), slog.String("error", finErr.Error()))
		}
	}

	if err != nil {
		if n == 1 && isRootError(err) {
			return fmt.Errorf("%w: %w", schedule.ErrStop, err)
		}

		return err
	}

	return nil
}

func (d *syncDriver) beginPass(ctx context.Context) string {
	if d.journal == nil {
		return ""
	}

	id, err := d.journal.BeginPass(ctx, d.source, d.replica)
	if err != nil {
		d.logger.Warn("recording pass start failed", slog.String("error", err.Error()))
		return ""
	}

	return id
}

func isRootError(err error) bool {
	return errors.Is(err, mirror.ErrSourceUnavailable) || errors.Is(err, mirror.ErrReplicaUnavailable)
}
