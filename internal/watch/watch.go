// Package watch turns filesystem notifications under a source tree into
// debounced triggers for an early mirror pass.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
)

// Error backoff bounds for a misbehaving watcher (e.g. kernel queue
// overflow).
const (
	watchErrInitBackoff = time.Second
	watchErrMaxBackoff  = time.Minute
	watchErrBackoffMult = 2
)

// DefaultDebounce is the quiet period used when Options.Debounce is zero.
const DefaultDebounce = 2 * time.Second

// FsWatcher is the subset of *fsnotify.Watcher the watcher uses, so tests can
// substitute a fake.
type FsWatcher interface {
	Add(name string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

type fsnotifyWatcher struct {
	w *fsnotify.Watcher
}

func (f fsnotifyWatcher) Add(name string) error         { return f.w.Add(name) }
func (f fsnotifyWatcher) Close() error                  { return f.w.Close() }
func (f fsnotifyWatcher) Events() <-chan fsnotify.Event { return f.w.Events }
func (f fsnotifyWatcher) Errors() <-chan error          { return f.w.Errors }

func newFsnotifyWatcher() (FsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return fsnotifyWatcher{w: w}, nil
}

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	// Exclude reports whether a source-relative, slash-separated path should
	// be ignored. Excluded directories are not watched. May be nil.
	Exclude func(rel string, isDir bool) bool
	Clock   clockwork.Clock
	Logger  *slog.Logger

	newWatcher func() (FsWatcher, error)
}

// Watcher watches every directory under a root.
type Watcher struct {
	root       string
	debounce   time.Duration
	exclude    func(string, bool) bool
	clock      clockwork.Clock
	logger     *slog.Logger
	newWatcher func() (FsWatcher, error)
}

// New returns a Watcher for root.
func New(root string, opts Options) *Watcher {
	w := &Watcher{
		root:       root,
		debounce:   opts.Debounce,
		exclude:    opts.Exclude,
		clock:      opts.Clock,
		logger:     opts.Logger,
		newWatcher: opts.newWatcher,
	}

	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}

	if w.exclude == nil {
		w.exclude = func(string, bool) bool { return false }
	}

	if w.clock == nil {
		w.clock = clockwork.NewRealClock()
	}

	if w.logger == nil {
		w.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if w.newWatcher == nil {
		w.newWatcher = newFsnotifyWatcher
	}

	return w
}

// Run watches until ctx is canceled. Once changes have been quiet for the
// debounce period, it makes a non-blocking send on trigger: a trigger that
// is already pending absorbs further ones.
func (w *Watcher) Run(ctx context.Context, trigger chan<- struct{}) error {
	fw, err := w.newWatcher()
	if err != nil {
		return fmt.Errorf("watch: creating watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}

	w.logger.Info("watching source for changes",
		slog.String("root", w.root), slog.Duration("debounce", w.debounce))

	return w.loop(ctx, fw, trigger)
}

func (w *Watcher) loop(ctx context.Context, fw FsWatcher, trigger chan<- struct{}) error {
	var (
		debounce  clockwork.Timer
		debounceC <-chan time.Time
	)

	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	errBackoff := watchErrInitBackoff

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events():
			if !ok {
				return nil
			}

			errBackoff = watchErrInitBackoff

			if !w.relevant(fw, ev) {
				continue
			}

			if debounce == nil {
				debounce = w.clock.NewTimer(w.debounce)
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.Chan():
					default:
					}
				}

				debounce.Reset(w.debounce)
			}

			debounceC = debounce.Chan()

		case <-debounceC:
			debounceC = nil

			select {
			case trigger <- struct{}{}:
				w.logger.Debug("change burst settled, trigger sent")
			default:
				w.logger.Debug("change burst settled, trigger already pending")
			}

		case watchErr, ok := <-fw.Errors():
			if !ok {
				return nil
			}

			w.logger.Warn("filesystem watcher error",
				slog.String("error", watchErr.Error()),
				slog.Duration("backoff", errBackoff),
			)

			select {
			case <-ctx.Done():
				return nil
			case <-w.clock.After(errBackoff):
			}

			errBackoff = min(errBackoff*watchErrBackoffMult, watchErrMaxBackoff)
		}
	}
}

// relevant filters an event and registers watches on new directories.
func (w *Watcher) relevant(fw FsWatcher, ev fsnotify.Event) bool {
	// Mode changes alone do not alter what a pass copies.
	if ev.Op == fsnotify.Chmod {
		return false
	}

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return true
	}

	rel = filepath.ToSlash(rel)

	isDir := false

	if ev.Has(fsnotify.Create) {
		if info, statErr := lstat(ev.Name); statErr == nil && info.IsDir() {
			isDir = true
		}
	}

	if w.exclude(rel, isDir) {
		return false
	}

	if isDir {
		if err := w.addTree(fw, ev.Name); err != nil {
			w.logger.Warn("failed to watch new directory",
				slog.String("path", rel), slog.String("error", err.Error()))
		}
	}

	return true
}

// addTree adds a watch on dir and every non-excluded directory below it.
// Symlinked directories are not followed, matching the mirror engine.
func (w *Watcher) addTree(fw FsWatcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watch: walking %s: %w", dir, err)
			}

			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			w.logger.Debug("watch: skipping unreadable directory",
				slog.String("path", path), slog.String("error", err.Error()))

			return fs.SkipDir
		}

		if !d.IsDir() {
			return nil
		}

		if path != w.root {
			rel, relErr := filepath.Rel(w.root, path)
			if relErr == nil && w.exclude(filepath.ToSlash(rel), true) {
				return fs.SkipDir
			}
		}

		if addErr := fw.Add(path); addErr != nil {
			if path == dir {
				return fmt.Errorf("watch: adding %s: %w", path, addErr)
			}

			w.logger.Warn("failed to watch directory",
				slog.String("path", path), slog.String("error", addErr.Error()))
		}

		return nil
	})
}
