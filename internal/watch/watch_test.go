package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFsWatcher records added paths and lets tests inject events.
type fakeFsWatcher struct {
	mu     sync.Mutex
	added  []string
	events chan fsnotify.Event
	errs   chan error
}

func newFakeFsWatcher() *fakeFsWatcher {
	return &fakeFsWatcher{
		events: make(chan fsnotify.Event),
		errs:   make(chan error),
	}
}

func (f *fakeFsWatcher) Add(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.added = append(f.added, name)

	return nil
}

func (f *fakeFsWatcher) Close() error                  { return nil }
func (f *fakeFsWatcher) Events() <-chan fsnotify.Event { return f.events }
func (f *fakeFsWatcher) Errors() <-chan error          { return f.errs }

func (f *fakeFsWatcher) addedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.added...)
}

type harness struct {
	root    string
	fake    *fakeFsWatcher
	clock   *clockwork.FakeClock
	trigger chan struct{}
	cancel  context.CancelFunc
	done    chan error
}

func startFake(t *testing.T, root string, exclude func(string, bool) bool) *harness {
	t.Helper()

	h := &harness{
		root:    root,
		fake:    newFakeFsWatcher(),
		clock:   clockwork.NewFakeClock(),
		trigger: make(chan struct{}, 1),
		done:    make(chan error, 1),
	}

	w := New(root, Options{
		Debounce: time.Second,
		Exclude:  exclude,
		Clock:    h.clock,
		Logger:   discardLogger(),
		newWatcher: func() (FsWatcher, error) {
			return h.fake, nil
		},
	})

	ctx, cancel := context.WithCancel(t.Context())
	h.cancel = cancel

	go func() { h.done <- w.Run(ctx, h.trigger) }()

	t.Cleanup(func() {
		cancel()
		<-h.done
	})

	return h
}

func (h *harness) send(t *testing.T, name string, op fsnotify.Op) {
	t.Helper()

	select {
	case h.fake.events <- fsnotify.Event{Name: filepath.Join(h.root, name), Op: op}:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not accept event")
	}
}

// barrier returns once every earlier event has been handled. The loop reads
// events one at a time and ignores chmod-only ones.
func (h *harness) barrier(t *testing.T) {
	t.Helper()
	h.send(t, ".barrier", fsnotify.Chmod)
}

func (h *harness) expectTrigger(t *testing.T) {
	t.Helper()

	select {
	case <-h.trigger:
	case <-time.After(5 * time.Second):
		t.Fatal("expected trigger")
	}
}

func (h *harness) expectNoTrigger(t *testing.T) {
	t.Helper()

	select {
	case <-h.trigger:
		t.Fatal("unexpected trigger")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRun_WatchesTreeExceptExcludedDirs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "x"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "f.txt"), []byte("x"), 0o644))

	exclude := func(rel string, isDir bool) bool {
		return isDir && strings.HasPrefix(rel, "node_modules")
	}

	h := startFake(t, root, exclude)

	// An event round-trip guarantees the initial walk has finished.
	h.barrier(t)

	assert.ElementsMatch(t,
		[]string{root, filepath.Join(root, "a"), filepath.Join(root, "a", "b")},
		h.fake.addedPaths())
}

func TestRun_DebouncesBurstIntoOneTrigger(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	h := startFake(t, root, nil)

	for range 5 {
		h.send(t, "f.txt", fsnotify.Write)
		h.barrier(t)
		h.clock.Advance(500 * time.Millisecond)
	}

	// Still inside the quiet period of the last event.
	h.expectNoTrigger(t)

	require.NoError(t, h.clock.BlockUntilContext(t.Context(), 1))
	h.clock.Advance(time.Second)
	h.expectTrigger(t)
	h.expectNoTrigger(t)
}

func TestRun_IgnoresChmodAndExcludedPaths(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	exclude := func(rel string, _ bool) bool { return strings.HasSuffix(rel, ".tmp") }
	h := startFake(t, root, exclude)

	h.send(t, "f.txt", fsnotify.Chmod)
	h.send(t, "scratch.tmp", fsnotify.Write)
	h.clock.Advance(10 * time.Second)
	h.expectNoTrigger(t)

	// Chmod combined with a content op still counts.
	h.send(t, "f.txt", fsnotify.Write|fsnotify.Chmod)
	require.NoError(t, h.clock.BlockUntilContext(t.Context(), 1))
	h.clock.Advance(time.Second)
	h.expectTrigger(t)
}

func TestRun_PendingTriggerAbsorbsLaterBursts(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	h := startFake(t, root, nil)

	for range 3 {
		h.send(t, "f.txt", fsnotify.Write)
		require.NoError(t, h.clock.BlockUntilContext(t.Context(), 1))
		h.clock.Advance(time.Second)
	}

	require.Eventually(t, func() bool { return len(h.trigger) == 1 },
		5*time.Second, 10*time.Millisecond)

	// A full trigger channel never stalls the loop.
	h.send(t, "f.txt", fsnotify.Write)
	h.barrier(t)
}

func TestRun_NewDirectoryIsWatched(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	h := startFake(t, root, nil)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "new", "deep"), 0o755))
	h.send(t, "new", fsnotify.Create)
	h.barrier(t)

	added := h.fake.addedPaths()
	assert.Contains(t, added, filepath.Join(root, "new"))
	assert.Contains(t, added, filepath.Join(root, "new", "deep"))
}

func TestRun_ErrorBacksOffThenRecovers(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	h := startFake(t, root, nil)

	select {
	case h.fake.errs <- errors.New("queue overflow"):
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not accept error")
	}

	// The loop sleeps on the fake clock and cannot take events until the
	// backoff elapses.
	require.NoError(t, h.clock.BlockUntilContext(t.Context(), 1))

	select {
	case h.fake.events <- fsnotify.Event{Name: filepath.Join(root, "f"), Op: fsnotify.Write}:
		t.Fatal("event accepted during backoff")
	case <-time.After(50 * time.Millisecond):
	}

	h.clock.Advance(watchErrInitBackoff)

	h.send(t, "f", fsnotify.Write)
	require.NoError(t, h.clock.BlockUntilContext(t.Context(), 1))
	h.clock.Advance(time.Second)
	h.expectTrigger(t)
}

func TestRun_CancelReturnsNil(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	h := startFake(t, root, nil)

	h.send(t, "f", fsnotify.Write)
	h.cancel()

	select {
	case err := <-h.done:
		require.NoError(t, err)
		h.done <- nil // for the cleanup receive
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_MissingRoot(t *testing.T) {
	t.Parallel()

	w := New(filepath.Join(t.TempDir(), "absent"), Options{
		Logger:     discardLogger(),
		newWatcher: func() (FsWatcher, error) { return newFakeFsWatcher(), nil },
	})

	err := w.Run(t.Context(), make(chan struct{}, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_RealFilesystem(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	trigger := make(chan struct{}, 1)

	w := New(root, Options{Debounce: 50 * time.Millisecond, Logger: discardLogger()})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() { done <- w.Run(ctx, trigger) }()

	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// The watch is registered asynchronously; keep writing until a trigger
	// arrives.
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for i := 0; ; i++ {
		select {
		case <-trigger:
			return
		case <-tick.C:
			name := filepath.Join(root, "f.txt")
			require.NoError(t, os.WriteFile(name, []byte{byte(i)}, 0o644))
		case <-deadline:
			t.Fatal("no trigger from real filesystem events")
		}
	}
}
