package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/tonimelisma/foldersync/internal/fingerprint"
)

// Fatal root errors. Sync returns them before touching either tree.
var (
	ErrSourceUnavailable  = errors.New("mirror: source root is not an accessible directory")
	ErrReplicaUnavailable = errors.New("mirror: replica root is not an accessible directory")
)

const defaultDirPerm = 0o755

// fallbackFilePerm applies to copies when permission bits are not preserved.
const fallbackFilePerm = 0o644

// Options configures an Engine.
type Options struct {
	// Fs is the filesystem both trees live on; nil means the OS filesystem.
	Fs        afero.Fs
	Algorithm fingerprint.Algorithm
	ChunkSize int
	Filter    FilterOptions
	// PreservePermissions copies the source's permission bits onto replica
	// files. Directories are always created with default permissions.
	PreservePermissions bool
	Logger              *slog.Logger
	// Now is injectable for deterministic action timestamps.
	Now func() time.Time
}

// Engine performs mirror passes. It keeps no state between passes, so a
// single Engine may be reused for every tick of a schedule.
type Engine struct {
	fs        afero.Fs
	detector  *fingerprint.Detector
	chunkSize int
	filter    FilterOptions
	preserve  bool
	logger    *slog.Logger
	nowFunc   func() time.Time
}

// NewEngine returns an Engine configured by opts.
func NewEngine(opts Options) *Engine {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	nowFunc := opts.Now
	if nowFunc == nil {
		nowFunc = time.Now
	}

	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = fingerprint.DefaultChunkSize
	}

	return &Engine{
		fs:        fsys,
		detector:  fingerprint.NewDetector(fsys, opts.Algorithm, chunk),
		chunkSize: chunk,
		filter:    opts.Filter,
		preserve:  opts.PreservePermissions,
		logger:    logger,
		nowFunc:   nowFunc,
	}
}

// Detector exposes the change detector the engine compares files with.
func (e *Engine) Detector() *fingerprint.Detector {
	return e.detector
}

// Sync runs one complete pass: propagate source to replica, then prune the
// replica. Each action is handed to sink (which may be nil) as it happens and
// collected in the returned Result. Per-entry failures are logged, recorded in
// Result.Errors and skipped. Only an inaccessible root is returned as an error.
//
// A pass runs to completion once started: cancellation of ctx is not observed
// and ctx is passed to the sink without its cancellation.
func (e *Engine) Sync(ctx context.Context, sourceRoot, replicaRoot string, sink Sink) (*Result, error) {
	ctx = context.WithoutCancel(ctx)

	if err := e.checkRoots(sourceRoot, replicaRoot); err != nil {
		return nil, err
	}

	p := &pass{
		engine:  e,
		source:  sourceRoot,
		replica: replicaRoot,
		sink:    sink,
		filter:  NewFilter(e.filter, e.fs, sourceRoot, e.logger),
		result: &Result{
			Source:  sourceRoot,
			Replica: replicaRoot,
			Started: e.nowFunc(),
		},
	}

	e.logger.Info("starting synchronization",
		slog.String("source", sourceRoot),
		slog.String("replica", replicaRoot),
		slog.String("hash", string(e.detector.Algorithm())),
	)

	p.propagateDir(ctx, ".")
	p.pruneDir(ctx, ".")

	res := p.result
	res.Finished = e.nowFunc()

	e.logger.Info("synchronization completed",
		slog.String("source", sourceRoot),
		slog.String("replica", replicaRoot),
		slog.Int("created", res.Count(DirectoryCreated)),
		slog.Int("copied", res.Count(FileCopied)),
		slog.String("copied_bytes", humanize.IBytes(uint64(res.BytesCopied))), //nolint:gosec // never negative
		slog.Int("removed", res.Count(FileRemoved)+res.Count(DirectoryRemoved)),
		slog.Int("skipped", res.Count(DirectoryRemoveSkipped)),
		slog.Int("errors", len(res.Errors)),
		slog.Duration("duration", res.Duration()),
	)

	return res, nil
}

// checkRoots fails fast when the source is not a directory, or the replica
// exists but is not one. A missing replica root is created by the pass.
func (e *Engine) checkRoots(sourceRoot, replicaRoot string) error {
	info, err := e.fs.Stat(sourceRoot)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrSourceUnavailable, sourceRoot)
	}

	info, err = e.fs.Stat(replicaRoot)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrReplicaUnavailable, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrReplicaUnavailable, replicaRoot)
	}

	return nil
}

// pass carries the state of a single Sync call.
type pass struct {
	engine  *Engine
	source  string
	replica string
	sink    Sink
	filter  *Filter
	result  *Result
}

func (p *pass) sourcePath(rel string) string {
	return joinNative(p.source, rel)
}

func (p *pass) replicaPath(rel string) string {
	return joinNative(p.replica, rel)
}

// emit stamps, records and forwards an action.
func (p *pass) emit(ctx context.Context, a Action) {
	a.At = p.engine.nowFunc()
	p.result.Actions = append(p.result.Actions, a)

	if p.sink != nil {
		p.sink.Record(ctx, a)
	}
}

// fail records a per-entry error and logs it as a warning.
func (p *pass) fail(phase Phase, rel string, err error) {
	p.result.Errors = append(p.result.Errors, EntryError{Phase: phase, Path: rel, Err: err})

	p.engine.logger.Warn("skipping entry",
		slog.String("phase", string(phase)),
		slog.String("path", rel),
		slog.String("error", err.Error()),
	)
}

// joinNative joins a slash-separated relative path onto a native root.
func joinNative(root, rel string) string {
	if rel == "." || rel == "" {
		return root
	}

	return filepath.Join(root, filepath.FromSlash(rel))
}

// joinRel appends a child name to a relative directory path.
func joinRel(dir, name string) string {
	if dir == "." || dir == "" {
		return name
	}

	return path.Join(dir, name)
}
