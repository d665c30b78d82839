package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/spf13/afero"
)

// pruneDir removes replica entries of one directory that have no source
// counterpart. Files are evaluated first. Every subdirectory is then descended
// into, and only after its subtree has been pruned is an orphaned
// subdirectory removed, and only if it is empty by then. Non-empty orphans are
// reported and left in place.
func (p *pass) pruneDir(ctx context.Context, rel string) {
	entries, err := afero.ReadDir(p.engine.fs, p.replicaPath(rel))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			p.fail(PhasePrune, rel, fmt.Errorf("reading replica directory: %w", err))
		}

		return
	}

	var subdirs []string

	for _, info := range entries {
		childRel := joinRel(rel, info.Name())

		if r := p.filter.Evaluate(childRel, info.IsDir()); !r.Included {
			continue
		}

		if info.IsDir() {
			subdirs = append(subdirs, childRel)
			continue
		}

		p.pruneFile(ctx, childRel)
	}

	for _, sub := range subdirs {
		p.pruneDir(ctx, sub)

		exists, err := p.sourceHas(sub, true)
		if err != nil {
			p.fail(PhasePrune, sub, err)
			continue
		}

		if !exists {
			p.removeDir(ctx, sub)
		}
	}
}

// pruneFile deletes a replica file unless a source file exists at the same
// relative path. A source directory in its place does not count.
func (p *pass) pruneFile(ctx context.Context, rel string) {
	exists, err := p.sourceHas(rel, false)
	if err != nil {
		p.fail(PhasePrune, rel, err)
		return
	}

	if exists {
		return
	}

	target := p.replicaPath(rel)

	if err := p.engine.fs.Remove(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			p.engine.logger.Debug("replica file already gone", slog.String("path", rel))
			return
		}

		p.fail(PhasePrune, rel, fmt.Errorf("removing replica file: %w", err))

		return
	}

	p.emit(ctx, Action{Kind: FileRemoved, Path: rel, Target: target})
}

// removeDir removes an orphaned replica directory if it is empty. A
// non-empty directory is never emptied by force.
func (p *pass) removeDir(ctx context.Context, rel string) {
	target := p.replicaPath(rel)

	entries, err := afero.ReadDir(p.engine.fs, target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}

		p.fail(PhasePrune, rel, fmt.Errorf("reading replica directory: %w", err))

		return
	}

	if len(entries) > 0 {
		p.emit(ctx, Action{Kind: DirectoryRemoveSkipped, Path: rel, Target: target})
		return
	}

	if err := p.engine.fs.Remove(target); err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return
		case isNotEmpty(err):
			p.emit(ctx, Action{Kind: DirectoryRemoveSkipped, Path: rel, Target: target})
		default:
			p.fail(PhasePrune, rel, fmt.Errorf("removing replica directory: %w", err))
		}

		return
	}

	p.emit(ctx, Action{Kind: DirectoryRemoved, Path: rel, Target: target})
}

// sourceHas reports whether the source tree holds a directory (wantDir) or a
// non-directory at rel. Errors other than absence are returned so the caller
// never deletes on an uncertain answer.
func (p *pass) sourceHas(rel string, wantDir bool) (bool, error) {
	info, err := p.engine.fs.Stat(p.sourcePath(rel))
	if err != nil {
		if isNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("stat source counterpart: %w", err)
	}

	return info.IsDir() == wantDir, nil
}

// isNotExist also treats ENOTDIR as absence: a source file where the path
// expects a parent directory means nothing exists at rel.
func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

// isNotEmpty matches the errors rmdir(2) reports for a non-empty directory.
func isNotEmpty(err error) bool {
	return errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST)
}
