package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"
)

// propagateDir mirrors one source directory: it makes sure the replica
// counterpart exists, brings the directory's files up to date, and then
// descends into subdirectories in lexical order.
func (p *pass) propagateDir(ctx context.Context, rel string) {
	if !p.ensureReplicaDir(ctx, rel) {
		return
	}

	entries, err := afero.ReadDir(p.engine.fs, p.sourcePath(rel))
	if err != nil {
		p.fail(PhasePropagate, rel, fmt.Errorf("reading source directory: %w", err))
		return
	}

	var subdirs []string

	for _, info := range entries {
		childRel := joinRel(rel, info.Name())

		isDir, ok := p.resolveSourceEntry(childRel, info)
		if !ok {
			continue
		}

		if r := p.filter.Evaluate(childRel, isDir); !r.Included {
			p.engine.logger.Debug("excluded by filter",
				slog.String("path", childRel), slog.String("reason", r.Reason))

			continue
		}

		if isDir {
			subdirs = append(subdirs, childRel)
			continue
		}

		p.propagateFile(ctx, childRel)
	}

	for _, sub := range subdirs {
		p.propagateDir(ctx, sub)
	}
}

// sourceClass is how a source entry takes part in a pass.
type sourceClass int

const (
	classFile sourceClass = iota
	classDir
	classDirLink
)

// classifySource follows symlinks to decide: links to files are mirrored by
// content, links to directories are never descended into. A broken link is
// an error.
func classifySource(fsys afero.Fs, fullPath string, info os.FileInfo) (sourceClass, error) {
	if info.Mode()&os.ModeSymlink == 0 {
		if info.IsDir() {
			return classDir, nil
		}

		return classFile, nil
	}

	target, err := fsys.Stat(fullPath)
	if err != nil {
		return classFile, fmt.Errorf("broken symlink: %w", err)
	}

	if target.IsDir() {
		return classDirLink, nil
	}

	return classFile, nil
}

// resolveSourceEntry classifies a source entry for propagation. ok is false
// when the entry should be skipped.
func (p *pass) resolveSourceEntry(rel string, info os.FileInfo) (isDir, ok bool) {
	class, err := classifySource(p.engine.fs, p.sourcePath(rel), info)

	switch {
	case err != nil:
		p.fail(PhasePropagate, rel, err)
		return false, false
	case class == classDirLink:
		p.engine.logger.Debug("not following directory symlink", slog.String("path", rel))
		return false, false
	}

	return class == classDir, true
}

// ensureReplicaDir creates the replica directory for rel when it is missing.
// It returns false when the subtree cannot be mirrored this pass.
func (p *pass) ensureReplicaDir(ctx context.Context, rel string) bool {
	target := p.replicaPath(rel)

	info, err := p.engine.fs.Stat(target)
	if err == nil {
		if info.IsDir() {
			return true
		}

		p.fail(PhasePropagate, rel, fmt.Errorf("replica path %s exists and is not a directory", target))

		return false
	}

	if !errors.Is(err, os.ErrNotExist) {
		p.fail(PhasePropagate, rel, fmt.Errorf("stat replica directory: %w", err))
		return false
	}

	// Ancestors of rel were handled earlier in the top-down walk; only the
	// replica root itself may need missing parents.
	mkdir := p.engine.fs.Mkdir
	if rel == "." {
		mkdir = p.engine.fs.MkdirAll
	}

	if err := mkdir(target, defaultDirPerm); err != nil {
		p.fail(PhasePropagate, rel, fmt.Errorf("creating replica directory: %w", err))
		return false
	}

	p.emit(ctx, Action{Kind: DirectoryCreated, Path: rel, Target: target})

	return true
}

// propagateFile copies a source file over its replica counterpart when the
// replica copy is missing or its content differs.
func (p *pass) propagateFile(ctx context.Context, rel string) {
	src := p.sourcePath(rel)
	dst := p.replicaPath(rel)

	p.result.FilesChecked++

	needs, err := p.engine.detector.NeedsCopy(src, dst)
	if err != nil {
		p.fail(PhasePropagate, rel, err)
		return
	}

	if !needs {
		return
	}

	n, err := copyFile(p.engine.fs, src, dst, p.engine.chunkSize, p.engine.preserve)
	if err != nil {
		p.fail(PhasePropagate, rel, err)
		return
	}

	p.result.BytesCopied += n
	p.emit(ctx, Action{Kind: FileCopied, Path: rel, Source: src, Target: dst, Size: n})
}
