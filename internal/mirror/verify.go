package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"
)

// Verification statuses.
const (
	StatusMissing    = "missing"
	StatusStale      = "stale"
	StatusOrphaned   = "orphaned"
	StatusMismatch   = "type_mismatch"
	StatusUnreadable = "unreadable"
)

// Mismatch describes a single difference between the trees.
type Mismatch struct {
	Path     string `json:"path"`
	Status   string `json:"status"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

// VerifyReport is the result of a read-only comparison of two trees.
type VerifyReport struct {
	Verified   int        `json:"verified"`
	Mismatches []Mismatch `json:"mismatches"`
}

// Verify compares the trees without modifying either. It reports source
// entries missing from the replica, files whose fingerprints differ, and
// replica entries with no source counterpart, using the same filter and
// detector settings a pass would.
func (e *Engine) Verify(ctx context.Context, sourceRoot, replicaRoot string) (*VerifyReport, error) {
	if err := e.checkRoots(sourceRoot, replicaRoot); err != nil {
		return nil, err
	}

	v := &verifier{
		engine:  e,
		source:  sourceRoot,
		replica: replicaRoot,
		filter:  NewFilter(e.filter, e.fs, sourceRoot, e.logger),
		report:  &VerifyReport{Mismatches: []Mismatch{}},
	}

	if err := v.walkSource(ctx, "."); err != nil {
		return nil, err
	}

	if err := v.walkReplica(ctx, "."); err != nil {
		return nil, err
	}

	e.logger.Info("verification complete",
		slog.Int("verified", v.report.Verified),
		slog.Int("mismatches", len(v.report.Mismatches)),
	)

	return v.report, nil
}

type verifier struct {
	engine  *Engine
	source  string
	replica string
	filter  *Filter
	report  *VerifyReport
}

func (v *verifier) add(m Mismatch) {
	v.report.Mismatches = append(v.report.Mismatches, m)
}

func (v *verifier) walkSource(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mirror: verification canceled: %w", err)
	}

	entries, err := afero.ReadDir(v.engine.fs, joinNative(v.source, rel))
	if err != nil {
		v.add(Mismatch{Path: rel, Status: StatusUnreadable, Actual: err.Error()})
		return nil
	}

	for _, info := range entries {
		childRel := joinRel(rel, info.Name())

		class, err := classifySource(v.engine.fs, joinNative(v.source, childRel), info)
		if err != nil {
			v.add(Mismatch{Path: childRel, Status: StatusUnreadable, Actual: err.Error()})
			continue
		}

		// A pass never mirrors directory links, so there is nothing to compare.
		if class == classDirLink {
			continue
		}

		isDir := class == classDir

		if v.filter.Excluded(childRel, isDir) {
			continue
		}

		replicaInfo, statErr := v.engine.fs.Stat(joinNative(v.replica, childRel))

		switch {
		case isNotExist(statErr):
			v.add(Mismatch{Path: childRel, Status: StatusMissing})
			continue
		case statErr != nil:
			v.add(Mismatch{Path: childRel, Status: StatusUnreadable, Actual: statErr.Error()})
			continue
		case replicaInfo.IsDir() != isDir:
			v.add(Mismatch{Path: childRel, Status: StatusMismatch, Expected: kindName(isDir), Actual: kindName(!isDir)})
			continue
		}

		if isDir {
			if err := v.walkSource(ctx, childRel); err != nil {
				return err
			}

			continue
		}

		v.compareFile(childRel)
	}

	return nil
}

func (v *verifier) compareFile(rel string) {
	d := v.engine.detector

	want, err := d.Fingerprint(joinNative(v.source, rel))
	if err != nil {
		v.add(Mismatch{Path: rel, Status: StatusUnreadable, Actual: err.Error()})
		return
	}

	got, err := d.Fingerprint(joinNative(v.replica, rel))
	if err != nil {
		v.add(Mismatch{Path: rel, Status: StatusUnreadable, Actual: err.Error()})
		return
	}

	if want != got {
		v.add(Mismatch{Path: rel, Status: StatusStale, Expected: want.String(), Actual: got.String()})
		return
	}

	v.report.Verified++
}

// walkReplica reports replica entries without a source counterpart. It does
// not descend into orphaned directories: the directory itself is reported.
func (v *verifier) walkReplica(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mirror: verification canceled: %w", err)
	}

	entries, err := afero.ReadDir(v.engine.fs, joinNative(v.replica, rel))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			v.add(Mismatch{Path: rel, Status: StatusUnreadable, Actual: err.Error()})
		}

		return nil
	}

	for _, info := range entries {
		childRel := joinRel(rel, info.Name())

		if v.filter.Excluded(childRel, info.IsDir()) {
			continue
		}

		if _, statErr := v.engine.fs.Stat(joinNative(v.source, childRel)); isNotExist(statErr) {
			v.add(Mismatch{Path: childRel, Status: StatusOrphaned, Actual: kindName(info.IsDir())})
			continue
		}

		if info.IsDir() {
			if err := v.walkReplica(ctx, childRel); err != nil {
				return err
			}
		}
	}

	return nil
}

func kindName(isDir bool) string {
	if isDir {
		return "directory"
	}

	return "file"
}
