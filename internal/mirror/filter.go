package mirror

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// FilterOptions configures which relative paths a pass leaves alone.
type FilterOptions struct {
	// SkipFiles and SkipDirs are doublestar globs matched, case-insensitively,
	// against both the entry's base name and its relative path.
	SkipFiles    []string
	SkipDirs     []string
	SkipDotfiles bool
	// IgnoreFile names a gitignore-style marker file. A marker in any source
	// directory applies to that directory's subtree.
	IgnoreFile string
}

// ValidatePatterns reports every malformed glob in the options.
func (o FilterOptions) ValidatePatterns() error {
	var errs []error

	for _, p := range o.SkipFiles {
		if !doublestar.ValidatePattern(strings.ToLower(p)) {
			errs = append(errs, fmt.Errorf("skip_files: invalid pattern %q", p))
		}
	}

	for _, p := range o.SkipDirs {
		if !doublestar.ValidatePattern(strings.ToLower(p)) {
			errs = append(errs, fmt.Errorf("skip_dirs: invalid pattern %q", p))
		}
	}

	return errors.Join(errs...)
}

// FilterResult is the outcome of evaluating a single path.
type FilterResult struct {
	Included bool
	Reason   string
}

// Filter decides whether a relative path takes part in a pass. Excluded
// entries are neither copied into nor pruned from the replica. Ignore
// markers are read from the source tree and cached for the life of the
// Filter, which is one pass unless the owner calls Reload.
type Filter struct {
	opts       FilterOptions
	fs         afero.Fs
	sourceRoot string
	logger     *slog.Logger

	// markers caches parsed ignore files per relative directory; nil means
	// the directory has none.
	markers map[string]*ignore.GitIgnore
}

// NewFilter builds a filter over sourceRoot.
func NewFilter(opts FilterOptions, fsys afero.Fs, sourceRoot string, logger *slog.Logger) *Filter {
	return &Filter{
		opts:       opts,
		fs:         fsys,
		sourceRoot: sourceRoot,
		logger:     logger,
		markers:    make(map[string]*ignore.GitIgnore),
	}
}

// Evaluate applies the config patterns and then the ignore markers of every
// ancestor directory. relPath is slash separated and relative to the roots.
func (f *Filter) Evaluate(relPath string, isDir bool) FilterResult {
	if f == nil || relPath == "." || relPath == "" {
		return FilterResult{Included: true}
	}

	if r := f.checkPatterns(relPath, isDir); !r.Included {
		return r
	}

	return f.checkMarkers(relPath, isDir)
}

// Excluded is shorthand for !Evaluate(...).Included.
func (f *Filter) Excluded(relPath string, isDir bool) bool {
	return !f.Evaluate(relPath, isDir).Included
}

// Reload drops the cached rules of the directory holding relPath when
// relPath names an ignore file, so a long-lived filter sees the file's next
// version. It reports whether anything was dropped.
func (f *Filter) Reload(relPath string) bool {
	if f == nil || f.opts.IgnoreFile == "" || path.Base(relPath) != f.opts.IgnoreFile {
		return false
	}

	dir := path.Dir(relPath)
	if _, cached := f.markers[dir]; !cached {
		return false
	}

	delete(f.markers, dir)
	f.logger.Debug("ignore file changed, reloading", slog.String("path", relPath))

	return true
}

func (f *Filter) checkPatterns(relPath string, isDir bool) FilterResult {
	name := path.Base(relPath)

	if f.opts.SkipDotfiles && strings.HasPrefix(name, ".") {
		return FilterResult{Reason: "dotfile excluded"}
	}

	patterns, key := f.opts.SkipFiles, "skip_files"
	if isDir {
		patterns, key = f.opts.SkipDirs, "skip_dirs"
	}

	if matchesAny(patterns, name, relPath) {
		return FilterResult{Reason: "matches " + key + " pattern"}
	}

	return FilterResult{Included: true}
}

func (f *Filter) checkMarkers(relPath string, isDir bool) FilterResult {
	if f.opts.IgnoreFile == "" {
		return FilterResult{Included: true}
	}

	// A marker in dir applies to every path below dir, expressed relative
	// to dir, so walk the ancestors from the root down.
	dir := "."
	rest := relPath

	for {
		if gi := f.loadMarker(dir); gi != nil {
			match := rest
			if isDir {
				match += "/"
			}

			if gi.MatchesPath(match) {
				return FilterResult{Reason: "excluded by " + path.Join(dir, f.opts.IgnoreFile)}
			}
		}

		head, tail, ok := strings.Cut(rest, "/")
		if !ok {
			return FilterResult{Included: true}
		}

		dir = path.Join(dir, head)
		rest = tail
	}
}

func (f *Filter) loadMarker(dir string) *ignore.GitIgnore {
	if gi, cached := f.markers[dir]; cached {
		return gi
	}

	markerPath := joinNative(f.sourceRoot, path.Join(dir, f.opts.IgnoreFile))

	data, err := afero.ReadFile(f.fs, markerPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("cannot read ignore file, ignoring it",
				slog.String("path", markerPath), slog.String("error", err.Error()))
		}

		f.markers[dir] = nil

		return nil
	}

	gi := ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...)
	f.markers[dir] = gi
	f.logger.Debug("loaded ignore file", slog.String("path", markerPath))

	return gi
}

// matchesAny reports whether name or relPath matches one of the patterns.
// Malformed patterns never match; config validation rejects them earlier.
func matchesAny(patterns []string, name, relPath string) bool {
	lowerName := strings.ToLower(name)
	lowerPath := strings.ToLower(relPath)

	for _, p := range patterns {
		lp := strings.ToLower(p)

		if ok, err := doublestar.Match(lp, lowerName); err == nil && ok {
			return true
		}

		if ok, err := doublestar.Match(lp, lowerPath); err == nil && ok {
			return true
		}
	}

	return false
}
