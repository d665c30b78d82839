// Package mirror implements one-way mirroring of a source directory tree onto
// a replica tree. A pass first propagates new and changed entries from the
// source, then prunes replica entries that no longer exist in the source, and
// reports every side effect as an Action.
package mirror

import (
	"fmt"
	"time"
)

// ActionKind identifies the side effect an Action records.
type ActionKind int

// Action kinds in the order they can first appear within a pass.
const (
	DirectoryCreated ActionKind = iota
	FileCopied
	FileRemoved
	DirectoryRemoved
	DirectoryRemoveSkipped
)

var actionKindNames = [...]string{
	DirectoryCreated:       "directory_created",
	FileCopied:             "file_copied",
	FileRemoved:            "file_removed",
	DirectoryRemoved:       "directory_removed",
	DirectoryRemoveSkipped: "directory_remove_skipped",
}

func (k ActionKind) String() string {
	if k < 0 || int(k) >= len(actionKindNames) {
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}

	return actionKindNames[k]
}

// ParseActionKind is the inverse of ActionKind.String.
func ParseActionKind(s string) (ActionKind, error) {
	for i, name := range actionKindNames {
		if name == s {
			return ActionKind(i), nil
		}
	}

	return 0, fmt.Errorf("mirror: unknown action kind %q", s)
}

// MarshalText encodes the kind by name.
func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a name produced by MarshalText.
func (k *ActionKind) UnmarshalText(b []byte) error {
	parsed, err := ParseActionKind(string(b))
	if err != nil {
		return err
	}

	*k = parsed

	return nil
}

// Action is an immutable record of one side effect performed during a pass.
type Action struct {
	Kind ActionKind
	// Path is relative to the tree roots, slash separated; "." is the root.
	Path   string
	Source string // absolute source path, set for FileCopied
	Target string // absolute replica path
	Size   int64  // bytes written, set for FileCopied
	At     time.Time
}

// Phase names the half of a pass an entry error occurred in.
type Phase string

// Pass phases, always run in this order.
const (
	PhasePropagate Phase = "propagate"
	PhasePrune     Phase = "prune"
)

// EntryError is a per-entry failure that was logged and skipped. It never
// aborts the pass.
type EntryError struct {
	Phase Phase
	Path  string
	Err   error
}

func (e EntryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Phase, e.Path, e.Err)
}

func (e EntryError) Unwrap() error {
	return e.Err
}

// Result summarises one completed pass.
type Result struct {
	Source   string
	Replica  string
	Started  time.Time
	Finished time.Time

	// Actions are in the order they happened: all of propagate, then prune.
	Actions []Action
	Errors  []EntryError

	FilesChecked int
	BytesCopied  int64
}

// Count returns how many actions of kind the pass performed.
func (r *Result) Count(kind ActionKind) int {
	n := 0

	for i := range r.Actions {
		if r.Actions[i].Kind == kind {
			n++
		}
	}

	return n
}

// Changed reports whether the pass modified the replica.
func (r *Result) Changed() bool {
	for i := range r.Actions {
		if r.Actions[i].Kind != DirectoryRemoveSkipped {
			return true
		}
	}

	return false
}

// Duration is the wall time of the pass.
func (r *Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
