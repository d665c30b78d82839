package journal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/foldersync/internal/mirror"
)

var t0 = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestJournal opens a journal in a temp dir with a controllable clock.
func newTestJournal(t *testing.T) (*Journal, *time.Time) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "state", "journal.db")

	j, err := Open(context.Background(), path, testLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	now := t0
	j.nowFunc = func() time.Time { return now }

	return j, &now
}

func TestPassLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, now := newTestJournal(t)

	id, err := j.BeginPass(ctx, "/src", "/dst")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sink := j.Recorder(id)
	sink.Record(ctx, mirror.Action{Kind: mirror.FileCopied, Path: "a.txt", Target: "/dst/a.txt", Size: 2, At: t0})
	sink.Record(ctx, mirror.Action{Kind: mirror.DirectoryCreated, Path: "sub", Target: "/dst/sub", At: t0})
	sink.Record(ctx, mirror.Action{Kind: mirror.DirectoryRemoveSkipped, Path: "old", Target: "/dst/old", At: t0})

	*now = t0.Add(5 * time.Second)

	res := &mirror.Result{
		Actions: []mirror.Action{
			{Kind: mirror.FileCopied}, {Kind: mirror.DirectoryCreated}, {Kind: mirror.DirectoryRemoveSkipped},
			{Kind: mirror.FileRemoved}, {Kind: mirror.DirectoryRemoved},
		},
		Errors:      []mirror.EntryError{{Phase: mirror.PhasePropagate, Path: "x", Err: errors.New("denied")}},
		BytesCopied: 2,
	}
	require.NoError(t, j.FinishPass(ctx, id, res, nil))

	passes, err := j.RecentPasses(ctx, 10)
	require.NoError(t, err)
	require.Len(t, passes, 1)

	p := passes[0]
	assert.Equal(t, id, p.ID)
	assert.Equal(t, "/src", p.Source)
	assert.Equal(t, "/dst", p.Replica)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.True(t, p.Started.Equal(t0))
	assert.Equal(t, 5*time.Second, p.Duration())
	assert.Equal(t, 1, p.Created)
	assert.Equal(t, 1, p.Copied)
	assert.Equal(t, 2, p.Removed)
	assert.Equal(t, 1, p.Skipped)
	assert.Equal(t, 1, p.Errors)
	assert.Equal(t, int64(2), p.BytesCopied)
	assert.Empty(t, p.Error)

	actions, err := j.PassActions(ctx, id)
	require.NoError(t, err)
	require.Len(t, actions, 3)
	assert.Equal(t, mirror.FileCopied, actions[0].Kind)
	assert.Equal(t, "a.txt", actions[0].Path)
	assert.Equal(t, int64(2), actions[0].Size)
	assert.True(t, actions[0].At.Equal(t0))
	assert.Equal(t, mirror.DirectoryCreated, actions[1].Kind)
	assert.Equal(t, mirror.DirectoryRemoveSkipped, actions[2].Kind)
	assert.Less(t, actions[0].Seq, actions[1].Seq)
}

func TestFinishPass_Failed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestJournal(t)

	id, err := j.BeginPass(ctx, "/src", "/dst")
	require.NoError(t, err)

	require.NoError(t, j.FinishPass(ctx, id, nil, mirror.ErrSourceUnavailable))

	p, err := j.FindPass(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, p.Status)
	assert.Contains(t, p.Error, "source root")
	assert.False(t, p.Finished.IsZero())
}

func TestFinishPass_UnknownPass(t *testing.T) {
	t.Parallel()

	j, _ := newTestJournal(t)

	err := j.FinishPass(context.Background(), "missing", &mirror.Result{}, nil)
	require.ErrorIs(t, err, ErrPassNotFound)
}

func TestRecentPasses_NewestFirstWithLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, now := newTestJournal(t)

	var ids []string

	for i := range 3 {
		*now = t0.Add(time.Duration(i) * time.Minute)

		id, err := j.BeginPass(ctx, "/src", "/dst")
		require.NoError(t, err)

		ids = append(ids, id)
	}

	passes, err := j.RecentPasses(ctx, 2)
	require.NoError(t, err)
	require.Len(t, passes, 2)
	assert.Equal(t, ids[2], passes[0].ID)
	assert.Equal(t, ids[1], passes[1].ID)
	assert.Equal(t, StatusRunning, passes[0].Status)
	assert.Zero(t, passes[0].Duration())
}

func TestFindPass(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestJournal(t)

	id, err := j.BeginPass(ctx, "/src", "/dst")
	require.NoError(t, err)

	p, err := j.FindPass(ctx, id[:8])
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)

	_, err = j.FindPass(ctx, "zzzz")
	require.ErrorIs(t, err, ErrPassNotFound)

	_, err = j.FindPass(ctx, "")
	require.ErrorIs(t, err, ErrPassNotFound)

	for _, fixed := range []string{"abc-1", "abc-2"} {
		_, err = j.db.ExecContext(ctx, sqlInsertPass, fixed, "/src", "/dst", toUnixNano(t0))
		require.NoError(t, err)
	}

	_, err = j.FindPass(ctx, "abc")
	require.ErrorIs(t, err, ErrAmbiguousPass)

	p, err = j.FindPass(ctx, "abc-2")
	require.NoError(t, err)
	assert.Equal(t, "abc-2", p.ID)

	// An exact ID wins over longer IDs sharing it as a prefix.
	_, err = j.db.ExecContext(ctx, sqlInsertPass, "abc", "/src", "/dst", toUnixNano(t0.Add(-time.Hour)))
	require.NoError(t, err)

	p, err = j.FindPass(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", p.ID)

	// The prefix is compared literally and case-sensitively.
	for _, prefix := range []string{"%", "_", "ABC"} {
		_, err = j.FindPass(ctx, prefix)
		require.ErrorIs(t, err, ErrPassNotFound, "prefix %q", prefix)
	}

	_, err = j.PassActions(ctx, "nope")
	require.ErrorIs(t, err, ErrPassNotFound)
}

func TestPrune(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, now := newTestJournal(t)

	oldID, err := j.BeginPass(ctx, "/src", "/dst")
	require.NoError(t, err)
	j.Recorder(oldID).Record(ctx, mirror.Action{Kind: mirror.FileCopied, Path: "a", At: t0})
	require.NoError(t, j.FinishPass(ctx, oldID, &mirror.Result{}, nil))

	*now = t0.Add(40 * 24 * time.Hour)

	newID, err := j.BeginPass(ctx, "/src", "/dst")
	require.NoError(t, err)
	require.NoError(t, j.FinishPass(ctx, newID, &mirror.Result{}, nil))

	n, err := j.Prune(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = j.PassActions(ctx, oldID)
	require.ErrorIs(t, err, ErrPassNotFound)

	var orphans int
	require.NoError(t, j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM actions`).Scan(&orphans))
	assert.Zero(t, orphans)

	passes, err := j.RecentPasses(ctx, 10)
	require.NoError(t, err)
	require.Len(t, passes, 1)
	assert.Equal(t, newID, passes[0].ID)
}

func TestRecoverInterrupted_OnlyTouchesReplica(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(ctx, path, testLogger(t))
	require.NoError(t, err)

	mine, err := j.BeginPass(ctx, "/src", "/dst")
	require.NoError(t, err)

	other, err := j.BeginPass(ctx, "/src2", "/other")
	require.NoError(t, err)
	require.NoError(t, j.Close())

	// Reopening alone changes nothing: another process may own "running" rows.
	j, err = Open(ctx, path, testLogger(t))
	require.NoError(t, err)
	defer j.Close()

	p, err := j.FindPass(ctx, mine)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, p.Status)

	n, err := j.RecoverInterrupted(ctx, "/dst")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	p, err = j.FindPass(ctx, mine)
	require.NoError(t, err)
	assert.Equal(t, StatusInterrupted, p.Status)

	p, err = j.FindPass(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, p.Status)

	n, err = j.RecoverInterrupted(ctx, "/dst")
	require.NoError(t, err)
	assert.Zero(t, n)
}
