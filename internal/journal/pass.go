package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tonimelisma/foldersync/internal/mirror"
)

const (
	sqlInsertPass = `INSERT INTO passes (id, source, replica, started_at, status)
		VALUES (?, ?, ?, ?, '` + StatusRunning + `')`

	sqlFinishPass = `UPDATE passes SET
		finished_at = ?, status = ?, created = ?, copied = ?, removed = ?,
		skipped = ?, errors = ?, bytes_copied = ?, error_msg = ?
		WHERE id = ?`

	sqlPassColumns = `SELECT id, source, replica, started_at, finished_at, status,
		created, copied, removed, skipped, errors, bytes_copied, error_msg
		FROM passes`

	sqlRecentPasses = sqlPassColumns + ` ORDER BY started_at DESC, id LIMIT ?`

	// Plain prefix comparison: LIKE would treat % and _ as wildcards and
	// ignore ASCII case.
	sqlFindPass = sqlPassColumns + ` WHERE substr(id, 1, length(?)) = ?
		ORDER BY id = ? DESC, started_at DESC LIMIT 2`

	sqlPassActions = `SELECT seq, pass_id, kind, path, target, size, at
		FROM actions WHERE pass_id = ? ORDER BY seq`

	sqlPrunePasses = `DELETE FROM passes WHERE started_at < ? AND status <> '` + StatusRunning + `'`
)

// Pass is one row of pass history.
type Pass struct {
	ID       string    `json:"id"`
	Source   string    `json:"source"`
	Replica  string    `json:"replica"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"` // zero while running or when interrupted
	Status   string    `json:"status"`

	Created     int    `json:"created"`
	Copied      int    `json:"copied"`
	Removed     int    `json:"removed"`
	Skipped     int    `json:"skipped"`
	Errors      int    `json:"errors"`
	BytesCopied int64  `json:"bytes_copied"`
	Error       string `json:"error,omitempty"`
}

// Duration is the wall time of a finished pass, zero otherwise.
func (p *Pass) Duration() time.Duration {
	if p.Finished.IsZero() {
		return 0
	}

	return p.Finished.Sub(p.Started)
}

// BeginPass records a new running pass and returns its ID.
func (j *Journal) BeginPass(ctx context.Context, source, replica string) (string, error) {
	id := uuid.NewString()

	if _, err := j.db.ExecContext(ctx, sqlInsertPass, id, source, replica, toUnixNano(j.nowFunc())); err != nil {
		return "", fmt.Errorf("journal: recording pass start: %w", err)
	}

	j.logger.Debug("pass recorded", slog.String("pass_id", id))

	return id, nil
}

// FinishPass stores the outcome of a pass. res may be nil when the pass
// failed before doing any work; passErr is the fatal error, if any.
func (j *Journal) FinishPass(ctx context.Context, passID string, res *mirror.Result, passErr error) error {
	status := StatusCompleted

	var errMsg sql.NullString

	if passErr != nil {
		status = StatusFailed
		errMsg = sql.NullString{String: passErr.Error(), Valid: true}
	}

	var created, copied, removed, skipped, nerrs int

	var bytesCopied int64

	finished := j.nowFunc()

	if res != nil {
		created = res.Count(mirror.DirectoryCreated)
		copied = res.Count(mirror.FileCopied)
		removed = res.Count(mirror.FileRemoved) + res.Count(mirror.DirectoryRemoved)
		skipped = res.Count(mirror.DirectoryRemoveSkipped)
		nerrs = len(res.Errors)
		bytesCopied = res.BytesCopied

		if !res.Finished.IsZero() {
			finished = res.Finished
		}
	}

	result, err := j.db.ExecContext(ctx, sqlFinishPass,
		toUnixNano(finished), status, created, copied, removed, skipped, nerrs, bytesCopied, errMsg, passID)
	if err != nil {
		return fmt.Errorf("journal: recording pass outcome: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrPassNotFound, passID)
	}

	return nil
}

// RecentPasses returns up to limit passes, newest first.
func (j *Journal) RecentPasses(ctx context.Context, limit int) ([]Pass, error) {
	rows, err := j.db.QueryContext(ctx, sqlRecentPasses, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: listing passes: %w", err)
	}
	defer rows.Close()

	var passes []Pass

	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, err
		}

		passes = append(passes, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterating passes: %w", err)
	}

	return passes, nil
}

// FindPass returns the pass whose ID is, or starts with, idOrPrefix.
func (j *Journal) FindPass(ctx context.Context, idOrPrefix string) (Pass, error) {
	if idOrPrefix == "" {
		return Pass{}, ErrPassNotFound
	}

	rows, err := j.db.QueryContext(ctx, sqlFindPass, idOrPrefix, idOrPrefix, idOrPrefix)
	if err != nil {
		return Pass{}, fmt.Errorf("journal: finding pass: %w", err)
	}
	defer rows.Close()

	var found []Pass

	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return Pass{}, err
		}

		found = append(found, p)
	}

	if err := rows.Err(); err != nil {
		return Pass{}, fmt.Errorf("journal: iterating passes: %w", err)
	}

	for _, p := range found {
		if p.ID == idOrPrefix {
			return p, nil
		}
	}

	switch len(found) {
	case 0:
		return Pass{}, fmt.Errorf("%w: %s", ErrPassNotFound, idOrPrefix)
	case 1:
		return found[0], nil
	default:
		return Pass{}, fmt.Errorf("%w: %s", ErrAmbiguousPass, idOrPrefix)
	}
}

// Prune deletes passes (and, by cascade, their actions) that started more
// than retentionDays ago. Running passes are kept. Returns the number of
// passes removed.
func (j *Journal) Prune(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := j.nowFunc().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	res, err := j.db.ExecContext(ctx, sqlPrunePasses, toUnixNano(cutoff))
	if err != nil {
		return 0, fmt.Errorf("journal: pruning passes: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("journal: pruning passes: %w", err)
	}

	if n > 0 {
		j.logger.Info("pruned pass history", slog.Int64("passes", n), slog.Int("retention_days", retentionDays))
	}

	return n, nil
}

func scanPass(rows *sql.Rows) (Pass, error) {
	var (
		p        Pass
		started  int64
		finished sql.NullInt64
		errMsg   sql.NullString
	)

	err := rows.Scan(&p.ID, &p.Source, &p.Replica, &started, &finished, &p.Status,
		&p.Created, &p.Copied, &p.Removed, &p.Skipped, &p.Errors, &p.BytesCopied, &errMsg)
	if err != nil {
		return Pass{}, fmt.Errorf("journal: scanning pass row: %w", err)
	}

	p.Started = fromUnixNano(started)

	if finished.Valid {
		p.Finished = fromUnixNano(finished.Int64)
	}

	p.Error = errMsg.String

	return p, nil
}

// errNoRows reports whether err is sql.ErrNoRows.
func errNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
