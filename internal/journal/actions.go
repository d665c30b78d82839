package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tonimelisma/foldersync/internal/mirror"
)

const (
	sqlInsertAction = `INSERT INTO actions (pass_id, kind, path, target, size, at)
		VALUES (?, ?, ?, ?, ?, ?)`

	sqlPassExists = `SELECT 1 FROM passes WHERE id = ?`
)

// ActionRow is one recorded action.
type ActionRow struct {
	Seq    int64             `json:"seq"`
	PassID string            `json:"pass_id"`
	Kind   mirror.ActionKind `json:"kind"`
	Path   string            `json:"path"`
	Target string            `json:"target"`
	Size   int64             `json:"size"`
	At     time.Time         `json:"at"`
}

// Recorder returns a sink that appends every action to passID's history.
// Write failures are logged and do not interrupt the pass: the log file
// remains the primary record.
func (j *Journal) Recorder(passID string) mirror.Sink {
	return mirror.SinkFunc(func(ctx context.Context, a mirror.Action) {
		_, err := j.db.ExecContext(ctx, sqlInsertAction,
			passID, a.Kind.String(), a.Path, a.Target, a.Size, toUnixNano(a.At))
		if err != nil {
			j.logger.Warn("journal: recording action failed",
				slog.String("pass_id", passID),
				slog.String("path", a.Path),
				slog.String("error", err.Error()),
			)
		}
	})
}

// PassActions returns the actions of passID in the order they happened.
func (j *Journal) PassActions(ctx context.Context, passID string) ([]ActionRow, error) {
	var one int
	if err := j.db.QueryRowContext(ctx, sqlPassExists, passID).Scan(&one); err != nil {
		if errNoRows(err) {
			return nil, fmt.Errorf("%w: %s", ErrPassNotFound, passID)
		}

		return nil, fmt.Errorf("journal: looking up pass: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, sqlPassActions, passID)
	if err != nil {
		return nil, fmt.Errorf("journal: listing actions: %w", err)
	}
	defer rows.Close()

	var out []ActionRow

	for rows.Next() {
		var (
			r    ActionRow
			kind string
			at   int64
		)

		if err := rows.Scan(&r.Seq, &r.PassID, &kind, &r.Path, &r.Target, &r.Size, &at); err != nil {
			return nil, fmt.Errorf("journal: scanning action row: %w", err)
		}

		r.Kind, err = mirror.ParseActionKind(kind)
		if err != nil {
			return nil, fmt.Errorf("journal: action %d: %w", r.Seq, err)
		}

		r.At = fromUnixNano(at)
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterating actions: %w", err)
	}

	return out, nil
}
