// Package journal keeps a durable history of mirror passes and the actions
// each one performed, in a local SQLite database.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Lookup errors.
var (
	ErrPassNotFound  = errors.New("journal: pass not found")
	ErrAmbiguousPass = errors.New("journal: pass id prefix matches more than one pass")
)

// Pass statuses.
const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

const dbDirPerm = 0o700

const sqlMarkInterrupted = `UPDATE passes SET status = '` + StatusInterrupted + `'
	WHERE status = '` + StatusRunning + `' AND replica = ?`

// Journal is the sole writer to the journal database.
type Journal struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time // injectable for deterministic tests
}

// Open opens (creating if needed) the journal at dbPath and applies
// migrations. Several processes may share one journal, each mirroring a
// different replica.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), dbDirPerm); err != nil {
		return nil, fmt.Errorf("journal: creating directory for %s: %w", dbPath, err)
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"+
			"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: opening database %s: %w", dbPath, err)
	}

	// Sole-writer pattern: only one connection writes at a time.
	db.SetMaxOpenConns(1)

	version, err := migrate(ctx, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("journal opened", slog.String("db_path", dbPath), slog.Int64("schema_version", version))

	return &Journal{db: db, logger: logger, nowFunc: time.Now}, nil
}

// RecoverInterrupted marks passes still "running" for replica as
// interrupted and returns how many it marked. Call it only while holding
// the replica's lock: any running pass for it then belongs to a process
// that is gone.
func (j *Journal) RecoverInterrupted(ctx context.Context, replica string) (int64, error) {
	res, err := j.db.ExecContext(ctx, sqlMarkInterrupted, replica)
	if err != nil {
		return 0, fmt.Errorf("journal: recovering interrupted passes: %w", err)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		j.logger.Warn("marked unfinished passes as interrupted",
			slog.String("replica", replica), slog.Int64("count", n))
	}

	return n, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("journal: closing database: %w", err)
	}

	return nil
}

func toUnixNano(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n)
}
