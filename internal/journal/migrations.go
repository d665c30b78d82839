package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrate brings the journal schema up to date and returns the resulting
// schema version.
func migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) (int64, error) {
	files, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("journal: opening embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, files)
	if err != nil {
		return 0, fmt.Errorf("journal: loading migrations: %w", err)
	}

	applied, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("journal: upgrading schema: %w", err)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("journal: reading schema version: %w", err)
	}

	if len(applied) > 0 {
		logger.Info("journal schema upgraded",
			slog.Int("migrations", len(applied)),
			slog.Int64("version", version),
		)
	}

	return version, nil
}
