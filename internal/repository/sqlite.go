package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// SQLiteDSN builds a file DSN with the pragmas the store relies on.
func SQLiteDSN(path string) string {
	return "file:" + path +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)"
}

// OpenSQLite opens (creating if needed) the SQLite database at path and
// applies migrations.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger, now Clock) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return OpenSQLiteDSN(ctx, SQLiteDSN(path), logger, now)
}

// OpenSQLiteDSN opens a SQLite database from a raw DSN.
// Tests use it with in-memory DSNs.
func OpenSQLiteDSN(ctx context.Context, dsn string, logger *slog.Logger, now Clock) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := migrate(ctx, db, sqliteDialect, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	// A single connection serializes writers.
	db.SetMaxOpenConns(1)

	return newSQLStore(db, sqliteDialect, now), nil
}
