package repository

import (
	"context"
	"fmt"
	"log/slog"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Driver      string
	SQLitePath  string
	DatabaseURL string
	// Fallback switches to the memory store when the durable one fails to open.
	Fallback bool
	Logger   *slog.Logger
	Now      Clock
}

// Open returns the seeded Store for opts. It is called once at startup and
// the result is shared by every request.
func Open(ctx context.Context, opts Options) (Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := openDriver(ctx, opts, logger)
	if err != nil {
		if !opts.Fallback || opts.Driver == DriverMemory {
			return nil, err
		}
		logger.Warn("durable storage unavailable, falling back to in-memory store; data will not persist",
			"driver", opts.Driver,
			"error", err,
		)
		store = NewMemoryStore(opts.Now)
	}

	seeded, err := Seed(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.Info("storage ready",
		"durable", store.Durable(),
		"seeded", seeded,
	)
	return store, nil
}

func openDriver(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		return OpenSQLite(ctx, opts.SQLitePath, logger, opts.Now)
	case DriverPostgres:
		return OpenPostgres(ctx, opts.DatabaseURL, logger, opts.Now)
	case DriverMemory:
		return NewMemoryStore(opts.Now), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
