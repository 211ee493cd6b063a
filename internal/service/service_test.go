package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelfkeep/shelfkeep/internal/metrics"
	"github.com/shelfkeep/shelfkeep/internal/repository"
	"github.com/shelfkeep/shelfkeep/internal/testutil"
)

type backend struct {
	name string
	open func(t *testing.T) repository.Store
}

var backends = []backend{
	{
		name: "memory",
		open: func(t *testing.T) repository.Store {
			return repository.NewMemoryStore(testutil.NewClock(time.Second).Now)
		},
	},
	{
		name: "sqlite",
		open: func(t *testing.T) repository.Store {
			t.Helper()
			path := filepath.Join(t.TempDir(), "books.db")
			store, err := repository.OpenSQLite(context.Background(), path, discardLogger(), testutil.NewClock(time.Second).Now)
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	},
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store      repository.Store
	identities *IdentityService
	books      *BookService
	metrics    *metrics.InMemoryRecorder
}

func newFixture(t *testing.T, store repository.Store) *fixture {
	t.Helper()
	recorder := metrics.NewInMemory()
	identities := NewIdentityService(store, nil, recorder, discardLogger())
	return &fixture{
		store:      store,
		identities: identities,
		books:      NewBookService(store, identities, recorder),
		metrics:    recorder,
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, f *fixture)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, newFixture(t, b.open(t)))
		})
	}
}

func strPtr(s string) *string { return &s }
