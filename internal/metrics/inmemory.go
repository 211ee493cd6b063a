package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	BooksCreated        uint64
	BooksUpdated        uint64
	BooksDeleted        uint64
	ISBNConflicts       uint64
	UsersCreated        uint64
	IdentityCacheHits   uint64
	IdentityCacheMisses uint64
	GraphQLRequests     uint64
	GraphQLDurationNs   int64
	GraphQLErrorsByCode map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests and the /metrics endpoint.
type InMemoryRecorder struct {
	booksCreated        uint64
	booksUpdated        uint64
	booksDeleted        uint64
	isbnConflicts       uint64
	usersCreated        uint64
	identityCacheHits   uint64
	identityCacheMisses uint64
	graphqlRequests     uint64
	graphqlDurationNs   int64

	mu     sync.Mutex
	errors map[string]uint64
}

var _ Recorder = (*InMemoryRecorder)(nil)

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{errors: make(map[string]uint64)}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	byCode := make(map[string]uint64, len(m.errors))
	for code, n := range m.errors {
		byCode[code] = n
	}
	m.mu.Unlock()

	return Snapshot{
		BooksCreated:        atomic.LoadUint64(&m.booksCreated),
		BooksUpdated:        atomic.LoadUint64(&m.booksUpdated),
		BooksDeleted:        atomic.LoadUint64(&m.booksDeleted),
		ISBNConflicts:       atomic.LoadUint64(&m.isbnConflicts),
		UsersCreated:        atomic.LoadUint64(&m.usersCreated),
		IdentityCacheHits:   atomic.LoadUint64(&m.identityCacheHits),
		IdentityCacheMisses: atomic.LoadUint64(&m.identityCacheMisses),
		GraphQLRequests:     atomic.LoadUint64(&m.graphqlRequests),
		GraphQLDurationNs:   atomic.LoadInt64(&m.graphqlDurationNs),
		GraphQLErrorsByCode: byCode,
	}
}

// IncBookCreated increments book created counter.
func (m *InMemoryRecorder) IncBookCreated() {
	atomic.AddUint64(&m.booksCreated, 1)
}

// IncBookUpdated increments book updated counter.
func (m *InMemoryRecorder) IncBookUpdated() {
	atomic.AddUint64(&m.booksUpdated, 1)
}

// IncBookDeleted increments book deleted counter.
func (m *InMemoryRecorder) IncBookDeleted() {
	atomic.AddUint64(&m.booksDeleted, 1)
}

// IncISBNConflict increments rejected ISBN writes.
func (m *InMemoryRecorder) IncISBNConflict() {
	atomic.AddUint64(&m.isbnConflicts, 1)
}

// IncUserCreated increments lazily created users.
func (m *InMemoryRecorder) IncUserCreated() {
	atomic.AddUint64(&m.usersCreated, 1)
}

// IncIdentityCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncIdentityCacheHit() {
	atomic.AddUint64(&m.identityCacheHits, 1)
}

// IncIdentityCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncIdentityCacheMiss() {
	atomic.AddUint64(&m.identityCacheMisses, 1)
}

// ObserveGraphQLRequest records one executed operation.
func (m *InMemoryRecorder) ObserveGraphQLRequest(duration time.Duration) {
	atomic.AddUint64(&m.graphqlRequests, 1)
	atomic.AddInt64(&m.graphqlDurationNs, duration.Nanoseconds())
}

// IncGraphQLError counts a GraphQL error by its extension code.
func (m *InMemoryRecorder) IncGraphQLError(code string) {
	m.mu.Lock()
	m.errors[code]++
	m.mu.Unlock()
}
