package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/shelfkeep/shelfkeep/internal/model"
)

// MemoryStore is the volatile fallback Store. Its state lives for the
// lifetime of the process.
type MemoryStore struct {
	mu  sync.Mutex
	now Clock

	nextUserID int64
	nextBookID int64

	users   map[string]*model.User // by email
	books   map[int64]*model.Book  // by numeric id
	isbnIdx map[string]int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(now Clock) *MemoryStore {
	if now == nil {
		now = systemClock
	}
	return &MemoryStore{
		now:        now,
		nextUserID: 1,
		nextBookID: 1,
		users:      make(map[string]*model.User),
		books:      make(map[int64]*model.Book),
		isbnIdx:    make(map[string]int64),
	}
}

// Durable implements Store.
func (m *MemoryStore) Durable() bool {
	return false
}

// Ping implements Store.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}

// GetUserByEmail implements Store.
func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(user), nil
}

// CreateUser implements Store.
func (m *MemoryStore) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.Email]; ok {
		return nil, ErrEmailExists
	}

	created := copyUser(user)
	created.ID = formatID(m.nextUserID)
	created.CreatedAt = m.now()
	m.nextUserID++

	m.users[created.Email] = created
	return copyUser(created), nil
}

// ListBooksByOwner implements Store.
func (m *MemoryStore) ListBooksByOwner(ctx context.Context, ownerID string) ([]*model.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type entry struct {
		id   int64
		book *model.Book
	}
	entries := make([]entry, 0)
	for id, b := range m.books {
		if b.OwnerID == ownerID {
			entries = append(entries, entry{id: id, book: b})
		}
	}

	// Same order as the SQL backends: created_at DESC, id DESC.
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.book.CreatedAt.Equal(b.book.CreatedAt) {
			return a.book.CreatedAt.After(b.book.CreatedAt)
		}
		return a.id > b.id
	})

	books := make([]*model.Book, len(entries))
	for i, e := range entries {
		books[i] = copyBook(e.book)
	}
	return books, nil
}

// GetBook implements Store.
func (m *MemoryStore) GetBook(ctx context.Context, id, ownerID string) (*model.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	book, ok := m.ownedBook(id, ownerID)
	if !ok {
		return nil, ErrNotFound
	}
	return copyBook(book), nil
}

// CreateBook implements Store. The uniqueness check and the insert happen
// under one lock.
func (m *MemoryStore) CreateBook(ctx context.Context, book *model.Book) (*model.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.isbnIdx[book.ISBN]; taken {
		return nil, ErrISBNExists
	}

	now := m.now()
	id := m.nextBookID
	m.nextBookID++

	created := copyBook(book)
	created.ID = formatID(id)
	created.CreatedAt = now
	created.UpdatedAt = now

	m.books[id] = created
	m.isbnIdx[created.ISBN] = id
	return copyBook(created), nil
}

// UpdateBook implements Store.
func (m *MemoryStore) UpdateBook(ctx context.Context, id, ownerID string, patch model.BookPatch) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	book, ok := m.ownedBook(id, ownerID)
	if !ok {
		return 0, nil
	}

	bookID, _ := parseID(id)
	if patch.ISBN != nil && *patch.ISBN != book.ISBN {
		if other, taken := m.isbnIdx[*patch.ISBN]; taken && other != bookID {
			return 0, ErrISBNExists
		}
		delete(m.isbnIdx, book.ISBN)
		m.isbnIdx[*patch.ISBN] = bookID
	}

	patch.Apply(book)
	book.UpdatedAt = m.now()
	return 1, nil
}

// DeleteBook implements Store.
func (m *MemoryStore) DeleteBook(ctx context.Context, id, ownerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	book, ok := m.ownedBook(id, ownerID)
	if !ok {
		return 0, nil
	}

	bookID, _ := parseID(id)
	delete(m.isbnIdx, book.ISBN)
	delete(m.books, bookID)
	return 1, nil
}

// ownedBook must be called with mu held.
func (m *MemoryStore) ownedBook(id, ownerID string) (*model.Book, bool) {
	bookID, ok := parseID(id)
	if !ok {
		return nil, false
	}
	book, ok := m.books[bookID]
	if !ok || book.OwnerID != ownerID {
		return nil, false
	}
	return book, true
}

func copyUser(u *model.User) *model.User {
	c := *u
	if u.Name != nil {
		name := *u.Name
		c.Name = &name
	}
	return &c
}

func copyBook(b *model.Book) *model.Book {
	c := *b
	return &c
}
