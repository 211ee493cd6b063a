// Package repository provides the storage layer for users and books.
//
// Two interchangeable backends implement Store: SQLStore (SQLite or
// PostgreSQL) and MemoryStore, a volatile fallback. Callers obtain one
// through Open and must not depend on which backend is active.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shelfkeep/shelfkeep/internal/model"
)

// Common errors for repository operations.
var (
	ErrNotFound    = errors.New("record not found")
	ErrEmailExists = errors.New("email already exists")
	ErrISBNExists  = errors.New("isbn already exists")
)

// Store is the read/write contract shared by every backend.
//
// Book lookups and mutations take the owner's user ID and only match rows
// owned by that user. Storage assigns IDs and timestamps.
type Store interface {
	// GetUserByEmail returns ErrNotFound when no user has the email.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// CreateUser returns ErrEmailExists when the email is taken.
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)

	// ListBooksByOwner returns the owner's books, newest first.
	ListBooksByOwner(ctx context.Context, ownerID string) ([]*model.Book, error)
	// GetBook returns ErrNotFound for a missing id or a foreign owner.
	GetBook(ctx context.Context, id, ownerID string) (*model.Book, error)
	// CreateBook inserts the book and returns the stored row.
	// Returns ErrISBNExists when another book has the ISBN; nothing is written.
	CreateBook(ctx context.Context, book *model.Book) (*model.Book, error)
	// UpdateBook applies the patch and refreshes updated_at.
	// Returns the number of rows affected, or ErrISBNExists.
	UpdateBook(ctx context.Context, id, ownerID string, patch model.BookPatch) (int64, error)
	// DeleteBook removes the book and returns the number of rows affected.
	DeleteBook(ctx context.Context, id, ownerID string) (int64, error)

	// Durable reports whether data survives a process restart.
	Durable() bool
	Ping(ctx context.Context) error
	Close() error
}

// Clock returns the time assigned to created_at and updated_at.
type Clock func() time.Time

// systemClock truncates to microseconds so every backend stores the same value.
func systemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
