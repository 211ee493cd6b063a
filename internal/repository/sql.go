package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shelfkeep/shelfkeep/internal/model"
)

const bookColumns = `id, title, author, isbn, published_date, user_id, created_at, updated_at`

// SQLStore is the durable Store over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     Clock
}

var _ Store = (*SQLStore)(nil)

func newSQLStore(db *sql.DB, d dialect, now Clock) *SQLStore {
	if now == nil {
		now = systemClock
	}
	return &SQLStore{db: db, dialect: d, now: now}
}

// Durable implements Store.
func (s *SQLStore) Durable() bool {
	return true
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// GetUserByEmail retrieves a user by their email address.
func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := s.dialect.rebind(`
		SELECT id, email, name, password_hash, created_at
		FROM users
		WHERE email = ?
	`)

	var (
		user model.User
		id   int64
		name sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&id,
		&user.Email,
		&name,
		&user.PasswordHash,
		timestamp{&user.CreatedAt},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	user.ID = formatID(id)
	if name.Valid {
		user.Name = &name.String
	}
	return &user, nil
}

// CreateUser inserts a new user and returns it with its assigned ID.
func (s *SQLStore) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	query := s.dialect.rebind(`
		INSERT INTO users (email, password_hash, name, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`)

	created := *user
	created.CreatedAt = s.now()

	var name sql.NullString
	if user.Name != nil {
		name = sql.NullString{String: *user.Name, Valid: true}
	}

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		created.Email,
		created.PasswordHash,
		name,
		s.dialect.timeArg(created.CreatedAt),
	).Scan(&id)
	if err != nil {
		if s.dialect.unique(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	created.ID = formatID(id)
	return &created, nil
}

// ListBooksByOwner retrieves all books of an owner, newest first.
func (s *SQLStore) ListBooksByOwner(ctx context.Context, ownerID string) ([]*model.Book, error) {
	owner, ok := parseID(ownerID)
	if !ok {
		return []*model.Book{}, nil
	}

	query := s.dialect.rebind(`
		SELECT ` + bookColumns + `
		FROM books
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`)

	rows, err := s.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	books := make([]*model.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, book)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating books: %w", err)
	}

	return books, nil
}

// GetBook retrieves a book by ID, scoped to its owner.
func (s *SQLStore) GetBook(ctx context.Context, id, ownerID string) (*model.Book, error) {
	bookID, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}
	owner, ok := parseID(ownerID)
	if !ok {
		return nil, ErrNotFound
	}

	query := s.dialect.rebind(`
		SELECT ` + bookColumns + `
		FROM books
		WHERE id = ? AND user_id = ?
	`)

	book, err := scanBook(s.db.QueryRowContext(ctx, query, bookID, owner))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	return book, nil
}

// CreateBook inserts a new book and re-reads the stored row.
func (s *SQLStore) CreateBook(ctx context.Context, book *model.Book) (*model.Book, error) {
	owner, ok := parseID(book.OwnerID)
	if !ok {
		return nil, fmt.Errorf("failed to create book: invalid owner id %q", book.OwnerID)
	}

	query := s.dialect.rebind(`
		INSERT INTO books (title, author, isbn, published_date, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	now := s.dialect.timeArg(s.now())

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		book.Title,
		book.Author,
		book.ISBN,
		book.PublishedDate,
		owner,
		now,
		now,
	).Scan(&id)
	if err != nil {
		if s.dialect.unique(err) {
			return nil, ErrISBNExists
		}
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	return s.GetBook(ctx, formatID(id), book.OwnerID)
}

// UpdateBook applies a partial update as a single conditional statement.
func (s *SQLStore) UpdateBook(ctx context.Context, id, ownerID string, patch model.BookPatch) (int64, error) {
	bookID, ok := parseID(id)
	if !ok {
		return 0, nil
	}
	owner, ok := parseID(ownerID)
	if !ok {
		return 0, nil
	}

	fields := patch.Fields()
	sets := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+3)
	for _, f := range fields {
		sets = append(sets, f.Column+" = ?")
		args = append(args, f.Value)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.dialect.timeArg(s.now()), bookID, owner)

	query := s.dialect.rebind(`UPDATE books SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND user_id = ?`)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if s.dialect.unique(err) {
			return 0, ErrISBNExists
		}
		return 0, fmt.Errorf("failed to update book: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected, nil
}

// DeleteBook removes a book owned by ownerID.
func (s *SQLStore) DeleteBook(ctx context.Context, id, ownerID string) (int64, error) {
	bookID, ok := parseID(id)
	if !ok {
		return 0, nil
	}
	owner, ok := parseID(ownerID)
	if !ok {
		return 0, nil
	}

	query := s.dialect.rebind(`DELETE FROM books WHERE id = ? AND user_id = ?`)

	result, err := s.db.ExecContext(ctx, query, bookID, owner)
	if err != nil {
		return 0, fmt.Errorf("failed to delete book: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanBook scans a single row into a Book model.
func scanBook(row rowScanner) (*model.Book, error) {
	var (
		book    model.Book
		id      int64
		ownerID int64
	)
	err := row.Scan(
		&id,
		&book.Title,
		&book.Author,
		&book.ISBN,
		&book.PublishedDate,
		&ownerID,
		timestamp{&book.CreatedAt},
		timestamp{&book.UpdatedAt},
	)
	if err != nil {
		return nil, err
	}

	book.ID = formatID(id)
	book.OwnerID = formatID(ownerID)
	return &book, nil
}
