package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shelfkeep/shelfkeep/internal/auth"
	"github.com/shelfkeep/shelfkeep/internal/model"
)

// Demo fixture.
const (
	SeedEmail    = "test@example.com"
	SeedName     = "Test User"
	SeedPassword = "password123"
)

// SeedBooks are inserted in order for the demo user.
var SeedBooks = []model.Book{
	{Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", ISBN: "978-0-7432-7356-5", PublishedDate: "1925-04-10"},
	{Title: "To Kill a Mockingbird", Author: "Harper Lee", ISBN: "978-0-06-112008-4", PublishedDate: "1960-07-11"},
	{Title: "1984", Author: "George Orwell", ISBN: "978-0-452-28423-4", PublishedDate: "1949-06-08"},
}

// Seed inserts the demo user and their books. It is a no-op when the demo
// user already exists and reports whether anything was written.
func Seed(ctx context.Context, store Store) (bool, error) {
	_, err := store.GetUserByEmail(ctx, SeedEmail)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, fmt.Errorf("failed to check seed user: %w", err)
	}

	hash, err := auth.HashPassword(SeedPassword)
	if err != nil {
		return false, err
	}

	name := SeedName
	user, err := store.CreateUser(ctx, &model.User{
		Email:        SeedEmail,
		Name:         &name,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create seed user: %w", err)
	}

	for _, b := range SeedBooks {
		book := b
		book.OwnerID = user.ID
		if _, err := store.CreateBook(ctx, &book); err != nil {
			return false, fmt.Errorf("failed to seed book %q: %w", b.Title, err)
		}
	}

	return true, nil
}
