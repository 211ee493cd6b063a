package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shelfkeep/shelfkeep/internal/metrics"
	"github.com/shelfkeep/shelfkeep/internal/model"
	"github.com/shelfkeep/shelfkeep/internal/repository"
)

// BookService handles book business logic for the calling user.
//
// A book owned by another user is reported exactly like a missing one, so
// callers cannot probe for the existence of other users' books.
type BookService struct {
	store      repository.Store
	identities *IdentityService
	metrics    metrics.Recorder
}

// NewBookService creates a new BookService.
func NewBookService(store repository.Store, identities *IdentityService, recorder metrics.Recorder) *BookService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &BookService{
		store:      store,
		identities: identities,
		metrics:    recorder,
	}
}

// CreateBookInput defines input for creating a book.
type CreateBookInput struct {
	Title         string `json:"title" validate:"required"`
	Author        string `json:"author" validate:"required"`
	ISBN          string `json:"isbn" validate:"required"`
	PublishedDate string `json:"publishedDate" validate:"required"`
}

// List returns the caller's books, newest first.
func (s *BookService) List(ctx context.Context, identity *model.Identity) ([]*model.Book, error) {
	user, err := s.identities.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	books, err := s.store.ListBooksByOwner(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

// Get returns the caller's book, or nil when there is no such book.
func (s *BookService) Get(ctx context.Context, identity *model.Identity, id string) (*model.Book, error) {
	user, err := s.identities.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	book, err := s.store.GetBook(ctx, id, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return book, nil
}

// Create adds a book for the caller. The ISBN must be unused by any book.
func (s *BookService) Create(ctx context.Context, identity *model.Identity, input CreateBookInput) (*model.Book, error) {
	user, err := s.identities.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	if err := validateInput(input); err != nil {
		return nil, err
	}

	book, err := s.store.CreateBook(ctx, &model.Book{
		Title:         input.Title,
		Author:        input.Author,
		ISBN:          input.ISBN,
		PublishedDate: input.PublishedDate,
		OwnerID:       user.ID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrISBNExists) {
			s.metrics.IncISBNConflict()
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	s.metrics.IncBookCreated()
	return book, nil
}

// Update applies the supplied fields to the caller's book. updated_at is
// refreshed even when the patch is empty.
func (s *BookService) Update(ctx context.Context, identity *model.Identity, id string, patch model.BookPatch) (*model.Book, error) {
	user, err := s.identities.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetBook(ctx, id, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	affected, err := s.store.UpdateBook(ctx, id, user.ID, patch)
	if err != nil {
		if errors.Is(err, repository.ErrISBNExists) {
			s.metrics.IncISBNConflict()
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to update book: %w", err)
	}
	if affected == 0 {
		// Deleted between the fetch and the update.
		return nil, ErrNotFound
	}

	s.metrics.IncBookUpdated()

	book, err := s.store.GetBook(ctx, id, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to re-read book: %w", err)
	}
	return book, nil
}

// Delete removes the caller's book and reports whether a row was removed.
func (s *BookService) Delete(ctx context.Context, identity *model.Identity, id string) (bool, error) {
	user, err := s.identities.Resolve(ctx, identity)
	if err != nil {
		return false, err
	}

	affected, err := s.store.DeleteBook(ctx, id, user.ID)
	if err != nil {
		return false, fmt.Errorf("failed to delete book: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	s.metrics.IncBookDeleted()
	return true, nil
}
