package graph

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shelfkeep/shelfkeep/internal/auth"
	"github.com/shelfkeep/shelfkeep/internal/model"
	"github.com/shelfkeep/shelfkeep/internal/service"
)

// TimeLayout renders timestamps as RFC 3339 UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Resolver binds schema fields to the services.
type Resolver struct {
	books      *service.BookService
	identities *service.IdentityService
}

// NewResolver creates a Resolver.
func NewResolver(books *service.BookService, identities *service.IdentityService) *Resolver {
	return &Resolver{books: books, identities: identities}
}

func (r *Resolver) queryFields() map[string]rootField {
	return map[string]rootField{
		"books": r.queryBooks,
		"book":  r.queryBook,
		"me":    r.queryMe,
	}
}

func (r *Resolver) mutationFields() map[string]rootField {
	return map[string]rootField{
		"createBook": r.createBook,
		"updateBook": r.updateBook,
		"deleteBook": r.deleteBook,
	}
}

func (r *Resolver) queryBooks(ctx context.Context, args map[string]any) (any, error) {
	return r.books.List(ctx, auth.IdentityFromContext(ctx))
}

func (r *Resolver) queryBook(ctx context.Context, args map[string]any) (any, error) {
	id, err := requiredArg(args, "id")
	if err != nil {
		return nil, err
	}

	book, err := r.books.Get(ctx, auth.IdentityFromContext(ctx), id)
	if err != nil || book == nil {
		return nil, err
	}
	return book, nil
}

// queryMe returns null rather than an error for anonymous callers.
func (r *Resolver) queryMe(ctx context.Context, args map[string]any) (any, error) {
	user, err := r.identities.Resolve(ctx, auth.IdentityFromContext(ctx))
	if err != nil {
		if errors.Is(err, service.ErrUnauthenticated) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (r *Resolver) createBook(ctx context.Context, args map[string]any) (any, error) {
	var input service.CreateBookInput
	var err error
	if input.Title, err = requiredArg(args, "title"); err != nil {
		return nil, err
	}
	if input.Author, err = requiredArg(args, "author"); err != nil {
		return nil, err
	}
	if input.ISBN, err = requiredArg(args, "isbn"); err != nil {
		return nil, err
	}
	if input.PublishedDate, err = requiredArg(args, "publishedDate"); err != nil {
		return nil, err
	}

	return r.books.Create(ctx, auth.IdentityFromContext(ctx), input)
}

func (r *Resolver) updateBook(ctx context.Context, args map[string]any) (any, error) {
	id, err := requiredArg(args, "id")
	if err != nil {
		return nil, err
	}

	var patch model.BookPatch
	for name, dst := range map[string]**string{
		"title":         &patch.Title,
		"author":        &patch.Author,
		"isbn":          &patch.ISBN,
		"publishedDate": &patch.PublishedDate,
	} {
		if *dst, err = optionalArg(args, name); err != nil {
			return nil, err
		}
	}

	return r.books.Update(ctx, auth.IdentityFromContext(ctx), id, patch)
}

func (r *Resolver) deleteBook(ctx context.Context, args map[string]any) (any, error) {
	id, err := requiredArg(args, "id")
	if err != nil {
		return nil, err
	}
	return r.books.Delete(ctx, auth.IdentityFromContext(ctx), id)
}

// objectField reads a field of a resolved Book or User.
func (r *Resolver) objectField(typeName, fieldName string, value any) (any, error) {
	switch obj := value.(type) {
	case *model.Book:
		if typeName == "Book" {
			return bookField(obj, fieldName)
		}
	case *model.User:
		if typeName == "User" {
			return userField(obj, fieldName)
		}
	}
	return nil, fmt.Errorf("cannot resolve %s.%s from %T", typeName, fieldName, value)
}

func bookField(b *model.Book, name string) (any, error) {
	switch name {
	case "id":
		return b.ID, nil
	case "title":
		return b.Title, nil
	case "author":
		return b.Author, nil
	case "isbn":
		return b.ISBN, nil
	case "publishedDate":
		return b.PublishedDate, nil
	case "createdAt":
		return FormatTime(b.CreatedAt), nil
	case "updatedAt":
		return FormatTime(b.UpdatedAt), nil
	default:
		return nil, fmt.Errorf("unknown field Book.%s", name)
	}
}

func userField(u *model.User, name string) (any, error) {
	switch name {
	case "id":
		return u.ID, nil
	case "email":
		return u.Email, nil
	case "name":
		return u.Name, nil
	default:
		return nil, fmt.Errorf("unknown field User.%s", name)
	}
}

// FormatTime renders a timestamp for the wire.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// requiredArg reads a non-null String or ID argument.
func requiredArg(args map[string]any, name string) (string, error) {
	v, err := optionalArg(args, name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", &argumentError{msg: fmt.Sprintf("argument %q is required", name)}
	}
	return *v, nil
}

// optionalArg reads a nullable String or ID argument. An absent or null
// argument yields nil.
func optionalArg(args map[string]any, name string) (*string, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return nil, nil
	}

	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		s = v.String()
	default:
		return nil, &argumentError{msg: fmt.Sprintf("argument %q must be a string", name)}
	}
	return &s, nil
}
