package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/shelfkeep/shelfkeep/internal/middleware"
	"github.com/shelfkeep/shelfkeep/internal/service"
)

// Error codes reported in extensions.code.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeBadUserInput    = "BAD_USER_INPUT"
	CodeInternal        = "INTERNAL_SERVER_ERROR"
	CodeBadRequest      = "BAD_REQUEST"
)

// Client-facing messages.
const (
	msgUnauthenticated = "Not authenticated"
	msgNotFound        = "Book not found"
	msgConflict        = "A book with this ISBN already exists"
	msgInternal        = "An internal error occurred"
)

// errIntrospection is returned for __schema and __type selections.
var errIntrospection = errors.New("introspection is not supported")

// argumentError reports an argument that could not be read.
type argumentError struct {
	msg string
}

func (e *argumentError) Error() string { return e.msg }

// classify maps an application error to its wire code and message.
func classify(err error) (code, message string) {
	var argErr *argumentError

	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return CodeUnauthenticated, msgUnauthenticated
	case errors.Is(err, service.ErrNotFound):
		return CodeNotFound, msgNotFound
	case errors.Is(err, service.ErrConflict):
		return CodeConflict, msgConflict
	case errors.Is(err, service.ErrInvalidInput):
		return CodeBadUserInput, err.Error()
	case errors.As(err, &argErr):
		return CodeBadUserInput, argErr.msg
	case errors.Is(err, errIntrospection):
		return CodeBadRequest, err.Error()
	default:
		return CodeInternal, msgInternal
	}
}

// PresentError is the server's error presenter. Failures raised while
// resolving fields are mapped to a client-facing code and message; internal
// errors are logged and their details never reach the client. Request
// errors from parsing or validation pass through with a code attached.
func (e *Executor) PresentError(ctx context.Context, err error) *gqlerror.Error {
	var gErr *gqlerror.Error
	if !errors.As(err, &gErr) {
		gErr = gqlerror.WrapPath(graphql.GetPath(ctx), err)
	}

	if gErr.Err == nil {
		if gErr.Extensions == nil {
			gErr.Extensions = map[string]any{}
		}
		if _, ok := gErr.Extensions["code"]; !ok {
			gErr.Extensions["code"] = CodeBadRequest
		}
		code, _ := gErr.Extensions["code"].(string)
		e.metrics.IncGraphQLError(code)
		return gErr
	}

	code, message := classify(gErr.Err)
	if code == CodeInternal {
		e.logger.ErrorContext(ctx, "graphql resolver failed",
			slog.String("request_id", middleware.GetRequestID(ctx)),
			slog.String("path", gErr.Path.String()),
			slog.String("error", gErr.Err.Error()),
		)
	}
	e.metrics.IncGraphQLError(code)

	return &gqlerror.Error{
		Err:        gErr.Err,
		Message:    message,
		Path:       gErr.Path,
		Locations:  gErr.Locations,
		Extensions: map[string]any{"code": code},
	}
}

// Recover converts a resolver panic into an internal error.
func (e *Executor) Recover(ctx context.Context, p any) error {
	e.logger.ErrorContext(ctx, "graphql resolver panicked",
		slog.String("request_id", middleware.GetRequestID(ctx)),
		slog.Any("panic", p),
		slog.String("stack", string(debug.Stack())),
	)
	return fmt.Errorf("panic: %v", p)
}
