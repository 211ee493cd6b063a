package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfkeep/shelfkeep/internal/auth"
	"github.com/shelfkeep/shelfkeep/internal/metrics"
	"github.com/shelfkeep/shelfkeep/internal/model"
	"github.com/shelfkeep/shelfkeep/internal/repository"
	"github.com/shelfkeep/shelfkeep/internal/service"
	"github.com/shelfkeep/shelfkeep/internal/testutil"
)

type harness struct {
	srv     http.Handler
	metrics *metrics.InMemoryRecorder
}

func newHarness(t *testing.T, store repository.Store) *harness {
	t.Helper()
	if store == nil {
		store = repository.NewMemoryStore(testutil.NewClock(time.Second).Now)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := metrics.NewInMemory()
	identities := service.NewIdentityService(store, nil, recorder, logger)
	books := service.NewBookService(store, identities, recorder)
	return &harness{
		srv:     NewServer(NewExecutor(NewResolver(books, identities), logger, recorder)),
		metrics: recorder,
	}
}

func as(email string) context.Context {
	return auth.ContextWithIdentity(context.Background(), testutil.NewTestIdentity(email))
}

type result struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message    string         `json:"message"`
		Path       []any          `json:"path"`
		Extensions map[string]any `json:"extensions"`
	} `json:"errors"`
	status int
	body   string
}

// request posts a GraphQL request and decodes the response.
func (h *harness) request(t *testing.T, ctx context.Context, payload map[string]any) result {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)

	var out result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	out.status = rec.Code
	out.body = rec.Body.String()
	return out
}

func (h *harness) do(t *testing.T, ctx context.Context, query string, vars map[string]any) result {
	t.Helper()
	payload := map[string]any{"query": query}
	if vars != nil {
		payload["variables"] = vars
	}
	res := h.request(t, ctx, payload)
	require.Equal(t, http.StatusOK, res.status, res.body)
	return res
}

func (r result) code(i int) string {
	code, _ := r.Errors[i].Extensions["code"].(string)
	return code
}

// dataIsNull reports whether the response carried "data": null.
func (r result) dataIsNull() bool {
	return strings.Contains(r.body, `"data":null`)
}

func (r result) field(t *testing.T, name string, dst any) {
	t.Helper()
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(r.Data, &fields))
	require.NoError(t, json.Unmarshal(fields[name], dst))
}

type bookJSON struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	ISBN          string `json:"isbn"`
	PublishedDate string `json:"publishedDate"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

const createDune = `mutation {
	createBook(title: "Dune", author: "Herbert", isbn: "978-0-441-17271-9", publishedDate: "1965-08-01") {
		id title author isbn publishedDate createdAt updatedAt
	}
}`

func TestCreateBook(t *testing.T) {
	h := newHarness(t, nil)
	ctx := as("u@example.com")

	res := h.do(t, ctx, createDune, nil)
	require.Empty(t, res.Errors)

	var book bookJSON
	res.field(t, "createBook", &book)
	assert.NotEmpty(t, book.ID)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, "1965-08-01", book.PublishedDate)
	assert.Equal(t, book.CreatedAt, book.UpdatedAt)

	ts, err := time.Parse(time.RFC3339, book.CreatedAt)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, ts.Location())
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`, book.CreatedAt)
}

func TestCreateBookConflict(t *testing.T) {
	h := newHarness(t, nil)

	require.Empty(t, h.do(t, as("u@example.com"), createDune, nil).Errors)

	res := h.do(t, as("v@example.com"), createDune, nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeConflict, res.code(0))
	assert.Equal(t, "A book with this ISBN already exists", res.Errors[0].Message)
	assert.Equal(t, []any{"createBook"}, res.Errors[0].Path)
	// createBook is non-null, so the failure nulls the whole data object.
	assert.True(t, res.dataIsNull(), res.body)
}

func TestCreateBookValidation(t *testing.T) {
	h := newHarness(t, nil)

	res := h.do(t, as("u@example.com"), `mutation {
		createBook(title: "", author: "A", isbn: "1", publishedDate: "2020") { id }
	}`, nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeBadUserInput, res.code(0))
	assert.Contains(t, res.Errors[0].Message, "title is required")
}

func TestUnauthenticated(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	res := h.do(t, ctx, `{ books { id } }`, nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeUnauthenticated, res.code(0))
	assert.Equal(t, "Not authenticated", res.Errors[0].Message)
	assert.True(t, res.dataIsNull(), res.body)

	res = h.do(t, ctx, createDune, nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeUnauthenticated, res.code(0))
}

func TestMe(t *testing.T) {
	h := newHarness(t, nil)

	res := h.do(t, context.Background(), `{ me { id email name } }`, nil)
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"me":null}`, string(res.Data))

	ctx := auth.ContextWithIdentity(context.Background(), &model.Identity{Email: "reader@example.com", Name: "Reader"})
	res = h.do(t, ctx, `{ me { id email name } }`, nil)
	require.Empty(t, res.Errors)

	var me struct {
		ID    string  `json:"id"`
		Email string  `json:"email"`
		Name  *string `json:"name"`
	}
	res.field(t, "me", &me)
	assert.NotEmpty(t, me.ID)
	assert.Equal(t, "reader@example.com", me.Email)
	require.NotNil(t, me.Name)
	assert.Equal(t, "Reader", *me.Name)

	res = h.do(t, as("anon@example.com"), `{ me { name } }`, nil)
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"me":{"name":null}}`, string(res.Data))
}

func TestBookLookupIsOwnerScoped(t *testing.T) {
	h := newHarness(t, nil)

	var book bookJSON
	h.do(t, as("u@example.com"), createDune, nil).field(t, "createBook", &book)

	query := `query ($id: ID!) { book(id: $id) { id title } }`

	res := h.do(t, as("u@example.com"), query, map[string]any{"id": book.ID})
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"book":{"id":"`+book.ID+`","title":"Dune"}}`, string(res.Data))

	for _, tc := range []struct {
		caller string
		id     string
	}{
		{"v@example.com", book.ID},
		{"u@example.com", "nonexistent"},
	} {
		res = h.do(t, as(tc.caller), query, map[string]any{"id": tc.id})
		require.Empty(t, res.Errors)
		assert.JSONEq(t, `{"book":null}`, string(res.Data))
	}
}

func TestUpdateBook(t *testing.T) {
	h := newHarness(t, nil)
	ctx := as("u@example.com")

	var created bookJSON
	h.do(t, ctx, createDune, nil).field(t, "createBook", &created)

	res := h.do(t, ctx, `mutation ($id: ID!) {
		updateBook(id: $id) { title author isbn publishedDate createdAt updatedAt }
	}`, map[string]any{"id": created.ID})
	require.Empty(t, res.Errors)

	var updated bookJSON
	res.field(t, "updateBook", &updated)
	assert.Equal(t, created.Title, updated.Title)
	assert.Equal(t, created.ISBN, updated.ISBN)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Greater(t, updated.UpdatedAt, created.UpdatedAt)

	res = h.do(t, ctx, `mutation ($id: ID!, $title: String) {
		updateBook(id: $id, title: $title, author: null) { title author }
	}`, map[string]any{"id": created.ID, "title": "Dune Messiah"})
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"updateBook":{"title":"Dune Messiah","author":"Herbert"}}`, string(res.Data))
}

func TestUpdateBookErrors(t *testing.T) {
	h := newHarness(t, nil)
	u := as("u@example.com")

	var dune bookJSON
	h.do(t, u, createDune, nil).field(t, "createBook", &dune)
	require.Empty(t, h.do(t, u, `mutation { createBook(title: "Emma", author: "Austen", isbn: "978-2", publishedDate: "1815") { id } }`, nil).Errors)

	res := h.do(t, as("v@example.com"), `mutation ($id: ID!) { updateBook(id: $id, title: "x") { id } }`,
		map[string]any{"id": dune.ID})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeNotFound, res.code(0))
	assert.Equal(t, "Book not found", res.Errors[0].Message)

	res = h.do(t, u, `mutation ($id: ID!) { updateBook(id: $id, isbn: "978-2") { id } }`,
		map[string]any{"id": dune.ID})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeConflict, res.code(0))
}

func TestDeleteBook(t *testing.T) {
	h := newHarness(t, nil)

	var book bookJSON
	h.do(t, as("u@example.com"), createDune, nil).field(t, "createBook", &book)

	mutation := `mutation ($id: ID!) { deleteBook(id: $id) }`
	vars := map[string]any{"id": book.ID}

	res := h.do(t, as("v@example.com"), mutation, vars)
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"deleteBook":false}`, string(res.Data))

	res = h.do(t, as("u@example.com"), mutation, vars)
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"deleteBook":true}`, string(res.Data))

	res = h.do(t, as("u@example.com"), mutation, vars)
	assert.JSONEq(t, `{"deleteBook":false}`, string(res.Data))
}

func TestBooksNewestFirstWithAliases(t *testing.T) {
	h := newHarness(t, nil)
	ctx := as("u@example.com")

	res := h.do(t, ctx, `mutation {
		a: createBook(title: "A", author: "x", isbn: "1", publishedDate: "d") { title }
		b: createBook(title: "B", author: "x", isbn: "2", publishedDate: "d") { title }
	}`, nil)
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"a":{"title":"A"},"b":{"title":"B"}}`, string(res.Data))

	res = h.do(t, ctx, `{ books { __typename title } }`, nil)
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"books":[{"__typename":"Book","title":"B"},{"__typename":"Book","title":"A"}]}`, string(res.Data))
}

func TestSerialMutationsStopAtFailedRoot(t *testing.T) {
	h := newHarness(t, nil)
	ctx := as("u@example.com")

	res := h.do(t, ctx, `mutation {
		a: createBook(title: "A", author: "x", isbn: "1", publishedDate: "d") { id }
		dup: createBook(title: "A", author: "x", isbn: "1", publishedDate: "d") { id }
		c: createBook(title: "C", author: "x", isbn: "3", publishedDate: "d") { id }
	}`, nil)
	require.Len(t, res.Errors, 1)
	assert.True(t, res.dataIsNull(), res.body)

	res = h.do(t, ctx, `{ books { title } }`, nil)
	assert.JSONEq(t, `{"books":[{"title":"A"}]}`, string(res.Data))
}

type failingStore struct {
	repository.Store
}

func (failingStore) ListBooksByOwner(ctx context.Context, ownerID string) ([]*model.Book, error) {
	return nil, errors.New("disk on fire")
}

func TestInternalErrorsAreMasked(t *testing.T) {
	h := newHarness(t, failingStore{Store: repository.NewMemoryStore(nil)})

	res := h.do(t, as("u@example.com"), `{ books { id } me { email } }`, nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeInternal, res.code(0))
	assert.Equal(t, "An internal error occurred", res.Errors[0].Message)
	assert.NotContains(t, string(res.Data), "disk")
	assert.Equal(t, uint64(1), h.metrics.Snapshot().GraphQLErrorsByCode[CodeInternal])
}

func TestRequestErrors(t *testing.T) {
	h := newHarness(t, nil)
	ctx := as("u@example.com")

	tests := []struct {
		name    string
		payload map[string]any
		code    string
	}{
		{"empty", map[string]any{"query": "  "}, "GRAPHQL_VALIDATION_FAILED"},
		{"syntax", map[string]any{"query": "{ books { id "}, "GRAPHQL_PARSE_FAILED"},
		{"unknown field", map[string]any{"query": "{ shelves { id } }"}, "GRAPHQL_VALIDATION_FAILED"},
		{"missing variable", map[string]any{"query": "query ($id: ID!) { book(id: $id) { id } }"}, "GRAPHQL_VALIDATION_FAILED"},
		{"unknown operation", map[string]any{"query": "query A { me { id } }", "operationName": "B"}, "GRAPHQL_VALIDATION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := h.request(t, ctx, tt.payload)
			assert.Equal(t, http.StatusUnprocessableEntity, res.status)
			require.NotEmpty(t, res.Errors)
			assert.Equal(t, tt.code, res.code(0))
			assert.True(t, res.dataIsNull(), res.body)
		})
	}
}

func TestOperationName(t *testing.T) {
	h := newHarness(t, nil)

	res := h.request(t, context.Background(), map[string]any{
		"query":         "query A { me { id } } query B { __typename }",
		"operationName": "B",
	})
	require.Equal(t, http.StatusOK, res.status)
	assert.JSONEq(t, `{"__typename":"Query"}`, string(res.Data))
}

type panickingStore struct {
	repository.Store
}

func (panickingStore) ListBooksByOwner(ctx context.Context, ownerID string) ([]*model.Book, error) {
	panic("unexpected nil")
}

func TestResolverPanicIsMasked(t *testing.T) {
	h := newHarness(t, panickingStore{Store: repository.NewMemoryStore(nil)})

	res := h.do(t, as("u@example.com"), `{ books { id } }`, nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeInternal, res.code(0))
	assert.Equal(t, []any{"books"}, res.Errors[0].Path)
	assert.NotContains(t, res.body, "unexpected nil")
}

func TestIntrospectionRejected(t *testing.T) {
	h := newHarness(t, nil)

	res := h.do(t, context.Background(), `{ __schema { queryType { name } } }`, nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeBadRequest, res.code(0))
}

func TestSchemaFieldNames(t *testing.T) {
	schema := LoadSchema()

	book := schema.Types["Book"]
	require.NotNil(t, book)
	for _, name := range []string{"id", "title", "author", "isbn", "publishedDate", "createdAt", "updatedAt"} {
		assert.NotNil(t, book.Fields.ForName(name), name)
	}
	assert.Nil(t, book.Fields.ForName("ownerId"))
	assert.NotNil(t, schema.Mutation.Fields.ForName("deleteBook"))
}
