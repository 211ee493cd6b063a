package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shelfkeep/shelfkeep/internal/metrics"
)

func TestMetricsHandler(t *testing.T) {
	recorder := metrics.NewInMemory()
	recorder.IncBookCreated()
	recorder.IncBookCreated()
	recorder.IncISBNConflict()
	recorder.IncGraphQLError("NOT_FOUND")
	recorder.IncGraphQLError("CONFLICT")
	recorder.ObserveGraphQLRequest(1500 * time.Millisecond)

	rec := httptest.NewRecorder()
	NewMetricsHandler(recorder).Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, line := range []string{
		"shelfkeep_books_created_total 2\n",
		"shelfkeep_isbn_conflicts_total 1\n",
		"shelfkeep_graphql_duration_seconds_count 1\n",
		"shelfkeep_graphql_duration_seconds_sum 1.500000\n",
		`shelfkeep_graphql_errors_total{code="NOT_FOUND"} 1` + "\n",
	} {
		if !strings.Contains(body, line) {
			t.Errorf("metrics output missing %q:\n%s", line, body)
		}
	}

	conflict := strings.Index(body, `code="CONFLICT"`)
	notFound := strings.Index(body, `code="NOT_FOUND"`)
	if conflict < 0 || notFound < 0 || conflict > notFound {
		t.Errorf("error codes not sorted:\n%s", body)
	}
}

func TestMetricsHandler_NoSnapshotter(t *testing.T) {
	rec := httptest.NewRecorder()
	NewMetricsHandler(nil).Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
}
