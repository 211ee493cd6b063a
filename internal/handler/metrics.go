package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/shelfkeep/shelfkeep/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "shelfkeep_books_created_total %d\n", snap.BooksCreated)
	writeMetric(w, "shelfkeep_books_updated_total %d\n", snap.BooksUpdated)
	writeMetric(w, "shelfkeep_books_deleted_total %d\n", snap.BooksDeleted)
	writeMetric(w, "shelfkeep_isbn_conflicts_total %d\n", snap.ISBNConflicts)

	writeMetric(w, "shelfkeep_users_created_total %d\n", snap.UsersCreated)
	writeMetric(w, "shelfkeep_identity_cache_hits_total %d\n", snap.IdentityCacheHits)
	writeMetric(w, "shelfkeep_identity_cache_misses_total %d\n", snap.IdentityCacheMisses)

	writeMetric(w, "shelfkeep_graphql_duration_seconds_count %d\n", snap.GraphQLRequests)
	writeMetric(w, "shelfkeep_graphql_duration_seconds_sum %.6f\n", float64(snap.GraphQLDurationNs)/1e9)

	codes := make([]string, 0, len(snap.GraphQLErrorsByCode))
	for code := range snap.GraphQLErrorsByCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		writeMetric(w, "shelfkeep_graphql_errors_total{code=%q} %d\n", code, snap.GraphQLErrorsByCode[code])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
