package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	query := `UPDATE books SET title = ?, updated_at = ? WHERE id = ? AND user_id = ?`

	assert.Equal(t, query, sqliteDialect.rebind(query))
	assert.Equal(t,
		`UPDATE books SET title = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`,
		postgresDialect.rebind(query),
	)
}

func TestTimeArg(t *testing.T) {
	ts := time.Date(2024, 3, 5, 7, 8, 9, 123456000, time.FixedZone("X", 3600))

	assert.Equal(t, "2024-03-05T06:08:09.123456Z", sqliteDialect.timeArg(ts))
	assert.Equal(t, ts.UTC(), postgresDialect.timeArg(ts))
}

func TestTimestampScan(t *testing.T) {
	want := time.Date(2024, 3, 5, 6, 8, 9, 123456000, time.UTC)

	tests := []struct {
		name string
		src  any
		want time.Time
	}{
		{"time", want.In(time.FixedZone("X", 3600)), want},
		{"fixed width text", "2024-03-05T06:08:09.123456Z", want},
		{"bytes", []byte("2024-03-05T06:08:09.123456Z"), want},
		{"rfc3339", "2024-03-05T07:08:09.123456+01:00", want},
		{"sqlite default", "2024-03-05 06:08:09", want.Truncate(time.Second)},
		{"null", nil, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got time.Time
			require.NoError(t, timestamp{&got}.Scan(tt.src))
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}

	var got time.Time
	assert.Error(t, timestamp{&got}.Scan("yesterday"))
	assert.Error(t, timestamp{&got}.Scan(42))
}

func TestTimestampLayoutSorts(t *testing.T) {
	early := sqliteDialect.timeArg(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)).(string)
	late := sqliteDialect.timeArg(time.Date(2024, 1, 1, 10, 0, 0, 500000000, time.UTC)).(string)
	assert.Less(t, early, late)
	assert.Len(t, early, len(late))
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"1", 1, true},
		{"42", 42, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{"1.5", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseID(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, "42", formatID(42))
}

func TestPostgresUnique(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	assert.True(t, postgresDialect.unique(unique))
	assert.True(t, postgresDialect.unique(fmt.Errorf("wrapped: %w", unique)))
	assert.False(t, postgresDialect.unique(&pgconn.PgError{Code: "23503"}))
	assert.False(t, postgresDialect.unique(errors.New("boom")))
	assert.False(t, sqliteDialect.unique(errors.New("UNIQUE constraint failed")))
}
