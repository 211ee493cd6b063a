package repository

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// timestampLayout is fixed-width so that text timestamps sort chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// dialect captures the differences between the SQL backends.
type dialect struct {
	name          string
	gooseDialect  string
	migrationsDir string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
	// timestamps bound as formatted text instead of time.Time
	textTime bool
	unique   func(err error) bool
}

var sqliteDialect = dialect{
	name:          "sqlite",
	gooseDialect:  "sqlite3",
	migrationsDir: "sqlite",
	textTime:      true,
	unique: func(err error) bool {
		var se *sqlite.Error
		if !errors.As(err, &se) {
			return false
		}
		if se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return true
		}
		// primary result code only, when extended codes are off
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
			strings.Contains(se.Error(), "UNIQUE")
	},
}

var postgresDialect = dialect{
	name:          "postgres",
	gooseDialect:  "postgres",
	migrationsDir: "postgres",
	numbered:      true,
	unique: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
	},
}

// rebind rewrites ? placeholders for the dialect.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// timeArg converts a timestamp into a bind argument.
func (d dialect) timeArg(t time.Time) any {
	if d.textTime {
		return t.UTC().Format(timestampLayout)
	}
	return t.UTC()
}

// timestamp scans driver time values, which arrive as time.Time, text, or bytes.
type timestamp struct {
	t *time.Time
}

var timestampLayouts = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

// Scan implements sql.Scanner.
func (ts timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*ts.t = v.UTC()
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	case nil:
		*ts.t = time.Time{}
		return nil
	default:
		return errors.New("unsupported timestamp type")
	}
}

func (ts timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*ts.t = t.UTC()
			return nil
		}
	}
	return errors.New("invalid timestamp: " + s)
}

// parseID converts an opaque ID into the integer key used by SQL backends.
func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
