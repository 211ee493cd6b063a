package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shelfkeep/shelfkeep/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// Clock is a deterministic clock that advances by Step on every call.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// NewClock creates a clock starting at a fixed UTC instant.
func NewClock(step time.Duration) *Clock {
	return &Clock{
		now:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Step: step,
	}
}

// Now returns the current instant and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.Step)
	return t
}

// ============================================================================
// Test Data Factories
// ============================================================================

var seq atomic.Int64

// NewTestBook creates an unsaved book with a unique ISBN.
func NewTestBook(t testing.TB, ownerID, title string) *model.Book {
	t.Helper()
	return &model.Book{
		Title:         title,
		Author:        "Test Author",
		ISBN:          UniqueISBN("978"),
		PublishedDate: "2020-01-01",
		OwnerID:       ownerID,
	}
}

// NewTestIdentity creates a verified identity for email.
func NewTestIdentity(email string) *model.Identity {
	return &model.Identity{
		Subject: "sub-" + email,
		Email:   email,
	}
}

// UniqueISBN generates an ISBN-shaped string that is unique within the process.
func UniqueISBN(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano()%1_000_000, seq.Add(1))
}

// UniqueEmail generates a unique email address for tests.
func UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, seq.Add(1))
}
