package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shelfkeep/shelfkeep/internal/auth"
	"github.com/shelfkeep/shelfkeep/internal/model"
)

// identityCachePrefix is the Redis key prefix for resolved users.
const identityCachePrefix = "identity:user:"

// CachedUser is the user row stored in Redis. The password hash is never cached.
type CachedUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// identityKey maps an email to its cache key without storing the address in clear.
func identityKey(email string) string {
	return identityCachePrefix + auth.QuickHash(email)
}

// GetUser retrieves the cached user for an email.
// Returns nil if not found (cache miss).
func (c *Cache) GetUser(ctx context.Context, email string) (*model.User, error) {
	data, err := c.client.Get(ctx, identityKey(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached user: %w", err)
	}

	user, ok := decodeUser(data, email)
	if !ok {
		// Corrupted cache entry - treat as miss
		return nil, nil
	}
	return user, nil
}

// SetUser caches a resolved user.
func (c *Cache) SetUser(ctx context.Context, user *model.User) error {
	data, err := encodeUser(user)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, identityKey(user.Email), data, c.ttl).Err()
}

func encodeUser(user *model.User) ([]byte, error) {
	data, err := json.Marshal(CachedUser{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal cached user: %w", err)
	}
	return data, nil
}

// decodeUser rejects entries whose email does not match the lookup key.
func decodeUser(data []byte, email string) (*model.User, bool) {
	var cached CachedUser
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}
	if cached.ID == "" || cached.Email != email {
		return nil, false
	}
	return &model.User{
		ID:        cached.ID,
		Email:     cached.Email,
		Name:      cached.Name,
		CreatedAt: cached.CreatedAt,
	}, true
}
