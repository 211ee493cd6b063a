package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shelfkeep/shelfkeep/internal/auth"
	"github.com/shelfkeep/shelfkeep/internal/metrics"
	"github.com/shelfkeep/shelfkeep/internal/model"
	"github.com/shelfkeep/shelfkeep/internal/repository"
)

// UserCache caches resolved users by email.
// GetUser returns nil, nil on a miss.
type UserCache interface {
	GetUser(ctx context.Context, email string) (*model.User, error)
	SetUser(ctx context.Context, user *model.User) error
}

// IdentityService maps a verified external identity to a local user.
type IdentityService struct {
	store   repository.Store
	cache   UserCache
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewIdentityService creates a new IdentityService. cache may be nil.
func NewIdentityService(store repository.Store, cache UserCache, recorder metrics.Recorder, logger *slog.Logger) *IdentityService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityService{
		store:   store,
		cache:   cache,
		metrics: recorder,
		logger:  logger,
	}
}

// Resolve returns the local user for identity, creating it on first sight.
// An existing user is returned unchanged; the name is never refreshed.
func (s *IdentityService) Resolve(ctx context.Context, identity *model.Identity) (*model.User, error) {
	if !identity.HasEmail() {
		return nil, ErrUnauthenticated
	}
	email := identity.Email

	if user := s.cached(ctx, email); user != nil {
		return user, nil
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		s.remember(ctx, user)
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	var name *string
	if identity.Name != "" {
		n := identity.Name
		name = &n
	}

	user, err = s.store.CreateUser(ctx, &model.User{
		Email:        email,
		Name:         name,
		PasswordHash: auth.ExternalPasswordMarker,
	})
	switch {
	case err == nil:
		s.metrics.IncUserCreated()
	case errors.Is(err, repository.ErrEmailExists):
		// Lost the race against a concurrent first request; use the winner.
		user, err = s.store.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read user: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.remember(ctx, user)
	return user, nil
}

func (s *IdentityService) cached(ctx context.Context, email string) *model.User {
	if s.cache == nil {
		return nil
	}

	user, err := s.cache.GetUser(ctx, email)
	if err != nil {
		s.logger.Warn("identity cache read failed", "error", err)
	}
	if user == nil {
		s.metrics.IncIdentityCacheMiss()
		return nil
	}

	s.metrics.IncIdentityCacheHit()
	return user
}

func (s *IdentityService) remember(ctx context.Context, user *model.User) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetUser(ctx, user); err != nil {
		// Log but don't fail
		s.logger.Warn("identity cache write failed", "error", err)
	}
}
