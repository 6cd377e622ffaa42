package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cardledger/internal/domain"
	"cardledger/pkg/cache"
	"cardledger/pkg/logger"
	"cardledger/pkg/metrics"
)

// CachedUserService puts a read-through cache in front of GetUserByID.
// Mutations go to the wrapped service first and then drop the cached entry.
// Cache failures never fail a request.
type CachedUserService struct {
	userService domain.UserService
	cache       cache.Cache
	ttl         time.Duration
	logger      logger.Logger
}

func NewCachedUserService(userService domain.UserService, c cache.Cache, ttl time.Duration, logger logger.Logger) *CachedUserService {
	return &CachedUserService{
		userService: userService,
		cache:       c,
		ttl:         ttl,
		logger:      logger,
	}
}

func (s *CachedUserService) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	key := cache.UserCacheKey(id)

	var cached domain.User
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		metrics.RecordCacheHit()
		return &cached, nil
	}
	metrics.RecordCacheMiss()
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "User cache read failed, reading from store", map[string]interface{}{"user_id": id, "error": err.Error()})
	}

	user, err := s.userService.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, user, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "User cache write failed", map[string]interface{}{"user_id": id, "error": err.Error()})
	}
	return user, nil
}

func (s *CachedUserService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.userService.ListUsers(ctx)
}

func (s *CachedUserService) CreateUser(ctx context.Context, in domain.UserInput) (*domain.User, error) {
	return s.userService.CreateUser(ctx, in)
}

func (s *CachedUserService) UpdateUser(ctx context.Context, id int64, in domain.UserInput) (*domain.User, error) {
	user, err := s.userService.UpdateUser(ctx, id, in)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return user, nil
}

func (s *CachedUserService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.userService.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *CachedUserService) invalidate(ctx context.Context, id int64) {
	if err := s.cache.Delete(ctx, cache.UserCacheKey(id)); err != nil {
		s.logger.WarnContext(ctx, "User cache invalidation failed", map[string]interface{}{"user_id": id, "error": err.Error()})
	}
}

// WarmUp preloads up to limit users, lowest ids first, and reports how many
// entries were written. Individual write failures are logged and skipped.
func (s *CachedUserService) WarmUp(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}

	users, err := s.userService.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("warm up user cache: %w", err)
	}
	if len(users) > limit {
		users = users[:limit]
	}

	warmed := 0
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return warmed, err
		}
		if err := s.cache.Set(ctx, cache.UserCacheKey(user.ID), user, s.ttl); err != nil {
			s.logger.WarnContext(ctx, "User cache warm-up write failed", map[string]interface{}{"user_id": user.ID, "error": err.Error()})
			continue
		}
		warmed++
	}

	s.logger.InfoContext(ctx, "User cache warmed up", map[string]interface{}{"users": warmed, "limit": limit})
	return warmed, nil
}
