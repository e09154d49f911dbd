package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService orchestrates cache operations and related metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false, duration)
		}
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		if s.logger != nil {
			s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false, err
	}
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(true, duration)
	}
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	if s.metrics != nil {
		s.metrics.ObserveCacheWrite(time.Since(start))
	}
	if err != nil && s.logger != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		if s.logger != nil {
			s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		}
		return err
	}
	return nil
}

const sessionMirrorPrefix = "session:"

// SessionMirror replicates editing-session state into the cache so a
// reloaded UI can recover its context. It satisfies the lifecycle service's
// mirror port; a disabled cache makes every operation a no-op.
type SessionMirror struct {
	cache *CacheService
	ttl   time.Duration
}

// NewSessionMirror builds the mirror with the given entry TTL.
func NewSessionMirror(cache *CacheService, ttl time.Duration) *SessionMirror {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionMirror{cache: cache, ttl: ttl}
}

// Mirror writes the session state under its id.
func (m *SessionMirror) Mirror(ctx context.Context, state *SessionState) error {
	if m == nil || !m.cache.Enabled() || state == nil {
		return nil
	}
	return m.cache.Set(ctx, sessionMirrorPrefix+state.SessionID, state, m.ttl)
}

// Drop removes a mirrored session.
func (m *SessionMirror) Drop(ctx context.Context, sessionID string) error {
	if m == nil || !m.cache.Enabled() {
		return nil
	}
	return m.cache.repo.Delete(ctx, sessionMirrorPrefix+sessionID)
}

// Restore fetches a mirrored session state, reporting whether it existed.
func (m *SessionMirror) Restore(ctx context.Context, sessionID string) (*SessionState, bool, error) {
	if m == nil || !m.cache.Enabled() {
		return nil, false, nil
	}
	var state SessionState
	hit, err := m.cache.Get(ctx, sessionMirrorPrefix+sessionID, &state)
	if err != nil || !hit {
		return nil, false, err
	}
	return &state, true, nil
}
