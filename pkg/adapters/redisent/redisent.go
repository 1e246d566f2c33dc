// Package redisent is a Redis-backed caching decorator over
// entitlement.Source, read-through with a configurable TTL and a circuit
// breaker guarding every cache read.
package redisent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ocx/grc-core/internal/apperrors"
	"github.com/ocx/grc-core/internal/resilience"
	"github.com/ocx/grc-core/pkg/entitlement"
)

// Config tunes connection and cache behavior.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

func (c *Config) applyDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "grc:entitlement:"
	}
	if c.TTL == 0 {
		c.TTL = 10 * time.Minute
	}
}

// Source wraps an underlying entitlement.Source with a Redis read-through
// cache for EntitlementsOf and RolesOf, the two calls the rule engine makes
// once per evaluated user. A circuit breaker guards every Redis read: a
// tripped breaker (or any Redis error) falls straight through to the
// underlying source rather than failing the evaluation. Cache writes and
// Invalidate call Redis directly, outside the breaker.
type Source struct {
	rdb       *redis.Client
	breaker   *resilience.Breaker
	underlying entitlement.Source
	keyPrefix string
	ttl       time.Duration
	log       *slog.Logger
}

// New connects to Redis and wraps underlying. Connection failure at
// construction time is fatal — callers that want to run without a cache
// should not call New at all and use underlying directly. breakers may be
// nil, in which case the source builds its own single-collaborator
// breaker set.
func New(cfg Config, underlying entitlement.Source, breakers *resilience.CollaboratorBreakers, log *slog.Logger) (*Source, error) {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     20,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, apperrors.Wrapf(err, apperrors.TransientExternal, "redis ping failed (%s)", cfg.Addr)
	}

	if breakers == nil {
		breakers = resilience.NewCollaboratorBreakers()
	}

	log.Info("redis entitlement cache connected", "addr", cfg.Addr, "db", cfg.DB)
	return &Source{
		rdb:        rdb,
		breaker:    breakers.EntitlementCache,
		underlying: underlying,
		keyPrefix:  cfg.KeyPrefix,
		ttl:        cfg.TTL,
		log:        log,
	}, nil
}

func (s *Source) Close() error { return s.rdb.Close() }

func (s *Source) entitlementsKey(userID string) string { return s.keyPrefix + "ent:" + userID }
func (s *Source) rolesKey(userID string) string         { return s.keyPrefix + "roles:" + userID }

// UsersInScope never caches: scope queries are deployment-wide, not
// per-user, and would need a far coarser invalidation strategy than this
// adapter provides.
func (s *Source) UsersInScope(ctx context.Context, filter entitlement.ScopeFilter) ([]string, error) {
	return s.underlying.UsersInScope(ctx, filter)
}

// EntitlementsOf serves from Redis when cached, else falls through to the
// underlying source and populates the cache.
func (s *Source) EntitlementsOf(ctx context.Context, userID string) ([]entitlement.Entitlement, error) {
	key := s.entitlementsKey(userID)

	cached, err := resilience.ExecuteWithFallback(s.breaker,
		func() ([]entitlement.Entitlement, error) { return s.readEntitlements(ctx, key) },
		func(err error) ([]entitlement.Entitlement, error) { return nil, err },
	)
	if err == nil {
		return cached, nil
	}

	ents, err := s.underlying.EntitlementsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.writeEntitlements(ctx, key, ents)
	return ents, nil
}

func (s *Source) readEntitlements(ctx context.Context, key string) ([]entitlement.Entitlement, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, apperrors.NewNotFoundError("cache miss")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TransientExternal, "redis GET failed")
	}
	var ents []entitlement.Entitlement
	if err := json.Unmarshal(data, &ents); err != nil {
		return nil, apperrors.Wrap(err, apperrors.TransientExternal, "malformed cached entitlements")
	}
	return ents, nil
}

func (s *Source) writeEntitlements(ctx context.Context, key string, ents []entitlement.Entitlement) {
	data, err := json.Marshal(ents)
	if err != nil {
		s.log.Warn("failed to marshal entitlements for cache", "error", err)
		return
	}
	if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.log.Warn("redis SET failed", "error", err)
	}
}

// RolesOf serves from Redis when cached, else falls through to the
// underlying source.
func (s *Source) RolesOf(ctx context.Context, userID string) ([]string, error) {
	key := s.rolesKey(userID)

	cached, err := resilience.ExecuteWithFallback(s.breaker,
		func() ([]string, error) { return s.readRoles(ctx, key) },
		func(err error) ([]string, error) { return nil, err },
	)
	if err == nil {
		return cached, nil
	}

	roles, err := s.underlying.RolesOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(roles); err == nil {
		if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.log.Warn("redis SET failed", "error", err)
		}
	}
	return roles, nil
}

func (s *Source) readRoles(ctx context.Context, key string) ([]string, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, apperrors.NewNotFoundError("cache miss")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TransientExternal, "redis GET failed")
	}
	var roles []string
	if err := json.Unmarshal(data, &roles); err != nil {
		return nil, apperrors.Wrap(err, apperrors.TransientExternal, "malformed cached roles")
	}
	return roles, nil
}

// CheckFirefighterAvailability never caches: availability must always
// reflect the current lock/checkout state.
func (s *Source) CheckFirefighterAvailability(ctx context.Context, firefighterID string) (entitlement.FirefighterStatus, error) {
	return s.underlying.CheckFirefighterAvailability(ctx, firefighterID)
}

// Invalidate drops the cached entitlements and roles for a user,
// called by the coordinator after a provisioning change takes effect so a
// stale cache entry doesn't mask the update for the configured TTL.
func (s *Source) Invalidate(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, s.entitlementsKey(userID), s.rolesKey(userID)).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.TransientExternal, fmt.Sprintf("failed to invalidate cache for %s", userID))
	}
	return nil
}
