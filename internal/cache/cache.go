// Package cache is a Redis-backed store for finished analysis reports.
// Identical position+limit searches are served from Redis instead of
// re-running the engine.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kapu/chess-insight/internal/analysis"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultTTL = 6 * time.Hour

// Store implements analysis.Cache on Redis with JSON payloads.
type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New connects to redisURL and pings the server before returning.
func New(redisURL string, ttl time.Duration, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("redis url required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(rdb, ttl, logger), nil
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{rdb: rdb, ttl: ttl, logger: logger}
}

func (s *Store) Get(ctx context.Context, key string) (analysis.Report, bool, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return analysis.Report{}, false, nil
	}
	if err != nil {
		return analysis.Report{}, false, err
	}
	var report analysis.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		s.logger.Warn("dropping corrupt cache entry", zap.String("key", key), zap.Error(err))
		_ = s.rdb.Del(ctx, key).Err()
		return analysis.Report{}, false, nil
	}
	return report, true, nil
}

func (s *Store) Put(ctx context.Context, key string, report analysis.Report) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, raw, s.ttl).Err()
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
