// Package cache stores page extraction records so that re-processing a page
// image with the same bytes skips the OCR and caption calls.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Lllllllleong/docsummaryflow/internal/config"
	"github.com/Lllllllleong/docsummaryflow/internal/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements extractor.Cache on Redis.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg config.CacheConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisStoreWithClient(client, cfg.Prefix, cfg.TTL), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (models.ExtractionRecord, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.ExtractionRecord{}, false, nil
	}
	if err != nil {
		return models.ExtractionRecord{}, false, fmt.Errorf("redis get: %w", err)
	}
	var rec models.ExtractionRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return models.ExtractionRecord{}, false, fmt.Errorf("decode cached record: %w", err)
	}
	return rec, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, rec models.ExtractionRecord) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, val, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStore is an in-process extractor.Cache. Records expire after the
// configured TTL and the least recently used record is evicted once the
// store holds its maximum number of entries.
type MemoryStore struct {
	records *expirable.LRU[string, models.ExtractionRecord]
}

// NewMemoryStore creates a MemoryStore holding at most size records. A
// non-positive ttl disables expiry.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if size <= 0 {
		size = 1
	}
	return &MemoryStore{records: expirable.NewLRU[string, models.ExtractionRecord](size, nil, ttl)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (models.ExtractionRecord, bool, error) {
	rec, ok := m.records.Get(key)
	return rec, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, rec models.ExtractionRecord) error {
	m.records.Add(key, rec)
	return nil
}

// Len reports the number of records currently held.
func (m *MemoryStore) Len() int {
	return m.records.Len()
}
