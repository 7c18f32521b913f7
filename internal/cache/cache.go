package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultTTL = 24 * time.Hour

// DraftCache remembers generated drafts so identical requests skip the model.
type DraftCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, draft string) error
	Invalidate(ctx context.Context, transcriptionID string) error
	Ping(ctx context.Context) error
}

// Key hashes the inputs that determine a draft.
func Key(transcriptionID, platform, tone string) string {
	sum := sha256.Sum256([]byte(transcriptionID + "|" + strings.ToLower(platform) + "|" + strings.ToLower(tone)))
	return "draft:" + transcriptionID + ":" + hex.EncodeToString(sum[:])
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ DraftCache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get: %w", err)
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, draft string) error {
	if err := c.client.Set(ctx, key, draft, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate drops every cached draft of a transcription, e.g. after its text
// was edited.
func (c *RedisCache) Invalidate(ctx context.Context, transcriptionID string) error {
	iter := c.client.Scan(ctx, 0, "draft:"+transcriptionID+":*", 0).Iterator()
	pipe := c.client.Pipeline()
	n := 0
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		n++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan: %w", err)
	}
	if n == 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	c.logger.Debug("Invalidated cached drafts", zap.String("transcription_id", transcriptionID), zap.Int("count", n))
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Nop is used when no Redis address is configured.
type Nop struct{}

var _ DraftCache = Nop{}

func (Nop) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (Nop) Set(context.Context, string, string) error { return nil }
func (Nop) Invalidate(context.Context, string) error { return nil }
func (Nop) Ping(context.Context) error { return nil }
