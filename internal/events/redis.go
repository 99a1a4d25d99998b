package events

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/emilythestrangee/social-feed/backend/internal/logger"
)

// RedisProducer appends to one Redis stream per topic. A stream is totally
// ordered, so per-key order holds.
type RedisProducer struct {
	rdb    *goredis.Client
	maxLen int64
	log    *logger.Logger
}

func NewRedisProducer(addr string, maxLen int64, log *logger.Logger) (*RedisProducer, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisProducer{rdb: rdb, maxLen: maxLen, log: log.With("service", "RedisProducer")}, nil
}

func (p *RedisProducer) Send(ctx context.Context, topic, key string, value []byte) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("redis producer not initialized")
	}
	return p.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: topic,
		MaxLen: p.maxLen,
		Approx: p.maxLen > 0,
		Values: map[string]interface{}{
			"key":   key,
			"value": value,
		},
	}).Err()
}

func (p *RedisProducer) Close() error {
	p.log.Info("Redis producer closing")
	return p.rdb.Close()
}
