package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis publisher defaults.
const (
	defaultStream       = "usage:records"
	defaultStreamMaxLen = 100000
)

// RedisConfig holds connection settings for the redis sink.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Stream is the stream key records are appended to.
	Stream string

	// MaxLen caps the stream length (approximate trimming).
	MaxLen int64
}

// RedisPublisher appends usage records to a redis stream for external
// billing and analytics consumers. It is write-only: reading back is the
// consumer's job.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

var _ Sink = (*RedisPublisher)(nil)

// NewRedisPublisher connects to redis and verifies the connection.
func NewRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	if cfg.Stream == "" {
		cfg.Stream = defaultStream
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = defaultStreamMaxLen
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisPublisher{
		client: client,
		stream: cfg.Stream,
		maxLen: cfg.MaxLen,
	}, nil
}

// Record implements Sink.
func (p *RedisPublisher) Record(ctx context.Context, rec *Record) error {
	normalize(rec)

	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"id":                rec.ID,
			"request_id":        rec.RequestID,
			"caller":            rec.Caller,
			"provider":          rec.Provider,
			"model":             rec.Model,
			"prompt_tokens":     rec.PromptTokens,
			"completion_tokens": rec.CompletionTokens,
			"total_tokens":      rec.TotalTokens,
			"cost":              rec.Cost,
			"latency_ns":        int64(rec.Latency),
			"success":           rec.Success,
			"error":             rec.Error,
			"created_at":        rec.CreatedAt.Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish usage record: %w", err)
	}
	return nil
}

// Close closes the redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
