package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// DefaultStream is the Redis stream receipts are appended to.
const DefaultStream = "trumpproof:receipts"

// RedisStreamSink appends receipts to a Redis stream with XADD.
type RedisStreamSink struct {
	client *redis.Client
	stream string
}

// NewRedisStreamSink creates a sink backed by Redis.
func NewRedisStreamSink(addr, password string, db int, stream string) *RedisStreamSink {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStreamSinkFromClient(rdb, stream)
}

// NewRedisStreamSinkFromClient wraps an existing client.
func NewRedisStreamSinkFromClient(client *redis.Client, stream string) *RedisStreamSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamSink{client: client, stream: stream}
}

// Ping checks the connection.
func (s *RedisStreamSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStreamSink) Write(ctx context.Context, r *receipts.Receipt) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("redis sink encode: %w", err)
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"receipt_type": r.Type,
			"payload_hash": r.PayloadHash,
			"body":         string(body),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis sink xadd: %w", err)
	}
	return nil
}

// ReadAll returns every receipt in the stream in append order.
func (s *RedisStreamSink) ReadAll(ctx context.Context) ([]*receipts.Receipt, error) {
	msgs, err := s.client.XRange(ctx, s.stream, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("redis sink xrange: %w", err)
	}
	out := make([]*receipts.Receipt, 0, len(msgs))
	for _, m := range msgs {
		body, ok := m.Values["body"].(string)
		if !ok {
			return nil, fmt.Errorf("redis sink: message %s has no body", m.ID)
		}
		r, err := decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RedisStreamSink) Close() error {
	return s.client.Close()
}
