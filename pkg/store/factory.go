package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	_ "github.com/lib/pq"

	"github.com/northstaraokeystone/trumpproof/pkg/config"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// Sink kinds accepted by Open.
const (
	KindStdout   = "stdout"
	KindFile     = "file"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
	KindRedis    = "redis"
	KindKafka    = "kafka"
)

// Open builds the sink selected by cfg.Kind. A comma-separated kind fans
// out to every named sink. The returned closer releases all of them.
func Open(ctx context.Context, cfg config.SinkConfig, stdout io.Writer) (receipts.Sink, func() error, error) {
	kinds := strings.Split(cfg.Kind, ",")
	var (
		sinks   receipts.MultiSink
		closers []io.Closer
	)
	closeAll := func() error {
		var first error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	for _, kind := range kinds {
		s, c, err := openOne(ctx, strings.TrimSpace(kind), cfg, stdout)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, s)
		if c != nil {
			closers = append(closers, c)
		}
	}
	if len(sinks) == 1 {
		return sinks[0], closeAll, nil
	}
	return sinks, closeAll, nil
}

func openOne(ctx context.Context, kind string, cfg config.SinkConfig, stdout io.Writer) (receipts.Sink, io.Closer, error) {
	switch kind {
	case "", KindStdout:
		return receipts.NewWriterSink(stdout), nil, nil
	case KindFile:
		s, err := OpenFileSink(cfg.FilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open file sink: %w", err)
		}
		return s, s, nil
	case KindSQLite:
		s, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case KindPostgres:
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		s := NewPostgresReceiptStore(db)
		if err := s.Init(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("init postgres: %w", err)
		}
		return s, db, nil
	case KindRedis:
		s := NewRedisStreamSink(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisStream)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return s, s, nil
	case KindKafka:
		s, err := NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink kind %q", kind)
	}
}
