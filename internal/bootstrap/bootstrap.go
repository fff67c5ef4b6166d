// Package bootstrap turns a Config into the store, publisher and recorder
// shared by the server and the CLI.
package bootstrap

import (
	"context"
	"fmt"
	"log"

	"mpesa_backend/internal/audit"
	"mpesa_backend/internal/config"
	"mpesa_backend/internal/events"
	"mpesa_backend/internal/repository"

	"github.com/redis/go-redis/v9"
)

func OpenStore(ctx context.Context, cfg config.Config) (repository.TransactionStore, error) {
	switch cfg.DBDriver {
	case "sqlite":
		return repository.NewSQLiteRepo(cfg.SQLiteDSN)
	case "mysql":
		return repository.OpenMySQL(cfg.MySQLDSN, cfg.Debug)
	case "mongo":
		return repository.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// NewPublisher always logs events and also sends them to Kafka when brokers
// are configured.
func NewPublisher(cfg config.Config) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.LogPublisher{}
	}
	log.Printf("publishing payment events to kafka brokers=%v", cfg.KafkaBrokers)
	return events.MultiPublisher{events.LogPublisher{}, events.NewKafkaPublisher(cfg.KafkaBrokers)}
}

// NewRecorder returns the Redis recorder when REDIS_ADDR is set. The returned
// close func releases the client.
func NewRecorder(ctx context.Context, cfg config.Config) (audit.Recorder, func() error, error) {
	if cfg.RedisAddr == "" {
		return audit.LogRecorder{}, func() error { return nil }, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	log.Printf("recording callback outcomes to redis addr=%s", cfg.RedisAddr)
	return audit.NewRedisRecorder(rdb), rdb.Close, nil
}
