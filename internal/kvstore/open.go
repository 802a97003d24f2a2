package kvstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/PabloPavan/userdesk/internal/db"
	"github.com/redis/go-redis/v9"
)

// Config selects and configures a backend. Only the fields of the chosen
// driver are read.
type Config struct {
	Driver     Driver
	Prefix     string
	Redis      *redis.Client
	Postgres   *db.Base
	SQLitePath string
	S3         S3Config
}

// Open builds the backend named by cfg.Driver (default memory).
func Open(ctx context.Context, cfg Config) (Backend, error) {
	driver := Driver(strings.ToLower(strings.TrimSpace(string(cfg.Driver))))
	if driver == "" {
		driver = DriverMemory
	}
	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis client required for %s driver", driver)
		}
		return NewRedis(cfg.Redis, cfg.Prefix), nil
	case DriverPostgres:
		if cfg.Postgres == nil {
			return nil, fmt.Errorf("postgres base required for %s driver", driver)
		}
		return NewPostgres(ctx, cfg.Postgres)
	case DriverSQLite:
		return NewSQLite(ctx, cfg.SQLitePath)
	case DriverS3:
		s3cfg := cfg.S3
		if s3cfg.Prefix == "" {
			s3cfg.Prefix = strings.ReplaceAll(cfg.Prefix, ":", "/")
		}
		return NewS3(ctx, s3cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
