// Package kvstore provides the durable key-value backends behind the
// users persistence adapter. Every backend stores opaque byte payloads
// under string keys, mirroring a browser's local storage.
package kvstore

import (
	"context"
	"errors"
)

// Driver identifies a backend implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverRedis    Driver = "redis"
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
	DriverS3       Driver = "s3"
)

// ErrUnknownDriver is returned by Open for unsupported driver names.
var ErrUnknownDriver = errors.New("kvstore: unknown driver")

// Backend is the minimal key-value surface the persistence adapter needs.
// Get reports ok=false for an absent key; that is not an error.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Flush removes every key owned by the backend.
	Flush(ctx context.Context) error
	Ping(ctx context.Context) error
	Driver() Driver
}
