package kvstore

import (
	"context"
	"errors"

	"github.com/PabloPavan/userdesk/internal/db"
	"github.com/jackc/pgx/v5"
)

const (
	sqlKVCreate = `CREATE TABLE IF NOT EXISTS kv_store (
		key TEXT PRIMARY KEY,
		payload BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

	sqlKVGet = `SELECT payload FROM kv_store WHERE key = $1`

	sqlKVUpsert = `INSERT INTO kv_store (key, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET payload = excluded.payload, updated_at = now()`

	sqlKVDelete = `DELETE FROM kv_store WHERE key = $1`

	sqlKVFlush = `DELETE FROM kv_store`
)

type Postgres struct {
	base *db.Base
}

// NewPostgres ensures the kv_store table exists.
func NewPostgres(ctx context.Context, base *db.Base) (*Postgres, error) {
	p := &Postgres{base: base}
	ctx, cancel := base.WithTimeout(ctx)
	defer cancel()
	if _, err := base.Q().Exec(ctx, sqlKVCreate); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := p.base.WithTimeout(ctx)
	defer cancel()

	var payload []byte
	err := p.base.Q().QueryRow(ctx, sqlKVGet, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := p.base.WithTimeout(ctx)
	defer cancel()
	_, err := p.base.Q().Exec(ctx, sqlKVUpsert, key, value)
	return err
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	ctx, cancel := p.base.WithTimeout(ctx)
	defer cancel()
	_, err := p.base.Q().Exec(ctx, sqlKVDelete, key)
	return err
}

func (p *Postgres) Flush(ctx context.Context) error {
	ctx, cancel := p.base.WithTimeout(ctx)
	defer cancel()
	_, err := p.base.Q().Exec(ctx, sqlKVFlush)
	return err
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.base.Ping(ctx)
}

func (p *Postgres) Driver() Driver { return DriverPostgres }
