package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queryer is the statement surface the key-value table needs.
type Queryer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Base bounds every statement by timeout and routes it through the
// instrumented queryer.
type Base struct {
	pool    *pgxpool.Pool
	q       Queryer
	timeout time.Duration
}

func NewBase(pool *pgxpool.Pool, timeout time.Duration) *Base {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Base{
		pool:    pool,
		timeout: timeout,
	}
}

func (b *Base) Q() Queryer {
	if b.q != nil {
		return b.q
	}
	return instrumentedQueryer{q: b.pool}
}

// NewBaseWithQueryer wraps q in the same instrumentation as the pool. Ping
// is a no-op without a pool.
func NewBaseWithQueryer(q Queryer, timeout time.Duration) *Base {
	b := NewBase(nil, timeout)
	b.q = instrumentedQueryer{q: q}
	return b
}

func (b *Base) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

func (b *Base) Ping(ctx context.Context) error {
	if b.pool == nil {
		return nil
	}
	ctx, cancel := b.WithTimeout(ctx)
	defer cancel()
	return b.pool.Ping(ctx)
}
