package kvstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/PabloPavan/userdesk/internal/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// tableStub answers the kv_store statements from a map.
type tableStub struct {
	mu      sync.Mutex
	rows    map[string][]byte
	created bool
	execErr error
}

func newTableStub() *tableStub {
	return &tableStub{rows: map[string][]byte{}}
}

func (s *tableStub) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.execErr != nil {
		return pgconn.CommandTag{}, s.execErr
	}
	switch sql {
	case sqlKVCreate:
		s.created = true
	case sqlKVUpsert:
		s.rows[args[0].(string)] = append([]byte(nil), args[1].([]byte)...)
	case sqlKVDelete:
		delete(s.rows, args[0].(string))
	case sqlKVFlush:
		s.rows = map[string][]byte{}
	default:
		return pgconn.CommandTag{}, errors.New("unexpected statement")
	}
	return pgconn.CommandTag{}, nil
}

func (s *tableStub) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.rows[args[0].(string)]
	return rowStub{payload: payload, ok: ok}
}

type rowStub struct {
	payload []byte
	ok      bool
}

func (r rowStub) Scan(dest ...any) error {
	if !r.ok {
		return pgx.ErrNoRows
	}
	*(dest[0].(*[]byte)) = r.payload
	return nil
}

func TestPostgresBackend(t *testing.T) {
	stub := newTableStub()
	p, err := NewPostgres(context.Background(), db.NewBaseWithQueryer(stub, 0))
	if err != nil {
		t.Fatalf("new postgres: %v", err)
	}
	if !stub.created {
		t.Fatal("expected kv_store table to be created")
	}
	if p.Driver() != DriverPostgres {
		t.Fatalf("unexpected driver %q", p.Driver())
	}
	exerciseBackend(t, p)
}

func TestPostgresCreateFailure(t *testing.T) {
	stub := newTableStub()
	stub.execErr = errors.New("permission denied")
	if _, err := NewPostgres(context.Background(), db.NewBaseWithQueryer(stub, 0)); err == nil {
		t.Fatal("expected error when the table cannot be created")
	}
}
