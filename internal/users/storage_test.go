package users

import (
	"context"
	"errors"
	"testing"

	"github.com/PabloPavan/userdesk/internal/kvstore"
)

type backendStub struct {
	kvstore.Backend
	getFn   func(ctx context.Context, key string) ([]byte, bool, error)
	setFn   func(ctx context.Context, key string, value []byte) error
	flushFn func(ctx context.Context) error
}

func (b *backendStub) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if b.getFn != nil {
		return b.getFn(ctx, key)
	}
	return nil, false, nil
}

func (b *backendStub) Set(ctx context.Context, key string, value []byte) error {
	if b.setFn != nil {
		return b.setFn(ctx, key, value)
	}
	return nil
}

func (b *backendStub) Flush(ctx context.Context) error {
	if b.flushFn != nil {
		return b.flushFn(ctx)
	}
	return nil
}

func (b *backendStub) Driver() kvstore.Driver { return "stub" }

func TestStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewStorage(kvstore.NewMemory())

	if got := st.Get(ctx); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil collection, got %#v", got)
	}

	list := sampleUsers(3)
	st.Save(ctx, list)
	got := st.Get(ctx)
	if len(got) != 3 || got[2] != list[2] {
		t.Fatalf("unexpected stored collection: %+v", got)
	}

	st.Clear(ctx)
	if len(st.Get(ctx)) != 0 {
		t.Fatal("expected empty collection after clear")
	}
}

func TestStorageCorruptPayloadIsEmpty(t *testing.T) {
	ctx := context.Background()
	mem := kvstore.NewMemory()
	st := NewStorage(mem)

	for _, payload := range []string{`{not json`, `{"id":1}`, `"users"`, `null`} {
		if err := mem.Set(ctx, storageKey, []byte(payload)); err != nil {
			t.Fatalf("seed: %v", err)
		}
		if got := st.Get(ctx); len(got) != 0 {
			t.Fatalf("payload %s: expected empty, got %+v", payload, got)
		}
	}
}

func TestStorageClearAllWipesOtherKeys(t *testing.T) {
	ctx := context.Background()
	mem := kvstore.NewMemory()
	st := NewStorage(mem)
	st.Save(ctx, sampleUsers(1))
	_ = mem.Set(ctx, "theme", []byte(`"dark"`))

	st.ClearAll(ctx)
	if _, ok, _ := mem.Get(ctx, "theme"); ok {
		t.Fatal("clear all should remove every key")
	}
	if len(st.Get(ctx)) != 0 {
		t.Fatal("clear all should remove the collection")
	}
}

func TestStorageSwallowsBackendErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	st := NewStorage(&backendStub{
		getFn:   func(ctx context.Context, key string) ([]byte, bool, error) { return nil, false, boom },
		setFn:   func(ctx context.Context, key string, value []byte) error { return boom },
		flushFn: func(ctx context.Context) error { return boom },
	})

	st.Save(ctx, sampleUsers(2))
	st.ClearAll(ctx)
	if got := st.Get(ctx); len(got) != 0 {
		t.Fatalf("expected empty collection on backend failure, got %+v", got)
	}
}
