package users

import (
	"context"
	"encoding/json"

	"github.com/PabloPavan/userdesk/internal/kvstore"
	"github.com/PabloPavan/userdesk/internal/telemetry"
)

const storageKey = "users"

// Storage persists the working collection under a single key. Backend
// failures are logged and swallowed; callers always get a usable result.
type Storage struct {
	backend kvstore.Backend
}

func NewStorage(backend kvstore.Backend) *Storage {
	return &Storage{backend: backend}
}

func (s *Storage) Backend() kvstore.Backend {
	return s.backend
}

// Get returns the stored collection, or an empty one when the key is
// absent, unreadable or not a JSON array of records.
func (s *Storage) Get(ctx context.Context) []User {
	raw, ok, err := s.backend.Get(ctx, storageKey)
	if err != nil {
		s.logFailure(ctx, "get", err)
		return []User{}
	}
	if !ok {
		return []User{}
	}
	var list []User
	if err := json.Unmarshal(raw, &list); err != nil {
		telemetry.LogWarn(ctx, "stored users payload is corrupt",
			telemetry.LogString("event", "users.storage.corrupt"),
			telemetry.LogString("store.driver", string(s.backend.Driver())),
			telemetry.LogErr(err),
		)
		return []User{}
	}
	if list == nil {
		return []User{}
	}
	return list
}

func (s *Storage) Save(ctx context.Context, list []User) {
	if list == nil {
		list = []User{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		s.logFailure(ctx, "encode", err)
		return
	}
	if err := s.backend.Set(ctx, storageKey, raw); err != nil {
		s.logFailure(ctx, "set", err)
	}
}

// Clear removes only the collection key.
func (s *Storage) Clear(ctx context.Context) {
	if err := s.backend.Delete(ctx, storageKey); err != nil {
		s.logFailure(ctx, "delete", err)
	}
}

// ClearAll wipes every key the backend owns.
func (s *Storage) ClearAll(ctx context.Context) {
	if err := s.backend.Flush(ctx); err != nil {
		s.logFailure(ctx, "flush", err)
	}
}

func (s *Storage) logFailure(ctx context.Context, op string, err error) {
	telemetry.LogError(ctx, "users storage operation failed",
		telemetry.LogString("event", "users.storage.failed"),
		telemetry.LogString("store.op", op),
		telemetry.LogString("store.driver", string(s.backend.Driver())),
		telemetry.LogErr(err),
	)
}
