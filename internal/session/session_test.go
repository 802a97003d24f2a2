package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PabloPavan/userdesk/internal/users"
)

func TestManagerEnsureCreatesAndReuses(t *testing.T) {
	ctx := context.Background()
	mgr := &Manager{Store: NewMemoryStore(), TTL: time.Hour, IDGenerator: func() string { return "ses_test" }}

	sess, created, err := mgr.Ensure(ctx, "")
	if err != nil || !created {
		t.Fatalf("expected new session, created=%v err=%v", created, err)
	}
	if sess.ID != "ses_test" || sess.View != users.NewViewState() {
		t.Fatalf("unexpected session: %+v", sess)
	}

	sess.View.SetQuery("ana")
	if err := mgr.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	again, created, err := mgr.Ensure(ctx, "ses_test")
	if err != nil || created {
		t.Fatalf("expected existing session, created=%v err=%v", created, err)
	}
	if again.View.Query != "ana" || again.View.Sync != users.Stale {
		t.Fatalf("view not persisted: %+v", again.View)
	}
}

func TestManagerEnsureReplacesUnknownID(t *testing.T) {
	mgr := &Manager{Store: NewMemoryStore(), TTL: time.Hour}
	sess, created, err := mgr.Ensure(context.Background(), "ses_gone")
	if err != nil || !created {
		t.Fatalf("expected replacement session, created=%v err=%v", created, err)
	}
	if sess.ID == "ses_gone" {
		t.Fatal("unknown id must not be reused")
	}
}

func TestManagerMaxAge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	mgr := &Manager{Store: store, TTL: time.Hour, MaxAge: time.Minute}

	old := Session{ID: "ses_old", CreatedAt: time.Now().Add(-2 * time.Minute), ExpiresAt: time.Now().Add(time.Hour)}
	_ = store.Set(ctx, old.ID, old, time.Hour)

	if _, err := mgr.Get(ctx, old.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	_ = store.Set(ctx, "a", Session{ID: "a"}, time.Minute)
	if _, err := store.Get(ctx, "a"); err != nil {
		t.Fatalf("get: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestMiddlewareIssuesCookieOnce(t *testing.T) {
	mgr := &Manager{Store: NewMemoryStore(), TTL: time.Hour, RefreshBefore: 10 * time.Minute}
	cfg := CookieConfig{}

	var seen string
	h := Middleware(mgr, cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := FromContext(r.Context())
		if !ok {
			t.Fatal("missing session in context")
		}
		seen = sess.ID
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/view", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != DefaultCookieName || cookies[0].Value != seen {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/view", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	first := seen
	h.ServeHTTP(rec, req)
	if seen != first {
		t.Fatalf("expected session reuse, got %s then %s", first, seen)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("no cookie expected outside the refresh window")
	}
}
