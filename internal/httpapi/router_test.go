package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PabloPavan/userdesk/internal/kvstore"
	"github.com/PabloPavan/userdesk/internal/ratelimit"
	"github.com/PabloPavan/userdesk/internal/session"
	"github.com/PabloPavan/userdesk/internal/telemetry"
	"github.com/PabloPavan/userdesk/internal/users"
)

type sourceStub struct {
	fetchFn func(ctx context.Context) ([]users.RemoteUser, error)
}

func (s *sourceStub) FetchAll(ctx context.Context) ([]users.RemoteUser, error) {
	if s.fetchFn != nil {
		return s.fetchFn(ctx)
	}
	return []users.RemoteUser{}, nil
}

type testEnv struct {
	server *httptest.Server
	client *http.Client
	svc    *users.Service
}

func remoteFixture(n int) []users.RemoteUser {
	out := make([]users.RemoteUser, 0, n)
	for i := 1; i <= n; i++ {
		g, s := "male", "active"
		if i%2 == 0 {
			g, s = "female", "inactive"
		}
		out = append(out, users.RemoteUser{
			ID:     int64(i),
			Name:   fmt.Sprintf("User %c", 'A'+rune(i-1)),
			Email:  fmt.Sprintf("user%d@example.com", i),
			Gender: g,
			Status: s,
		})
	}
	return out
}

func newTestEnv(t *testing.T, n int, limiter RateLimiter) *testEnv {
	t.Helper()

	backend := kvstore.NewMemory()
	metrics := telemetry.NewUsersMetrics()
	svc, err := users.NewService(users.ServiceConfig{
		Source: &sourceStub{fetchFn: func(ctx context.Context) ([]users.RemoteUser, error) {
			return remoteFixture(n), nil
		}},
		Storage: users.NewStorage(backend),
		Metrics: metrics,
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	if _, err := svc.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	sessions := &session.Manager{Store: session.NewMemoryStore(), TTL: time.Hour, RefreshBefore: 10 * time.Minute}
	cookie := session.CookieConfig{}

	app := &App{
		Health:  &HealthHandler{Store: backend, Driver: string(backend.Driver()), Loading: svc.Loading},
		Users:   &UsersHandler{Service: svc, Limiter: limiter, Sessions: sessions},
		View:    &ViewHandler{Service: svc, Selection: svc.Selection, Sessions: sessions},
		Storage: &StorageHandler{Service: svc, Limiter: limiter, Sessions: sessions, Cookie: cookie},
		Session: session.Middleware(sessions, cookie),
		Metrics: metrics.Handler(),
	}

	srv := httptest.NewServer(NewRouter(app))
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	return &testEnv{server: srv, client: &http.Client{Jar: jar}, svc: svc}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: expected %d, got %d", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 1, nil)
	resp := env.do(t, http.MethodGet, "/health", nil)
	expectStatus(t, resp, http.StatusOK)
	body := decode[map[string]any](t, resp)
	if body["store"] != "ok" || body["driver"] != "memory" {
		t.Fatalf("unexpected health: %v", body)
	}
}

func TestListUsersPaginates(t *testing.T) {
	env := newTestEnv(t, 12, nil)

	resp := env.do(t, http.MethodGet, "/v1/users?page=2", nil)
	expectStatus(t, resp, http.StatusOK)
	res := decode[users.ListResult](t, resp)
	if len(res.Items) != 2 || res.TotalPages != 2 || res.Page != 2 {
		t.Fatalf("unexpected page: %+v", res)
	}

	resp = env.do(t, http.MethodGet, "/v1/users?gender=mujer&sort=id&order=desc", nil)
	res = decode[users.ListResult](t, resp)
	if res.TotalResults != 6 || res.Items[0].ID != 12 {
		t.Fatalf("unexpected filtered list: %+v", res)
	}

	resp = env.do(t, http.MethodGet, "/v1/users?sort=age", nil)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestCreateUpdateDelete(t *testing.T) {
	env := newTestEnv(t, 3, nil)

	resp := env.do(t, http.MethodPost, "/v1/users", UserFormDTO{Name: "Ana", Email: "ana@x.com", Gender: "mujer", Status: "activo"})
	expectStatus(t, resp, http.StatusCreated)
	created := decode[users.User](t, resp)
	if created.ID != 4 {
		t.Fatalf("expected id 4, got %d", created.ID)
	}

	resp = env.do(t, http.MethodPost, "/v1/users", UserFormDTO{Name: "John123", Email: "ANA@X.COM", Gender: "x", Status: "activo"})
	expectStatus(t, resp, http.StatusBadRequest)
	verr := decode[validationResponse](t, resp)
	if verr.Fields[users.FieldNameName] != users.ReasonInvalidChars ||
		verr.Fields[users.FieldNameEmail] != users.ReasonDuplicate ||
		verr.Fields[users.FieldNameGender] != users.ReasonInvalid {
		t.Fatalf("unexpected fields: %v", verr.Fields)
	}

	resp = env.do(t, http.MethodPut, "/v1/users/4", UserFormDTO{Name: "Ana María", Email: "ana@x.com", Gender: "mujer", Status: "inactivo"})
	expectStatus(t, resp, http.StatusOK)
	if u := decode[users.User](t, resp); u.Status != users.StatusInactive {
		t.Fatalf("unexpected update: %+v", u)
	}

	resp = env.do(t, http.MethodPut, "/v1/users/99", UserFormDTO{Name: "Nadie", Email: "n@x.com", Gender: "mujer", Status: "activo"})
	expectStatus(t, resp, http.StatusNoContent)

	resp = env.do(t, http.MethodDelete, "/v1/users/4", nil)
	expectStatus(t, resp, http.StatusPreconditionRequired)

	resp = env.do(t, http.MethodDelete, "/v1/users/4?confirm=true", nil)
	expectStatus(t, resp, http.StatusNoContent)

	resp = env.do(t, http.MethodGet, "/v1/users/4", nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestValidateEndpoint(t *testing.T) {
	env := newTestEnv(t, 2, nil)

	resp := env.do(t, http.MethodPost, "/v1/users/validate", ValidateDTO{Field: "email", Value: "user1@example.com"})
	expectStatus(t, resp, http.StatusOK)
	res := decode[ValidateResponse](t, resp)
	if res.Valid || res.Fields[users.FieldNameEmail] != users.ReasonDuplicate {
		t.Fatalf("expected duplicate, got %+v", res)
	}

	resp = env.do(t, http.MethodPost, "/v1/users/validate?edit_id=1", ValidateDTO{Field: "email", Value: "USER1@example.com"})
	res = decode[ValidateResponse](t, resp)
	if !res.Valid {
		t.Fatalf("own email should be valid when editing: %+v", res)
	}

	resp = env.do(t, http.MethodPost, "/v1/users/validate", ValidateDTO{Values: &UserFormDTO{Name: " Eva ", Email: "EVA@x.com", Gender: "mujer", Status: "activo"}})
	res = decode[ValidateResponse](t, resp)
	if !res.Valid || res.Values == nil || res.Values.Email != "eva@x.com" || res.Values.Name != "Eva" {
		t.Fatalf("unexpected form validation: %+v", res)
	}

	resp = env.do(t, http.MethodPost, "/v1/users/validate", ValidateDTO{})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestViewResetsPageOnFilterChange(t *testing.T) {
	env := newTestEnv(t, 25, nil)

	resp := env.do(t, http.MethodPatch, "/v1/view", map[string]any{"page": 3})
	expectStatus(t, resp, http.StatusOK)
	view := decode[ViewResponse](t, resp)
	if view.Page != 3 || view.TotalPages != 3 || len(view.Items) != 5 {
		t.Fatalf("unexpected page 3: %+v", view)
	}

	resp = env.do(t, http.MethodPatch, "/v1/view", map[string]any{"status": "activo"})
	view = decode[ViewResponse](t, resp)
	if view.Page != 1 || view.View.Sync != users.Stale || view.TotalResults != 13 {
		t.Fatalf("filter change should show page 1: %+v", view)
	}

	resp = env.do(t, http.MethodPost, "/v1/view/sort/name", nil)
	view = decode[ViewResponse](t, resp)
	if view.View.SortField != users.SortByName || view.View.SortOrder != users.SortAsc {
		t.Fatalf("unexpected sort: %+v", view.View)
	}
	resp = env.do(t, http.MethodPost, "/v1/view/sort/name", nil)
	view = decode[ViewResponse](t, resp)
	if view.View.SortOrder != users.SortDesc {
		t.Fatalf("expected desc after second toggle: %+v", view.View)
	}

	resp = env.do(t, http.MethodPatch, "/v1/view", map[string]any{"query": "nobody"})
	view = decode[ViewResponse](t, resp)
	if view.Empty != emptyFilteredMessage {
		t.Fatalf("expected filtered empty message, got %q", view.Empty)
	}

	resp = env.do(t, http.MethodPost, "/v1/view/reset", nil)
	view = decode[ViewResponse](t, resp)
	if view.View != users.NewViewState() || view.TotalResults != 25 || len(view.Pages) == 0 {
		t.Fatalf("unexpected reset view: %+v", view)
	}

	resp = env.do(t, http.MethodPatch, "/v1/view", map[string]any{"gender": "other"})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestSelectionFlow(t *testing.T) {
	env := newTestEnv(t, 12, nil)

	resp := env.do(t, http.MethodPost, "/v1/selection/all", SelectionDTO{Checked: ptr(true)})
	expectStatus(t, resp, http.StatusOK)
	state := decode[users.SelectionState](t, resp)
	if !state.AllSelected || len(state.IDs) != 10 {
		t.Fatalf("expected the visible page selected: %+v", state)
	}

	resp = env.do(t, http.MethodPut, "/v1/selection/3", SelectionDTO{Checked: ptr(false)})
	state = decode[users.SelectionState](t, resp)
	if state.AllSelected || !state.Indeterminate || len(state.IDs) != 9 {
		t.Fatalf("expected indeterminate selection: %+v", state)
	}

	resp = env.do(t, http.MethodPut, "/v1/selection/404", SelectionDTO{Checked: ptr(true)})
	expectStatus(t, resp, http.StatusNotFound)

	resp = env.do(t, http.MethodPut, "/v1/selection/404", SelectionDTO{Checked: ptr(false)})
	expectStatus(t, resp, http.StatusOK)
	if state = decode[users.SelectionState](t, resp); len(state.IDs) != 9 {
		t.Fatalf("unchecking a vanished id should leave the selection alone: %+v", state)
	}

	resp = env.do(t, http.MethodPost, "/v1/selection/delete", nil)
	expectStatus(t, resp, http.StatusPreconditionRequired)

	resp = env.do(t, http.MethodPost, "/v1/selection/delete?confirm=true", nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[DeleteManyResponse](t, resp); got.Deleted != 9 {
		t.Fatalf("expected 9 deleted, got %d", got.Deleted)
	}
	if len(env.svc.Snapshot()) != 3 {
		t.Fatalf("expected 3 users left, got %d", len(env.svc.Snapshot()))
	}

	resp = env.do(t, http.MethodGet, "/v1/selection", nil)
	state = decode[users.SelectionState](t, resp)
	if len(state.IDs) != 0 {
		t.Fatalf("expected empty selection, got %+v", state)
	}
}

func TestBulkDeleteAndDeleteAll(t *testing.T) {
	env := newTestEnv(t, 5, nil)

	resp := env.do(t, http.MethodPost, "/v1/users/bulk-delete", BulkDeleteDTO{IDs: []int64{1, 2}})
	expectStatus(t, resp, http.StatusPreconditionRequired)

	resp = env.do(t, http.MethodPost, "/v1/users/bulk-delete", BulkDeleteDTO{IDs: []int64{1, 2}, Confirm: true})
	expectStatus(t, resp, http.StatusOK)
	if got := decode[DeleteManyResponse](t, resp); got.Deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", got.Deleted)
	}

	resp = env.do(t, http.MethodPost, "/v1/users/bulk-delete", BulkDeleteDTO{Confirm: true})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = env.do(t, http.MethodDelete, "/v1/users?confirm=true", nil)
	expectStatus(t, resp, http.StatusOK)
	res := decode[users.LoadResult](t, resp)
	if res.Source != users.LoadedFromRemote || res.Count != 5 {
		t.Fatalf("expected reload after delete all: %+v", res)
	}
}

func TestDeleteAllResetsOperatorView(t *testing.T) {
	env := newTestEnv(t, 25, nil)

	resp := env.do(t, http.MethodPatch, "/v1/view", map[string]any{"query": "user", "status": "activo"})
	expectStatus(t, resp, http.StatusOK)
	resp = env.do(t, http.MethodPatch, "/v1/view", map[string]any{"page": 2})
	expectStatus(t, resp, http.StatusOK)

	resp = env.do(t, http.MethodDelete, "/v1/users?confirm=true", nil)
	expectStatus(t, resp, http.StatusOK)

	resp = env.do(t, http.MethodGet, "/v1/view", nil)
	expectStatus(t, resp, http.StatusOK)
	view := decode[ViewResponse](t, resp)
	if view.View.Query != "" || view.View.Status != "" || view.Page != 1 {
		t.Fatalf("expected default view after delete all, got %+v page=%d", view.View, view.Page)
	}
	if view.TotalResults != 25 {
		t.Fatalf("expected the reloaded collection to be visible, got %d", view.TotalResults)
	}
}

func TestReloadIsRateLimited(t *testing.T) {
	env := newTestEnv(t, 2, ratelimit.NewLocal(1, time.Minute))

	resp := env.do(t, http.MethodPost, "/v1/users/reload", nil)
	expectStatus(t, resp, http.StatusOK)

	resp = env.do(t, http.MethodPost, "/v1/users/reload", nil)
	expectStatus(t, resp, http.StatusTooManyRequests)
	if resp.Header.Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestStorageResetClearsSession(t *testing.T) {
	env := newTestEnv(t, 2, nil)

	resp := env.do(t, http.MethodPatch, "/v1/view", map[string]any{"query": "user"})
	expectStatus(t, resp, http.StatusOK)

	resp = env.do(t, http.MethodPost, "/v1/storage/reset", nil)
	expectStatus(t, resp, http.StatusPreconditionRequired)

	resp = env.do(t, http.MethodPost, "/v1/storage/reset?confirm=true", nil)
	expectStatus(t, resp, http.StatusOK)

	resp = env.do(t, http.MethodGet, "/v1/view", nil)
	view := decode[ViewResponse](t, resp)
	if view.View.Query != "" {
		t.Fatalf("expected a fresh session view, got %+v", view.View)
	}
}

func TestFormAndMetrics(t *testing.T) {
	env := newTestEnv(t, 1, nil)

	resp := env.do(t, http.MethodGet, "/v1/users/form", nil)
	fields := decode[[]users.FieldDescriptor](t, resp)
	if len(fields) != 4 || fields[2].Kind != users.FieldKindSelect || len(fields[2].Options) != 2 {
		t.Fatalf("unexpected form: %+v", fields)
	}

	resp = env.do(t, http.MethodGet, "/metrics", nil)
	expectStatus(t, resp, http.StatusOK)
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	if !bytes.Contains(buf.Bytes(), []byte("userdesk_users_collection_size 1")) {
		t.Fatalf("collection gauge missing:\n%s", buf.String())
	}
}

func ptr[T any](v T) *T {
	return &v
}
