package users

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/PabloPavan/userdesk/internal/apperrors"
	"github.com/PabloPavan/userdesk/internal/kvstore"
	"github.com/PabloPavan/userdesk/internal/telemetry"
)

type sourceStub struct {
	fetchFn func(ctx context.Context) ([]RemoteUser, error)
}

func (s *sourceStub) FetchAll(ctx context.Context) ([]RemoteUser, error) {
	if s.fetchFn != nil {
		return s.fetchFn(ctx)
	}
	return []RemoteUser{}, nil
}

func remoteUsers(n int) []RemoteUser {
	out := make([]RemoteUser, 0, n)
	for _, u := range sampleUsers(n) {
		g, s := "male", "active"
		if u.Gender == GenderFemale {
			g = "female"
		}
		if u.Status == StatusInactive {
			s = "inactive"
		}
		out = append(out, RemoteUser{ID: u.ID, Name: u.Name, Email: u.Email, Gender: g, Status: s})
	}
	return out
}

func newTestService(t *testing.T, src Source) (*Service, *Storage) {
	t.Helper()
	st := NewStorage(kvstore.NewMemory())
	svc, err := NewService(ServiceConfig{
		Source:  src,
		Storage: st,
		Metrics: telemetry.NewUsersMetrics(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, st
}

func loadedService(t *testing.T, n int) (*Service, *Storage) {
	t.Helper()
	svc, st := newTestService(t, &sourceStub{fetchFn: func(ctx context.Context) ([]RemoteUser, error) {
		return remoteUsers(n), nil
	}})
	if _, err := svc.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return svc, st
}

func TestServiceLoadFromRemote(t *testing.T) {
	svc, st := loadedService(t, 12)

	if got := len(svc.Snapshot()); got != 12 {
		t.Fatalf("expected 12 users, got %d", got)
	}
	if got := len(st.Get(context.Background())); got != 12 {
		t.Fatalf("expected 12 stored users, got %d", got)
	}
	if svc.Snapshot()[1].Gender != GenderFemale {
		t.Fatal("expected normalized vocabulary")
	}

	res := svc.List(ListQuery{Page: 2, PerPage: 10})
	if len(res.Items) != 2 || res.TotalPages != 2 || res.TotalResults != 12 {
		t.Fatalf("unexpected page: %+v", res)
	}
}

func TestServiceLoadOfflineFallback(t *testing.T) {
	svc, st := newTestService(t, &sourceStub{fetchFn: func(ctx context.Context) ([]RemoteUser, error) {
		return nil, ErrRemoteFetch
	}})
	st.Save(context.Background(), sampleUsers(3))

	res, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("expected offline result, got error: %v", err)
	}
	if !res.Offline || res.Source != LoadedFromStorage || res.Notice == "" || res.Count != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(svc.Snapshot()) != 3 {
		t.Fatalf("expected stored users installed, got %d", len(svc.Snapshot()))
	}
}

func TestServiceLoadHardFailure(t *testing.T) {
	svc, _ := newTestService(t, &sourceStub{fetchFn: func(ctx context.Context) ([]RemoteUser, error) {
		return nil, ErrRemoteFetch
	}})

	_, err := svc.Load(context.Background())
	assertKind(t, err, apperrors.KindUnavailable)
	if !errors.Is(err, ErrRemoteFetch) {
		t.Fatalf("expected wrapped ErrRemoteFetch, got %v", err)
	}
	if len(svc.Snapshot()) != 0 {
		t.Fatal("expected empty collection")
	}
}

func TestServiceLatestLoadWins(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int
	var mu sync.Mutex

	svc, _ := newTestService(t, &sourceStub{fetchFn: func(ctx context.Context) ([]RemoteUser, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(started)
			<-release
			return remoteUsers(5), nil
		}
		return remoteUsers(2), nil
	}})

	firstDone := make(chan LoadResult, 1)
	go func() {
		res, _ := svc.Load(context.Background())
		firstDone <- res
	}()
	<-started

	if !svc.Loading() {
		t.Fatal("expected loading while the first fetch is pending")
	}
	if _, err := svc.Create(context.Background(), validValues()); err == nil {
		t.Fatal("expected mutation to be rejected while loading")
	} else {
		assertKind(t, err, apperrors.KindUnavailable)
	}

	second, err := svc.Load(context.Background())
	if err != nil || second.Count != 2 {
		t.Fatalf("unexpected second load: %+v %v", second, err)
	}

	close(release)
	first := <-firstDone
	if !first.Superseded {
		t.Fatalf("expected first load superseded, got %+v", first)
	}
	if got := len(svc.Snapshot()); got != 2 {
		t.Fatalf("latest load should win, got %d users", got)
	}
	if svc.Loading() {
		t.Fatal("expected no load in flight")
	}
}

func TestServiceCreate(t *testing.T) {
	svc, st := loadedService(t, 4)
	svc.Selection.Toggle(2, true)

	u, err := svc.Create(context.Background(), FormValues{Name: "Ana", Email: "ana@x.com", Gender: "mujer", Status: "activo"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID != 5 {
		t.Fatalf("expected id 5, got %d", u.ID)
	}
	list := svc.Snapshot()
	if list[0].ID != 5 || len(list) != 5 {
		t.Fatalf("expected new user first, got %+v", list[0])
	}
	if svc.Selection.Len() != 0 {
		t.Fatal("expected selection cleared")
	}
	if stored := st.Get(context.Background()); len(stored) != 5 || stored[0].ID != 5 {
		t.Fatal("storage out of sync after create")
	}
}

func TestServiceCreateIntoEmptyCollection(t *testing.T) {
	svc, _ := newTestService(t, &sourceStub{})
	u, err := svc.Create(context.Background(), validValues())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID != 1 {
		t.Fatalf("expected id 1, got %d", u.ID)
	}
}

func TestServiceCreateRejectsDuplicate(t *testing.T) {
	svc, _ := loadedService(t, 2)

	_, err := svc.Create(context.Background(), FormValues{Name: "Ana", Email: "USER1@example.com", Gender: "mujer", Status: "activo"})
	assertKind(t, err, apperrors.KindInvalidInput)
	verr, ok := IsValidation(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if r, _ := verr.Reason(FieldNameEmail); r != ReasonDuplicate {
		t.Fatalf("expected duplicate, got %q", r)
	}
}

func TestServiceUpdate(t *testing.T) {
	svc, st := loadedService(t, 3)
	svc.Selection.Toggle(1, true)

	values := svc.Snapshot()[1].FormValues()
	values.Name = "Bea Ruiz"
	got, err := svc.Update(context.Background(), 2, values)
	if err != nil || got == nil {
		t.Fatalf("update: %v %v", got, err)
	}
	if got.Name != "Bea Ruiz" || got.ID != 2 {
		t.Fatalf("unexpected updated user: %+v", got)
	}
	if svc.Snapshot()[1].Name != "Bea Ruiz" {
		t.Fatal("collection not updated in place")
	}
	if st.Get(context.Background())[1].Name != "Bea Ruiz" {
		t.Fatal("storage out of sync after update")
	}
	if svc.Selection.Len() != 0 {
		t.Fatal("expected selection cleared")
	}
}

func TestServiceUpdateMissingIsSkipped(t *testing.T) {
	svc, _ := loadedService(t, 2)
	got, err := svc.Update(context.Background(), 99, validValues())
	if err != nil || got != nil {
		t.Fatalf("expected silent skip, got %v %v", got, err)
	}
}

func TestServiceUpdateUnchanged(t *testing.T) {
	svc, _ := loadedService(t, 2)
	values := svc.Snapshot()[0].FormValues()
	values.Email = "  " + values.Email
	_, err := svc.Update(context.Background(), 1, values)
	assertKind(t, err, apperrors.KindInvalidInput)
	if !errors.Is(err, ErrUnchanged) {
		t.Fatalf("expected ErrUnchanged, got %v", err)
	}
}

func TestServiceDelete(t *testing.T) {
	svc, st := loadedService(t, 3)
	svc.Selection.Toggle(2, true)
	svc.Selection.Toggle(3, true)

	if err := svc.Delete(context.Background(), 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := IDsOf(svc.Snapshot()); !slices.Equal(got, []int64{1, 3}) {
		t.Fatalf("unexpected ids: %v", got)
	}
	if !slices.Equal(svc.Selection.IDs(), []int64{3}) {
		t.Fatalf("expected only deleted id removed from selection, got %v", svc.Selection.IDs())
	}
	if len(st.Get(context.Background())) != 2 {
		t.Fatal("storage out of sync after delete")
	}

	if err := svc.Delete(context.Background(), 42); err != nil {
		t.Fatalf("deleting unknown id should be a no-op: %v", err)
	}
}

func TestServiceDeleteMany(t *testing.T) {
	svc, _ := loadedService(t, 5)
	svc.Selection.Toggle(1, true)

	n, err := svc.DeleteMany(context.Background(), []int64{1, 3, 99})
	if err != nil || n != 2 {
		t.Fatalf("delete many: n=%d err=%v", n, err)
	}
	if got := IDsOf(svc.Snapshot()); !slices.Equal(got, []int64{2, 4, 5}) {
		t.Fatalf("unexpected ids: %v", got)
	}
	if svc.Selection.Len() != 0 {
		t.Fatal("expected selection cleared")
	}
}

func TestServiceDeleteAllReloads(t *testing.T) {
	svc, st := loadedService(t, 3)
	if _, err := svc.Create(context.Background(), validValues()); err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := svc.DeleteAll(context.Background())
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if res.Source != LoadedFromRemote || len(svc.Snapshot()) != 3 {
		t.Fatalf("expected remote reload, got %+v", res)
	}
	if len(st.Get(context.Background())) != 3 {
		t.Fatal("storage should hold the reloaded collection")
	}
}

func TestServiceResetStorageWipesBackend(t *testing.T) {
	svc, st := newTestService(t, &sourceStub{fetchFn: func(ctx context.Context) ([]RemoteUser, error) {
		return nil, ErrRemoteFetch
	}})
	ctx := context.Background()
	st.Save(ctx, sampleUsers(2))
	_ = st.Backend().Set(ctx, "theme", []byte(`"dark"`))

	_, err := svc.ResetStorage(ctx)
	assertKind(t, err, apperrors.KindUnavailable)
	if _, ok, _ := st.Backend().Get(ctx, "theme"); ok {
		t.Fatal("reset should wipe every key")
	}
	if len(svc.Snapshot()) != 0 {
		t.Fatal("nothing left to fall back to")
	}
}

func TestServiceListCacheFollowsMutations(t *testing.T) {
	svc, _ := loadedService(t, 3)
	q := ListQuery{Query: "user", SortField: SortByID, SortOrder: SortDesc, Page: 1, PerPage: 10}

	before := svc.List(q)
	if before.TotalResults != 3 || before.Items[0].ID != 3 {
		t.Fatalf("unexpected list: %+v", before)
	}
	if err := svc.Delete(context.Background(), 3); err != nil {
		t.Fatalf("delete: %v", err)
	}
	after := svc.List(q)
	if after.TotalResults != 2 || after.Items[0].ID != 2 {
		t.Fatalf("stale cached list: %+v", after)
	}
}

func TestServiceGetAndValidate(t *testing.T) {
	svc, _ := loadedService(t, 2)

	if _, err := svc.Get(7); err == nil {
		t.Fatal("expected not found")
	} else {
		assertKind(t, err, apperrors.KindNotFound)
		if !IsNotFound(err) {
			t.Fatalf("expected ErrNotFound in chain, got %v", err)
		}
	}

	u, err := svc.Get(1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	reason, ok, err := svc.ValidateField(FieldNameEmail, u.Email, 1)
	if err != nil || !ok {
		t.Fatalf("own email should be valid in edit mode: %s %v", reason, err)
	}
	reason, ok, _ = svc.ValidateField(FieldNameEmail, u.Email, 0)
	if ok || reason != ReasonDuplicate {
		t.Fatalf("expected duplicate in create mode, got %s", reason)
	}
	if _, _, err := svc.ValidateForm(validValues(), 99); err == nil {
		t.Fatal("expected not found for unknown edit id")
	}
}
