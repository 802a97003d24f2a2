package users

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"strconv"
	"sync"

	"github.com/PabloPavan/userdesk/internal/apperrors"
	"github.com/PabloPavan/userdesk/internal/telemetry"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultItemsPerPage  = 10
	DefaultListCacheSize = 128

	OfflineNotice = "No se pudo conectar al servicio. Se están mostrando los datos guardados localmente."
)

type LoadSource string

const (
	LoadedFromRemote  LoadSource = "remote"
	LoadedFromStorage LoadSource = "storage"
	LoadedNothing     LoadSource = "none"
)

type LoadResult struct {
	Source     LoadSource `json:"source"`
	Offline    bool       `json:"offline"`
	Notice     string     `json:"notice,omitempty"`
	Count      int        `json:"count"`
	Superseded bool       `json:"superseded,omitempty"`
}

type ServiceConfig struct {
	Source        Source
	Storage       *Storage
	Validator     *Validator
	Metrics       *telemetry.UsersMetrics
	ListCacheSize int
}

// Service owns the working collection and applies every mutation to it.
// Mutations hold mu for their whole duration, so the collection and the
// stored copy agree whenever mu is free. The remote fetch of a load runs
// without mu; the newest load is the only one allowed to install its result.
type Service struct {
	Source    Source
	Storage   *Storage
	Validator *Validator
	Selection *Selection
	Metrics   *telemetry.UsersMetrics

	mu       sync.Mutex
	list     []User
	version  uint64
	loadGen  uint64
	inflight int
	cache    *lru.Cache[string, []User]
}

func NewService(cfg ServiceConfig) (*Service, error) {
	size := cfg.ListCacheSize
	if size <= 0 {
		size = DefaultListCacheSize
	}
	cache, err := lru.New[string, []User](size)
	if err != nil {
		return nil, err
	}
	v := cfg.Validator
	if v == nil {
		v = NewValidator()
	}
	return &Service{
		Source:    cfg.Source,
		Storage:   cfg.Storage,
		Validator: v,
		Selection: NewSelection(),
		Metrics:   cfg.Metrics,
		list:      []User{},
		cache:     cache,
	}, nil
}

// Load fetches the remote collection and installs it. When the fetch
// fails the stored collection is used instead, if it holds any records.
func (s *Service) Load(ctx context.Context) (LoadResult, error) {
	s.mu.Lock()
	gen := s.beginLoadLocked()
	s.mu.Unlock()
	return s.runLoad(ctx, gen)
}

func (s *Service) beginLoadLocked() uint64 {
	s.loadGen++
	s.inflight++
	return s.loadGen
}

func (s *Service) runLoad(ctx context.Context, gen uint64) (LoadResult, error) {
	if s.Source == nil {
		s.finishLoad()
		return LoadResult{}, apperrors.New(apperrors.KindInternal, "users source not configured")
	}

	remote, fetchErr := s.Source.FetchAll(ctx)
	var fresh []User
	if fetchErr == nil {
		fresh = NormalizeAll(ctx, remote)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--

	if gen != s.loadGen {
		telemetry.LogInfo(ctx, "users load superseded",
			telemetry.LogString("event", "users.load.superseded"),
			telemetry.LogInt64("load.generation", int64(gen)),
		)
		s.Metrics.LoadOutcome("superseded")
		return LoadResult{Superseded: true, Count: len(s.list)}, nil
	}

	if fetchErr == nil {
		s.replaceLocked(fresh)
		s.saveLocked(ctx)
		s.Selection.Clear()
		s.Metrics.LoadOutcome("remote")
		telemetry.LogInfo(ctx, "users loaded",
			telemetry.LogString("event", "users.load.remote"),
			telemetry.LogInt("users.count", len(fresh)),
		)
		return LoadResult{Source: LoadedFromRemote, Count: len(fresh)}, nil
	}

	telemetry.LogWarn(ctx, "users remote fetch failed",
		telemetry.LogString("event", "users.load.remote_failed"),
		telemetry.LogErr(fetchErr),
	)

	stored := s.storageGetLocked(ctx)
	s.Selection.Clear()
	if len(stored) > 0 {
		s.replaceLocked(stored)
		s.Metrics.LoadOutcome("offline")
		return LoadResult{
			Source:  LoadedFromStorage,
			Offline: true,
			Notice:  OfflineNotice,
			Count:   len(stored),
		}, nil
	}

	s.replaceLocked([]User{})
	s.Metrics.LoadOutcome("failed")
	return LoadResult{Source: LoadedNothing}, apperrors.Wrap(apperrors.KindUnavailable, "failed to load users", fetchErr)
}

func (s *Service) finishLoad() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
}

// Create assigns the next id, prepends the record and clears the selection.
func (s *Service) Create(ctx context.Context, values FormValues) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return User{}, err
	}

	clean, verr := s.Validator.Validate(values, s.list, CreateMode())
	if verr != nil {
		return User{}, apperrors.Wrap(apperrors.KindInvalidInput, "invalid user", verr)
	}

	u := User{ID: nextID(s.list)}.withForm(clean)
	next := make([]User, 0, len(s.list)+1)
	next = append(next, u)
	next = append(next, s.list...)

	s.replaceLocked(next)
	s.saveLocked(ctx)
	s.Selection.Clear()
	s.Metrics.Mutation("create")
	return u, nil
}

// Update replaces the fields of the record with the given id. A missing id
// is logged and skipped: the result is (nil, nil).
func (s *Service) Update(ctx context.Context, id int64, values FormValues) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return nil, err
	}

	idx := s.indexLocked(id)
	if idx < 0 {
		telemetry.LogWarn(ctx, "update target not found",
			telemetry.LogString("event", "users.update.not_found"),
			telemetry.LogInt64("user.id", id),
		)
		return nil, nil
	}
	current := s.list[idx]

	clean, verr := s.Validator.Validate(values, s.list, EditMode(current))
	if verr != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidInput, "invalid user", verr)
	}
	if clean == current.FormValues() {
		return nil, apperrors.Wrap(apperrors.KindInvalidInput, "no changes to save", ErrUnchanged)
	}

	updated := current.withForm(clean)
	next := slices.Clone(s.list)
	next[idx] = updated

	s.replaceLocked(next)
	s.saveLocked(ctx)
	s.Selection.Clear()
	s.Metrics.Mutation("update")
	return &updated, nil
}

// Delete removes one record and drops it from the selection. Deleting an
// unknown id does nothing.
func (s *Service) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}

	idx := s.indexLocked(id)
	if idx < 0 {
		return nil
	}
	next := slices.Delete(slices.Clone(s.list), idx, idx+1)

	s.replaceLocked(next)
	s.saveLocked(ctx)
	s.Selection.Remove(id)
	s.Metrics.Mutation("delete")
	return nil
}

// DeleteMany removes every record whose id is in ids and clears the
// selection. It returns how many records were removed.
func (s *Service) DeleteMany(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return 0, err
	}

	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	next := make([]User, 0, len(s.list))
	for _, u := range s.list {
		if _, ok := drop[u.ID]; !ok {
			next = append(next, u)
		}
	}
	removed := len(s.list) - len(next)

	s.replaceLocked(next)
	s.saveLocked(ctx)
	s.Selection.Clear()
	s.Metrics.Mutation("delete_many")
	return removed, nil
}

// DeleteAll drops the stored and in-memory collection, then reloads.
func (s *Service) DeleteAll(ctx context.Context) (LoadResult, error) {
	return s.clearAndReload(ctx, "delete_all", s.Storage.Clear)
}

// ResetStorage wipes every durable key, then reloads.
func (s *Service) ResetStorage(ctx context.Context) (LoadResult, error) {
	return s.clearAndReload(ctx, "reset_storage", s.Storage.ClearAll)
}

func (s *Service) clearAndReload(ctx context.Context, op string, wipe func(context.Context)) (LoadResult, error) {
	s.mu.Lock()
	if err := s.mutableLocked(); err != nil {
		s.mu.Unlock()
		return LoadResult{}, err
	}
	wipe(ctx)
	s.replaceLocked([]User{})
	s.Selection.Clear()
	s.Metrics.Mutation(op)
	gen := s.beginLoadLocked()
	s.mu.Unlock()

	return s.runLoad(ctx, gen)
}

// List runs the pipeline over the collection. Search, filter and sort
// results are cached per collection version; pagination is not.
func (s *Service) List(q ListQuery) ListResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := listCacheKey(q, s.version)
	arranged, ok := s.cache.Get(key)
	if !ok {
		arranged = arrange(s.list, q)
		s.cache.Add(key, arranged)
	}
	return paginateResult(arranged, q)
}

func (s *Service) Get(id int64) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return User{}, apperrors.Wrap(apperrors.KindNotFound, "user not found", ErrNotFound)
	}
	return s.list[idx], nil
}

// Snapshot returns a copy of the collection.
func (s *Service) Snapshot() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.list)
}

func (s *Service) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// ValidateField checks one field against the current collection, as a
// form does on every change. A zero editID means create mode.
func (s *Service) ValidateField(name FieldName, raw string, editID int64) (Reason, bool, error) {
	ec, existing, err := s.editContext(editID)
	if err != nil {
		return "", false, err
	}
	reason, ok := s.Validator.ValidateField(name, raw, existing, ec)
	return reason, ok, nil
}

// ValidateForm checks every field without applying anything.
func (s *Service) ValidateForm(values FormValues, editID int64) (FormValues, *ValidationError, error) {
	ec, existing, err := s.editContext(editID)
	if err != nil {
		return FormValues{}, nil, err
	}
	clean, verr := s.Validator.Validate(values, existing, ec)
	return clean, verr, nil
}

func (s *Service) editContext(editID int64) (EditContext, []User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := slices.Clone(s.list)
	if editID == 0 {
		return CreateMode(), existing, nil
	}
	idx := s.indexLocked(editID)
	if idx < 0 {
		return EditContext{}, nil, apperrors.Wrap(apperrors.KindNotFound, "user not found", ErrNotFound)
	}
	return EditMode(s.list[idx]), existing, nil
}

func (s *Service) mutableLocked() error {
	if s.inflight > 0 {
		return apperrors.Wrap(apperrors.KindUnavailable, "users are loading", ErrLoading)
	}
	if s.Storage == nil {
		return apperrors.New(apperrors.KindInternal, "users storage not configured")
	}
	return nil
}

func (s *Service) replaceLocked(list []User) {
	s.list = list
	s.version++
	s.Metrics.SetCollectionSize(len(list))
}

func (s *Service) saveLocked(ctx context.Context) {
	if s.Storage != nil {
		s.Storage.Save(ctx, s.list)
	}
}

func (s *Service) storageGetLocked(ctx context.Context) []User {
	if s.Storage == nil {
		return nil
	}
	return s.Storage.Get(ctx)
}

func (s *Service) indexLocked(id int64) int {
	return slices.IndexFunc(s.list, func(u User) bool { return u.ID == id })
}

func nextID(list []User) int64 {
	var maxID int64
	for _, u := range list {
		maxID = max(maxID, u.ID)
	}
	return maxID + 1
}

// IsValidation unwraps the per-field failures from a Create or Update error.
func IsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

func listCacheKey(q ListQuery, version uint64) string {
	v := url.Values{}
	v.Set("v", strconv.FormatUint(version, 10))
	if q.Query != "" {
		v.Set("q", q.Query)
	}
	if q.Criteria.Gender != "" {
		v.Set("gender", string(q.Criteria.Gender))
	}
	if q.Criteria.Status != "" {
		v.Set("status", string(q.Criteria.Status))
	}
	if q.SortField != "" {
		v.Set("sort", string(q.SortField))
		v.Set("order", string(q.SortOrder))
	}
	return v.Encode()
}
