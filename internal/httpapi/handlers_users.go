package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PabloPavan/userdesk/internal/apperrors"
	"github.com/PabloPavan/userdesk/internal/session"
	"github.com/PabloPavan/userdesk/internal/telemetry"
	"github.com/PabloPavan/userdesk/internal/users"
	"go.opentelemetry.io/otel/attribute"
)

type UsersService interface {
	Load(ctx context.Context) (users.LoadResult, error)
	Create(ctx context.Context, values users.FormValues) (users.User, error)
	Update(ctx context.Context, id int64, values users.FormValues) (*users.User, error)
	Delete(ctx context.Context, id int64) error
	DeleteMany(ctx context.Context, ids []int64) (int, error)
	DeleteAll(ctx context.Context) (users.LoadResult, error)
	ResetStorage(ctx context.Context) (users.LoadResult, error)
	List(q users.ListQuery) users.ListResult
	Get(id int64) (users.User, error)
	Loading() bool
	ValidateField(name users.FieldName, raw string, editID int64) (users.Reason, bool, error)
	ValidateForm(values users.FormValues, editID int64) (users.FormValues, *users.ValidationError, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

type UsersHandler struct {
	Service UsersService
	Limiter RateLimiter
	PerPage int
	// Sessions, when set, lets DeleteAll reset the caller's view.
	Sessions *session.Manager
}

type DeleteManyResponse struct {
	Deleted int `json:"deleted"`
}

func (h *UsersHandler) perPage() int {
	if h.PerPage <= 0 {
		return users.DefaultItemsPerPage
	}
	return h.PerPage
}

// List Users
// @Summary List users
// @Tags users
// @Produce json
// @Param q query string false "search in name or email"
// @Param gender query string false "hombre or mujer"
// @Param status query string false "activo or inactivo"
// @Param sort query string false "id, name, email, gender or status"
// @Param order query string false "asc or desc"
// @Param page query int false "page"
// @Param per_page query int false "items per page"
// @Success 200 {object} users.ListResult
// @Failure 400 {string} string
// @Router /users [get]
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r, h.perPage())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Service.List(q))
}

// Get User
// @Summary Get user by id
// @Tags users
// @Produce json
// @Param id path int true "user id"
// @Success 200 {object} users.User
// @Failure 400 {string} string
// @Failure 404 {string} string
// @Router /users/{id} [get]
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	u, err := h.Service.Get(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Form Fields
// @Summary Describe the user form fields
// @Tags users
// @Produce json
// @Success 200 {array} users.FieldDescriptor
// @Router /users/form [get]
func (h *UsersHandler) Form(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, users.Fields)
}

// Validate User
// @Summary Validate one field or a whole form without saving
// @Tags users
// @Accept json
// @Produce json
// @Param edit_id query int false "id of the user being edited"
// @Param body body ValidateDTO true "field or values"
// @Success 200 {object} ValidateResponse
// @Failure 400 {string} string
// @Failure 404 {string} string
// @Router /users/validate [post]
func (h *UsersHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var editID int64
	if v := strings.TrimSpace(r.URL.Query().Get("edit_id")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			http.Error(w, "invalid edit_id", http.StatusBadRequest)
			return
		}
		editID = n
	}

	if req.Values == nil {
		name := users.FieldName(req.Field)
		reason, ok, err := h.Service.ValidateField(name, req.Value, editID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		resp := ValidateResponse{Valid: ok}
		if !ok {
			resp.Fields = map[users.FieldName]users.Reason{name: reason}
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	clean, verr, err := h.Service.ValidateForm(req.Values.values(), editID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	resp := ValidateResponse{Valid: verr == nil, Values: &clean}
	if verr != nil {
		resp.Fields = verr.Fields
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create User
// @Summary Create user
// @Tags users
// @Accept json
// @Produce json
// @Param body body UserFormDTO true "user"
// @Success 201 {object} users.User
// @Failure 400 {object} validationResponse
// @Failure 503 {string} string
// @Router /users [post]
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req UserFormDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, span := telemetry.StartSpan(r.Context(), "users.create")
	u, err := h.Service.Create(ctx, req.values())
	telemetry.EndSpan(span, err)
	if err != nil {
		writeAppError(w, err)
		return
	}

	telemetry.LogInfo(r.Context(), "user created",
		telemetry.LogString("event", "user.created"),
		telemetry.LogInt64("user.id", u.ID),
		telemetry.LogString("user.email", u.Email),
	)
	writeJSON(w, http.StatusCreated, u)
}

// Update User
// @Summary Update user
// @Description Responds 204 when the user no longer exists.
// @Tags users
// @Accept json
// @Produce json
// @Param id path int true "user id"
// @Param body body UserFormDTO true "user"
// @Success 200 {object} users.User
// @Success 204
// @Failure 400 {object} validationResponse
// @Failure 503 {string} string
// @Router /users/{id} [put]
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeAppError(w, err)
		return
	}

	var req UserFormDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, span := telemetry.StartSpan(r.Context(), "users.update",
		attribute.Int64("user.id", id),
	)
	u, err := h.Service.Update(ctx, id, req.values())
	telemetry.EndSpan(span, err)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if u == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	telemetry.LogInfo(r.Context(), "user updated",
		telemetry.LogString("event", "user.updated"),
		telemetry.LogInt64("user.id", u.ID),
	)
	writeJSON(w, http.StatusOK, u)
}

// Delete User
// @Summary Delete user
// @Tags users
// @Param id path int true "user id"
// @Param confirm query bool true "must be true"
// @Success 204
// @Failure 400 {string} string
// @Failure 428 {string} string
// @Failure 503 {string} string
// @Router /users/{id} [delete]
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !confirmed(r) {
		writeAppError(w, errConfirmationRequired)
		return
	}

	if err := h.Service.Delete(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}

	telemetry.LogInfo(r.Context(), "user deleted",
		telemetry.LogString("event", "user.deleted"),
		telemetry.LogInt64("user.id", id),
	)
	w.WriteHeader(http.StatusNoContent)
}

// BulkDelete Users
// @Summary Delete several users
// @Tags users
// @Accept json
// @Produce json
// @Param body body BulkDeleteDTO true "ids; confirm must be true"
// @Success 200 {object} DeleteManyResponse
// @Failure 400 {string} string
// @Failure 428 {string} string
// @Failure 503 {string} string
// @Router /users/bulk-delete [post]
func (h *UsersHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !req.Confirm {
		writeAppError(w, errConfirmationRequired)
		return
	}

	n, err := h.Service.DeleteMany(r.Context(), req.IDs)
	if err != nil {
		writeAppError(w, err)
		return
	}

	telemetry.LogInfo(r.Context(), "users deleted",
		telemetry.LogString("event", "users.deleted"),
		telemetry.LogInt("users.count", n),
	)
	writeJSON(w, http.StatusOK, DeleteManyResponse{Deleted: n})
}

// DeleteAll Users
// @Summary Delete every user and reload from the remote API
// @Description Also resets the caller's view filters and page.
// @Tags users
// @Produce json
// @Param confirm query bool true "must be true"
// @Success 200 {object} users.LoadResult
// @Failure 428 {string} string
// @Failure 429 {string} string
// @Failure 503 {string} string
// @Router /users [delete]
func (h *UsersHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		writeAppError(w, errConfirmationRequired)
		return
	}
	if err := allow(r, h.Limiter, "delete_all"); err != nil {
		writeAppError(w, err)
		return
	}

	if err := h.resetView(r); err != nil {
		writeAppError(w, err)
		return
	}

	res, err := h.Service.DeleteAll(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// resetView clears the caller's filters and page before a wipe. Requests
// without a session have no view to reset.
func (h *UsersHandler) resetView(r *http.Request) error {
	sess, ok := session.FromContext(r.Context())
	if !ok || h.Sessions == nil {
		return nil
	}
	sess.View.Reset()
	if err := h.Sessions.Save(r.Context(), sess); err != nil {
		telemetry.LogError(r.Context(), "session save failed",
			telemetry.LogString("event", "session.save.failed"),
			telemetry.LogErr(err),
		)
		return apperrors.Wrap(apperrors.KindUnavailable, "failed to save view", err)
	}
	return nil
}

// Reload Users
// @Summary Reload users from the remote API
// @Description Falls back to the stored collection when the remote API is unreachable.
// @Tags users
// @Produce json
// @Success 200 {object} users.LoadResult
// @Failure 429 {string} string
// @Failure 503 {string} string
// @Router /users/reload [post]
func (h *UsersHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := allow(r, h.Limiter, "reload"); err != nil {
		writeAppError(w, err)
		return
	}

	res, err := h.Service.Load(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}

	telemetry.LogInfo(r.Context(), "users reloaded",
		telemetry.LogString("event", "users.reloaded"),
		telemetry.LogString("users.source", string(res.Source)),
		telemetry.LogBool("users.offline", res.Offline),
		telemetry.LogInt("users.count", res.Count),
	)
	writeJSON(w, http.StatusOK, res)
}

func allow(r *http.Request, limiter RateLimiter, op string) error {
	if limiter == nil {
		return nil
	}
	allowed, retryAfter, err := limiter.Allow(r.Context(), op+":ip:"+clientIP(r))
	if err != nil {
		telemetry.LogError(r.Context(), "rate limit check failed",
			telemetry.LogString("event", "ratelimit.failed"),
			telemetry.LogErr(err),
		)
		return apperrors.New(apperrors.KindInternal, "rate limit error")
	}
	if !allowed {
		return apperrors.RateLimit("too many requests", retryAfter)
	}
	return nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
