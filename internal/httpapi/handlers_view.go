package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/PabloPavan/userdesk/internal/apperrors"
	"github.com/PabloPavan/userdesk/internal/session"
	"github.com/PabloPavan/userdesk/internal/telemetry"
	"github.com/PabloPavan/userdesk/internal/users"
	"github.com/go-chi/chi/v5"
)

const (
	emptyCollectionMessage = "No hay usuarios registrados"
	emptyFilteredMessage   = "No se encontraron usuarios con los filtros aplicados"
)

// ViewHandler serves the operator-facing list: the session's search,
// filter, sort and page state plus the shared selection.
type ViewHandler struct {
	Service   UsersService
	Selection *users.Selection
	Sessions  *session.Manager
	PerPage   int
}

type ViewResponse struct {
	View         users.ViewState      `json:"view"`
	Items        []users.User         `json:"items"`
	Page         int                  `json:"page"`
	TotalPages   int                  `json:"total_pages"`
	TotalResults int                  `json:"total_results"`
	Pages        []users.PageLink     `json:"pages,omitempty"`
	Selection    users.SelectionState `json:"selection"`
	Loading      bool                 `json:"loading"`
	Empty        string               `json:"empty,omitempty"`
}

func (h *ViewHandler) perPage() int {
	if h.PerPage <= 0 {
		return users.DefaultItemsPerPage
	}
	return h.PerPage
}

func (h *ViewHandler) page(view users.ViewState) users.ListResult {
	return h.Service.List(view.ListQuery(h.perPage()))
}

func (h *ViewHandler) render(w http.ResponseWriter, sess *session.Session) {
	res := h.page(sess.View)
	resp := ViewResponse{
		View:         sess.View,
		Items:        res.Items,
		Page:         res.Page,
		TotalPages:   res.TotalPages,
		TotalResults: res.TotalResults,
		Pages:        users.PageWindow(res.Page, res.TotalPages),
		Selection:    h.Selection.State(users.IDsOf(res.Items)),
		Loading:      h.Service.Loading(),
	}
	if res.TotalResults == 0 {
		resp.Empty = emptyCollectionMessage
		if sess.View.Filtered() {
			resp.Empty = emptyFilteredMessage
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ViewHandler) save(w http.ResponseWriter, r *http.Request, sess *session.Session) bool {
	if err := h.Sessions.Save(r.Context(), sess); err != nil {
		telemetry.LogError(r.Context(), "session save failed",
			telemetry.LogString("event", "session.save.failed"),
			telemetry.LogErr(err),
		)
		writeAppError(w, apperrors.Wrap(apperrors.KindUnavailable, "failed to save view", err))
		return false
	}
	return true
}

func currentSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, "missing session", http.StatusInternalServerError)
		return nil, false
	}
	return sess, true
}

// Get View
// @Summary Current operator view
// @Tags view
// @Produce json
// @Success 200 {object} ViewResponse
// @Router /view [get]
func (h *ViewHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	h.render(w, sess)
}

// Patch View
// @Summary Change search, filters, sort or page
// @Description Changing the search or a filter shows page 1 until a page is chosen again.
// @Tags view
// @Accept json
// @Produce json
// @Param body body ViewPatchDTO true "view changes"
// @Success 200 {object} ViewResponse
// @Failure 400 {string} string
// @Router /view [patch]
func (h *ViewHandler) Patch(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req ViewPatchDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	v := &sess.View
	if req.Query != nil {
		v.SetQuery(*req.Query)
	}
	if req.Gender != nil {
		v.SetGender(users.Gender(*req.Gender))
	}
	if req.Status != nil {
		v.SetStatus(users.Status(*req.Status))
	}
	if req.Sort != nil || req.Order != nil {
		field, order := v.SortField, v.SortOrder
		if req.Sort != nil {
			field = users.SortField(*req.Sort)
		}
		if req.Order != nil {
			order = users.SortOrder(*req.Order)
		}
		v.SetSort(field, order)
	}
	if req.Page != nil {
		v.SetPage(*req.Page)
	}

	if !h.save(w, r, sess) {
		return
	}
	h.render(w, sess)
}

// ToggleSort View
// @Summary Sort by a column, flipping the order when it is already the sort column
// @Tags view
// @Produce json
// @Param field path string true "id, name, email, gender or status"
// @Success 200 {object} ViewResponse
// @Failure 400 {string} string
// @Router /view/sort/{field} [post]
func (h *ViewHandler) ToggleSort(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	field, err := users.ParseSortField(chi.URLParam(r, "field"))
	if err != nil || field == "" {
		http.Error(w, "invalid sort field", http.StatusBadRequest)
		return
	}
	sess.View.ToggleSort(field)

	if !h.save(w, r, sess) {
		return
	}
	h.render(w, sess)
}

// Reset View
// @Summary Clear search, filters and sort
// @Description Also clears the selection.
// @Tags view
// @Produce json
// @Success 200 {object} ViewResponse
// @Router /view/reset [post]
func (h *ViewHandler) Reset(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	sess.View.Reset()
	h.Selection.Clear()

	if !h.save(w, r, sess) {
		return
	}
	h.render(w, sess)
}
