package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/PabloPavan/userdesk/internal/telemetry"
	"github.com/PabloPavan/userdesk/internal/users"
)

// GetSelection
// @Summary Selected ids and the select-all checkbox state for the current page
// @Tags selection
// @Produce json
// @Success 200 {object} users.SelectionState
// @Router /selection [get]
func (h *ViewHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	visible := users.IDsOf(h.page(sess.View).Items)
	writeJSON(w, http.StatusOK, h.Selection.State(visible))
}

// ToggleSelection
// @Summary Check or uncheck one user
// @Tags selection
// @Accept json
// @Produce json
// @Param id path int true "user id"
// @Param body body SelectionDTO true "checked"
// @Success 200 {object} users.SelectionState
// @Failure 400 {string} string
// @Failure 404 {string} string
// @Router /selection/{id} [put]
func (h *ViewHandler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeAppError(w, err)
		return
	}

	var req SelectionDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// Unchecking an id that vanished only drops it from the selection.
	if _, err := h.Service.Get(id); err != nil && (*req.Checked || !users.IsNotFound(err)) {
		writeAppError(w, err)
		return
	}

	h.Selection.Toggle(id, *req.Checked)
	visible := users.IDsOf(h.page(sess.View).Items)
	writeJSON(w, http.StatusOK, h.Selection.State(visible))
}

// SelectAll
// @Summary Check or uncheck every user on the current page
// @Description Checking replaces the selection with the visible page.
// @Tags selection
// @Accept json
// @Produce json
// @Param body body SelectionDTO true "checked"
// @Success 200 {object} users.SelectionState
// @Failure 400 {string} string
// @Router /selection/all [post]
func (h *ViewHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req SelectionDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	visible := users.IDsOf(h.page(sess.View).Items)
	h.Selection.SelectAll(visible, *req.Checked)
	writeJSON(w, http.StatusOK, h.Selection.State(visible))
}

// DeleteSelection
// @Summary Delete every selected user
// @Tags selection
// @Produce json
// @Param confirm query bool true "must be true"
// @Success 200 {object} DeleteManyResponse
// @Failure 428 {string} string
// @Failure 503 {string} string
// @Router /selection/delete [post]
func (h *ViewHandler) DeleteSelection(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		writeAppError(w, errConfirmationRequired)
		return
	}

	ids := h.Selection.IDs()
	n, err := h.Service.DeleteMany(r.Context(), ids)
	if err != nil {
		writeAppError(w, err)
		return
	}

	telemetry.LogInfo(r.Context(), "selected users deleted",
		telemetry.LogString("event", "users.selection.deleted"),
		telemetry.LogInt("users.count", n),
	)
	writeJSON(w, http.StatusOK, DeleteManyResponse{Deleted: n})
}
