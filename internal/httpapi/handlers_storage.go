package httpapi

import (
	"net/http"

	"github.com/PabloPavan/userdesk/internal/session"
	"github.com/PabloPavan/userdesk/internal/telemetry"
)

// StorageHandler wipes every piece of durable state, the way signing out
// of the desk clears the browser's storage.
type StorageHandler struct {
	Service  UsersService
	Limiter  RateLimiter
	Sessions *session.Manager
	Cookie   session.CookieConfig
}

// Reset Storage
// @Summary Wipe stored data and the operator session, then reload
// @Tags storage
// @Produce json
// @Param confirm query bool true "must be true"
// @Success 200 {object} users.LoadResult
// @Failure 428 {string} string
// @Failure 429 {string} string
// @Failure 503 {string} string
// @Router /storage/reset [post]
func (h *StorageHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		writeAppError(w, errConfirmationRequired)
		return
	}
	if err := allow(r, h.Limiter, "reset"); err != nil {
		writeAppError(w, err)
		return
	}

	if sess, ok := session.FromContext(r.Context()); ok && h.Sessions != nil {
		if err := h.Sessions.Delete(r.Context(), sess.ID); err != nil {
			telemetry.LogWarn(r.Context(), "session delete failed",
				telemetry.LogString("event", "session.delete.failed"),
				telemetry.LogErr(err),
			)
		}
	}
	h.Cookie.Clear(w)

	res, err := h.Service.ResetStorage(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}

	telemetry.LogInfo(r.Context(), "storage reset",
		telemetry.LogString("event", "storage.reset"),
		telemetry.LogInt("users.count", res.Count),
	)
	writeJSON(w, http.StatusOK, res)
}
