package session

import (
	"net/http"

	"github.com/PabloPavan/userdesk/internal/telemetry"
)

// Middleware attaches the operator's session to the request context,
// creating one (and its cookie) on first contact.
func Middleware(mgr *Manager, cookieCfg CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if reqCookie, err := r.Cookie(cookieCfg.name()); err == nil {
				id = reqCookie.Value
			}

			sess, created, err := mgr.Ensure(r.Context(), id)
			if err != nil {
				telemetry.LogError(r.Context(), "session lookup failed",
					telemetry.LogString("event", "session.ensure.failed"),
					telemetry.LogErr(err),
				)
				http.Error(w, "session unavailable", http.StatusServiceUnavailable)
				return
			}

			if !created {
				var refreshed bool
				sess, refreshed, err = mgr.Refresh(r.Context(), sess)
				if err != nil || sess == nil {
					sess, err = mgr.Create(r.Context())
					if err != nil {
						http.Error(w, "session unavailable", http.StatusServiceUnavailable)
						return
					}
					created = true
				}
				if refreshed {
					cookieCfg.Write(w, sess.ID, sess.ExpiresAt)
				}
			}
			if created {
				cookieCfg.Write(w, sess.ID, sess.ExpiresAt)
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}
