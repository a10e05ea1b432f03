package middleware

import (
	"crypto/sha256"
	"net/http"

	"phatsurf/internal/http/respond"
	"phatsurf/internal/logging"

	"github.com/gorilla/csrf"
)

const (
	CSRFCookieName = "phatsurf_csrf"
	CSRFFieldName  = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"

	MsgCSRFInvalid = "Invalid or missing CSRF token"
)

// CSRF guards unsafe form requests with a double-submit token. Requests with
// a JSON body are exempt: a cross-site page cannot send one without a CORS
// preflight. Unless secure is set, requests are treated as plain HTTP and
// the Referer check is skipped.
func CSRF(secret []byte, secure bool, log logging.Logger) func(http.Handler) http.Handler {
	key := sha256.Sum256(append([]byte("phatsurf csrf:"), secret...))

	protect := csrf.Protect(key[:],
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.CookieName(CSRFCookieName),
		csrf.FieldName(CSRFFieldName),
		csrf.RequestHeader(CSRFHeaderName),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Warn(r.Context(), "csrf check failed", "path", r.URL.Path, "reason", csrf.FailureReason(r))
			respond.Error(w, http.StatusForbidden, MsgCSRFInvalid)
		})),
	)

	return func(next http.Handler) http.Handler {
		guarded := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !secure {
				r = csrf.PlaintextHTTPRequest(r)
			}
			if respond.HasJSONBody(r) {
				r = csrf.UnsafeSkipCheck(r)
			}
			guarded.ServeHTTP(w, r)
		})
	}
}
