// Package respond holds the wire-level helpers shared by handlers and
// middleware: response mode detection, JSON bodies and flash redirects.
package respond

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"
)

// Generic messages returned in place of internal errors.
const (
	MsgUnexpected = "An unexpected error occurred"
	MsgTryAgain   = "An error occurred. Please try again."
)

// Flash categories.
const (
	CategorySuccess = "success"
	CategoryDanger  = "danger"
	CategoryInfo    = "info"
)

// WantsJSON reports whether the client speaks JSON: either the body is
// declared as JSON or the client asks for a JSON response.
func WantsJSON(r *http.Request) bool {
	if HasJSONBody(r) {
		return true
	}
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && isJSON(mt) {
			return true
		}
	}
	return false
}

// HasJSONBody reports whether the request body is declared as JSON.
func HasJSONBody(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && isJSON(mt)
}

func isJSON(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"error": msg} with the given status.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"error": msg})
}

// Redirect sends a 302 to url. POSTed forms must land on a GET page, so
// 302 rather than 307 is used.
func Redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusFound)
}
