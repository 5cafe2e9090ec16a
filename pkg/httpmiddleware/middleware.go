// Package httpmiddleware contains the HTTP middleware stack of the API
// server. Every middleware has the chi signature and is mounted with
// chi.Router.Use, so route patterns are available once the handler returns.
package httpmiddleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

// Middleware wraps an http.Handler.
type Middleware = func(http.Handler) http.Handler

// RoutePattern returns the matched chi route pattern of r, or the raw path
// when no route matched.
func RoutePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// writeError writes the API error body {"error": title, "message": msg}.
func writeError(w http.ResponseWriter, status int, title, msg string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("error")
	e.Str(title)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
