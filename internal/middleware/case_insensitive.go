package middleware

import (
	"net/http"
	"strings"
)

// CaseInsensitiveMiddleware converts URL paths to lowercase.
// Report QR codes are printed in uppercase so they fit the compact
// alphanumeric QR mode; ids are lowercase UUIDs, so nothing is lost.
func CaseInsensitiveMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.URL.Path = strings.ToLower(r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
