package middleware

import (
	"net/http"
	"strings"
)

// MethodOverrideField is the form field HTML forms use to tunnel DELETE/PUT/PATCH through POST.
const MethodOverrideField = "_method"

// MethodOverride rewrites POST requests carrying an X-HTTP-Method-Override
// header or a _method form field. It wraps the engine because gin resolves
// the route before its middlewares run.
func MethodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			m := r.Header.Get("X-HTTP-Method-Override")
			if m == "" && strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
				// ParseForm caches the body in r.PostForm for the handler
				if err := r.ParseForm(); err == nil {
					m = r.PostForm.Get(MethodOverrideField)
				}
			}
			switch m = strings.ToUpper(strings.TrimSpace(m)); m {
			case http.MethodDelete, http.MethodPut, http.MethodPatch:
				r.Method = m
			}
		}
		next.ServeHTTP(w, r)
	})
}
