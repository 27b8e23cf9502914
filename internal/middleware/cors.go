package middleware

import (
	"net/http"
	"strings"
)

const corsMaxAge = "600"

// CORS returns middleware that answers cross-origin requests. An empty
// origins list allows any origin; otherwise only listed origins are echoed
// back and preflights from other origins are refused.
func CORS(origins []string) func(http.HandlerFunc) http.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			ok := true

			switch {
			case len(allowed) == 0:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			default:
				w.Header().Add("Vary", "Origin")
				ok = origin == ""
			}

			if r.Method != http.MethodOptions {
				next(w, r)
				return
			}

			// Preflight
			if !ok {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", corsMaxAge)
			w.WriteHeader(http.StatusNoContent)
		}
	}
}
