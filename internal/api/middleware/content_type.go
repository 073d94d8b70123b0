package middleware

import (
	"mime"
	"net/http"

	"github.com/skyloop/skyloop/internal/api/models"
)

// ContentTypeJSON defaults responses to application/json. Handlers that set
// their own type first win, which is how problem responses come out as
// application/problem+json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON rejects non-JSON request bodies before they reach the search
// handlers. Only methods that carry a body are checked, and a missing
// Content-Type is tolerated so bare curl requests still work.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if ct := r.Header.Get("Content-Type"); ct != "" {
				mediaType, _, err := mime.ParseMediaType(ct)
				if err != nil || mediaType != "application/json" {
					models.NewProblem(models.ProblemTypeValidation, "Unsupported media type",
						http.StatusUnsupportedMediaType, GetRequestID(r.Context())).
						WithDetail("request bodies must be application/json").
						WithInstance(r.URL.Path).
						Write(w)
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
