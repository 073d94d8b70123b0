package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/skyloop/skyloop/internal/api/models"
)

// Recovery converts handler panics into a 500 problem response. A panicking
// search must not take the server down with it, and the client gets the same
// problem shape as any other failure.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					requestID := GetRequestID(r.Context())

					log.Error().
						Str("request_id", requestID).
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Interface("error", err).
						Str("stack", string(debug.Stack())).
						Msg("panic recovered")

					models.NewInternalError(requestID, "an unexpected error occurred").
						WithInstance(r.URL.Path).
						Write(w)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
