package middleware

import (
	"net/http"
	"os"

	"github.com/skyloop/skyloop/internal/api/models"
)

// SecurityHeaders hardens every response. The API serves JSON to machine
// clients only, so the policy is maximally restrictive: nothing may be
// framed, scripted, or sniffed. Cache-Control is no-store because fares and
// availability go stale within minutes and a cached search result is worse
// than none.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Permissions-Policy", "geolocation=(), camera=(), microphone=()")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}

// RequireTLS rejects plain-HTTP requests when REQUIRE_TLS=true. The check
// reads X-Forwarded-Proto because Cloud Run terminates TLS at the load
// balancer; requests without the header (direct connections, local dev) are
// let through.
func RequireTLS(next http.Handler) http.Handler {
	requireTLS := os.Getenv("REQUIRE_TLS") == "true"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requireTLS {
			proto := r.Header.Get("X-Forwarded-Proto")
			if proto != "" && proto != "https" {
				models.NewProblem(models.ProblemTypeTLSRequired, "TLS required", http.StatusForbidden, GetRequestID(r.Context())).
					WithDetail("This endpoint requires HTTPS").
					WithInstance(r.URL.Path).
					Write(w)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
