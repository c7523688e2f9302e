package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/plumehost/platform/internal/application/resolver"
	"github.com/plumehost/platform/internal/domain"
)

const ResolutionKey contextKey = "resolution"

// TenantContext resolves the Host header into a routing decision and attaches
// it to the request context. Redirect decisions are acted on here; everything
// downstream sees only canonical or tenant requests.
//
// The /v1 API surface is host-agnostic and skipped entirely.
func TenantContext(svc resolver.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/v1" || strings.HasPrefix(r.URL.Path, "/v1/") {
				next.ServeHTTP(w, r)
				return
			}

			viewerID := ""
			if claims, ok := ClaimsFromContext(r.Context()); ok {
				viewerID = claims.TenantID
			}

			res, err := svc.Resolve(r.Context(), r.Host, r.URL.Path, viewerID)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrNotFound):
					writeJSONError(w, http.StatusNotFound, "blog not found")
				case errors.Is(err, domain.ErrBadRequest):
					writeJSONError(w, http.StatusBadRequest, "unrecognized host")
				default:
					writeJSONError(w, http.StatusInternalServerError, "host resolution failed")
				}
				return
			}
			if res.Kind == resolver.KindRedirect {
				http.Redirect(w, r, res.RedirectURL, http.StatusFound)
				return
			}

			ctx := context.WithValue(r.Context(), ResolutionKey, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ResolutionFromContext extracts the routing decision from the request context.
func ResolutionFromContext(ctx context.Context) (*resolver.Resolution, bool) {
	res, ok := ctx.Value(ResolutionKey).(*resolver.Resolution)
	return res, ok
}
