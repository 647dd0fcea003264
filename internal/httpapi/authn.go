package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"ventas.io/internal/apperr"
	"ventas.io/internal/auth"
	"ventas.io/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// securedHandler receives the caller's resolved security context explicitly.
type securedHandler func(w http.ResponseWriter, r *http.Request, sc auth.SecurityContext)

// secured resolves the session before calling h. Resolution failures are
// written with their apperr status; h never runs for an unresolved caller.
func (a *API) secured(h securedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := a.sessionToken(r)
		if token == "" {
			handleError(w, r, fmt.Errorf("%w: missing session", apperr.ErrUnauthenticated))
			return
		}
		sc, err := a.resolver.Resolve(r.Context(), token)
		if err != nil {
			handleError(w, r, err)
			return
		}
		h(w, r, sc)
	}
}

// guarded is secured plus the route's (action, resource) check. The guard
// runs before the handler reads the path or the body, so a caller without
// the grant sees forbidden whatever the payload.
func (a *API) guarded(action, resource string, h securedHandler) http.HandlerFunc {
	return a.secured(func(w http.ResponseWriter, r *http.Request, sc auth.SecurityContext) {
		if err := sc.Require(action, resource); err != nil {
			obs.ObserveDecision(action, resource, false)
			handleError(w, r, err)
			return
		}
		h(w, r, sc)
	})
}

// sessionToken reads the session cookie, falling back to a bearer token for
// non-browser clients.
func (a *API) sessionToken(r *http.Request) string {
	if c, err := r.Cookie(a.cookieName); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			return v
		}
	}
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		return ""
	}
	return token
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", fmt.Errorf("%w: missing bearer token", apperr.ErrUnauthenticated)
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", fmt.Errorf("%w: invalid authorization scheme", apperr.ErrUnauthenticated)
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", fmt.Errorf("%w: missing bearer token", apperr.ErrUnauthenticated)
	}
	return token, nil
}
