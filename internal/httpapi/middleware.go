package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/quillworks/inkwell/internal/apperr"
	"github.com/quillworks/inkwell/internal/domain"
	"github.com/quillworks/inkwell/internal/service"
	"github.com/quillworks/inkwell/internal/store"
	"github.com/quillworks/inkwell/pkg/httpx"
)

type ctxKey int

const (
	ctxKeyIdentity ctxKey = iota
	ctxKeyAPIKey
)

// identityFromContext returns the authenticated identity placed there by
// the Authn middleware. Handlers behind Authn may assume ok is true.
func identityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(domain.Identity)
	return id, ok
}

func apiKeyFromContext(ctx context.Context) (domain.APIKey, bool) {
	k, ok := ctx.Value(ctxKeyAPIKey).(domain.APIKey)
	return k, ok
}

// APIKeyGate rejects any request without a valid active API key in the
// x-api-key header. It runs before authentication: anonymous lookups must
// not be possible for callers who cannot even present a key.
func APIKeyGate(keys store.APIKeys, required domain.Permission) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("x-api-key")
			if raw == "" {
				writeError(w, r, apperr.Forbidden("Permission Denied"))
				return
			}

			key, err := keys.GetByKey(r.Context(), raw)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, r, apperr.Forbidden("Permission Denied"))
					return
				}
				writeError(w, r, apperr.Internal("api key lookup failure", err))
				return
			}
			if !key.HasPermission(required) {
				writeError(w, r, apperr.Forbidden("Permission Denied"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyAPIKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authn extracts the bearer token, authenticates it against the session
// keystore and stores the resolved identity in the request context. The
// identity is a value, so nothing downstream can mutate shared auth state.
func Authn(sessions *service.SessionService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				writeError(w, r, err)
				return
			}

			identity, err := sessions.Authenticate(r.Context(), raw)
			if err != nil {
				writeError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyIdentity, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles allows the request through when the authenticated user
// holds at least one of the given roles. Must sit inside Authn.
func RequireRoles(authz *service.AuthorizeService, codes ...domain.RoleCode) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := identityFromContext(r.Context())
			if !ok {
				writeError(w, r, apperr.AuthFailure("Permission Denied"))
				return
			}
			if err := authz.Authorize(r.Context(), identity.User, codes...); err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken pulls the access token out of the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperr.AuthFailure("Invalid Authorization")
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", apperr.AuthFailure("Invalid Authorization")
	}
	return token, nil
}
