package middleware

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/AnshRaj112/journeygen-backend/internal/apperr"
	"github.com/AnshRaj112/journeygen-backend/internal/auth"
	"github.com/AnshRaj112/journeygen-backend/pkg/logger"
)

// Resolver turns an Authorization header into an identity.
type Resolver interface {
	Resolve(ctx context.Context, header string) (auth.Identity, error)
}

// Authenticate resolves the caller and stores the identity on the request
// context. Browsers cannot set headers on a websocket handshake, so upgrades
// may carry the credential in a "token" query parameter instead.
func Authenticate(resolver Resolver, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" && websocket.IsWebSocketUpgrade(r) {
				if token := r.URL.Query().Get("token"); token != "" {
					header = "Bearer " + token
					r = withoutQueryToken(r)
				}
			}

			id, err := resolver.Resolve(r.Context(), header)
			if err != nil {
				kind := apperr.KindOf(err)
				status := apperr.Status(kind)
				if status >= http.StatusInternalServerError {
					log.Error("credential lookup failed", "path", r.URL.Path, "error", err)
				}
				writeError(w, status, apperr.Public(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// withoutQueryToken returns a copy of r whose URL no longer carries the
// credential, so nothing downstream can log it.
func withoutQueryToken(r *http.Request) *http.Request {
	q := r.URL.Query()
	q.Del("token")
	u := *r.URL
	u.RawQuery = q.Encode()
	r2 := r.Clone(r.Context())
	r2.URL = &u
	r2.RequestURI = u.RequestURI()
	return r2
}

// RequireAdmin rejects any non-admin identity. Use after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := auth.RequireAdmin(auth.FromContext(r.Context())); err != nil {
			writeError(w, apperr.Status(apperr.KindOf(err)), apperr.Public(err))
			return
		}
		next.ServeHTTP(w, r)
	})
}
