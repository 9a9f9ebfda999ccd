package middleware

import (
	"errors"
	"net/http"

	"github.com/angelmondragon/orderdesk-backend/api/responses"
	"github.com/angelmondragon/orderdesk-backend/api/validators"
	"github.com/angelmondragon/orderdesk-backend/internal/authz"
	pkgAuth "github.com/angelmondragon/orderdesk-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
)

// Auth validates the bearer JWT, resolves the caller through the directory and
// seeds the request context with the principal. Roles always come from the
// directory, never from the token.
func Auth(tokens *pkgAuth.Verifier, directory authz.Directory, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := validators.BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := tokens.Verify(token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, pkgAuth.ErrExpired) {
					msg = "token expired"
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg))
				return
			}

			principal, err := directory.Lookup(r.Context(), claims.PrincipalID)
			if err != nil {
				if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown principal"))
					return
				}
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if !principal.Active {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account disabled"))
				return
			}

			ctx := WithPrincipal(r.Context(), principal)
			if logg != nil {
				ctx = logg.WithPrincipalID(ctx, principal.ID.String())
				ctx = logg.WithField(ctx, "superuser", principal.Superuser)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
