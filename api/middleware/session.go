package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/quickbite/quickbite-backend/api/responses"
	"github.com/quickbite/quickbite-backend/api/validators"
	pkgAuth "github.com/quickbite/quickbite-backend/pkg/auth"
	"github.com/quickbite/quickbite-backend/pkg/auth/session"
	"github.com/quickbite/quickbite-backend/pkg/config"
	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
	"github.com/quickbite/quickbite-backend/pkg/logger"
)

const sessionHeader = "X-Session-Id"

// Session identifies the caller. A bearer token wins over the X-Session-Id
// header; without either the request continues anonymously and routes that
// need a session add RequireSession.
func Session(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" && cfg.Enabled() {
				token, err := validators.BearerToken(raw)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "missing credentials"))
					return
				}
				claims, err := pkgAuth.ParseSessionToken(cfg, token)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}
				if verifier != nil {
					ok, err := verifier.HasSession(ctx, claims.SessionID)
					if err != nil {
						responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
						return
					}
					if !ok {
						responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
						return
					}
				}

				userID := ""
				if claims.SignedIn() {
					userID = claims.UserID.String()
				}
				next.ServeHTTP(w, r.WithContext(withIdentity(ctx, logg, claims.SessionID, userID, string(claims.Role))))
				return
			}

			if sessionID := strings.TrimSpace(r.Header.Get(sessionHeader)); sessionID != "" {
				if !validators.ValidSessionID(sessionID) {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid session id").
						WithDetails(map[string]any{"header": sessionHeader}))
					return
				}
				ctx = withIdentity(ctx, logg, sessionID, "", string(pkgAuth.RoleGuest))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func withIdentity(ctx context.Context, logg *logger.Logger, sessionID, userID, role string) context.Context {
	ctx = WithIdentity(ctx, sessionID, userID, role)
	if logg != nil {
		ctx = logg.WithSessionID(ctx, sessionID)
		if userID != "" {
			ctx = logg.WithUserID(ctx, userID)
		}
	}
	return ctx
}
