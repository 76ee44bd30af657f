package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/quickbite/quickbite-backend/api/middleware"
	"github.com/quickbite/quickbite-backend/api/responses"
	"github.com/quickbite/quickbite-backend/pkg/auth"
	"github.com/quickbite/quickbite-backend/pkg/config"
	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
	"github.com/quickbite/quickbite-backend/pkg/logger"
)

type SessionIssuer interface {
	Open(ctx context.Context, userID string) (string, error)
	Revoke(ctx context.Context, sessionID string) error
}

type sessionResponse struct {
	SessionID string     `json:"sessionId"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// SessionOpen starts a session for the caller. Signed-in callers keep their
// identity and their previous session is revoked; everyone else gets a guest
// session. A token is minted when bearer auth is configured.
func SessionOpen(sessions SessionIssuer, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		role := auth.Role(middleware.RoleFromContext(ctx))
		userID, _ := uuid.Parse(middleware.UserIDFromContext(ctx))
		if userID == uuid.Nil || !role.IsValid() {
			role, userID = auth.RoleGuest, uuid.Nil
		}

		owner := ""
		if userID != uuid.Nil {
			owner = userID.String()
		}
		sessionID, err := sessions.Open(ctx, owner)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open session"))
			return
		}

		resp := sessionResponse{SessionID: sessionID}
		if cfg.Enabled() {
			now := time.Now()
			token, err := auth.MintSessionToken(cfg, now, auth.SessionPayload{
				SessionID: sessionID,
				UserID:    userID,
				Role:      role,
			})
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint session token"))
				return
			}
			expires := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute).UTC()
			resp.Token = token
			resp.ExpiresAt = &expires
		}

		if previous := middleware.SessionIDFromContext(ctx); previous != "" && previous != sessionID {
			if err := sessions.Revoke(ctx, previous); err != nil && logg != nil {
				logg.WarnErr(ctx, "revoke previous session failed", err)
			}
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

func SessionClose(sessions SessionIssuer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := middleware.SessionIDFromContext(r.Context())
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session required"))
			return
		}
		if err := sessions.Revoke(r.Context(), sessionID); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session"))
			return
		}
		responses.WriteNoContent(w)
	}
}
