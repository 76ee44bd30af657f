package controllers

import (
	"net/http"

	"github.com/quickbite/quickbite-backend/api/middleware"
	"github.com/quickbite/quickbite-backend/api/responses"
)

type pingResponse struct {
	Scope     string `json:"scope"`
	Status    string `json:"status"`
	UserID    string `json:"user_id,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, pingResponse{Scope: "public", Status: "ok"})
	}
}

// AdminPing echoes the caller's identity so operators can check their token.
func AdminPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		responses.WriteSuccess(w, pingResponse{
			Scope:     "admin",
			Status:    "ok",
			UserID:    middleware.UserIDFromContext(ctx),
			Role:      string(middleware.RoleFromContext(ctx)),
			SessionID: middleware.SessionIDFromContext(ctx),
		})
	}
}
