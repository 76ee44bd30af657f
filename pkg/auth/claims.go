package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the caller's role inside a session token.
type Role string

const (
	RoleGuest    Role = "guest"
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleGuest, RoleCustomer, RoleAdmin:
		return true
	default:
		return false
	}
}

// SessionPayload captures the data available when minting a session token.
type SessionPayload struct {
	SessionID string
	UserID    uuid.UUID
	Role      Role
	JTI       string
}

// SessionClaims represents the typed JWT issued to clients. Guests carry a
// nil user id.
type SessionClaims struct {
	SessionID string    `json:"sid"`
	UserID    uuid.UUID `json:"user_id"`
	Role      Role      `json:"role"`
	jwt.RegisteredClaims
}

// SignedIn reports whether the token belongs to a known user.
func (c *SessionClaims) SignedIn() bool {
	return c != nil && c.UserID != uuid.Nil
}
