package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DevLoginRequest authenticates with a uid and the shared developer password.
type DevLoginRequest struct {
	UID      string `json:"uid" validate:"required,numeric"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued access token and profile.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   int64       `json:"expires_in"`
	IssuedAt    time.Time   `json:"issued_at"`
	User        UserProfile `json:"user"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UID   string   `json:"uid"`
	Role  UserRole `json:"role"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims carry the admin role.
func (c *JWTClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}
