package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/storepos-backend/pkg/enums"
)

// Actor is the staff member a token speaks for.
type Actor struct {
	UserID   int64
	Username string
	Role     enums.UserRole
}

// AccessTokenClaims represents the typed JWT issued to staff clients.
type AccessTokenClaims struct {
	UserID   int64          `json:"user_id"`
	Username string         `json:"username"`
	Role     enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Actor extracts the acting staff member from the claims.
func (c AccessTokenClaims) Actor() Actor {
	return Actor{UserID: c.UserID, Username: c.Username, Role: c.Role}
}
