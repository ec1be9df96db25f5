package models

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the payload of access tokens issued by the identity provider.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor returns the display name recorded as ChangedBy on change log entries.
func (c *JWTClaims) Actor() string {
	if c == nil {
		return ""
	}
	if name := strings.TrimSpace(c.FullName); name != "" {
		return name
	}
	return strings.TrimSpace(c.Email)
}
