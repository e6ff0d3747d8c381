package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Role scopes what a token may call.
type Role string

const (
	// RoleAdmin covers operator actions such as manual refresh and issuance.
	RoleAdmin Role = "admin"
	// RoleStore is the storefront pushing orders and status changes.
	RoleStore Role = "store"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleStore:
		return true
	default:
		return false
	}
}

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	Subject string
	Role    Role
	JTI     string
}

// AccessTokenClaims represents the typed JWT presented to privileged endpoints.
type AccessTokenClaims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}
