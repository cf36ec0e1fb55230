package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the access-token payload for the admin surface. Tokens are
// minted out of band with the shared secret; the service only verifies.
type Claims struct {
	jwt.RegisteredClaims

	// Role gates the admin endpoints via rbac.
	Role string `json:"role"`
}
