package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Account holds login credentials and scoping claims for one user. The
// account id equals the id of the user's student or staff profile document.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Role         Role      `json:"role"`
	Faculty      string    `json:"faculty"`
	Department   string    `json:"department,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AccountDoc is the persisted shape; the password hash is stored but never
// serialized in API responses.
type AccountDoc struct {
	Account
	PasswordHash string `json:"passwordHash"`
}

// JWTClaims is the token payload carried by authenticated requests.
type JWTClaims struct {
	UserID     string `json:"userId"`
	Role       Role   `json:"role"`
	Faculty    string `json:"faculty"`
	Department string `json:"department,omitempty"`
	jwt.RegisteredClaims
}

// Actor describes the authenticated caller for service-level scoping checks.
type Actor struct {
	UserID     string
	Role       Role
	Faculty    string
	Department string
}

// ActorFromClaims converts token claims into a service actor.
func ActorFromClaims(c *JWTClaims) Actor {
	return Actor{UserID: c.UserID, Role: c.Role, Faculty: c.Faculty, Department: c.Department}
}
