package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a staff member.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	IP       string `json:"-"`
}

// LoginResponse returns the issued token and the actor it represents.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	Staff       Actor     `json:"staff"`
	IssuedAt    time.Time `json:"issued_at"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID     string      `json:"user_id"`
	Role       StaffRole   `json:"role"`
	Email      string      `json:"email"`
	Name       string      `json:"name"`
	Department *Department `json:"department,omitempty"`
	jwt.RegisteredClaims
}

// Actor returns the acting identity carried by the token.
func (c *JWTClaims) Actor() Actor {
	return Actor{ID: c.UserID, Name: c.Name, Role: c.Role, Department: c.Department}
}
