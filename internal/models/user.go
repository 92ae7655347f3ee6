package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is a Telegram account that owns topics and profiles.
type User struct {
	ID        int64     `json:"id" db:"id"`
	FirstName string    `json:"firstName" db:"first_name"`
	LastName  string    `json:"lastName" db:"last_name"`
	Username  string    `json:"username" db:"username"`
	CanDM     *bool     `json:"canDm" db:"can_dm"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Feedback is a rating left from the app.
type Feedback struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"userId" db:"user_id"`
	Rating    int       `json:"rating" db:"rating"`
	Comment   string    `json:"comment" db:"comment"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Claims defines the structure of the JWT claims.
type Claims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}
