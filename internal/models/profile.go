package models

import "time"

// Profile holds the account row for an authenticated user. The email is
// only used server-side for notification dispatch and is never rendered
// to other users.
type Profile struct {
	ID        string  `gorm:"primaryKey" json:"id"`
	Name      *string `json:"name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Email     string  `gorm:"unique;not null" json:"-"`
	Password  string  `gorm:"not null" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token   string  `json:"token"`
	User    Profile `json:"user"`
	Message string  `json:"message"`
}
