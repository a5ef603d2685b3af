package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vote tracks a single user's vote on an automation. The composite unique
// index guarantees at most one row per (user, automation) pair.
type Vote struct {
	ID           string `gorm:"primaryKey" json:"id"`
	AutomationID string `gorm:"uniqueIndex:idx_votes_user_automation;not null" json:"automation_id"`
	UserID       string `gorm:"uniqueIndex:idx_votes_user_automation;not null" json:"user_id"`
	Value        int    `gorm:"not null" json:"value"` // -1 or +1

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

type VoteRequest struct {
	Value int `json:"value" binding:"required,oneof=-1 1"`
}
