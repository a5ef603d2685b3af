package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubscriptionType is a notification category a user can opt into.
type SubscriptionType string

const (
	SubscriptionNew      SubscriptionType = "new"
	SubscriptionTrending SubscriptionType = "trending"
)

// ValidSubscriptionType reports whether t names a known category.
func ValidSubscriptionType(t string) bool {
	return t == string(SubscriptionNew) || t == string(SubscriptionTrending)
}

// Subscription is a per-user notification preference. Absence of a row is
// equivalent to inactive.
type Subscription struct {
	ID     string           `gorm:"primaryKey" json:"id"`
	UserID string           `gorm:"uniqueIndex:idx_subscriptions_user_type;not null" json:"user_id"`
	Type   SubscriptionType `gorm:"uniqueIndex:idx_subscriptions_user_type;not null" json:"type"`
	Active bool             `gorm:"not null" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

type SubscriptionRequest struct {
	Type   string `json:"type" binding:"required,oneof=new trending"`
	Active *bool  `json:"active" binding:"required"`
}
