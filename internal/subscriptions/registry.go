// Package subscriptions manages per-user notification preferences.
package subscriptions

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/poke-community/backend/internal/apperrors"
	"github.com/poke-community/backend/internal/models"
)

type Registry struct {
	db *gorm.DB
}

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// Get returns the user's preference per category. Categories without a row
// are inactive and absent from the map.
func (r *Registry) Get(userID string) (map[models.SubscriptionType]bool, error) {
	if userID == "" {
		return nil, apperrors.NewAuthenticationError("You need to be signed in to manage subscriptions.")
	}

	var rows []models.Subscription
	if err := r.db.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, apperrors.NewPersistenceError("Unable to load subscriptions", err)
	}

	prefs := make(map[models.SubscriptionType]bool, len(rows))
	for _, row := range rows {
		prefs[row.Type] = row.Active
	}
	return prefs, nil
}

// Set stores the preference as a single atomic statement per arm: enabling
// upserts on the (user, category) unique index, disabling is a plain UPDATE
// that touches zero rows when no row exists. A row is never created just to
// record "off".
func (r *Registry) Set(userID string, category models.SubscriptionType, active bool) error {
	if userID == "" {
		return apperrors.NewAuthenticationError("You need to be signed in to manage subscriptions.")
	}
	if !models.ValidSubscriptionType(string(category)) {
		return apperrors.NewValidationError(map[string]string{"type": "Unknown subscription type."})
	}

	if !active {
		err := r.db.Model(&models.Subscription{}).
			Where("user_id = ? AND type = ?", userID, category).
			Update("active", false).Error
		if err != nil {
			return apperrors.NewPersistenceError("Unable to update subscription preference", err)
		}
		return nil
	}

	row := models.Subscription{
		UserID: userID,
		Type:   category,
		Active: true,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{"active", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return apperrors.NewPersistenceError("Unable to create subscription preference", err)
	}
	return nil
}

// DeactivateResult reports what the unsubscribe endpoint should render.
type DeactivateResult int

const (
	Deactivated DeactivateResult = iota
	AlreadyInactive
	SubscriptionNotFound
)

// Deactivate turns off the subscription identified by id and category. It
// is keyed by subscription id, not user id, because the one-click
// unsubscribe link is unauthenticated.
func (r *Registry) Deactivate(subscriptionID string, category models.SubscriptionType) (DeactivateResult, error) {
	var row models.Subscription
	err := r.db.Where("id = ? AND type = ?", subscriptionID, category).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SubscriptionNotFound, nil
	}
	if err != nil {
		return SubscriptionNotFound, apperrors.NewPersistenceError("Unable to look up subscription", err)
	}

	if !row.Active {
		return AlreadyInactive, nil
	}

	if err := r.db.Model(&row).Update("active", false).Error; err != nil {
		return SubscriptionNotFound, apperrors.NewPersistenceError("Unable to deactivate subscription", err)
	}
	return Deactivated, nil
}

// Recipient is one active subscriber for a category.
type Recipient struct {
	SubscriptionID string
	Email          string
}

// ActiveRecipients lists active subscribers for a category, joined with
// their profile email, optionally excluding one user (the author of the
// triggering automation).
func (r *Registry) ActiveRecipients(category models.SubscriptionType, excludeUserID string) ([]Recipient, error) {
	query := r.db.Model(&models.Subscription{}).
		Select("subscriptions.id AS subscription_id, profiles.email AS email").
		Joins("JOIN profiles ON profiles.id = subscriptions.user_id").
		Where("subscriptions.type = ? AND subscriptions.active = ?", category, true).
		Where("profiles.email <> ''")
	if excludeUserID != "" {
		query = query.Where("subscriptions.user_id <> ?", excludeUserID)
	}

	var recipients []Recipient
	if err := query.Scan(&recipients).Error; err != nil {
		return nil, apperrors.NewPersistenceError("Unable to load subscribers", err)
	}
	return recipients, nil
}
