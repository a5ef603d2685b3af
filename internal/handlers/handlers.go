package handlers

import (
	"gorm.io/gorm"

	"github.com/poke-community/backend/internal/automations"
	"github.com/poke-community/backend/internal/config"
	"github.com/poke-community/backend/internal/notify"
	"github.com/poke-community/backend/internal/subscriptions"
	"github.com/poke-community/backend/internal/unsubscribe"
	"github.com/poke-community/backend/internal/votes"
)

// Handler combines all handler types
type Handler struct {
	Auth         *AuthHandler
	Automation   *AutomationHandler
	Subscription *SubscriptionHandler
	Unsubscribe  *UnsubscribeHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(db *gorm.DB, cfg *config.Config) *Handler {
	aggregator := votes.NewAggregator(db)
	repo := automations.NewRepository(db, aggregator)
	registry := subscriptions.NewRegistry(db)
	tokens := unsubscribe.NewTokenService(cfg.UnsubscribeSecret)

	var mailer notify.Mailer
	if cfg.ResendAPIKey != "" {
		mailer = notify.NewResendMailer(cfg.ResendAPIKey, "poke.community <updates@emails.poke.community>")
	}
	dispatcher := notify.NewDispatcher(registry, tokens, mailer, cfg.SiteURL)

	return &Handler{
		Auth:         NewAuthHandler(db, []byte(cfg.JWTSecret)),
		Automation:   NewAutomationHandler(repo, aggregator, dispatcher),
		Subscription: NewSubscriptionHandler(registry),
		Unsubscribe:  NewUnsubscribeHandler(registry, tokens),
	}
}
