// Command digest sends the weekly trending email to active "trending"
// subscribers. It runs once and exits; scheduling (e.g. a weekly cron)
// lives outside this repository.
package main

import (
	"context"
	"log"
	"time"

	"github.com/poke-community/backend/internal/automations"
	"github.com/poke-community/backend/internal/config"
	"github.com/poke-community/backend/internal/database"
	"github.com/poke-community/backend/internal/notify"
	"github.com/poke-community/backend/internal/subscriptions"
	"github.com/poke-community/backend/internal/unsubscribe"
	"github.com/poke-community/backend/internal/votes"
)

const digestSize = 5

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.ResendAPIKey == "" {
		log.Fatal("RESEND_API_KEY is required to send the trending digest")
	}

	dbService, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbService.Close()

	db := dbService.GetDB()
	aggregator := votes.NewAggregator(db)
	repo := automations.NewRepository(db, aggregator)
	registry := subscriptions.NewRegistry(db)
	tokens := unsubscribe.NewTokenService(cfg.UnsubscribeSecret)
	mailer := notify.NewResendMailer(cfg.ResendAPIKey, "poke.community <updates@poke.community>")
	dispatcher := notify.NewDispatcher(registry, tokens, mailer, cfg.SiteURL)

	trending, err := repo.Trending(digestSize, "")
	if err != nil {
		log.Fatalf("Unable to load trending automations: %v", err)
	}
	if len(trending) == 0 {
		log.Println("No trending automations this week, nothing to send")
		return
	}

	items := make([]notify.DigestItem, len(trending))
	for i, view := range trending {
		items[i] = notify.DigestItem{
			Title:     view.Title,
			Slug:      view.Slug,
			VoteTotal: view.VoteTotal,
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	dispatcher.SendTrendingDigest(ctx, items)

	log.Printf("Trending digest dispatched (%d automations)", len(items))
}
