// Package notify fans out notification emails to subscribers. Dispatch is
// best-effort: failures are logged and swallowed, never surfaced to the
// action that triggered them.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/poke-community/backend/internal/models"
	"github.com/poke-community/backend/internal/subscriptions"
	"github.com/poke-community/backend/internal/unsubscribe"
)

const sendConcurrency = 8

type Dispatcher struct {
	registry *subscriptions.Registry
	tokens   *unsubscribe.TokenService
	mailer   Mailer
	siteURL  string
}

// NewDispatcher wires the dispatcher. A nil mailer (no API key configured)
// turns every dispatch into a no-op.
func NewDispatcher(registry *subscriptions.Registry, tokens *unsubscribe.TokenService, mailer Mailer, siteURL string) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		tokens:   tokens,
		mailer:   mailer,
		siteURL:  strings.TrimRight(siteURL, "/"),
	}
}

// AnnounceAutomation emails every active "new"-subscriber except the
// creator. One email per recipient so each carries its own unsubscribe
// link.
func (d *Dispatcher) AnnounceAutomation(ctx context.Context, creatorID, title, slug string) {
	if d.mailer == nil {
		return
	}

	recipients, err := d.registry.ActiveRecipients(models.SubscriptionNew, creatorID)
	if err != nil {
		log.Printf("Unable to load subscribers: %v", err)
		return
	}
	if len(recipients) == 0 {
		return
	}

	automationURL := d.siteURL + "/automations/" + slug

	d.fanOut(ctx, recipients, models.SubscriptionNew, func(unsubscribeURL string) Message {
		return Message{
			Subject: "New automation on poke.community: " + title,
			HTML:    announcementHTML(title, automationURL, unsubscribeURL),
			Text:    announcementText(title, automationURL, unsubscribeURL),
			Headers: unsubscribeHeaders(unsubscribeURL),
		}
	})
}

// DigestItem is one ranked entry in the trending digest.
type DigestItem struct {
	Title     string
	Slug      string
	VoteTotal int
}

// SendTrendingDigest emails the ranked trending list to every active
// "trending"-subscriber. Run from an external schedule.
func (d *Dispatcher) SendTrendingDigest(ctx context.Context, items []DigestItem) {
	if d.mailer == nil || len(items) == 0 {
		return
	}

	recipients, err := d.registry.ActiveRecipients(models.SubscriptionTrending, "")
	if err != nil {
		log.Printf("Unable to load trending subscribers: %v", err)
		return
	}
	if len(recipients) == 0 {
		return
	}

	var listItems strings.Builder
	for _, item := range items {
		automationURL := d.siteURL + "/automations/" + item.Slug
		fmt.Fprintf(&listItems, `<li><a href="%s">%s</a> – %d votes</li>`, automationURL, item.Title, item.VoteTotal)
	}

	d.fanOut(ctx, recipients, models.SubscriptionTrending, func(unsubscribeURL string) Message {
		return Message{
			Subject: "Trending automations on poke.community",
			HTML:    trendingHTML(listItems.String(), unsubscribeURL),
			Text:    trendingText(items, unsubscribeURL),
			Headers: unsubscribeHeaders(unsubscribeURL),
		}
	})
}

func (d *Dispatcher) fanOut(ctx context.Context, recipients []subscriptions.Recipient, category models.SubscriptionType, build func(unsubscribeURL string) Message) {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(sendConcurrency)

	for _, recipient := range recipients {
		group.Go(func() error {
			unsubscribeURL, err := d.tokens.URL(d.siteURL, recipient.SubscriptionID, category)
			if err != nil {
				log.Printf("Unable to build unsubscribe link: %v", err)
				return nil
			}

			msg := build(unsubscribeURL)
			msg.To = recipient.Email
			if err := d.mailer.Send(ctx, msg); err != nil {
				log.Printf("Unable to send %s notification to %s: %v", category, recipient.Email, err)
			}
			return nil
		})
	}

	// Errors were logged per recipient; the group never returns one.
	_ = group.Wait()
}

func unsubscribeHeaders(unsubscribeURL string) map[string]string {
	return map[string]string{
		"List-Unsubscribe":      "<" + unsubscribeURL + ">",
		"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
	}
}

func announcementHTML(title, automationURL, unsubscribeURL string) string {
	return strings.Join([]string{
		`<p>Hey community 👋</p>`,
		`<p>A new automation just dropped on <strong>poke.community</strong>:</p>`,
		fmt.Sprintf(`<p><a href="%s">%s</a></p>`, automationURL, title),
		`<p>Give it a look, vote, and let the creator know what you think.</p>`,
		fmt.Sprintf(`<p>If you no longer want to receive these updates you can <a href="%s">unsubscribe instantly</a>.</p>`, unsubscribeURL),
		`<hr />`,
		`<small>poke.community is an independent community project and not affiliated with poke.</small>`,
	}, "")
}

func announcementText(title, automationURL, unsubscribeURL string) string {
	return strings.Join([]string{
		"Hey community,",
		"",
		"A new automation just dropped on poke.community:",
		title,
		automationURL,
		"",
		"Vote and share your thoughts with the creator.",
		"",
		"To unsubscribe instantly, visit: " + unsubscribeURL,
		"",
		"poke.community is an independent community project and not affiliated with poke.",
	}, "\n")
}

func trendingHTML(listItems, unsubscribeURL string) string {
	return strings.Join([]string{
		`<p>Here are the automations people loved this week:</p>`,
		"<ul>" + listItems + "</ul>",
		`<p>Vote for your favorites or submit your own automation on poke.community.</p>`,
		fmt.Sprintf(`<p>If you'd rather not receive trending updates you can <a href="%s">unsubscribe here</a>.</p>`, unsubscribeURL),
		`<hr />`,
		`<small>poke.community is an independent project and not affiliated with Poke.</small>`,
	}, "")
}

func trendingText(items []DigestItem, unsubscribeURL string) string {
	lines := []string{
		"Here are the automations people loved this week:",
		"",
	}
	for i, item := range items {
		lines = append(lines, fmt.Sprintf("%d. %s (%d votes)", i+1, item.Title, item.VoteTotal))
	}
	lines = append(lines,
		"",
		"Submit your own automations or vote on others at poke.community.",
		"",
		"To unsubscribe instantly, visit: "+unsubscribeURL,
		"",
		"poke.community is an independent project and not affiliated with Poke.",
	)
	return strings.Join(lines, "\n")
}
