package notify_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/poke-community/backend/internal/models"
	"github.com/poke-community/backend/internal/notify"
	"github.com/poke-community/backend/internal/subscriptions"
	"github.com/poke-community/backend/internal/unsubscribe"
)

// fakeMailer records sent messages; fanOut sends concurrently, so access
// is guarded.
type fakeMailer struct {
	mu       sync.Mutex
	messages []notify.Message
	fail     bool
}

func (m *fakeMailer) Send(ctx context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("failed to connect to mail provider")
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *fakeMailer) sent() []notify.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notify.Message, len(m.messages))
	copy(out, m.messages)
	sort.Slice(out, func(i, j int) bool { return out[i].To < out[j].To })
	return out
}

func setupDispatcher(t *testing.T, mailer notify.Mailer) (*notify.Dispatcher, *subscriptions.Registry, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Profile{}, &models.Subscription{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	registry := subscriptions.NewRegistry(db)
	tokens := unsubscribe.NewTokenService("test-secret")
	return notify.NewDispatcher(registry, tokens, mailer, "https://poke.community/"), registry, db
}

func subscribe(t *testing.T, registry *subscriptions.Registry, db *gorm.DB, userID, email string, category models.SubscriptionType) {
	t.Helper()
	row := models.Profile{ID: userID, Email: email, Password: "x"}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("Failed to seed profile: %v", err)
	}
	if err := registry.Set(userID, category, true); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
}

func TestAnnounceSendsPerRecipient(t *testing.T) {
	mailer := &fakeMailer{}
	dispatcher, registry, db := setupDispatcher(t, mailer)

	subscribe(t, registry, db, "creator", "creator@example.com", models.SubscriptionNew)
	subscribe(t, registry, db, "fan-a", "a@example.com", models.SubscriptionNew)
	subscribe(t, registry, db, "fan-b", "b@example.com", models.SubscriptionNew)

	dispatcher.AnnounceAutomation(context.Background(), "creator", "Smart Inbox Routing", "smart-inbox-routing")

	sent := mailer.sent()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2 (creator excluded)", len(sent))
	}
	for _, msg := range sent {
		if msg.To == "creator@example.com" {
			t.Error("creator received their own announcement")
		}
		if !strings.Contains(msg.Subject, "Smart Inbox Routing") {
			t.Errorf("subject %q does not name the automation", msg.Subject)
		}
		if !strings.Contains(msg.HTML, "https://poke.community/automations/smart-inbox-routing") {
			t.Error("HTML body missing automation link")
		}
		if msg.Headers["List-Unsubscribe-Post"] != "List-Unsubscribe=One-Click" {
			t.Error("missing one-click unsubscribe header")
		}
	}
}

func TestAnnounceUnsubscribeLinksArePerRecipient(t *testing.T) {
	mailer := &fakeMailer{}
	dispatcher, registry, db := setupDispatcher(t, mailer)

	subscribe(t, registry, db, "fan-a", "a@example.com", models.SubscriptionNew)
	subscribe(t, registry, db, "fan-b", "b@example.com", models.SubscriptionNew)

	dispatcher.AnnounceAutomation(context.Background(), "creator", "Smart Inbox Routing", "smart-inbox-routing")

	sent := mailer.sent()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	if sent[0].Headers["List-Unsubscribe"] == sent[1].Headers["List-Unsubscribe"] {
		t.Error("recipients share an unsubscribe link")
	}

	// Each unsubscribe link deactivates exactly that recipient.
	for _, msg := range sent {
		if !strings.Contains(msg.Text, "/unsubscribe/") {
			t.Errorf("text body for %s missing unsubscribe link", msg.To)
		}
		if !strings.Contains(msg.Text, "type=new") {
			t.Errorf("unsubscribe link for %s missing category", msg.To)
		}
	}
}

func TestAnnounceWithNilMailerIsNoOp(t *testing.T) {
	dispatcher, registry, db := setupDispatcher(t, nil)
	subscribe(t, registry, db, "fan-a", "a@example.com", models.SubscriptionNew)

	// Must not panic.
	dispatcher.AnnounceAutomation(context.Background(), "creator", "Smart Inbox Routing", "smart-inbox-routing")
}

func TestAnnounceSwallowsSendFailures(t *testing.T) {
	mailer := &fakeMailer{fail: true}
	dispatcher, registry, db := setupDispatcher(t, mailer)
	subscribe(t, registry, db, "fan-a", "a@example.com", models.SubscriptionNew)

	// Failures are logged, never returned or panicked.
	dispatcher.AnnounceAutomation(context.Background(), "creator", "Smart Inbox Routing", "smart-inbox-routing")
}

func TestTrendingDigestBodies(t *testing.T) {
	mailer := &fakeMailer{}
	dispatcher, registry, db := setupDispatcher(t, mailer)

	subscribe(t, registry, db, "fan-a", "a@example.com", models.SubscriptionTrending)

	items := []notify.DigestItem{
		{Title: "Smart Inbox Routing", Slug: "smart-inbox-routing", VoteTotal: 12},
		{Title: "Morning Briefing", Slug: "morning-briefing", VoteTotal: 7},
	}
	dispatcher.SendTrendingDigest(context.Background(), items)

	sent := mailer.sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}

	msg := sent[0]
	if msg.Subject != "Trending automations on poke.community" {
		t.Errorf("subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "smart-inbox-routing") || !strings.Contains(msg.HTML, "morning-briefing") {
		t.Error("HTML digest missing ranked items")
	}
	if !strings.Contains(msg.Text, "1. Smart Inbox Routing (12 votes)") {
		t.Errorf("text digest missing ranked line:\n%s", msg.Text)
	}
	if !strings.Contains(msg.Text, "2. Morning Briefing (7 votes)") {
		t.Errorf("text digest missing second ranked line:\n%s", msg.Text)
	}
}

func TestTrendingDigestSkipsWhenEmpty(t *testing.T) {
	mailer := &fakeMailer{}
	dispatcher, registry, db := setupDispatcher(t, mailer)
	subscribe(t, registry, db, "fan-a", "a@example.com", models.SubscriptionTrending)

	dispatcher.SendTrendingDigest(context.Background(), nil)

	if len(mailer.sent()) != 0 {
		t.Error("empty digest should send nothing")
	}
}
