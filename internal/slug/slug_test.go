package slug_test

import (
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/poke-community/backend/internal/models"
	"github.com/poke-community/backend/internal/slug"
)

func TestMake(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Smart Inbox Routing", "smart-inbox-routing"},
		{"Team@Scale: Growth+Ops", "team-scale-growth-ops"},
		{"  Launch --- Plan  ", "launch-plan"},
		{"UPPER case Title", "upper-case-title"},
		{"123 go", "123-go"},
		{"?!?!", ""},
	}

	for _, tc := range cases {
		if got := slug.Make(tc.in); got != tc.want {
			t.Errorf("Make(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Profile{},
		&models.Automation{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

func TestUniqueWithoutCollision(t *testing.T) {
	db := setupTestDB(t)

	got, err := slug.Unique(db, "Campaign Orchestrator")
	if err != nil {
		t.Fatalf("Unique returned error: %v", err)
	}
	if got != "campaign-orchestrator" {
		t.Errorf("Unique = %q, want %q", got, "campaign-orchestrator")
	}
}

func TestUniqueAppendsSuffixOnCollision(t *testing.T) {
	db := setupTestDB(t)

	existing := models.Automation{
		UserID: "user-1",
		Title:  "Campaign Orchestrator",
		Prompt: "do the thing",
		Slug:   "campaign-orchestrator",
	}
	if err := db.Create(&existing).Error; err != nil {
		t.Fatalf("Failed to seed automation: %v", err)
	}

	got, err := slug.Unique(db, "Campaign Orchestrator")
	if err != nil {
		t.Fatalf("Unique returned error: %v", err)
	}
	if got == "campaign-orchestrator" {
		t.Fatal("Unique returned the colliding slug")
	}
	if !strings.HasPrefix(got, "campaign-orchestrator-") {
		t.Errorf("Unique = %q, want prefix %q", got, "campaign-orchestrator-")
	}
}

func TestUniqueGeneratesBaseForSymbolOnlyTitle(t *testing.T) {
	db := setupTestDB(t)

	got, err := slug.Unique(db, "?!?!")
	if err != nil {
		t.Fatalf("Unique returned error: %v", err)
	}
	if got == "" {
		t.Fatal("Unique returned an empty slug")
	}
	if !strings.HasPrefix(got, "automation-") {
		t.Errorf("Unique = %q, want generated %q base", got, "automation-")
	}
}
