package automations_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/poke-community/backend/internal/apperrors"
	"github.com/poke-community/backend/internal/automations"
	"github.com/poke-community/backend/internal/models"
	"github.com/poke-community/backend/internal/votes"
)

func setupRepo(t *testing.T) (*automations.Repository, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Profile{},
		&models.Automation{},
		&models.Vote{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return automations.NewRepository(db, votes.NewAggregator(db)), db
}

func seedProfile(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	row := models.Profile{ID: id, Email: id + "@example.com", Password: "x"}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("Failed to seed profile: %v", err)
	}
}

func validFields() models.AutomationFields {
	return models.AutomationFields{
		Title:   "Smart Inbox Routing",
		Summary: "Files newsletters and receipts automatically.",
		Prompt:  "When an email arrives, label it by sender type.",
		Tags:    "email, productivity",
	}
}

func mustCreate(t *testing.T, repo *automations.Repository, ownerID string, fields models.AutomationFields) *models.Automation {
	t.Helper()
	row, err := repo.Create(fields, ownerID)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	return row
}

func castVote(t *testing.T, db *gorm.DB, automationID, userID string, value int, age time.Duration) {
	t.Helper()
	vote := models.Vote{AutomationID: automationID, UserID: userID, Value: value}
	if err := db.Create(&vote).Error; err != nil {
		t.Fatalf("Failed to seed vote: %v", err)
	}
	if age > 0 {
		aged := time.Now().UTC().Add(-age)
		err := db.Model(&models.Vote{}).Where("id = ?", vote.ID).Update("created_at", aged).Error
		if err != nil {
			t.Fatalf("Failed to age vote: %v", err)
		}
	}
}

func TestCreateValidation(t *testing.T) {
	repo, db := setupRepo(t)
	seedProfile(t, db, "u1")

	cases := []struct {
		name    string
		mutate  func(*models.AutomationFields)
		field   string
		message string
	}{
		{
			name:    "short title",
			mutate:  func(f *models.AutomationFields) { f.Title = "Hi" },
			field:   "title",
			message: "Title must be at least 4 characters long.",
		},
		{
			name:    "long title",
			mutate:  func(f *models.AutomationFields) { f.Title = strings.Repeat("a", 121) },
			field:   "title",
			message: "Title cannot exceed 120 characters.",
		},
		{
			name:    "missing summary",
			mutate:  func(f *models.AutomationFields) { f.Summary = "   " },
			field:   "summary",
			message: "Summary is required.",
		},
		{
			name:    "long summary",
			mutate:  func(f *models.AutomationFields) { f.Summary = strings.Repeat("a", 181) },
			field:   "summary",
			message: "Summary cannot exceed 180 characters.",
		},
		{
			name:    "long description",
			mutate:  func(f *models.AutomationFields) { f.Description = strings.Repeat("a", 8001) },
			field:   "description",
			message: "Description cannot exceed 8000 characters.",
		},
		{
			name:    "missing prompt",
			mutate:  func(f *models.AutomationFields) { f.Prompt = "" },
			field:   "prompt",
			message: "Prompt is required.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := validFields()
			tc.mutate(&fields)

			_, err := repo.Create(fields, "u1")
			var validationErr *apperrors.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Create returned %v, want validation error", err)
			}
			if got := validationErr.Fields[tc.field]; got != tc.message {
				t.Errorf("field %q message = %q, want %q", tc.field, got, tc.message)
			}
		})
	}
}

func TestCreateAssignsSlugAndOwner(t *testing.T) {
	repo, db := setupRepo(t)
	seedProfile(t, db, "u1")

	row := mustCreate(t, repo, "u1", validFields())
	if row.Slug != "smart-inbox-routing" {
		t.Errorf("slug = %q, want %q", row.Slug, "smart-inbox-routing")
	}
	if row.UserID != "u1" {
		t.Errorf("user_id = %q, want %q", row.UserID, "u1")
	}
	if row.ID == "" {
		t.Error("id was not assigned")
	}

	// Second automation with the same title gets a suffixed slug.
	second := mustCreate(t, repo, "u1", validFields())
	if second.Slug == row.Slug {
		t.Errorf("duplicate slug %q for second automation", second.Slug)
	}
	if !strings.HasPrefix(second.Slug, "smart-inbox-routing-") {
		t.Errorf("second slug = %q, want suffixed form", second.Slug)
	}
}

func TestCreateRequiresSignIn(t *testing.T) {
	repo, _ := setupRepo(t)

	_, err := repo.Create(validFields(), "")
	if !apperrors.IsErrorCode(err, apperrors.ErrUnauthenticated) {
		t.Errorf("Create with no owner returned %v, want unauthenticated", err)
	}
}

func TestListSearchMatchesAcrossFields(t *testing.T) {
	repo, db := setupRepo(t)
	seedProfile(t, db, "u1")

	fields := validFields()
	mustCreate(t, repo, "u1", fields)

	other := validFields()
	other.Title = "Morning Briefing"
	other.Summary = "Summarizes overnight news."
	other.Prompt = "Every morning, gather the top headlines and send a digest."
	other.Tags = "news"
	mustCreate(t, repo, "u1", other)

	cases := []struct {
		search string
		want   string
	}{
		{"INBOX", "Smart Inbox Routing"},       // title, case-insensitive
		{"receipts", "Smart Inbox Routing"},    // summary
		{"label it by", "Smart Inbox Routing"}, // prompt
		{"productivity", "Smart Inbox Routing"},
		{"overnight", "Morning Briefing"},
		{"top headlines", "Morning Briefing"},
	}

	for _, tc := range cases {
		views, err := repo.List(automations.ListOptions{Search: tc.search}, "")
		if err != nil {
			t.Fatalf("List(%q) returned error: %v", tc.search, err)
		}
		if len(views) != 1 || views[0].Title != tc.want {
			t.Errorf("List(%q) = %d rows, want just %q", tc.search, len(views), tc.want)
		}
	}

	views, err := repo.List(automations.ListOptions{Search: "no-such-term"}, "")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(views) != 0 {
		t.Errorf("List(no match) = %d rows, want 0", len(views))
	}
}

func TestListOrderTop(t *testing.T) {
	repo, db := setupRepo(t)
	seedProfile(t, db, "u1")

	low := validFields()
	low.Title = "Low Scorer"
	lowRow := mustCreate(t, repo, "u1", low)

	high := validFields()
	high.Title = "High Scorer"
	highRow := mustCreate(t, repo, "u1", high)

	castVote(t, db, highRow.ID, "v1", 1, 0)
	castVote(t, db, highRow.ID, "v2", 1, 0)
	castVote(t, db, lowRow.ID, "v1", 1, 0)

	views, err := repo.List(automations.ListOptions{OrderBy: automations.OrderTop}, "")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("List returned %d rows, want 2", len(views))
	}
	if views[0].Title != "High Scorer" || views[1].Title != "Low Scorer" {
		t.Errorf("top order = [%q, %q], want high first", views[0].Title, views[1].Title)
	}
	if views[0].VoteTotal != 2 || views[1].VoteTotal != 1 {
		t.Errorf("vote totals = [%d, %d], want [2, 1]", views[0].VoteTotal, views[1].VoteTotal)
	}
}

func TestTrendingPrefersRecentVotes(t *testing.T) {
	repo, db := setupRepo(t)
	seedProfile(t, db, "u1")

	stale := validFields()
	stale.Title = "Stale Favorite"
	staleRow := mustCreate(t, repo, "u1", stale)

	fresh := validFields()
	fresh.Title = "Fresh Riser"
	freshRow := mustCreate(t, repo, "u1", fresh)

	// Stale has the higher all-time total, but every vote is old.
	castVote(t, db, staleRow.ID, "v1", 1, 10*24*time.Hour)
	castVote(t, db, staleRow.ID, "v2", 1, 10*24*time.Hour)
	castVote(t, db, staleRow.ID, "v3", 1, 10*24*time.Hour)
	castVote(t, db, freshRow.ID, "v1", 1, 0)

	views, err := repo.Trending(10, "")
	if err != nil {
		t.Fatalf("Trending returned error: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("Trending returned %d rows, want 2", len(views))
	}
	if views[0].Title != "Fresh Riser" {
		t.Errorf("trending first = %q, want %q", views[0].Title, "Fresh Riser")
	}
	if views[0].RecentVotes != 1 || views[1].RecentVotes != 0 {
		t.Errorf("recent votes = [%d, %d], want [1, 0]", views[0].RecentVotes, views[1].RecentVotes)
	}
	if views[1].VoteTotal != 3 {
		t.Errorf("stale vote_total = %d, want 3", views[1].VoteTotal)
	}
}

func TestTrendingTieBreaksOnTotal(t *testing.T) {
	repo, db := setupRepo(t)
	seedProfile(t, db, "u1")

	a := validFields()
	a.Title = "Equal Recent A"
	aRow := mustCreate(t, repo, "u1", a)

	b := validFields()
	b.Title = "Equal Recent B"
	bRow := mustCreate(t, repo, "u1", b)

	// Same recent count, but B carries more history.
	castVote(t, db, aRow.ID, "v1", 1, 0)
	castVote(t, db, bRow.ID, "v1", 1, 0)
	castVote(t, db, bRow.ID, "v2", 1, 10*24*time.Hour)

	views, err := repo.Trending(10, "")
	if err != nil {
		t.Fatalf("Trending returned error: %v", err)
	}
	if len(views) != 2 || views[0].Title != "Equal Recent B" {
		t.Fatalf("trending order does not tie-break on vote_total: %+v", titlesOf(views))
	}
}

func TestGetBySlugAttachesViewerVote(t *testing.T) {
	repo, db := setupRepo(t)
	seedProfile(t, db, "u1")

	row := mustCreate(t, repo, "u1", validFields())
	castVote(t, db, row.ID, "viewer", -1, 0)
	castVote(t, db, row.ID, "someone-else", 1, 0)

	view, err := repo.GetBySlug(row.Slug, "viewer")
	if err != nil {
		t.Fatalf("GetBySlug returned error: %v", err)
	}
	if view.UserVote != -1 {
		t.Errorf("user_vote = %d, want -1", view.UserVote)
	}
	if view.VoteTotal != 0 {
		t.Errorf("vote_total = %d, want 0", view.VoteTotal)
	}

	// Anonymous viewers see no user vote.
	anon, err := repo.GetBySlug(row.Slug, "")
	if err != nil {
		t.Fatalf("GetBySlug returned error: %v", err)
	}
	if anon.UserVote != 0 {
		t.Errorf("anonymous user_vote = %d, want 0", anon.UserVote)
	}
}

func TestGetBySlugNotFound(t *testing.T) {
	repo, _ := setupRepo(t)

	_, err := repo.GetBySlug("missing", "")
	if !apperrors.IsErrorCode(err, apperrors.ErrNotFound) {
		t.Errorf("GetBySlug returned %v, want not found", err)
	}
}

func TestUpdateEnforcesOwnership(t *testing.T) {
	repo, db := setupRepo(t)
	seedProfile(t, db, "u1")
	seedProfile(t, db, "u2")

	row := mustCreate(t, repo, "u1", validFields())

	fields := validFields()
	fields.Title = "Hijacked Title"
	_, err := repo.Update(row.ID, fields, "u2")
	if !apperrors.IsErrorCode(err, apperrors.ErrForbidden) {
		t.Errorf("Update by non-owner returned %v, want forbidden", err)
	}
}

func TestUpdateKeepsSlug(t *testing.T) {
	repo, db := setupRepo(t)
	seedProfile(t, db, "u1")

	row := mustCreate(t, repo, "u1", validFields())

	fields := validFields()
	fields.Title = "Completely Renamed Automation"
	updated, err := repo.Update(row.ID, fields, "u1")
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Title != "Completely Renamed Automation" {
		t.Errorf("title = %q, want updated title", updated.Title)
	}
	if updated.Slug != row.Slug {
		t.Errorf("slug changed on update: %q -> %q", row.Slug, updated.Slug)
	}
}

func TestGetForEditingEnforcesOwnership(t *testing.T) {
	repo, db := setupRepo(t)
	seedProfile(t, db, "u1")

	row := mustCreate(t, repo, "u1", validFields())

	if _, err := repo.GetForEditing(row.ID, "u1"); err != nil {
		t.Fatalf("GetForEditing by owner returned error: %v", err)
	}
	if _, err := repo.GetForEditing(row.ID, "u2"); !apperrors.IsErrorCode(err, apperrors.ErrForbidden) {
		t.Errorf("GetForEditing by non-owner returned %v, want forbidden", err)
	}
	if _, err := repo.GetForEditing("missing", "u1"); !apperrors.IsErrorCode(err, apperrors.ErrNotFound) {
		t.Errorf("GetForEditing of missing row returned %v, want not found", err)
	}
}

func TestDeleteCascadesVotes(t *testing.T) {
	repo, db := setupRepo(t)
	seedProfile(t, db, "u1")

	row := mustCreate(t, repo, "u1", validFields())
	castVote(t, db, row.ID, "v1", 1, 0)
	castVote(t, db, row.ID, "v2", -1, 0)

	if err := repo.Delete(row.ID, "u2"); !apperrors.IsErrorCode(err, apperrors.ErrForbidden) {
		t.Fatalf("Delete by non-owner returned %v, want forbidden", err)
	}
	if err := repo.Delete(row.ID, "u1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	var voteCount int64
	if err := db.Model(&models.Vote{}).Where("automation_id = ?", row.ID).Count(&voteCount).Error; err != nil {
		t.Fatalf("Failed to count votes: %v", err)
	}
	if voteCount != 0 {
		t.Errorf("votes remaining after delete = %d, want 0", voteCount)
	}

	if err := repo.Delete(row.ID, "u1"); !apperrors.IsErrorCode(err, apperrors.ErrNotFound) {
		t.Errorf("Delete of removed row returned %v, want not found", err)
	}
}

func TestListForOwnerFiltersByOwner(t *testing.T) {
	repo, db := setupRepo(t)
	seedProfile(t, db, "u1")
	seedProfile(t, db, "u2")

	mine := validFields()
	mine.Title = "Mine Alone"
	mustCreate(t, repo, "u1", mine)

	theirs := validFields()
	theirs.Title = "Someone Elses"
	mustCreate(t, repo, "u2", theirs)

	views, err := repo.ListForOwner("u1")
	if err != nil {
		t.Fatalf("ListForOwner returned error: %v", err)
	}
	if len(views) != 1 || views[0].Title != "Mine Alone" {
		t.Errorf("ListForOwner = %+v, want just the owner's automation", titlesOf(views))
	}

	if _, err := repo.ListForOwner(""); !apperrors.IsErrorCode(err, apperrors.ErrUnauthenticated) {
		t.Errorf("ListForOwner with no owner returned %v, want unauthenticated", err)
	}
}

func titlesOf(views []models.AutomationView) []string {
	titles := make([]string, len(views))
	for i, view := range views {
		titles[i] = view.Title
	}
	return titles
}
