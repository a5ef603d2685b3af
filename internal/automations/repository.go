// Package automations is the read/write data-access layer for automations.
// Every operation takes the acting user's identity as an explicit argument;
// nothing reaches into ambient request state.
package automations

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/poke-community/backend/internal/apperrors"
	"github.com/poke-community/backend/internal/models"
	"github.com/poke-community/backend/internal/slug"
	"github.com/poke-community/backend/internal/votes"
)

const (
	titleMinLen       = 4
	titleMaxLen       = 120
	summaryMaxLen     = 180
	descriptionMaxLen = 8000
)

// OrderBy selects the list ordering mode.
type OrderBy string

const (
	OrderNew OrderBy = "new" // creation time descending
	OrderTop OrderBy = "top" // vote_total descending
)

type ListOptions struct {
	Search  string
	Limit   int
	OrderBy OrderBy
}

type Repository struct {
	db  *gorm.DB
	agg *votes.Aggregator
}

func NewRepository(db *gorm.DB, agg *votes.Aggregator) *Repository {
	return &Repository{db: db, agg: agg}
}

// List returns automations matching the options, joined with their owner
// profile and the viewer's own vote (zero for anonymous viewers).
func (r *Repository) List(opts ListOptions, viewerID string) ([]models.AutomationView, error) {
	if opts.OrderBy == OrderTop {
		ids, err := r.rankedIDs(opts, "COALESCE(stats.vote_total, 0) DESC, automations.created_at DESC")
		if err != nil {
			return nil, err
		}
		return r.viewsForOrderedIDs(ids, viewerID)
	}

	query := r.applySearch(r.db.Model(&models.Automation{}), opts.Search).
		Preload("Owner").
		Order("created_at DESC")
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	var rows []models.Automation
	if err := query.Find(&rows).Error; err != nil {
		return nil, apperrors.NewPersistenceError("Unable to load automations", err)
	}

	return r.attachVoteState(rows, viewerID)
}

// Trending returns the automations with the most recent-window votes,
// tie-broken by all-time total.
func (r *Repository) Trending(limit int, viewerID string) ([]models.AutomationView, error) {
	opts := ListOptions{Limit: limit}
	ids, err := r.rankedIDs(opts,
		"COALESCE(stats.recent_votes, 0) DESC, COALESCE(stats.vote_total, 0) DESC, automations.created_at DESC")
	if err != nil {
		return nil, err
	}
	return r.viewsForOrderedIDs(ids, viewerID)
}

// ListForOwner returns the owner's automations, newest first.
func (r *Repository) ListForOwner(ownerID string) ([]models.AutomationView, error) {
	if ownerID == "" {
		return nil, apperrors.NewAuthenticationError("You need to be signed in to list your automations.")
	}

	var rows []models.Automation
	err := r.db.Model(&models.Automation{}).
		Preload("Owner").
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.NewPersistenceError("Unable to load your automations", err)
	}

	return r.attachVoteState(rows, ownerID)
}

// GetBySlug returns one automation with vote state for the viewer.
func (r *Repository) GetBySlug(slugValue, viewerID string) (*models.AutomationView, error) {
	var row models.Automation
	err := r.db.Preload("Owner").Where("slug = ?", slugValue).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("Automation")
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError("Unable to load automation", err)
	}

	views, err := r.attachVoteState([]models.Automation{row}, viewerID)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// GetForEditing returns the raw automation row, only to its owner.
func (r *Repository) GetForEditing(id, ownerID string) (*models.Automation, error) {
	if ownerID == "" {
		return nil, apperrors.NewAuthenticationError("You need to be signed in to edit automations.")
	}

	var row models.Automation
	err := r.db.First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("Automation")
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError("Unable to load automation", err)
	}

	if row.UserID != ownerID {
		return nil, apperrors.NewAuthorizationError("You can only edit automations you created.")
	}
	return &row, nil
}

// Create validates the fields, generates a unique slug, and inserts the
// automation for ownerID.
func (r *Repository) Create(fields models.AutomationFields, ownerID string) (*models.Automation, error) {
	if ownerID == "" {
		return nil, apperrors.NewAuthenticationError("You need to sign in before sharing an automation.")
	}

	normalized, fieldErrors := validateFields(fields)
	if len(fieldErrors) > 0 {
		return nil, apperrors.NewValidationError(fieldErrors)
	}

	uniqueSlug, err := slug.Unique(r.db, normalized.Title)
	if err != nil {
		return nil, err
	}

	row := models.Automation{
		UserID:      ownerID,
		Title:       normalized.Title,
		Summary:     normalized.Summary,
		Description: normalized.Description,
		Prompt:      normalized.Prompt,
		Tags:        normalized.Tags,
		Slug:        uniqueSlug,
	}
	if err := r.db.Create(&row).Error; err != nil {
		return nil, apperrors.NewPersistenceError("Unable to create automation", err)
	}

	return &row, nil
}

// Update re-fetches the row, checks ownership, and writes the new fields.
// The slug never changes on update.
func (r *Repository) Update(id string, fields models.AutomationFields, ownerID string) (*models.Automation, error) {
	if ownerID == "" {
		return nil, apperrors.NewAuthenticationError("You need to sign in before updating an automation.")
	}

	normalized, fieldErrors := validateFields(fields)
	if len(fieldErrors) > 0 {
		return nil, apperrors.NewValidationError(fieldErrors)
	}

	var row models.Automation
	err := r.db.First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("Automation")
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError("Unable to load automation", err)
	}

	if row.UserID != ownerID {
		return nil, apperrors.NewAuthorizationError("You can only edit automations you created.")
	}

	updates := map[string]interface{}{
		"title":       normalized.Title,
		"summary":     normalized.Summary,
		"description": normalized.Description,
		"prompt":      normalized.Prompt,
		"tags":        normalized.Tags,
	}
	if err := r.db.Model(&row).Updates(updates).Error; err != nil {
		return nil, apperrors.NewPersistenceError("Unable to update automation", err)
	}

	return &row, nil
}

// Delete removes the automation and its votes, only for the owner.
func (r *Repository) Delete(id, ownerID string) error {
	if ownerID == "" {
		return apperrors.NewAuthenticationError("You need to be signed in to manage automations.")
	}

	var row models.Automation
	err := r.db.First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NewNotFoundError("Automation")
	}
	if err != nil {
		return apperrors.NewPersistenceError("Unable to load automation", err)
	}

	if row.UserID != ownerID {
		return apperrors.NewAuthorizationError("You can only delete automations you created.")
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("automation_id = ?", row.ID).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		return tx.Delete(&row).Error
	})
	if err != nil {
		return apperrors.NewPersistenceError("Unable to delete automation", err)
	}
	return nil
}

// rankedIDs runs the stats join and returns automation ids in rank order.
func (r *Repository) rankedIDs(opts ListOptions, order string) ([]string, error) {
	query := r.applySearch(r.db.Model(&models.Automation{}), opts.Search).
		Joins("LEFT JOIN (?) stats ON stats.automation_id = automations.id", r.agg.StatsQuery()).
		Order(order)
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	var ids []string
	if err := query.Pluck("automations.id", &ids).Error; err != nil {
		return nil, apperrors.NewPersistenceError("Unable to load automations", err)
	}
	return ids, nil
}

func (r *Repository) viewsForOrderedIDs(ids []string, viewerID string) ([]models.AutomationView, error) {
	if len(ids) == 0 {
		return []models.AutomationView{}, nil
	}

	var rows []models.Automation
	if err := r.db.Preload("Owner").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, apperrors.NewPersistenceError("Unable to load automations", err)
	}

	byID := make(map[string]models.Automation, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	ordered := make([]models.Automation, 0, len(ids))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			ordered = append(ordered, row)
		}
	}

	return r.attachVoteState(ordered, viewerID)
}

func (r *Repository) attachVoteState(rows []models.Automation, viewerID string) ([]models.AutomationView, error) {
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	stats, err := r.agg.StatsFor(ids)
	if err != nil {
		return nil, err
	}
	userVotes, err := r.agg.UserVotes(viewerID, ids)
	if err != nil {
		return nil, err
	}

	views := make([]models.AutomationView, len(rows))
	for i, row := range rows {
		views[i] = models.AutomationView{
			Automation:  row,
			VoteTotal:   stats[row.ID].VoteTotal,
			RecentVotes: stats[row.ID].RecentVotes,
			UserVote:    userVotes[row.ID],
		}
	}
	return views, nil
}

func (r *Repository) applySearch(query *gorm.DB, search string) *gorm.DB {
	if search == "" {
		return query
	}
	like := "%" + strings.ToLower(search) + "%"
	return query.Where(
		"LOWER(title) LIKE ? OR LOWER(summary) LIKE ? OR LOWER(description) LIKE ? OR LOWER(prompt) LIKE ? OR LOWER(tags) LIKE ?",
		like, like, like, like, like,
	)
}

func validateFields(fields models.AutomationFields) (models.AutomationFields, map[string]string) {
	normalized := models.AutomationFields{
		Title:       strings.TrimSpace(fields.Title),
		Summary:     strings.TrimSpace(fields.Summary),
		Description: strings.TrimSpace(fields.Description),
		Prompt:      strings.TrimSpace(fields.Prompt),
		Tags:        normalizeTags(fields.Tags),
	}

	fieldErrors := make(map[string]string)
	if len(normalized.Title) < titleMinLen {
		fieldErrors["title"] = "Title must be at least 4 characters long."
	} else if len(normalized.Title) > titleMaxLen {
		fieldErrors["title"] = "Title cannot exceed 120 characters."
	}
	if normalized.Summary == "" {
		fieldErrors["summary"] = "Summary is required."
	} else if len(normalized.Summary) > summaryMaxLen {
		fieldErrors["summary"] = "Summary cannot exceed 180 characters."
	}
	if len(normalized.Description) > descriptionMaxLen {
		fieldErrors["description"] = "Description cannot exceed 8000 characters."
	}
	if normalized.Prompt == "" {
		fieldErrors["prompt"] = "Prompt is required."
	}

	return normalized, fieldErrors
}

func normalizeTags(input string) string {
	if input == "" {
		return ""
	}
	parts := strings.Split(input, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return strings.Join(tags, ",")
}
