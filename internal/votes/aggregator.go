// Package votes computes vote aggregates and applies the three-way vote
// toggle. Totals are always derived from the votes table; nothing is
// denormalized, so totals cannot drift.
package votes

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/poke-community/backend/internal/apperrors"
	"github.com/poke-community/backend/internal/models"
)

// RecentWindow is the trailing window counted as "recent" for trending.
const RecentWindow = 7 * 24 * time.Hour

// Stats holds the derived vote aggregates for one automation.
type Stats struct {
	VoteTotal   int `json:"vote_total"`
	RecentVotes int `json:"recent_votes"`
}

// ToggleOutcome reports which arm of the three-way toggle applied.
type ToggleOutcome string

const (
	VoteRemoved ToggleOutcome = "removed"
	VoteUpdated ToggleOutcome = "updated"
	VoteCreated ToggleOutcome = "created"
)

type Aggregator struct {
	db *gorm.DB

	// now is swappable in tests
	now func() time.Time
}

func NewAggregator(db *gorm.DB) *Aggregator {
	return &Aggregator{db: db, now: time.Now}
}

func (a *Aggregator) recentCutoff() time.Time {
	return a.now().UTC().Add(-RecentWindow)
}

type statsRow struct {
	AutomationID string
	VoteTotal    int
	RecentVotes  int
}

// StatsFor returns the vote aggregates for the given automations. Ids with
// no votes are absent from the map; callers treat absence as zero.
func (a *Aggregator) StatsFor(ids []string) (map[string]Stats, error) {
	stats := make(map[string]Stats, len(ids))
	if len(ids) == 0 {
		return stats, nil
	}

	var rows []statsRow
	err := a.db.Model(&models.Vote{}).
		Select(
			"automation_id, COALESCE(SUM(value), 0) AS vote_total, "+
				"COALESCE(SUM(CASE WHEN created_at >= ? THEN value ELSE 0 END), 0) AS recent_votes",
			a.recentCutoff(),
		).
		Where("automation_id IN ?", ids).
		Group("automation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.NewPersistenceError("Unable to load vote statistics", err)
	}

	for _, row := range rows {
		stats[row.AutomationID] = Stats{VoteTotal: row.VoteTotal, RecentVotes: row.RecentVotes}
	}
	return stats, nil
}

type userVoteRow struct {
	AutomationID string
	Value        int
}

// UserVotes returns the viewer's own vote per automation. An empty userID
// (anonymous viewer) yields an empty map.
func (a *Aggregator) UserVotes(userID string, ids []string) (map[string]int, error) {
	userVotes := make(map[string]int, len(ids))
	if userID == "" || len(ids) == 0 {
		return userVotes, nil
	}

	var rows []userVoteRow
	err := a.db.Model(&models.Vote{}).
		Select("automation_id, value").
		Where("user_id = ? AND automation_id IN ?", userID, ids).
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.NewPersistenceError("Unable to load vote preferences", err)
	}

	for _, row := range rows {
		userVotes[row.AutomationID] = row.Value
	}
	return userVotes, nil
}

// StatsQuery returns the grouped aggregate over votes as a subquery,
// suitable for joining onto automations when ranking by "top" or
// "trending". It is the query equivalent of the automation_vote_stats view.
func (a *Aggregator) StatsQuery() *gorm.DB {
	return a.db.Model(&models.Vote{}).
		Select(
			"automation_id, COALESCE(SUM(value), 0) AS vote_total, "+
				"COALESCE(SUM(CASE WHEN created_at >= ? THEN value ELSE 0 END), 0) AS recent_votes",
			a.recentCutoff(),
		).
		Group("automation_id")
}

// Toggle applies the three-way vote toggle for one (user, automation) pair:
// an existing vote with the same value is removed, a different value is
// updated, and no vote inserts one. The whole operation runs in a single
// transaction and the insert arm upserts on the (automation, user) unique
// index, so a concurrent duplicate insert lands in the update arm instead
// of surfacing a constraint error.
func (a *Aggregator) Toggle(userID, automationID string, value int) (ToggleOutcome, error) {
	if value != 1 && value != -1 {
		return "", apperrors.NewValidationError(map[string]string{"value": "Vote value must be -1 or 1."})
	}
	if userID == "" {
		return "", apperrors.NewAuthenticationError("You need to be signed in to vote.")
	}

	var outcome ToggleOutcome
	err := a.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Vote
		err := tx.Where("automation_id = ? AND user_id = ?", automationID, userID).First(&existing).Error

		switch {
		case err == nil && existing.Value == value:
			outcome = VoteRemoved
			return tx.Delete(&existing).Error

		case err == nil:
			outcome = VoteUpdated
			return tx.Model(&existing).Update("value", value).Error

		case errors.Is(err, gorm.ErrRecordNotFound):
			outcome = VoteCreated
			vote := models.Vote{
				AutomationID: automationID,
				UserID:       userID,
				Value:        value,
			}
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "automation_id"}, {Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&vote).Error

		default:
			return err
		}
	})
	if err != nil {
		var validationErr *apperrors.ValidationError
		if errors.As(err, &validationErr) || apperrors.IsErrorCode(err, apperrors.ErrUnauthenticated) {
			return "", err
		}
		return "", apperrors.NewPersistenceError("Unable to submit vote", err)
	}

	return outcome, nil
}
