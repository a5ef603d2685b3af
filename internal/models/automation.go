package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Automation struct {
	ID          string  `gorm:"primaryKey" json:"id"`
	UserID      string  `gorm:"index;not null" json:"user_id"`
	Owner       Profile `gorm:"foreignKey:UserID" json:"owner"`
	Title       string  `gorm:"not null" json:"title"`
	Summary     string  `json:"summary"`
	Description string  `json:"description"`
	Prompt      string  `gorm:"not null" json:"prompt"`
	// Tags is stored comma-separated; TagList splits it for responses.
	Tags string `json:"-"`
	Slug string `gorm:"uniqueIndex;not null" json:"slug"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Automation) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

func (a *Automation) TagList() []string {
	if a.Tags == "" {
		return []string{}
	}
	parts := strings.Split(a.Tags, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

// AutomationFields carries the submission form values for create/update.
type AutomationFields struct {
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
	Tags        string `json:"tags"` // comma-separated
}

// AutomationView is an automation joined with its derived vote state for
// one viewer.
type AutomationView struct {
	Automation
	VoteTotal   int `json:"vote_total"`
	RecentVotes int `json:"recent_votes"`
	UserVote    int `json:"user_vote"`
}
