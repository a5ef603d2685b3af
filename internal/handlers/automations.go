package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/poke-community/backend/internal/automations"
	"github.com/poke-community/backend/internal/middleware"
	"github.com/poke-community/backend/internal/models"
	"github.com/poke-community/backend/internal/notify"
	"github.com/poke-community/backend/internal/votes"
)

const trendingDefaultLimit = 6

type AutomationHandler struct {
	repo       *automations.Repository
	agg        *votes.Aggregator
	dispatcher *notify.Dispatcher
}

func NewAutomationHandler(repo *automations.Repository, agg *votes.Aggregator, dispatcher *notify.Dispatcher) *AutomationHandler {
	return &AutomationHandler{repo: repo, agg: agg, dispatcher: dispatcher}
}

// List returns automations filtered by ?search=, ?order= (new|top) and
// ?limit=. The viewer's own vote is attached when authenticated.
func (h *AutomationHandler) List(c *gin.Context) {
	opts := automations.ListOptions{
		Search:  c.Query("search"),
		OrderBy: automations.OrderNew,
	}
	if c.Query("order") == string(automations.OrderTop) {
		opts.OrderBy = automations.OrderTop
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		opts.Limit = limit
	}

	views, err := h.repo.List(opts, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.present(views))
}

// Trending returns the automations with the most votes in the last week.
func (h *AutomationHandler) Trending(c *gin.Context) {
	limit := trendingDefaultLimit
	if parsed, err := strconv.Atoi(c.Query("limit")); err == nil && parsed > 0 {
		limit = parsed
	}

	views, err := h.repo.Trending(limit, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.present(views))
}

// GetBySlug returns a single automation by slug
func (h *AutomationHandler) GetBySlug(c *gin.Context) {
	view, err := h.repo.GetBySlug(c.Param("slug"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.presentOne(*view))
}

// GetForEditing returns the raw row for the edit form, owner only
func (h *AutomationHandler) GetForEditing(c *gin.Context) {
	row, err := h.repo.GetForEditing(c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":          row.ID,
		"title":       row.Title,
		"summary":     row.Summary,
		"description": row.Description,
		"prompt":      row.Prompt,
		"tags":        row.TagList(),
		"slug":        row.Slug,
		"created_at":  row.CreatedAt,
		"updated_at":  row.UpdatedAt,
	})
}

// ListMine returns the authenticated user's automations
func (h *AutomationHandler) ListMine(c *gin.Context) {
	views, err := h.repo.ListForOwner(middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.present(views))
}

// Create publishes a new automation and fans out the announcement email.
// The announcement is fire-and-forget: a send failure never fails the
// creation.
func (h *AutomationHandler) Create(c *gin.Context) {
	var fields models.AutomationFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.UserID(c)
	row, err := h.repo.Create(fields, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		h.dispatcher.AnnounceAutomation(ctx, userID, row.Title, row.Slug)
	}()

	c.JSON(http.StatusCreated, gin.H{
		"message": "Automation published!",
		"slug":    row.Slug,
		"id":      row.ID,
	})
}

// Update edits an existing automation, owner only
func (h *AutomationHandler) Update(c *gin.Context) {
	var fields models.AutomationFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	row, err := h.repo.Update(c.Param("id"), fields, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Automation updated!",
		"slug":    row.Slug,
	})
}

// Delete removes an automation, owner only
func (h *AutomationHandler) Delete(c *gin.Context) {
	if err := h.repo.Delete(c.Param("id"), middleware.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Automation deleted successfully"})
}

// Vote applies the three-way vote toggle and returns the fresh aggregates
// for the automation.
func (h *AutomationHandler) Vote(c *gin.Context) {
	var input models.VoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Vote value must be -1 or 1"})
		return
	}

	automationID := c.Param("id")
	outcome, err := h.agg.Toggle(middleware.UserID(c), automationID, input.Value)
	if err != nil {
		respondError(c, err)
		return
	}

	stats, err := h.agg.StatsFor([]string{automationID})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"outcome":      outcome,
		"vote_total":   stats[automationID].VoteTotal,
		"recent_votes": stats[automationID].RecentVotes,
	})
}

func (h *AutomationHandler) present(views []models.AutomationView) []gin.H {
	// Empty array, not null
	responses := make([]gin.H, 0, len(views))
	for _, view := range views {
		responses = append(responses, h.presentOne(view))
	}
	return responses
}

func (h *AutomationHandler) presentOne(view models.AutomationView) gin.H {
	var ownerName *string
	var ownerAvatar *string
	if view.Owner.ID != "" {
		ownerName = view.Owner.Name
		ownerAvatar = view.Owner.AvatarURL
	}

	return gin.H{
		"id":           view.ID,
		"title":        view.Title,
		"summary":      view.Summary,
		"description":  view.Description,
		"prompt":       view.Prompt,
		"tags":         view.TagList(),
		"slug":         view.Slug,
		"owner": gin.H{
			"id":         view.UserID,
			"name":       ownerName,
			"avatar_url": ownerAvatar,
		},
		"vote_total":   view.VoteTotal,
		"recent_votes": view.RecentVotes,
		"user_vote":    view.UserVote,
		"created_at":   view.CreatedAt,
		"updated_at":   view.UpdatedAt,
	}
}
