package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/poke-community/backend/internal/middleware"
	"github.com/poke-community/backend/internal/models"
	"github.com/poke-community/backend/internal/subscriptions"
)

type SubscriptionHandler struct {
	registry *subscriptions.Registry
}

func NewSubscriptionHandler(registry *subscriptions.Registry) *SubscriptionHandler {
	return &SubscriptionHandler{registry: registry}
}

// Get returns the authenticated user's notification preferences. Categories
// without a row report inactive.
func (h *SubscriptionHandler) Get(c *gin.Context) {
	prefs, err := h.registry.Get(middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"new":      prefs[models.SubscriptionNew],
		"trending": prefs[models.SubscriptionTrending],
	})
}

// Set flips one notification preference
func (h *SubscriptionHandler) Set(c *gin.Context) {
	var input models.SubscriptionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.registry.Set(middleware.UserID(c), models.SubscriptionType(input.Type), *input.Active)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Subscription preference saved"})
}
