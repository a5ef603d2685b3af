package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/poke-community/backend/internal/models"
	"github.com/poke-community/backend/internal/subscriptions"
	"github.com/poke-community/backend/internal/unsubscribe"
)

// UnsubscribeHandler serves the unauthenticated one-click unsubscribe
// endpoint. GET renders an HTML confirmation page; POST (used by one-click
// list-unsubscribe email clients) returns only a status code.
type UnsubscribeHandler struct {
	registry *subscriptions.Registry
	tokens   *unsubscribe.TokenService
}

func NewUnsubscribeHandler(registry *subscriptions.Registry, tokens *unsubscribe.TokenService) *UnsubscribeHandler {
	return &UnsubscribeHandler{registry: registry, tokens: tokens}
}

func (h *UnsubscribeHandler) Get(c *gin.Context) {
	subscriptionID, category, ok := h.validate(c)
	if !ok {
		respondWithPage(c, http.StatusBadRequest,
			"Invalid unsubscribe link",
			"The unsubscribe link appears to be invalid. Please request a new unsubscribe email or adjust your notification preferences from your profile.")
		return
	}

	result, err := h.registry.Deactivate(subscriptionID, category)
	if err != nil {
		respondWithPage(c, http.StatusInternalServerError,
			"Something went wrong",
			"We were unable to process your unsubscribe request. Please try again later.")
		return
	}

	switch result {
	case subscriptions.SubscriptionNotFound:
		respondWithPage(c, http.StatusNotFound,
			"Subscription not found",
			"We could not find the subscription you tried to unsubscribe from. It may have already been removed.")
	case subscriptions.AlreadyInactive:
		respondWithPage(c, http.StatusOK,
			"Already unsubscribed",
			"You were already unsubscribed from these updates. No further emails will be sent.")
	default:
		respondWithPage(c, http.StatusOK,
			"You're unsubscribed",
			"You will no longer receive these updates from poke.community.")
	}
}

func (h *UnsubscribeHandler) Post(c *gin.Context) {
	subscriptionID, category, ok := h.validate(c)
	if !ok {
		c.Status(http.StatusBadRequest)
		return
	}

	result, err := h.registry.Deactivate(subscriptionID, category)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}

	if result == subscriptions.SubscriptionNotFound {
		c.Status(http.StatusNotFound)
		return
	}
	c.Status(http.StatusOK)
}

func (h *UnsubscribeHandler) validate(c *gin.Context) (string, models.SubscriptionType, bool) {
	subscriptionID := c.Param("subscriptionId")
	category := c.Query("type")
	token := c.Query("token")

	if !h.tokens.VerifyToken(subscriptionID, category, token) {
		return "", "", false
	}
	return subscriptionID, models.SubscriptionType(category), true
}

const unsubscribePageTemplate = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <title>%s</title>
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <style>
      body { font-family: system-ui, -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 0; padding: 32px; background-color: #0f172a; color: #f8fafc; }
      main { max-width: 520px; margin: 0 auto; background: #111827; border-radius: 16px; padding: 32px; box-shadow: 0 20px 50px rgba(15, 23, 42, 0.35); }
      h1 { font-size: 1.75rem; margin-bottom: 1rem; }
      p { line-height: 1.6; }
      a { color: #38bdf8; }
      .status { font-size: 0.875rem; opacity: 0.75; margin-top: 1.5rem; }
    </style>
  </head>
  <body>
    <main>
      <h1>%s</h1>
      <p>%s</p>
      <p><a href="/">Return to poke.community</a></p>
      <p class="status">If this wasn't you, you can resubscribe from your profile settings.</p>
    </main>
  </body>
</html>`

func respondWithPage(c *gin.Context, status int, title, body string) {
	html := fmt.Sprintf(unsubscribePageTemplate, title, title, body)
	c.Data(status, "text/html; charset=utf-8", []byte(html))
}
