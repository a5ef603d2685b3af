package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/poke-community/backend/internal/apperrors"
)

// respondError maps a service error to a JSON response. Validation errors
// carry per-field messages for the form; everything else gets the sanitized
// message from the error taxonomy.
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)

	var validationErr *apperrors.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(status, gin.H{
			"error":        "Please review the form fields and try again.",
			"field_errors": validationErr.Fields,
		})
		return
	}

	if status == http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
