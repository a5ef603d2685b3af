package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/poke-community/backend/internal/middleware"
	"github.com/poke-community/backend/internal/models"
)

type AuthHandler struct {
	db        *gorm.DB
	jwtSecret []byte
}

func NewAuthHandler(db *gorm.DB, jwtSecret []byte) *AuthHandler {
	return &AuthHandler{db: db, jwtSecret: jwtSecret}
}

// Register handles account creation
func (h *AuthHandler) Register(c *gin.Context) {
	var input models.RegisterRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Check if email already exists
	var existing models.Profile
	if err := h.db.Where("email = ?", input.Email).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email already registered"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	profile := models.Profile{
		ID:       uuid.NewString(),
		Email:    input.Email,
		Password: string(hashedPassword),
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		profile.Name = &name
	}

	if err := h.db.Create(&profile).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	tokenString, err := h.issueToken(profile)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, models.AuthResponse{
		Token:   tokenString,
		User:    profile,
		Message: "Account created successfully",
	})
}

// Login handles password sign-in
func (h *AuthHandler) Login(c *gin.Context) {
	var input models.LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var profile models.Profile
	if err := h.db.Where("email = ?", input.Email).First(&profile).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	tokenString, err := h.issueToken(profile)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{
		Token:   tokenString,
		User:    profile,
		Message: "Login successful",
	})
}

// GetMe returns the authenticated user's profile
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID := middleware.UserID(c)

	var profile models.Profile
	if err := h.db.First(&profile, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpdateName updates the display name. A blank name clears it; otherwise
// it must be 2-80 characters.
func (h *AuthHandler) UpdateName(c *gin.Context) {
	userID := middleware.UserID(c)

	var input struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := strings.TrimSpace(input.Name)
	if name != "" && len(name) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name must be at least 2 characters or left blank."})
		return
	}
	if len(name) > 80 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name must be 80 characters or fewer."})
		return
	}

	var nextName *string
	message := "Your name has been cleared."
	if name != "" {
		nextName = &name
		message = "Your name has been updated."
	}

	if err := h.db.Model(&models.Profile{}).Where("id = ?", userID).Update("name", nextName).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to update your name. Please try again."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}

// DeleteAccount removes the account and everything it owns: votes on the
// user's automations, the user's own votes, subscriptions, automations,
// and finally the profile row.
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	userID := middleware.UserID(c)

	err := h.db.Transaction(func(tx *gorm.DB) error {
		var automationIDs []string
		if err := tx.Model(&models.Automation{}).Where("user_id = ?", userID).Pluck("id", &automationIDs).Error; err != nil {
			return err
		}

		if len(automationIDs) > 0 {
			if err := tx.Where("automation_id IN ?", automationIDs).Delete(&models.Vote{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Subscription{}).Error; err != nil {
			return err
		}
		if len(automationIDs) > 0 {
			if err := tx.Where("id IN ?", automationIDs).Delete(&models.Automation{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Profile{}, "id = ?", userID).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to delete your account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}

func (h *AuthHandler) issueToken(profile models.Profile) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": profile.ID,
		"email":   profile.Email,
		"exp":     time.Now().Add(time.Hour * 72).Unix(),
	})
	return token.SignedString(h.jwtSecret)
}
