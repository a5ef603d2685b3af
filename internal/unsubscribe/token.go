// Package unsubscribe signs and verifies one-click unsubscribe tokens.
// Tokens bind a subscription id and category; they carry no expiry, which
// is acceptable for an idempotent unsubscribe action.
package unsubscribe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/poke-community/backend/internal/apperrors"
	"github.com/poke-community/backend/internal/models"
)

type TokenService struct {
	secret []byte
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// CreateToken derives the hex-encoded HMAC-SHA256 over
// "{subscriptionId}:{category}".
func (s *TokenService) CreateToken(subscriptionID string, category models.SubscriptionType) (string, error) {
	if len(s.secret) == 0 {
		return "", apperrors.NewConfigurationError("unsubscribe secret is not configured")
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(subscriptionID + ":" + string(category)))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyToken recomputes the expected token and compares in constant time.
// Unknown categories and a missing secret both fail closed.
func (s *TokenService) VerifyToken(subscriptionID, category, token string) bool {
	if subscriptionID == "" || category == "" || token == "" {
		return false
	}
	if !models.ValidSubscriptionType(category) {
		return false
	}
	if len(s.secret) == 0 {
		return false
	}

	expected, err := s.CreateToken(subscriptionID, models.SubscriptionType(category))
	if err != nil {
		return false
	}

	provided, err := hex.DecodeString(token)
	if err != nil {
		return false
	}
	expectedBytes, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	return hmac.Equal(provided, expectedBytes)
}

// URL builds the one-click unsubscribe link embedded in outgoing emails.
func (s *TokenService) URL(siteURL, subscriptionID string, category models.SubscriptionType) (string, error) {
	token, err := s.CreateToken(subscriptionID, category)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/unsubscribe/%s?type=%s&token=%s", siteURL, subscriptionID, category, token), nil
}
