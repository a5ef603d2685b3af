// Package slug derives URL-safe slugs from automation titles.
package slug

import (
	"math/rand"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/poke-community/backend/internal/apperrors"
	"github.com/poke-community/backend/internal/models"
)

const maxSlugAttempts = 5

// Make lowercases the title, maps every non-alphanumeric run to a single
// hyphen, and trims edge hyphens.
func Make(title string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// Unique returns a slug for title that no existing automation uses. On
// collision it appends a short random suffix, retrying a few times before
// falling back to a timestamp suffix.
func Unique(db *gorm.DB, title string) (string, error) {
	base := Make(title)
	if base == "" {
		// All-symbol titles slugify to nothing; fall back to a generated
		// base so the slug is never empty.
		base = "automation-" + randomSuffix(4)
	}
	candidate := base

	for attempt := 1; attempt < maxSlugAttempts; attempt++ {
		var count int64
		if err := db.Model(&models.Automation{}).Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", apperrors.NewPersistenceError("Unable to verify slug", err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = base + "-" + randomSuffix(4)
	}

	return base + "-" + strconv.FormatInt(time.Now().UnixMilli(), 36), nil
}

const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return string(b)
}
