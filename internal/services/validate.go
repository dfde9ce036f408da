package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/markdave123-py/Inkwell/internal/core"
	"github.com/markdave123-py/Inkwell/internal/models"
)

const (
	maxTitleLen       = 255
	maxDescriptionLen = 1000
	maxGenreLen       = 100
	maxStatusLen      = 50
)

// callerID returns the id of an authenticated principal.
func callerID(p *models.Principal) (string, error) {
	if p == nil || p.ID == "" {
		return "", core.ErrNotAuthenticated
	}
	return p.ID, nil
}

// checkLength counts runes, so a 255-character title is accepted whatever
// its encoding.
func checkLength(field, value string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(value)
	if n < minLen {
		if minLen == 1 {
			return core.Invalid(field, "is required")
		}
		return core.Invalid(field, fmt.Sprintf("must be at least %d characters", minLen))
	}
	if n > maxLen {
		return core.Invalid(field, fmt.Sprintf("must be at most %d characters", maxLen))
	}
	return nil
}

// normalizeTitle trims surrounding whitespace and validates the result.
func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	return title, checkLength("title", title, 1, maxTitleLen)
}
