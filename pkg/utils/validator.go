package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	formCodePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{1,31}$`)
	controlChars    = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateFormCode checks that a form code can be embedded in a document number
func ValidateFormCode(code string) error {
	if !formCodePattern.MatchString(code) {
		return fmt.Errorf("invalid form code %q: want 2-32 upper-case letters, digits or underscores", code)
	}
	return nil
}

// ValidateYear validates a four-digit calendar year filter
func ValidateYear(year int) error {
	if year < 1900 || year > 9999 {
		return fmt.Errorf("year out of range: %d", year)
	}
	return nil
}

// SanitizeString strips control characters and surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}

// NormalizePage clamps page to >= 1 and pageSize to [1, maxSize], using def when unset
func NormalizePage(page, pageSize, def, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = def
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	return page, pageSize
}
