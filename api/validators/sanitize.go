package validators

import (
	"strings"
	"unicode/utf8"
)

// SanitizeString trims surrounding whitespace and caps the result at maxLen
// bytes without splitting a rune.
func SanitizeString(input string, maxLen int) string {
	value := strings.TrimSpace(input)
	if maxLen <= 0 || len(value) <= maxLen {
		return value
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return strings.TrimSpace(value[:cut])
}

func SanitizeOptional(input *string, maxLen int) *string {
	if input == nil {
		return nil
	}
	if value := SanitizeString(*input, maxLen); value != "" {
		return &value
	}
	return nil
}
