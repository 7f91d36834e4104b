package validators

import (
	"strings"
	"unicode/utf8"
)

// SanitizeString trims input, folds inner whitespace runs to one space and
// cuts it to maxLen runes. Product names like "Café  Crème" keep their
// accents intact.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Join(strings.Fields(input), " ")
	if maxLen <= 0 || utf8.RuneCountInString(cleaned) <= maxLen {
		return cleaned
	}
	runes := []rune(cleaned)
	return strings.TrimSpace(string(runes[:maxLen]))
}
