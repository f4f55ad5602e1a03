package textfilter

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsGibberish reports whether short free-text input is too noisy to accept.
// It is a heuristic gate for brief fields and stage completion, not a language check.
// Empty and whitespace-only input is gibberish.
func IsGibberish(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	lower := strings.ToLower(trimmed)

	var letters []rune
	for _, r := range lower {
		if unicode.IsLetter(r) {
			letters = append(letters, r)
		}
	}
	hasSpace := strings.Contains(trimmed, " ")

	// Degenerate repetition: "aaaaaa", "abab ab"
	if utf8.RuneCountInString(lower) >= 6 && distinct([]rune(lower)) <= 3 {
		return true
	}

	// Unpronounceable consonant run: "qwrtzp"
	if !hasSpace && len(letters) >= 6 && !strings.ContainsAny(string(letters), "aeiou") {
		return true
	}

	// Long low-entropy token: "asdfasdfasdf"
	if !hasSpace && len(letters) >= 10 && distinct(letters) <= 4 {
		return true
	}

	// Symbol or digit dominated
	nonSpace := 0
	for _, r := range trimmed {
		if !unicode.IsSpace(r) {
			nonSpace++
		}
	}
	if nonSpace > 0 && float64(len(letters))/float64(nonSpace) < 0.5 {
		return true
	}

	return false
}

func distinct(runes []rune) int {
	seen := make(map[rune]struct{}, len(runes))
	for _, r := range runes {
		seen[r] = struct{}{}
	}
	return len(seen)
}
