package textfilter

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Common US English swear words that are filtered out of text shown to school-age students
var swearWords = []string{
	"fuck", "shit", "damn", "hell", "ass", "bitch", "bastard", "crap",
	"piss", "cock", "dick", "pussy", "tits", "boobs", "whore", "slut",
	"fag", "retard", "nigger", "nigga", "spic", "chink", "kike",
	"motherfucker", "goddamn", "jesus christ", "christ", "asshole",
	"dumbass", "jackass", "smartass", "badass", "bullshit", "horseshit",
	"dipshit", "shithead", "dickhead", "prick", "douche", "douchebag",
}

// swearWordReplacements maps swear words to family-friendly alternatives
var swearWordReplacements = map[string]string{
	"fuck":         "fudge",
	"shit":         "shoot",
	"damn":         "dang",
	"hell":         "heck",
	"ass":          "butt",
	"bitch":        "jerk",
	"bastard":      "jerk",
	"crap":         "crud",
	"piss":         "ticked",
	"cock":         "[censored]",
	"dick":         "jerk",
	"pussy":        "[censored]",
	"tits":         "[censored]",
	"boobs":        "[censored]",
	"whore":        "[censored]",
	"slut":         "[censored]",
	"fag":          "[censored]",
	"retard":       "[censored]",
	"nigger":       "[censored]",
	"nigga":        "[censored]",
	"spic":         "[censored]",
	"chink":        "[censored]",
	"kike":         "[censored]",
	"motherfucker": "mother-trucker",
	"goddamn":      "gosh-dang",
	"jesus christ": "jeez",
	"christ":       "crikey",
	"asshole":      "jerk",
	"dumbass":      "dummy",
	"jackass":      "jerk",
	"smartass":     "smarty",
	"badass":       "tough",
	"bullshit":     "baloney",
	"horseshit":    "nonsense",
	"dipshit":      "dummy",
	"shithead":     "jerk",
	"dickhead":     "jerk",
	"prick":        "jerk",
	"douche":       "jerk",
	"douchebag":    "jerk",
}

// ProfanityFilter handles filtering and replacement of profanity
type ProfanityFilter struct {
	regexes map[string]*regexp.Regexp
}

// NewProfanityFilter creates a new profanity filter
func NewProfanityFilter() *ProfanityFilter {
	pf := &ProfanityFilter{
		regexes: make(map[string]*regexp.Regexp, len(swearWords)),
	}

	// Whole words only, with an optional plural suffix captured in group 1
	for _, word := range swearWords {
		pattern := `(?i)\b` + regexp.QuoteMeta(word) + `(s)?\b`
		pf.regexes[word] = regexp.MustCompile(pattern)
	}

	return pf
}

// FilterText replaces profanity in the input text with family-friendly alternatives
func (pf *ProfanityFilter) FilterText(text string) string {
	result := text

	for _, word := range swearWords {
		regex, ok := pf.regexes[word]
		if !ok {
			continue
		}
		replacement, ok := swearWordReplacements[word]
		if !ok {
			continue
		}
		result = regex.ReplaceAllStringFunc(result, func(match string) string {
			base, suffix := match, ""
			if len(match) > len(word) {
				base, suffix = match[:len(word)], match[len(word):]
			}
			return preserveCase(base, replacement) + suffix
		})
	}

	return result
}

// preserveCase applies the case pattern of the original word to the replacement
func preserveCase(original, replacement string) string {
	if len(original) == 0 {
		return replacement
	}

	if strings.ToUpper(original) == original {
		return strings.ToUpper(replacement)
	}

	if strings.ToLower(original) == original {
		return strings.ToLower(replacement)
	}

	titleCaser := cases.Title(language.English)
	if titleCaser.String(strings.ToLower(original)) == original {
		return titleCaser.String(replacement)
	}

	// Mixed case: copy the pattern rune by rune, lowercase past the end of the original
	result := make([]rune, 0, len(replacement))
	originalRunes := []rune(original)
	for i, r := range []rune(replacement) {
		if i < len(originalRunes) && unicode.IsUpper(originalRunes[i]) {
			result = append(result, unicode.ToUpper(r))
		} else {
			result = append(result, unicode.ToLower(r))
		}
	}

	return string(result)
}

// ContainsProfanity checks if the text contains any profanity
func (pf *ProfanityFilter) ContainsProfanity(text string) bool {
	for _, word := range swearWords {
		if regex, ok := pf.regexes[word]; ok && regex.MatchString(text) {
			return true
		}
	}
	return false
}

// schoolLevels are the educational levels whose summaries are kept family-friendly.
var schoolLevels = []string{
	"kindergarten", "preschool", "elementary", "primary", "middle", "secondary", "high school", "k-12", "grade",
}

// ShouldFilterForLevel reports whether text for the given educational level
// should pass through the profanity filter. University and adult levels are left alone.
func ShouldFilterForLevel(level string) bool {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return false
	}
	for _, l := range schoolLevels {
		if strings.Contains(level, l) {
			return true
		}
	}
	return false
}
