package prompts

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// LoadRules reads the instructor's rules document. A missing, unreadable or
// blank document yields DefaultRules together with the reason.
func LoadRules(fs afero.Fs, path string) (string, error) {
	if path == "" {
		return DefaultRules, fmt.Errorf("rules path is empty")
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return DefaultRules, fmt.Errorf("failed to read rules %s: %w", path, err)
	}
	rules := strings.TrimSpace(string(data))
	if rules == "" {
		return DefaultRules, fmt.Errorf("rules %s is empty", path)
	}
	return rules, nil
}
