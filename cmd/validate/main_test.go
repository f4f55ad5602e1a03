package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, fs afero.Fs, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(fs, strings.NewReader(stdin), &out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRulesCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "rules.txt", []byte("Be kind.\nStay on topic."), 0o644))
	require.NoError(t, afero.WriteFile(fs, "blank.txt", []byte("  \n"), 0o644))

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{"default path", []string{"rules"}, "✓ rules.txt: 2 lines", false},
		{"explicit path", []string{"rules", "rules.txt"}, "✓ rules.txt", false},
		{"missing", []string{"rules", "nope.txt"}, "✗ nope.txt", true},
		{"blank", []string{"rules", "blank.txt"}, "fall back to", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, fs, "", tt.args...)
			if tt.wantErr {
				assert.ErrorIs(t, err, errInvalid)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestBriefCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	valid := `educational_level: "  high school "
concept: Photosynthesis
genre: Mystery
setting: A greenhouse on Mars
`
	invalid := `educational_level: high school
concept: qwrtzp
genre: Mystery
setting: ""
`
	require.NoError(t, afero.WriteFile(fs, "valid.yaml", []byte(valid), 0o644))
	require.NoError(t, afero.WriteFile(fs, "invalid.yaml", []byte(invalid), 0o644))
	require.NoError(t, afero.WriteFile(fs, "broken.yaml", []byte("concept: [unclosed"), 0o644))

	t.Run("valid", func(t *testing.T) {
		out, err := run(t, fs, "", "brief", "valid.yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "✓ ")
		assert.NotContains(t, out, "Photosynthesis")
	})

	t.Run("valid with context", func(t *testing.T) {
		out, err := run(t, fs, "", "brief", "valid.yaml", "--context")
		require.NoError(t, err)
		assert.Contains(t, out, "Photosynthesis")
		assert.Contains(t, out, "high school")
	})

	t.Run("invalid fields", func(t *testing.T) {
		out, err := run(t, fs, "", "brief", "invalid.yaml")
		assert.ErrorIs(t, err, errInvalid)
		assert.Contains(t, out, "Scientific concept or topic")
		assert.Contains(t, out, "Story setting")
		assert.NotContains(t, out, "Educational level")
	})

	t.Run("unparseable", func(t *testing.T) {
		_, err := run(t, fs, "", "brief", "broken.yaml")
		require.Error(t, err)
		assert.NotErrorIs(t, err, errInvalid)
		assert.Contains(t, err.Error(), "failed to parse")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := run(t, fs, "", "brief", "gone.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read")
	})

	t.Run("needs an argument", func(t *testing.T) {
		_, err := run(t, fs, "", "brief")
		assert.Error(t, err)
	})
}

func TestTextCommand(t *testing.T) {
	fs := afero.NewMemMapFs()

	t.Run("clean sentence", func(t *testing.T) {
		out, err := run(t, fs, "", "text", "The", "detective", "studies", "the", "plants")
		require.NoError(t, err)
		assert.Contains(t, out, "gibberish: false")
		assert.Contains(t, out, "profanity: false")
	})

	t.Run("gibberish", func(t *testing.T) {
		out, err := run(t, fs, "", "text", "qwrtzp")
		assert.ErrorIs(t, err, errInvalid)
		assert.Contains(t, out, "gibberish: true")
	})

	t.Run("profanity filtered for school level", func(t *testing.T) {
		out, err := run(t, fs, "", "text", "--level", "middle school", "what", "the", "hell", "happened")
		require.NoError(t, err)
		assert.Contains(t, out, "profanity: true")
		assert.Contains(t, out, `filtered for "middle school": true`)
		assert.NotContains(t, out, "output: what the hell")
	})

	t.Run("university is not filtered", func(t *testing.T) {
		out, err := run(t, fs, "", "text", "--level", "university", "what", "the", "hell", "happened")
		require.NoError(t, err)
		assert.Contains(t, out, `filtered for "university": false`)
		assert.NotContains(t, out, "output:")
	})

	t.Run("stdin", func(t *testing.T) {
		out, err := run(t, fs, "A robot learns about gravity on the moon", "text", "--stdin")
		require.NoError(t, err)
		assert.Contains(t, out, "gibberish: false")
	})
}
