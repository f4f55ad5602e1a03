package brief

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBrief() Brief {
	return Brief{
		Level:   "Elementary school",
		Concept: "Photosynthesis",
		Genre:   "Fantasy",
		Setting: "Imaginary world",
		Goals:   "SDG 7 Affordable and Clean Energy",
	}
}

func TestBrief_Validate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Brief)
		wantFields []Field
	}{
		{
			name:   "valid brief",
			mutate: func(b *Brief) {},
		},
		{
			name:   "goals are optional",
			mutate: func(b *Brief) { b.Goals = "" },
		},
		{
			name:       "empty level",
			mutate:     func(b *Brief) { b.Level = "" },
			wantFields: []Field{FieldLevel},
		},
		{
			name: "gibberish genre and setting",
			mutate: func(b *Brief) {
				b.Genre = "asdasdasd"
				b.Setting = "qwrtzp"
			},
			wantFields: []Field{FieldGenre, FieldSetting},
		},
		{
			name:       "whitespace concept",
			mutate:     func(b *Brief) { b.Concept = "    " },
			wantFields: []Field{FieldConcept},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBrief()
			tt.mutate(&b)

			err := b.Validate()
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
			assert.Equal(t, tt.wantFields, verr.Fields)
			assert.Len(t, verr.Problems, len(tt.wantFields))
			assert.Contains(t, err.Error(), "Please clarify "+string(tt.wantFields[0]))
		})
	}
}

func TestBrief_Normalize(t *testing.T) {
	b := Brief{Level: "  University ", Genre: "\tMystery\n"}.Normalize()

	assert.Equal(t, "University", b.Level)
	assert.Equal(t, "Mystery", b.Genre)
	assert.False(t, b.IsZero())
	assert.True(t, Brief{}.IsZero())
}

func TestBuildContext(t *testing.T) {
	b := validBrief()
	b.Goals = ""

	want := "Use this context for guiding the user to write the story. Do not re-ask for the form or introduce yourself.\n" +
		"- Educational level: Elementary school\n" +
		"- Scientific concept or topic: Photosynthesis\n" +
		"- Genre: Fantasy\n" +
		"- Story setting: Imaginary world\n" +
		"- Additional information: (empty)\n" +
		"Next: acknowledge briefly and proceed with outlining when prompted."

	assert.Equal(t, want, BuildContext(b))
}

func TestBuildContext_Deterministic(t *testing.T) {
	b := validBrief()
	assert.Equal(t, BuildContext(b), BuildContext(b))
}
