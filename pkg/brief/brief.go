package brief

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/story-coach/pkg/textfilter"
)

// Field names a brief entry. The string value is the label shown to students
// and sent to the LLM.
type Field string

const (
	FieldLevel   Field = "Educational level"
	FieldConcept Field = "Scientific concept or topic"
	FieldGenre   Field = "Genre"
	FieldSetting Field = "Story setting"
	FieldGoals   Field = "Additional information"
)

// Fields lists every field in display and prompt order.
var Fields = []Field{FieldLevel, FieldConcept, FieldGenre, FieldSetting, FieldGoals}

// RequiredFields must hold real text before a brief is accepted.
var RequiredFields = []Field{FieldLevel, FieldConcept, FieldGenre, FieldSetting}

// Brief is the intake form a student fills in before outlining.
type Brief struct {
	Level   string `json:"educational_level" yaml:"educational_level"`
	Concept string `json:"concept" yaml:"concept"`
	Genre   string `json:"genre" yaml:"genre"`
	Setting string `json:"setting" yaml:"setting"`
	Goals   string `json:"goals,omitempty" yaml:"goals,omitempty"`
}

// Value returns the value stored for f.
func (b Brief) Value(f Field) string {
	switch f {
	case FieldLevel:
		return b.Level
	case FieldConcept:
		return b.Concept
	case FieldGenre:
		return b.Genre
	case FieldSetting:
		return b.Setting
	case FieldGoals:
		return b.Goals
	}
	return ""
}

// Normalize trims surrounding whitespace from every field.
func (b Brief) Normalize() Brief {
	return Brief{
		Level:   strings.TrimSpace(b.Level),
		Concept: strings.TrimSpace(b.Concept),
		Genre:   strings.TrimSpace(b.Genre),
		Setting: strings.TrimSpace(b.Setting),
		Goals:   strings.TrimSpace(b.Goals),
	}
}

// IsZero reports whether no field has been filled in.
func (b Brief) IsZero() bool {
	return b == Brief{}
}

// ValidationError lists the fields that need clarification.
type ValidationError struct {
	Fields   []Field
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, " ")
}

// Validate checks every required field with the gibberish filter.
// It returns nil or a *ValidationError.
func (b Brief) Validate() error {
	var verr ValidationError
	for _, f := range RequiredFields {
		if textfilter.IsGibberish(b.Value(f)) {
			verr.Fields = append(verr.Fields, f)
			verr.Problems = append(verr.Problems, fmt.Sprintf("Please clarify %s (avoid random strings).", f))
		}
	}
	if len(verr.Problems) > 0 {
		return &verr
	}
	return nil
}
