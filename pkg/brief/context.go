package brief

import "strings"

const (
	contextPreamble = "Use this context for guiding the user to write the story. Do not re-ask for the form or introduce yourself."
	contextClosing  = "Next: acknowledge briefly and proceed with outlining when prompted."
	emptyValue      = "(empty)"
)

// BuildContext flattens a brief into the steering message that primes the
// conversation once the brief is accepted.
func BuildContext(b Brief) string {
	lines := make([]string, 0, len(Fields)+2)
	lines = append(lines, contextPreamble)
	for _, f := range Fields {
		v := b.Value(f)
		if v == "" {
			v = emptyValue
		}
		lines = append(lines, "- "+string(f)+": "+v)
	}
	lines = append(lines, contextClosing)
	return strings.Join(lines, "\n")
}
