package runner

// Kind identifies which stream an Outcome was taken from.
type Kind string

const (
	// KindOutput means stderr was empty and Text holds stdout.
	KindOutput Kind = "output"
	// KindError means stderr was non-empty and Text holds stderr.
	KindError Kind = "error"
)

// Outcome is the classified result of a command execution.
type Outcome struct {
	RunID string // unique identifier for this run
	Kind  Kind
	Text  string // decoded stdout for KindOutput, decoded stderr for KindError
}

// NewOutput returns an output outcome holding text.
func NewOutput(text string) Outcome {
	return Outcome{Kind: KindOutput, Text: text}
}

// NewError returns an error outcome holding text.
func NewError(text string) Outcome {
	return Outcome{Kind: KindError, Text: text}
}

// IsError reports whether the command wrote to stderr.
func (o Outcome) IsError() bool { return o.Kind == KindError }

func (o Outcome) String() string {
	return string(o.Kind) + "(" + o.Text + ")"
}
