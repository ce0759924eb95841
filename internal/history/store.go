// Package history persists execution outcomes so they can be looked up
// again by run ID.
package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/deixis/cmdline/internal/runner"
)

// Store persists and retrieves execution records.
type Store interface {
	Save(rec *Record) error
	Load(runID string) (*Record, error)
}

// Record is one classified execution.
type Record struct {
	ID       string        `json:"id"`
	Command  string        `json:"command"`
	Args     []string      `json:"args,omitempty"`
	Target   string        `json:"target"`
	Kind     runner.Kind   `json:"kind"`
	Text     string        `json:"text"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// NewRecord builds a record for a classified attempt of command.
// a.Outcome must be set.
func NewRecord(a runner.Attempt, command string, args []string) *Record {
	return &Record{
		ID:       a.Outcome.RunID,
		Command:  command,
		Args:     args,
		Target:   a.Target,
		Kind:     a.Outcome.Kind,
		Text:     a.Outcome.Text,
		Started:  a.Started,
		Duration: a.Duration,
	}
}

// Outcome returns the outcome the record was built from.
func (r *Record) Outcome() runner.Outcome {
	return runner.Outcome{RunID: r.ID, Kind: r.Kind, Text: r.Text}
}

// CommandLine renders the command and its arguments for display.
func (r *Record) CommandLine() string {
	if len(r.Args) == 0 {
		return r.Command
	}
	return r.Command + " " + strings.Join(r.Args, " ")
}

// Format renders a record for people.
func Format(r *Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", r.ID)
	fmt.Fprintf(&b, "Target: %s\n", r.Target)
	fmt.Fprintf(&b, "Command: %s\n", r.CommandLine())
	fmt.Fprintf(&b, "Started: %s (%s)\n", r.Started.Format(time.RFC3339), r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Result: %s\n", r.Kind)
	if r.Text != "" {
		fmt.Fprintln(&b)
		b.WriteString(r.Text)
		if !strings.HasSuffix(r.Text, "\n") {
			fmt.Fprintln(&b)
		}
	}
	return b.String()
}
