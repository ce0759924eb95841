// Package runner executes external commands on a local or remote target
// and classifies the captured output into an Outcome.
//
// Classification looks only at stderr: a command that writes anything to
// stderr yields an error outcome holding that text, whatever its exit
// status; otherwise the outcome holds stdout. Exit codes are not consulted.
package runner

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultParallelism bounds ExecuteEach when Runner.Parallelism is unset.
const DefaultParallelism = 8

// Runner executes commands against a Target.
type Runner struct {
	Target      Target       // nil means Local
	Logger      *slog.Logger // nil discards
	Parallelism int          // max concurrent targets in ExecuteEach
}

// Execute runs command with args on the local host.
func Execute(ctx context.Context, command string, args []string) (*Outcome, error) {
	return ExecuteOn(ctx, Local{}, command, args)
}

// ExecuteOn runs command with args on target.
func ExecuteOn(ctx context.Context, target Target, command string, args []string) (*Outcome, error) {
	r := &Runner{Target: target}
	return r.Execute(ctx, command, args)
}

// Execute runs command with args on the runner's target and blocks until
// the process exits and both streams are drained. It returns a
// *LaunchError if the command could not be started and a *DecodeError if
// an inspected stream is not valid UTF-8.
func (r *Runner) Execute(ctx context.Context, command string, args []string) (*Outcome, error) {
	target := r.Target
	if target == nil {
		target = Local{}
	}
	return r.execute(ctx, target, command, args)
}

func (r *Runner) execute(ctx context.Context, target Target, command string, args []string) (*Outcome, error) {
	runID := uuid.New().String()
	log := r.logger().With(
		slog.String("run_id", runID),
		slog.String("target", target.Name()),
		slog.String("command", command),
	)

	log.DebugContext(ctx, "launching command", slog.Int("args", len(args)))
	start := time.Now()

	stdout, stderr, err := target.run(ctx, command, args)
	if err != nil {
		log.DebugContext(ctx, "launch failed", slog.Any("error", err))
		return nil, &LaunchError{Command: command, Target: target.Name(), Err: err}
	}

	outcome, err := classify(command, stdout, stderr)
	if err != nil {
		return nil, err
	}
	outcome.RunID = runID

	log.DebugContext(ctx, "command finished",
		slog.String("kind", string(outcome.Kind)),
		slog.Int("stdout_bytes", len(stdout)),
		slog.Int("stderr_bytes", len(stderr)),
		slog.Duration("duration", time.Since(start)),
	)
	return &outcome, nil
}

// classify turns the raw streams into an Outcome. No trimming is applied:
// stderr holding only whitespace is still an error.
func classify(command string, stdout, stderr []byte) (Outcome, error) {
	if len(stderr) > 0 {
		if i := invalidAt(stderr); i >= 0 {
			return Outcome{}, &DecodeError{Command: command, Stream: "stderr", Offset: i}
		}
		return NewError(string(stderr)), nil
	}
	if i := invalidAt(stdout); i >= 0 {
		return Outcome{}, &DecodeError{Command: command, Stream: "stdout", Offset: i}
	}
	return NewOutput(string(stdout)), nil
}

// invalidAt returns the offset of the first byte that is not part of a
// valid UTF-8 sequence, or -1.
func invalidAt(b []byte) int {
	if utf8.Valid(b) {
		return -1
	}
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}

// Attempt is the result of running a command on one of several targets.
// Exactly one of Outcome and Err is set. Started and Duration time this
// target's run alone.
type Attempt struct {
	Target   string
	Outcome  *Outcome
	Err      error
	Started  time.Time
	Duration time.Duration
}

// ExecuteEach runs command with args on every target concurrently, at
// most Parallelism at a time. Attempts are returned in target order and
// a failure on one target does not affect the others.
func (r *Runner) ExecuteEach(ctx context.Context, targets []Target, command string, args []string) []Attempt {
	attempts := make([]Attempt, len(targets))

	var g errgroup.Group
	g.SetLimit(r.parallelism())
	for i, target := range targets {
		if target == nil {
			target = Local{}
		}
		g.Go(func() error {
			start := time.Now()
			outcome, err := r.execute(ctx, target, command, args)
			attempts[i] = Attempt{
				Target:   target.Name(),
				Outcome:  outcome,
				Err:      err,
				Started:  start,
				Duration: time.Since(start),
			}
			return nil
		})
	}
	_ = g.Wait()

	return attempts
}

func (r *Runner) parallelism() int {
	if r.Parallelism > 0 {
		return r.Parallelism
	}
	return DefaultParallelism
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.DiscardHandler)
}
