package runner

import (
	"errors"
	"fmt"
)

// ErrLaunch matches any *LaunchError via errors.Is.
var ErrLaunch = errors.New("launch failed")

// ErrDecode matches any *DecodeError via errors.Is.
var ErrDecode = errors.New("invalid utf-8 output")

// LaunchError is returned when a command could not be started on its
// target. It is never folded into an empty output Outcome.
type LaunchError struct {
	Command string
	Target  string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s on %s: %v", e.Command, e.Target, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

func (e *LaunchError) Is(target error) bool { return target == ErrLaunch }

// DecodeError is returned when an inspected stream is not valid UTF-8.
type DecodeError struct {
	Command string
	Stream  string // "stdout" or "stderr"
	Offset  int    // index of the first invalid byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s of %s: invalid utf-8 at byte %d", e.Stream, e.Command, e.Offset)
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// FailureLabel names the failure an Execute error reports, for display
// next to a target.
func FailureLabel(err error) string {
	if errors.Is(err, ErrDecode) {
		return "decode failure"
	}
	return "launch failure"
}
