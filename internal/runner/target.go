package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Target is where a command runs. The set of targets is closed: Local
// and Remote. Remote delegates to a pluggable Transport.
type Target interface {
	// Name identifies the target in logs and errors.
	Name() string
	run(ctx context.Context, command string, args []string) (stdout, stderr []byte, err error)
}

// Transport launches a command somewhere and returns both of its output
// streams once the process has exited. A non-nil error means the command
// could not be launched at all; a process that ran and exited non-zero
// is reported through its streams with a nil error.
type Transport interface {
	Run(ctx context.Context, command string, args []string) (stdout, stderr []byte, err error)
}

// LocalName is the name of the Local target.
const LocalName = "local"

// Local runs commands on this host.
type Local struct{}

func (Local) Name() string { return LocalName }

// run launches the process directly. The context is not attached to the
// process: a launched command always runs to completion.
func (Local) run(_ context.Context, command string, args []string) ([]byte, []byte, error) {
	cmd := exec.Command(command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// Binary not found, permission denied, or other exec error.
			return nil, nil, err
		}
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}

// Remote runs commands on a named machine through a Transport.
type Remote struct {
	Machine   string
	Transport Transport
}

func (r Remote) Name() string {
	if r.Machine == "" {
		return "remote"
	}
	return r.Machine
}

func (r Remote) run(ctx context.Context, command string, args []string) ([]byte, []byte, error) {
	if r.Transport == nil {
		return nil, nil, errors.New("no transport configured")
	}
	return r.Transport.Run(ctx, command, args)
}
