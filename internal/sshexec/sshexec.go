// Package sshexec runs commands on remote machines over SSH. Its
// Transport plugs into runner.Remote.
package sshexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/alessio/shellescape"
	"golang.org/x/crypto/ssh"
)

// Exit statuses a POSIX shell uses when it cannot run the requested
// command at all.
const (
	statusNotExecutable = 126
	statusNotFound      = 127
)

// shellFailures are the diagnostics sh, dash and bash print next to the
// command word when they cannot run it.
var shellFailures = []string{
	"not found",
	"No such file or directory",
	"Permission denied",
	"cannot execute",
}

// Transport dials Addr for every Run and executes the command in a new
// session. It holds no connection state between calls.
type Transport struct {
	Addr   string // host:port
	Config *ssh.ClientConfig
}

// Run executes command with args on the remote machine. The argv is
// quoted so the remote process receives every argument verbatim.
//
// Connection and session failures, and the remote shell reporting that
// the command could not be found or executed, are returned as errors.
// Any other exit status is returned through the streams with a nil error,
// including a program that exits 126 or 127 on its own.
func (t *Transport) Run(ctx context.Context, command string, args []string) ([]byte, []byte, error) {
	client, err := t.dial(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, nil, fmt.Errorf("opening session on %s: %w", t.Addr, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	line := RemoteCommand(command, args)
	if err := session.Run(line); err != nil {
		var exitErr *ssh.ExitError
		var missingErr *ssh.ExitMissingError
		switch {
		case errors.As(err, &exitErr):
			if notLaunched(exitErr.ExitStatus(), command, stderr.String()) {
				return nil, nil, fmt.Errorf("ssh command %q failed: %w: %s", line, err, stderr.String())
			}
		case errors.As(err, &missingErr):
			// The server closed the channel without a status; the process
			// still ran and its streams are complete.
		default:
			return nil, nil, fmt.Errorf("ssh command %q failed: %w", line, err)
		}
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}

// notLaunched reports whether an exit status and stderr come from the
// remote shell failing to start command, rather than from command itself.
func notLaunched(status int, command, stderr string) bool {
	if status != statusNotExecutable && status != statusNotFound {
		return false
	}
	for _, line := range strings.Split(stderr, "\n") {
		if !strings.Contains(line, command) {
			continue
		}
		for _, msg := range shellFailures {
			if strings.Contains(line, msg) {
				return true
			}
		}
	}
	return false
}

func (t *Transport) dial(ctx context.Context) (*ssh.Client, error) {
	if t.Config == nil {
		return nil, errors.New("ssh client config is not set")
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", t.Addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", t.Addr, err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, t.Addr, t.Config)
	if err != nil {
		// NewClientConn closes conn on failure.
		return nil, fmt.Errorf("ssh handshake with %s: %w", t.Addr, err)
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// RemoteCommand joins command and args into the single command line an
// SSH exec request carries, quoting each word for a POSIX shell.
func RemoteCommand(command string, args []string) string {
	return shellescape.QuoteCommand(append([]string{command}, args...))
}
