// Package machines resolves target names from the configuration into
// runner targets.
package machines

import (
	"fmt"
	"strings"

	"github.com/deixis/cmdline/internal/config"
	"github.com/deixis/cmdline/internal/runner"
	"github.com/deixis/cmdline/internal/sshexec"
)

// Resolve returns the target called name. The empty name and "local"
// both mean this host; any other name must be a configured machine.
func Resolve(cfg *config.Config, name string) (runner.Target, error) {
	if name == "" || name == config.ReservedMachine {
		return runner.Local{}, nil
	}

	m, ok := cfg.Machine(name)
	if !ok {
		return nil, fmt.Errorf("unknown machine %q (known: %s)", name, strings.Join(Names(cfg), ", "))
	}

	tr, err := sshexec.New(m)
	if err != nil {
		return nil, fmt.Errorf("machine %q: %w", name, err)
	}
	return runner.Remote{Machine: name, Transport: tr}, nil
}

// ResolveAll resolves every name, stopping at the first failure.
func ResolveAll(cfg *config.Config, names []string) ([]runner.Target, error) {
	targets := make([]runner.Target, 0, len(names))
	for _, name := range names {
		t, err := Resolve(cfg, name)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// Names returns "local" followed by the configured machine names.
func Names(cfg *config.Config) []string {
	return append([]string{config.ReservedMachine}, cfg.MachineNames()...)
}

// ParseList splits a comma-separated list of machine names, dropping
// blanks. An empty list means local only.
func ParseList(s string) []string {
	var names []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return []string{config.ReservedMachine}
	}
	return names
}
