// Package config loads and validates the optional .cmdline YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file.
const FileName = ".cmdline"

// Default values.
const (
	DefaultParallel    = 8
	DefaultHistorySize = 16
	DefaultSSHPort     = 22
)

// ReservedMachine is the target name that always means this host.
const ReservedMachine = "local"

// Config holds the parsed .cmdline configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version     int                `yaml:"version"`
	RawLogLevel string             `yaml:"log_level"` // debug, info, warn, error
	RawParallel int                `yaml:"parallel"`  // max concurrent machines
	History     HistoryConfig      `yaml:"history"`
	Machines    map[string]Machine `yaml:"machines"`
}

// HistoryConfig controls where execution records are kept.
type HistoryConfig struct {
	Dir  string `yaml:"dir"`  // default: user cache dir
	Size int    `yaml:"size"` // in-memory records kept by long-running servers
}

// Machine describes a remote host reachable over SSH.
type Machine struct {
	Host                  string   `yaml:"host"`
	Port                  int      `yaml:"port"`
	User                  string   `yaml:"user"`
	IdentityFiles         []string `yaml:"identity_files"`
	KnownHosts            string   `yaml:"known_hosts"`
	InsecureIgnoreHostKey bool     `yaml:"insecure_ignore_host_key"`
}

// LogLevel returns the configured log level, or info.
func (c *Config) LogLevel() slog.Level {
	var l slog.Level
	if c.RawLogLevel != "" && l.UnmarshalText([]byte(c.RawLogLevel)) == nil {
		return l
	}
	return slog.LevelInfo
}

// Parallel returns the configured parallelism or the default.
func (c *Config) Parallel() int {
	if c.RawParallel > 0 {
		return c.RawParallel
	}
	return DefaultParallel
}

// HistorySize returns the configured history cache size or the default.
func (c *Config) HistorySize() int {
	if c.History.Size > 0 {
		return c.History.Size
	}
	return DefaultHistorySize
}

// HistoryDir returns the directory execution records are written to.
// It falls back to a cmdline directory under the user cache dir.
func (c *Config) HistoryDir() (string, error) {
	if c.History.Dir != "" {
		return ExpandHome(c.History.Dir), nil
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locating cache dir: %w", err)
	}
	return filepath.Join(cache, "cmdline", "runs"), nil
}

// Machine returns the named machine.
func (c *Config) Machine(name string) (Machine, bool) {
	m, ok := c.Machines[name]
	return m, ok
}

// MachineNames returns the configured machine names, sorted.
func (c *Config) MachineNames() []string {
	names := make([]string, 0, len(c.Machines))
	for name := range c.Machines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	var errs []error
	if c.RawLogLevel != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(c.RawLogLevel)); err != nil {
			errs = append(errs, fmt.Errorf("log_level: %w", err))
		}
	}
	if c.RawParallel < 0 {
		errs = append(errs, fmt.Errorf("parallel must not be negative, got %d", c.RawParallel))
	}
	for _, name := range c.MachineNames() {
		m := c.Machines[name]
		switch {
		case name == ReservedMachine:
			errs = append(errs, fmt.Errorf("machine name %q is reserved", name))
		case strings.TrimSpace(m.Host) == "":
			errs = append(errs, fmt.Errorf("machine %q: host is required", name))
		case m.Port < 0 || m.Port > 65535:
			errs = append(errs, fmt.Errorf("machine %q: invalid port %d", name, m.Port))
		}
	}
	return errors.Join(errs...)
}

// PortOrDefault returns the SSH port, defaulting to 22.
func (m Machine) PortOrDefault() int {
	if m.Port > 0 {
		return m.Port
	}
	return DefaultSSHPort
}

// UserOrDefault returns the login user, defaulting to $USER.
func (m Machine) UserOrDefault() string {
	if m.User != "" {
		return m.User
	}
	return os.Getenv("USER")
}

// IdentityFilesOrDefault returns the private key paths to try.
func (m Machine) IdentityFilesOrDefault() []string {
	if len(m.IdentityFiles) > 0 {
		files := make([]string, len(m.IdentityFiles))
		for i, f := range m.IdentityFiles {
			files[i] = ExpandHome(f)
		}
		return files
	}
	return []string{
		ExpandHome("~/.ssh/id_ed25519"),
		ExpandHome("~/.ssh/id_ecdsa"),
		ExpandHome("~/.ssh/id_rsa"),
	}
}

// KnownHostsOrDefault returns the known_hosts path.
func (m Machine) KnownHostsOrDefault() string {
	if m.KnownHosts != "" {
		return ExpandHome(m.KnownHosts)
	}
	return ExpandHome("~/.ssh/known_hosts")
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// LoadResult holds the parsed config and where it was found.
type LoadResult struct {
	Config *Config
	Path   string // empty when no .cmdline file exists
}

// Load reads the .cmdline file from dir or the nearest ancestor that has
// one. If none exists, a default Config is returned.
func Load(dir string) (*LoadResult, error) {
	path, err := find(dir)
	if err != nil {
		return &LoadResult{Config: &Config{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &LoadResult{Config: cfg, Path: path}, nil
}

// find walks upward from dir looking for a .cmdline file.
func find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, FileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", FileName)
		}
		dir = parent
	}
}
