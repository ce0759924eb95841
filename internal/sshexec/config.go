package sshexec

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/deixis/cmdline/internal/config"
)

// New builds a Transport for a configured machine.
func New(m config.Machine) (*Transport, error) {
	cfg, err := ClientConfig(m)
	if err != nil {
		return nil, err
	}
	return &Transport{
		Addr:   net.JoinHostPort(m.Host, strconv.Itoa(m.PortOrDefault())),
		Config: cfg,
	}, nil
}

// ClientConfig returns the SSH client configuration for m: public key
// authentication with its identity files, and host keys checked against
// its known_hosts file unless m.InsecureIgnoreHostKey is set.
func ClientConfig(m config.Machine) (*ssh.ClientConfig, error) {
	var signers []ssh.Signer
	for _, path := range m.IdentityFilesOrDefault() {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && len(m.IdentityFiles) == 0 {
				// Default identities are optional.
				continue
			}
			return nil, fmt.Errorf("reading identity file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("parsing identity file %s: %w", path, err)
		}
		signers = append(signers, signer)
	}
	if len(signers) == 0 {
		return nil, fmt.Errorf("no identity file found for %s", m.Host)
	}

	hostKeys := ssh.InsecureIgnoreHostKey()
	if !m.InsecureIgnoreHostKey {
		cb, err := knownhosts.New(m.KnownHostsOrDefault())
		if err != nil {
			return nil, fmt.Errorf("loading known hosts: %w", err)
		}
		hostKeys = cb
	}

	return &ssh.ClientConfig{
		User:            m.UserOrDefault(),
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signers...)},
		HostKeyCallback: hostKeys,
	}, nil
}
