package transport

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/pstop/internal/errors"
	"github.com/rileyhilliard/pstop/internal/wire"
	"github.com/rileyhilliard/pstop/pkg/sshutil"
)

// Runner runs a command on a remote host.
type Runner interface {
	Output(cmd string) ([]byte, error)
	Alive() bool
	Close() error
}

// DialFunc opens a Runner for host.
type DialFunc func(host string, timeout time.Duration) (Runner, error)

func dialSSH(host string, timeout time.Duration) (Runner, error) {
	c, err := sshutil.Dial(host, timeout)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DefaultRemoteCommand is the binary run on SSH hosts.
const DefaultRemoteCommand = "pstop"

// SSHSource polls by running `pstop agent dump <endpoint>` on a remote host.
// The SSH connection is kept between polls and re-dialed when it stops
// answering keepalives or a command fails.
type SSHSource struct {
	host    string
	command string
	timeout time.Duration
	dial    DialFunc
	// follow is the log file on the remote host, empty for none.
	follow string

	mu     sync.Mutex
	client Runner
}

// NewSSHSource creates a source for host. Nothing is dialed until the first
// poll.
func NewSSHSource(host, command string, timeout time.Duration) *SSHSource {
	if command == "" {
		command = DefaultRemoteCommand
	}
	return &SSHSource{host: host, command: command, timeout: timeout, dial: dialSSH}
}

// Name returns the SSH host.
func (s *SSHSource) Name() string {
	return "ssh://" + s.host
}

// SysInfo runs the sysinfo dump.
func (s *SSHSource) SysInfo(ctx context.Context) (*wire.SysInfo, error) {
	var v wire.SysInfo
	if err := s.fetch(ctx, "sysinfo", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// CPUInfo runs the cpuinfo dump.
func (s *SSHSource) CPUInfo(ctx context.Context) (*wire.CPUInfo, error) {
	var v wire.CPUInfo
	if err := s.fetch(ctx, "cpuinfo", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// MemInfo runs the meminfo dump.
func (s *SSHSource) MemInfo(ctx context.Context) (*wire.MemSample, error) {
	var v wire.MemSample
	if err := s.fetch(ctx, "meminfo", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Logs runs the logs dump from byte offset since.
func (s *SSHSource) Logs(ctx context.Context, since int64) (*wire.LogSnapshot, error) {
	args := fmt.Sprintf("logs --since=%d", since)
	if s.follow != "" {
		args += " --follow " + shellQuote(s.follow)
	}
	var v wire.LogSnapshot
	if err := s.fetch(ctx, args, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// shellQuote single-quotes s for the remote shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Close drops the cached connection.
func (s *SSHSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *SSHSource) conn() (Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		if s.client.Alive() {
			return s.client, nil
		}
		_ = s.client.Close()
		s.client = nil
	}

	c, err := s.dial(s.host, s.timeout)
	if err != nil {
		return nil, err
	}
	s.client = c
	return c, nil
}

// drop forgets c if it is still the cached connection.
func (s *SSHSource) drop(c Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == c {
		_ = c.Close()
		s.client = nil
	}
}

type runResult struct {
	out []byte
	err error
}

func (s *SSHSource) fetch(ctx context.Context, endpoint string, v interface{}) error {
	c, err := s.conn()
	if err != nil {
		return err
	}

	cmd := fmt.Sprintf("%s agent dump %s", s.command, endpoint)
	done := make(chan runResult, 1)
	go func() {
		out, err := c.Output(cmd)
		done <- runResult{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		// Closing the connection unblocks the pending session.
		s.drop(c)
		return errors.WrapWithCode(ctx.Err(), errors.ErrTransport,
			fmt.Sprintf("Timed out waiting for %s on %s", endpoint, s.host),
			"The host may be overloaded; the next poll will reconnect.")
	case r := <-done:
		if r.err != nil {
			s.drop(c)
			return r.err
		}
		return wire.Decode(bytes.NewReader(r.out), v)
	}
}
