package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rileyhilliard/pstop/internal/transport"
	"github.com/rileyhilliard/pstop/pkg/sshutil"
)

// SSHAliasCheck looks the configured SSH host up in ~/.ssh/config. A host
// that isn't an alias still works as a plain hostname, so a miss is only a
// warning.
type SSHAliasCheck struct {
	Host       string
	ConfigPath string // Defaults to ~/.ssh/config
}

func (c *SSHAliasCheck) Name() string     { return "ssh_alias" }
func (c *SSHAliasCheck) Category() string { return "SSH" }

func (c *SSHAliasCheck) Run(ctx context.Context) CheckResult {
	path := c.ConfigPath
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, ".ssh", "config")
	}

	hosts, err := sshutil.ParseSSHConfigFile(path)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Couldn't parse %s: %v", path, err),
			Suggestion: "Fix the syntax error; until then the host is dialed as a plain hostname",
		}
	}

	alias := bareHost(c.Host)
	for _, h := range hosts {
		if h.Alias == alias {
			return CheckResult{
				Name:    c.Name(),
				Status:  StatusPass,
				Message: fmt.Sprintf("%s: %s", alias, h.Description()),
			}
		}
	}

	return CheckResult{
		Name:       c.Name(),
		Status:     StatusWarn,
		Message:    fmt.Sprintf("'%s' is not an alias in %s, dialing it as a hostname", alias, path),
		Suggestion: "Add a Host entry to set the user, port or identity file",
	}
}

// bareHost strips user@ and :port from an SSH target.
func bareHost(host string) string {
	if i := strings.LastIndex(host, "@"); i >= 0 {
		host = host[i+1:]
	}
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i+1:], "]") {
		host = host[:i]
	}
	return host
}

// DialFunc opens a command runner for an SSH host.
type DialFunc func(host string, timeout time.Duration) (transport.Runner, error)

// SSHRemoteCheck connects to the host and makes sure pstop is installed
// there.
type SSHRemoteCheck struct {
	Host    string
	Command string // Remote pstop binary; defaults to "pstop"
	Timeout time.Duration
	Dial    DialFunc
}

func (c *SSHRemoteCheck) Name() string     { return "ssh_remote" }
func (c *SSHRemoteCheck) Category() string { return "SSH" }

func (c *SSHRemoteCheck) Run(ctx context.Context) CheckResult {
	dial := c.Dial
	if dial == nil {
		dial = func(host string, timeout time.Duration) (transport.Runner, error) {
			c, err := sshutil.Dial(host, timeout)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}
	command := c.Command
	if command == "" {
		command = transport.DefaultRemoteCommand
	}

	start := time.Now()
	client, err := dial(c.Host, c.Timeout)
	if err != nil {
		return failure(c.Name(), err, "Check that the host is reachable: ssh "+c.Host)
	}
	defer client.Close()
	latency := time.Since(start)

	out, err := client.Output(command + " version --short")
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Connected to %s, but '%s' didn't run", c.Host, command),
			Suggestion: "Install pstop on the host or set agent.remote_command to its full path",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%s: pstop %s (%s)", c.Host, strings.TrimSpace(string(out)), formatLatency(latency)),
	}
}

func formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return "<1ms"
	}
	return d.Round(time.Millisecond).String()
}
