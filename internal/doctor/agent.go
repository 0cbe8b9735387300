package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/rileyhilliard/pstop/internal/config"
	"github.com/rileyhilliard/pstop/internal/live"
	"github.com/rileyhilliard/pstop/internal/transport"
)

// OpenFunc opens the source for an agent.
type OpenFunc func(opts transport.Options) (transport.Source, error)

// AgentSnapshotCheck fetches one full snapshot from the configured agent and
// builds the process tree from it, the same way the dashboard's first poll
// does.
type AgentSnapshotCheck struct {
	Agent config.AgentConfig
	Open  OpenFunc
}

func (c *AgentSnapshotCheck) Name() string     { return "agent_snapshot" }
func (c *AgentSnapshotCheck) Category() string { return "AGENT" }

func (c *AgentSnapshotCheck) Run(ctx context.Context) CheckResult {
	open := c.Open
	if open == nil {
		open = transport.Open
	}

	src, err := open(transport.Options{
		URL:           c.Agent.URL,
		SSH:           c.Agent.SSH,
		Local:         c.Agent.Local,
		Timeout:       c.Agent.Timeout,
		RemoteCommand: c.Agent.RemoteCommand,
	})
	if err != nil {
		return failure(c.Name(), err, "Set agent.url, agent.ssh or agent.local in .pstop.yaml")
	}
	defer src.Close()

	timeout := c.Agent.Timeout
	if timeout <= 0 {
		timeout = transport.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	info, err := src.SysInfo(ctx)
	if err != nil {
		return failure(c.Name(), err, "Is the agent running? Start it with: pstop agent serve")
	}
	latency := time.Since(start)

	state := live.New(live.Options{Samples: 2, GraphDelay: time.Second})
	if _, err := state.ApplySysInfo(state.Issue(live.SysInfo), start, info); err != nil {
		return failure(c.Name(), err, "The agent answered with a snapshot pstop can't read; check that both ends run the same version")
	}

	return CheckResult{
		Name:   c.Name(),
		Status: StatusPass,
		Message: fmt.Sprintf("%s: %d cpus, %d processes (%s)",
			src.Name(), state.NCPU(), state.Tree.Len(), formatLatency(latency)),
	}
}

// NewChecks builds the checks for the effective config. cfg may be nil when
// it couldn't be loaded; only the config checks run then.
func NewChecks(configPath string, cfg *config.Config) []Check {
	checks := []Check{
		&ConfigFileCheck{ConfigPath: configPath},
		&ConfigValidCheck{ConfigPath: configPath},
	}
	if cfg == nil {
		return checks
	}

	if cfg.Agent.SSH != "" {
		checks = append(checks,
			&SSHAliasCheck{Host: cfg.Agent.SSH},
			&SSHRemoteCheck{Host: cfg.Agent.SSH, Command: cfg.Agent.RemoteCommand, Timeout: cfg.Agent.Timeout},
		)
	}
	return append(checks, &AgentSnapshotCheck{Agent: cfg.Agent})
}
