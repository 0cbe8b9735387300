package config

import (
	"fmt"
	"time"

	"github.com/rileyhilliard/pstop/internal/errors"
)

// Lower bounds for the tunables. Anything faster floods the agent.
const (
	MinDelay      = 500 * time.Millisecond
	MinGraphDelay = 250 * time.Millisecond
	MinSamples    = 2
	MinLogLines   = 10
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but pstop only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade pstop or regenerate the file with 'pstop init'")
	}

	if err := validateAgent(cfg.Agent); err != nil {
		return err
	}
	if err := validatePoll(cfg.Poll); err != nil {
		return err
	}

	if cfg.Charts.Samples < MinSamples {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("charts.samples is %d, needs at least %d", cfg.Charts.Samples, MinSamples),
			"A chart needs two points to draw a line")
	}

	if cfg.View.LogLines < MinLogLines {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("view.log_lines is %d, needs at least %d", cfg.View.LogLines, MinLogLines),
			"Try something like: log_lines: 1000")
	}

	return nil
}

func validateAgent(a AgentConfig) error {
	set := 0
	for _, on := range []bool{a.URL != "", a.SSH != "", a.Local} {
		if on {
			set++
		}
	}
	switch {
	case set == 0:
		return errors.New(errors.ErrConfig,
			"No agent configured",
			"Set agent.url, agent.ssh or agent.local in .pstop.yaml")
	case set > 1:
		return errors.New(errors.ErrConfig,
			"More than one agent configured",
			"Pick one of agent.url, agent.ssh or agent.local")
	}

	if a.Timeout <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("agent.timeout must be positive, got %s", a.Timeout),
			"Try something like: timeout: 5s")
	}
	return nil
}

func validatePoll(p PollConfig) error {
	if p.Delay < MinDelay {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("poll.delay %s is below the %s minimum", p.Delay, MinDelay),
			"Try something like: delay: 5s")
	}
	if p.GraphDelay < MinGraphDelay {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("poll.graph_delay %s is below the %s minimum", p.GraphDelay, MinGraphDelay),
			"Try something like: graph_delay: 2s")
	}
	return nil
}
