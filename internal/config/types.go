package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete .pstop.yaml configuration file.
type Config struct {
	Version int          `yaml:"version" mapstructure:"version"`
	Agent   AgentConfig  `yaml:"agent" mapstructure:"agent"`
	Poll    PollConfig   `yaml:"poll" mapstructure:"poll"`
	Charts  ChartsConfig `yaml:"charts" mapstructure:"charts"`
	View    ViewConfig   `yaml:"view" mapstructure:"view"`

	// LogFile receives the dashboard's log while the TUI owns the terminal.
	LogFile string `yaml:"log_file,omitempty" mapstructure:"log_file"`
}

// AgentConfig says where snapshots come from. Exactly one of URL, SSH and
// Local is used.
type AgentConfig struct {
	// URL of an agent started with `pstop agent serve`.
	URL string `yaml:"url,omitempty" mapstructure:"url"`

	// SSH host (alias, hostname or user@host:port) that has pstop installed.
	SSH string `yaml:"ssh,omitempty" mapstructure:"ssh"`

	// Local samples this machine in-process.
	Local bool `yaml:"local,omitempty" mapstructure:"local"`

	// Timeout bounds a single request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// RemoteCommand is the pstop binary on SSH hosts.
	RemoteCommand string `yaml:"remote_command,omitempty" mapstructure:"remote_command"`

	// Follow is a log file on the watched host to stream into the log
	// panel (SSH and local agents; an HTTP agent uses its own --follow).
	Follow string `yaml:"follow,omitempty" mapstructure:"follow"`
}

// PollConfig controls the two refresh timers.
type PollConfig struct {
	// Delay between process/memory polls.
	Delay time.Duration `yaml:"delay" mapstructure:"delay"`

	// GraphDelay between CPU polls and chart frames.
	GraphDelay time.Duration `yaml:"graph_delay" mapstructure:"graph_delay"`

	// Paused starts the dashboard frozen.
	Paused bool `yaml:"paused" mapstructure:"paused"`
}

// ChartsConfig sizes the rolling series.
type ChartsConfig struct {
	// Samples is how many points fit in the chart window.
	Samples int `yaml:"samples" mapstructure:"samples"`
}

// ViewConfig holds display toggles.
type ViewConfig struct {
	// RowColors stripes alternate rows of the process table.
	RowColors bool `yaml:"row_colors" mapstructure:"row_colors"`

	// LogLines is how many log lines the log panel keeps.
	LogLines int `yaml:"log_lines" mapstructure:"log_lines"`

	// PIDFilter starts with the log narrowed to the selected process.
	PIDFilter bool `yaml:"pid_filter" mapstructure:"pid_filter"`

	// MinimizeLogs starts with the log panel collapsed.
	MinimizeLogs bool `yaml:"minimize_logs" mapstructure:"minimize_logs"`
}

// Source returns a short description of the configured agent.
func (a AgentConfig) Source() string {
	switch {
	case a.Local:
		return "local"
	case a.SSH != "":
		return "ssh://" + a.SSH
	default:
		return a.URL
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Agent: AgentConfig{
			URL:     "http://localhost:3000",
			Timeout: 5 * time.Second,
		},
		Poll: PollConfig{
			Delay:      5 * time.Second,
			GraphDelay: 2 * time.Second,
		},
		Charts: ChartsConfig{
			Samples: 120,
		},
		View: ViewConfig{
			LogLines: 1000,
		},
	}
}
