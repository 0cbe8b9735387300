package cli

import (
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rileyhilliard/pstop/internal/config"
	"github.com/rileyhilliard/pstop/internal/errors"
	"github.com/rileyhilliard/pstop/internal/logger"
	"github.com/rileyhilliard/pstop/internal/monitor"
	"github.com/rileyhilliard/pstop/internal/pstree"
	"github.com/rileyhilliard/pstop/internal/transport"
	"github.com/rileyhilliard/pstop/pkg/sshutil"
)

// watchOptions are the flag overrides for the dashboard. Only flags the user
// actually set replace config values.
type watchOptions struct {
	url        string
	ssh        string
	local      bool
	delay      time.Duration
	graphDelay time.Duration
	samples    int
	paused     bool
	rowColors  bool
	follow     string
	pidFilter  bool
}

func newWatchCmd(g *globalFlags) *cobra.Command {
	return watchCommand(g, &watchOptions{})
}

// watchCommand builds the watch command with its flags bound to opts.
func watchCommand(g *globalFlags, opts *watchOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the live dashboard",
		Long: `Open the live dashboard for the configured agent.

Examples:
  pstop watch                          # agent from .pstop.yaml
  pstop watch --url http://box:3000    # HTTP agent
  pstop watch --ssh gpu-box            # runs pstop on the host over SSH
  pstop watch --local --delay 2s       # this machine, no agent
  pstop watch --ssh box --follow /var/log/syslog --pid-filter`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, g, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.url, "url", "", "agent base URL")
	f.StringVar(&opts.ssh, "ssh", "", "SSH host or ~/.ssh/config alias running pstop")
	f.BoolVar(&opts.local, "local", false, "sample this machine in-process")
	f.DurationVar(&opts.delay, "delay", 0, "process table refresh interval")
	f.DurationVar(&opts.graphDelay, "graph-delay", 0, "chart refresh interval")
	f.IntVar(&opts.samples, "samples", 0, "chart history length")
	f.BoolVar(&opts.paused, "paused", false, "start with polling paused")
	f.BoolVar(&opts.rowColors, "row-colors", false, "stripe alternate table rows")
	f.StringVar(&opts.follow, "follow", "", "log file on the watched host to stream (ssh and local agents)")
	f.BoolVar(&opts.pidFilter, "pid-filter", false, "show only the selected process's log lines")
	cmd.MarkFlagsMutuallyExclusive("url", "ssh", "local")
	return cmd
}

// resolveWatchConfig loads the config file and applies the flags the user
// set on cmd.
func resolveWatchConfig(cmd *cobra.Command, g *globalFlags, opts *watchOptions) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(g.configPath)
	if err != nil {
		return nil, err
	}

	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	// An agent flag replaces the configured agent entirely.
	switch {
	case changed("url"):
		cfg.Agent.URL, cfg.Agent.SSH, cfg.Agent.Local = opts.url, "", false
	case changed("ssh"):
		cfg.Agent.URL, cfg.Agent.SSH, cfg.Agent.Local = "", opts.ssh, false
	case changed("local"):
		cfg.Agent.URL, cfg.Agent.SSH, cfg.Agent.Local = "", "", opts.local
	}
	if changed("delay") {
		cfg.Poll.Delay = opts.delay
	}
	if changed("graph-delay") {
		cfg.Poll.GraphDelay = opts.graphDelay
	}
	if changed("paused") {
		cfg.Poll.Paused = opts.paused
	}
	if changed("samples") {
		cfg.Charts.Samples = opts.samples
	}
	if changed("row-colors") {
		cfg.View.RowColors = opts.rowColors
	}
	if changed("follow") {
		cfg.Agent.Follow = opts.follow
	}
	if changed("pid-filter") {
		cfg.View.PIDFilter = opts.pidFilter
	}
	if g.logFile != "" {
		cfg.LogFile = g.logFile
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runWatch(cmd *cobra.Command, g *globalFlags, opts *watchOptions) error {
	cfg, err := resolveWatchConfig(cmd, g, opts)
	if err != nil {
		return err
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New(errors.ErrConfig,
			"The dashboard needs a terminal",
			"For scripted output use: pstop agent dump sysinfo")
	}

	log, closeLog, err := openLog(cfg.LogFile, "watch", logger.Noop())
	if err != nil {
		return err
	}
	defer closeLog()

	src, err := transport.Open(transport.Options{
		URL:           cfg.Agent.URL,
		SSH:           cfg.Agent.SSH,
		Local:         cfg.Agent.Local,
		Timeout:       cfg.Agent.Timeout,
		RemoteCommand: cfg.Agent.RemoteCommand,
		Follow:        cfg.Agent.Follow,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = src.Close()
		sshutil.CloseAgent()
	}()
	log.Info("watching %s every %s (charts %s)", src.Name(), cfg.Poll.Delay, cfg.Poll.GraphDelay)

	model := monitor.NewModel(monitor.Options{
		Source:     src,
		Delay:      cfg.Poll.Delay,
		GraphDelay: cfg.Poll.GraphDelay,
		Samples:    cfg.Charts.Samples,
		Paused:     cfg.Poll.Paused,
		RowColors:  cfg.View.RowColors,
		Timeout:    cfg.Agent.Timeout,
		Logger:     log,

		LogLines:     cfg.View.LogLines,
		PIDFilter:    cfg.View.PIDFilter,
		MinimizeLogs: cfg.View.MinimizeLogs,

		OnProcessSelected: func(r pstree.Row) {
			log.Debug("selected pid %d (%s)", r.PID, r.Name)
		},
		OnSort: func(field pstree.SortField, label string) {
			log.Debug("sort changed to %s", label)
		},
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Dashboard exited with an error",
			"Check that the terminal supports the alternate screen.")
	}
	return nil
}
