package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/pstop/internal/config"
	"github.com/rileyhilliard/pstop/internal/doctor"
	"github.com/rileyhilliard/pstop/internal/errors"
	"github.com/rileyhilliard/pstop/internal/ui"
	"github.com/rileyhilliard/pstop/pkg/sshutil"
)

// Agent kinds offered by the init form.
const (
	agentKindURL   = "url"
	agentKindSSH   = "ssh"
	agentKindLocal = "local"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Path           string // Explicit destination; overrides Global
	Global         bool   // Write ~/.config/pstop/config.yaml instead of ./.pstop.yaml
	Overwrite      bool   // Overwrite an existing file without asking
	NonInteractive bool   // Skip prompts; the agent must come from URL, SSH or Local
	URL            string
	SSH            string
	Local          bool
	Out            io.Writer
}

func newInitCmd() *cobra.Command {
	opts := InitOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a pstop config file",
		Long: `Create a pstop config file, asking which agent to watch.

Without flags the file is written to ./.pstop.yaml. Use --global for
~/.config/pstop/config.yaml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Out = cmd.OutOrStdout()
			return Init(opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Path, "output", "o", "", "write the config to this path")
	f.BoolVar(&opts.Global, "global", false, "write the global config file")
	f.BoolVarP(&opts.Overwrite, "force", "f", false, "overwrite an existing config file")
	f.BoolVar(&opts.NonInteractive, "non-interactive", false, "don't prompt; requires --url, --ssh or --local")
	f.StringVar(&opts.URL, "url", "", "agent base URL")
	f.StringVar(&opts.SSH, "ssh", "", "SSH host running pstop")
	f.BoolVar(&opts.Local, "local", false, "sample this machine in-process")
	cmd.MarkFlagsMutuallyExclusive("url", "ssh", "local")
	return cmd
}

// Init writes a new config file.
func Init(opts InitOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	path, err := initPath(opts)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !opts.Overwrite {
		if opts.NonInteractive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", path),
				"Use --force to overwrite")
		}

		var overwrite bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Config file '%s' already exists. Overwrite?", path)).
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Fprintln(opts.Out, "Cancelled.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	cfg.Agent.URL = ""

	switch {
	case opts.URL != "":
		cfg.Agent.URL = opts.URL
	case opts.SSH != "":
		cfg.Agent.SSH = opts.SSH
	case opts.Local:
		cfg.Agent.Local = true
	case opts.NonInteractive:
		return errors.New(errors.ErrConfig,
			"An agent is required in non-interactive mode",
			"Provide --url, --ssh or --local, or run interactively")
	default:
		if err := promptAgent(&cfg.Agent); err != nil {
			return err
		}
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	if !opts.NonInteractive && !testAgentConnection(opts.Out, cfg.Agent) {
		saveAnyway := false
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Save config anyway? (You can fix the connection later)").
					Value(&saveAnyway),
			),
		)
		if err := form.Run(); err != nil || !saveAnyway {
			return errors.New(errors.ErrTransport,
				fmt.Sprintf("Couldn't get a snapshot from %s", cfg.Agent.Source()),
				"Run 'pstop doctor' after starting the agent to see what's wrong")
		}
	}

	if err := config.Save(path, cfg); err != nil {
		return err
	}

	fmt.Fprintf(opts.Out, "Created %s (agent: %s)\n\n", path, cfg.Agent.Source())
	fmt.Fprintln(opts.Out, "Next steps:")
	if cfg.Agent.URL != "" {
		fmt.Fprintln(opts.Out, "  pstop agent serve   - Start the agent on the watched machine")
	}
	fmt.Fprintln(opts.Out, "  pstop watch         - Open the dashboard")
	return nil
}

// testAgentConnection fetches one snapshot from the agent behind a spinner
// and reports why it failed.
func testAgentConnection(out io.Writer, a config.AgentConfig) bool {
	fmt.Fprintln(out)
	spinner := ui.NewSpinner(out, "Testing connection to "+a.Source())
	spinner.Start()

	result := (&doctor.AgentSnapshotCheck{Agent: a}).Run(context.Background())
	if result.Status == doctor.StatusPass {
		spinner.Success()
		fmt.Fprintf(out, "  %s\n\n", ui.Muted(result.Message))
		return true
	}

	spinner.Fail()
	fmt.Fprintf(out, "\n%s %s\n", ui.Error(ui.SymbolFail), result.Message)
	if result.Suggestion != "" {
		fmt.Fprintf(out, "  %s\n\n", ui.Muted(result.Suggestion))
	}
	return false
}

func initPath(opts InitOptions) (string, error) {
	switch {
	case opts.Path != "":
		return opts.Path, nil
	case opts.Global:
		p := config.GlobalPath()
		if p == "" {
			return "", errors.New(errors.ErrConfig,
				"Can't find your home directory",
				"Pass an explicit path with --output")
		}
		return p, nil
	default:
		return filepath.Join(".", config.ConfigFileName), nil
	}
}

// promptAgent asks which agent to watch. Hosts from ~/.ssh/config are
// offered as choices when there are any.
func promptAgent(a *config.AgentConfig) error {
	kind := agentKindURL
	url := config.DefaultConfig().Agent.URL
	var sshHost string

	hosts, _ := sshutil.ParseSSHConfig()

	var sshField huh.Field
	if len(hosts) > 0 {
		options := make([]huh.Option[string], 0, len(hosts))
		for _, h := range hosts {
			options = append(options, huh.NewOption(fmt.Sprintf("%s (%s)", h.Alias, h.Description()), h.Alias))
		}
		sshField = huh.NewSelect[string]().
			Title("SSH host").
			Description("Hosts from ~/.ssh/config; pstop must be installed there").
			Options(options...).
			Value(&sshHost)
	} else {
		sshField = huh.NewInput().
			Title("SSH host or alias").
			Description("pstop must be installed on the host").
			Placeholder("user@192.168.1.100").
			Value(&sshHost).
			Validate(requireValue("SSH host is required"))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("What should pstop watch?").
				Options(
					huh.NewOption("An agent over HTTP (pstop agent serve)", agentKindURL),
					huh.NewOption("A host over SSH", agentKindSSH),
					huh.NewOption("This machine", agentKindLocal),
				).
				Value(&kind),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Agent URL").
				Placeholder("http://localhost:3000").
				Value(&url).
				Validate(requireValue("agent URL is required")),
		).WithHideFunc(func() bool { return kind != agentKindURL }),
		huh.NewGroup(sshField).
			WithHideFunc(func() bool { return kind != agentKindSSH }),
	)

	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Check terminal compatibility or use --non-interactive with --url, --ssh or --local")
	}

	switch kind {
	case agentKindSSH:
		a.SSH = strings.TrimSpace(sshHost)
	case agentKindLocal:
		a.Local = true
	default:
		a.URL = strings.TrimSpace(url)
	}
	return nil
}

func requireValue(msg string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s", msg)
		}
		return nil
	}
}
