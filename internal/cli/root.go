package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/pstop/internal/errors"
	"github.com/rileyhilliard/pstop/internal/logger"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	logFile    string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "pstop",
		Short: "Live process tree dashboard",
		Long: `pstop shows the process tree, per-core CPU usage and memory of a machine,
refreshed live in the terminal.

Data comes from a pstop agent: over HTTP (pstop agent serve), over SSH
(pstop agent dump is run on the remote host), or sampled in-process with
--local.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Bare `pstop` opens the dashboard.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, g, &watchOptions{})
		},
	}

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "",
		"config file (default .pstop.yaml, then ~/.config/pstop/config.yaml)")
	cmd.PersistentFlags().StringVar(&g.logFile, "log-file", "",
		"append logs to this file")

	cmd.AddCommand(
		newWatchCmd(g),
		newAgentCmd(g),
		newInitCmd(),
		newDoctorCmd(g),
		newVersionCmd(),
		newCompletionCmd(),
	)
	return cmd
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return nil
	}
	if isUnknownCommandError(err) {
		fmt.Fprintf(stderr, "Error: %v\nRun 'pstop --help' for usage.\n", err)
		return err
	}
	var pe *errors.Error
	if stderrors.As(err, &pe) {
		fmt.Fprint(stderr, pe.Error())
		return err
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return err
}

// isUnknownCommandError reports whether cobra rejected the command line
// itself rather than a command failing.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

// openLog returns the logger for a command. With a path, logs are appended
// to that file; otherwise fallback is used.
func openLog(path, prefix string, fallback logger.Logger) (logger.Logger, func(), error) {
	if path == "" {
		return fallback, func() {}, nil
	}
	level := logger.LevelInfo
	if os.Getenv(logger.DebugEnv) != "" {
		level = logger.LevelDebug
	}
	log, closer, err := logger.OpenFile(path, prefix, level)
	if err != nil {
		return nil, nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't open log file %s", path),
			"Check that the directory exists and is writable.")
	}
	return log, func() { _ = closer.Close() }, nil
}
