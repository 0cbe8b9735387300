package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/pstop/internal/agent"
	"github.com/rileyhilliard/pstop/internal/errors"
	"github.com/rileyhilliard/pstop/internal/logger"
)

// DefaultListenAddr is where `agent serve` listens unless told otherwise.
const DefaultListenAddr = ":3000"

func newAgentCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Serve or print snapshots of this machine",
		Long: `The agent samples the machine it runs on.

'pstop agent serve' answers the dashboard over HTTP. 'pstop agent dump'
prints a single snapshot and exits; the dashboard runs it over SSH.
With --follow the agent also streams a log file (logcat threadtime or
syslog lines are split into pid, level and tag).`,
	}
	cmd.AddCommand(newAgentServeCmd(g), newAgentDumpCmd())
	return cmd
}

func newAgentServeCmd(g *globalFlags) *cobra.Command {
	var listen, follow string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve snapshots over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, closeLog, err := openLog(g.logFile, "agent", logger.FromEnv("agent"))
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			c := agent.NewCollector(nil)
			c.FollowLog(follow)
			if follow != "" {
				log.Info("following %s", follow)
			}
			return serveAgent(ctx, listen, c, log)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", DefaultListenAddr, "address to listen on")
	cmd.Flags().StringVar(&follow, "follow", "", "log file to serve on /logs")
	return cmd
}

// serveAgent listens on addr and serves c until ctx is cancelled.
func serveAgent(ctx context.Context, addr string, c *agent.Collector, log logger.Logger) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrAgent,
			fmt.Sprintf("Can't listen on %s", addr),
			"Pick another address with --listen, e.g. --listen :3001")
	}
	return agent.NewServer(c, log).Serve(ctx, l)
}

func newAgentDumpCmd() *cobra.Command {
	names := make([]string, 0, len(agent.Endpoints))
	for _, e := range agent.Endpoints {
		names = append(names, strings.TrimPrefix(e, "/"))
	}

	var (
		since  int64
		follow string
	)
	cmd := &cobra.Command{
		Use:       "dump <" + strings.Join(names, "|") + ">",
		Short:     "Print one snapshot as JSON",
		ValidArgs: names,
		Args:      cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := agent.NewCollector(nil)
			c.FollowLog(follow)
			return agent.Dump(cmd.Context(), c, args[0], since, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Int64Var(&since, "since", -1, "logs: byte offset to read from; negative reads the tail")
	cmd.Flags().StringVar(&follow, "follow", "", "logs: file to read")
	return cmd
}
