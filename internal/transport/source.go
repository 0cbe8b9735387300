// Package transport fetches agent snapshots for the dashboard.
//
// Every Source answers the same four requests. Failures come back as
// ErrTransport errors (the poll is skipped and retried on the next tick);
// a body that is not a valid snapshot comes back as ErrProtocol.
package transport

import (
	"context"
	"time"

	"github.com/rileyhilliard/pstop/internal/agent"
	"github.com/rileyhilliard/pstop/internal/errors"
	"github.com/rileyhilliard/pstop/internal/wire"
)

// Source fetches snapshots from one agent.
type Source interface {
	SysInfo(ctx context.Context) (*wire.SysInfo, error)
	CPUInfo(ctx context.Context) (*wire.CPUInfo, error)
	MemInfo(ctx context.Context) (*wire.MemSample, error)
	// Logs returns the followed log from byte offset since; a negative
	// since starts near the end.
	Logs(ctx context.Context, since int64) (*wire.LogSnapshot, error)
	// Name describes the agent for the status line.
	Name() string
	Close() error
}

// Options selects and configures a Source. Exactly one of URL, SSH and Local
// should be set.
type Options struct {
	URL     string
	SSH     string
	Local   bool
	Timeout time.Duration
	// RemoteCommand is the pstop binary invoked on SSH hosts.
	RemoteCommand string
	// Follow is the log file to stream for SSH and local sources. An HTTP
	// agent streams whatever it was started with.
	Follow string
}

// DefaultTimeout bounds a single request.
const DefaultTimeout = 5 * time.Second

// Open returns the Source described by opts.
func Open(opts Options) (Source, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	switch {
	case opts.Local:
		c := agent.NewCollector(nil)
		c.FollowLog(opts.Follow)
		return NewLocalSource(c), nil
	case opts.SSH != "":
		s := NewSSHSource(opts.SSH, opts.RemoteCommand, opts.Timeout)
		s.follow = opts.Follow
		return s, nil
	case opts.URL != "":
		return NewHTTPSource(opts.URL, opts.Timeout)
	default:
		return nil, errors.New(errors.ErrConfig,
			"No agent configured",
			"Set agent.url or agent.ssh in .pstop.yaml, or pass --url, --ssh or --local")
	}
}
