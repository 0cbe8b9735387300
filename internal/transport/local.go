package transport

import (
	"context"

	pkgerrors "github.com/pkg/errors"

	"github.com/rileyhilliard/pstop/internal/agent"
	"github.com/rileyhilliard/pstop/internal/errors"
	"github.com/rileyhilliard/pstop/internal/wire"
)

// LocalSource samples the machine the dashboard runs on, without an agent
// process in between.
type LocalSource struct {
	collector *agent.Collector
}

// NewLocalSource wraps c; nil samples the local machine.
func NewLocalSource(c *agent.Collector) *LocalSource {
	if c == nil {
		c = agent.NewCollector(nil)
	}
	return &LocalSource{collector: c}
}

// Name returns "local".
func (s *LocalSource) Name() string {
	return "local"
}

// SysInfo samples a full snapshot.
func (s *LocalSource) SysInfo(ctx context.Context) (*wire.SysInfo, error) {
	v, err := s.collector.SysInfo(ctx)
	return v, wrapLocal(err)
}

// CPUInfo samples the cores.
func (s *LocalSource) CPUInfo(ctx context.Context) (*wire.CPUInfo, error) {
	v, err := s.collector.CPUInfo(ctx)
	return v, wrapLocal(err)
}

// MemInfo samples memory.
func (s *LocalSource) MemInfo(ctx context.Context) (*wire.MemSample, error) {
	v, err := s.collector.MemInfo(ctx)
	return v, wrapLocal(err)
}

// Logs reads the collector's followed log.
func (s *LocalSource) Logs(ctx context.Context, since int64) (*wire.LogSnapshot, error) {
	v, err := s.collector.Logs(ctx, since)
	return v, wrapLocal(err)
}

// Close is a no-op.
func (s *LocalSource) Close() error {
	return nil
}

func wrapLocal(err error) error {
	if err == nil {
		return nil
	}
	return errors.WrapWithCode(pkgerrors.Cause(err), errors.ErrTransport, err.Error(), "")
}
