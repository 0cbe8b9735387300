package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/pstop/internal/errors"
	"github.com/rileyhilliard/pstop/internal/wire"
)

// HTTPSource polls an agent's HTTP endpoints.
type HTTPSource struct {
	base   string
	client *http.Client
}

// NewHTTPSource validates rawURL and returns a source for it.
func NewHTTPSource(rawURL string, timeout time.Duration) (*HTTPSource, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Invalid agent URL '%s'", rawURL),
			"Use a full URL such as http://localhost:3000")
	}
	return &HTTPSource{
		base:   strings.TrimRight(rawURL, "/"),
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the base URL.
func (s *HTTPSource) Name() string {
	return s.base
}

// SysInfo fetches /sysinfo.
func (s *HTTPSource) SysInfo(ctx context.Context) (*wire.SysInfo, error) {
	var v wire.SysInfo
	if err := s.get(ctx, "/sysinfo", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// CPUInfo fetches /cpuinfo.
func (s *HTTPSource) CPUInfo(ctx context.Context) (*wire.CPUInfo, error) {
	var v wire.CPUInfo
	if err := s.get(ctx, "/cpuinfo", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// MemInfo fetches /meminfo.
func (s *HTTPSource) MemInfo(ctx context.Context) (*wire.MemSample, error) {
	var v wire.MemSample
	if err := s.get(ctx, "/meminfo", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Logs fetches /logs?since=N.
func (s *HTTPSource) Logs(ctx context.Context, since int64) (*wire.LogSnapshot, error) {
	var v wire.LogSnapshot
	if err := s.get(ctx, "/logs?since="+strconv.FormatInt(since, 10), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Close releases idle connections.
func (s *HTTPSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *HTTPSource) get(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+path, nil)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrTransport,
			fmt.Sprintf("Couldn't build request for %s", path), "")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrTransport,
			fmt.Sprintf("Can't reach agent at %s", s.base),
			"Is the agent running? Start it with: pstop agent serve")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.New(errors.ErrTransport,
			fmt.Sprintf("Agent returned %s for %s: %s", resp.Status, path, strings.TrimSpace(string(body))),
			"Check the agent's log for details.")
	}
	return wire.Decode(resp.Body, v)
}
