package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/rileyhilliard/pstop/internal/errors"
)

// Dump writes one snapshot for endpoint to w as a single JSON document. It
// is what the SSH transport runs on the remote host, so the output must be
// byte-for-byte what the HTTP server would have answered. since is only read
// by the logs endpoint.
func Dump(ctx context.Context, c *Collector, endpoint string, since int64, w io.Writer) error {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}

	var (
		v   interface{}
		err error
	)
	switch endpoint {
	case PathSysInfo:
		v, err = c.SysInfo(ctx)
	case PathCPUInfo:
		v, err = c.CPUInfo(ctx)
	case PathMemInfo:
		v, err = c.MemInfo(ctx)
	case PathLogs:
		v, err = c.Logs(ctx, since)
	default:
		return errors.New(errors.ErrAgent,
			fmt.Sprintf("Unknown endpoint '%s'", endpoint),
			"Use one of: "+strings.Join(Endpoints, ", "))
	}
	if err != nil {
		return errors.WrapWithCode(pkgerrors.Cause(err), errors.ErrAgent,
			fmt.Sprintf("Couldn't sample %s", endpoint),
			"Run with PSTOP_DEBUG=1 for details.")
	}
	return json.NewEncoder(w).Encode(v)
}
