package downstream

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/relaygraph/toolgraphd/pkg/toolgraph"
)

// headerRoundTripper injects a fixed set of headers into every request,
// used to carry a downstream server's configured headers over SSE and
// streaming-HTTP transports.
type headerRoundTripper struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

func httpClientWithHeaders(headers map[string]string) *http.Client {
	if len(headers) == 0 {
		return http.DefaultClient
	}
	return &http.Client{Transport: &headerRoundTripper{headers: headers}}
}

// buildTransport chooses a transport for cfg's variant and, for stdio,
// wires the child process's stderr into buf. The returned transport is not
// yet connected; Manager.connect performs the connection and the MCP
// handshake.
func buildTransport(ctx context.Context, cfg toolgraph.DownstreamServer, buf *stderrBuffer) (mcp.Transport, *exec.Cmd, error) {
	switch cfg.Transport {
	case toolgraph.TransportStdio:
		cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
		if cfg.WorkingDir != "" {
			cmd.Dir = cfg.WorkingDir
		}
		stderrPipe, err := cmd.StderrPipe()
		if err != nil {
			return nil, nil, fmt.Errorf("opening stderr pipe: %w", err)
		}
		pipeToBuffer(stderrPipe, buf)
		return &mcp.CommandTransport{Command: cmd}, cmd, nil

	case toolgraph.TransportSSE:
		return &mcp.SSEClientTransport{
			Endpoint:   cfg.URL,
			HTTPClient: httpClientWithHeaders(cfg.Headers),
		}, nil, nil

	case toolgraph.TransportStreamableHTTP:
		return &mcp.StreamableClientTransport{
			Endpoint:   cfg.URL,
			HTTPClient: httpClientWithHeaders(cfg.Headers),
		}, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown downstream transport kind %q", cfg.Transport)
	}
}
