// Package downstream owns the lazily created, cached clients to
// downstream tool servers reached over stdio, SSE, or streaming HTTP
// (spec §4.F), and the shared response-unwrapping rule.
package downstream

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/singleflight"

	"github.com/relaygraph/toolgraphd/pkg/toolgraph"
)

// clientEntry is one cached, connected downstream client.
type clientEntry struct {
	session *mcp.ClientSession
	stderr  *stderrBuffer
	cmd     *exec.Cmd
}

// Manager is the downstream-client manager. At most one client is ever
// created per server-name, even under concurrent first use from several
// invocations (spec §5).
type Manager struct {
	implementation mcp.Implementation

	mu      sync.Mutex
	clients map[string]*clientEntry
	group   singleflight.Group
}

// NewManager returns a manager that identifies itself to downstream
// servers with the given implementation metadata during the MCP
// handshake.
func NewManager(name, version string) *Manager {
	return &Manager{
		implementation: mcp.Implementation{Name: name, Version: version},
		clients:        make(map[string]*clientEntry),
	}
}

// get returns the cached client for serverName, creating and connecting
// one on first use.
func (m *Manager) get(ctx context.Context, serverName string, cfg toolgraph.DownstreamServer) (*clientEntry, error) {
	m.mu.Lock()
	entry, ok := m.clients[serverName]
	m.mu.Unlock()
	if ok {
		return entry, nil
	}

	result, err, _ := m.group.Do(serverName, func() (any, error) {
		m.mu.Lock()
		if entry, ok := m.clients[serverName]; ok {
			m.mu.Unlock()
			return entry, nil
		}
		m.mu.Unlock()

		created, err := m.connect(ctx, serverName, cfg)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.clients[serverName] = created
		m.mu.Unlock()
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*clientEntry), nil
}

func (m *Manager) connect(ctx context.Context, serverName string, cfg toolgraph.DownstreamServer) (*clientEntry, error) {
	buf := newStderrBuffer()

	transport, cmd, err := buildTransport(ctx, cfg, buf)
	if err != nil {
		return nil, &toolgraph.DownstreamProtocolError{
			Server: serverName,
			Code:   protocolCodeTransportSetup,
			Msg:    "failed to set up transport",
			Stderr: buf.snapshot(),
			Cause:  err,
		}
	}

	client := mcp.NewClient(&m.implementation, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, &toolgraph.DownstreamProtocolError{
			Server: serverName,
			Code:   protocolCodeHandshakeFailed,
			Msg:    "MCP handshake failed",
			Stderr: buf.snapshot(),
			Cause:  err,
		}
	}

	return &clientEntry{session: session, stderr: buf, cmd: cmd}, nil
}

// Call forwards a tool call to the named downstream server, returning the
// unwrapped result (spec §4.F). The server's stderr buffer, for stdio
// transports, is cleared immediately before the call so captured lines are
// attributable to it.
func (m *Manager) Call(ctx context.Context, serverName string, cfg toolgraph.DownstreamServer, toolName string, args map[string]any) (any, error) {
	entry, err := m.get(ctx, serverName, cfg)
	if err != nil {
		return nil, err
	}

	entry.stderr.clear()

	result, err := entry.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		return nil, &toolgraph.DownstreamProtocolError{
			Server: serverName,
			Code:   protocolCode(err),
			Msg:    err.Error(),
			Stderr: entry.stderr.snapshot(),
			Cause:  err,
		}
	}

	if result.IsError {
		return nil, &toolgraph.DownstreamToolError{
			Server:   serverName,
			Tool:     toolName,
			Message:  firstTextContent(result),
			Response: result,
		}
	}

	return Unwrap(result), nil
}

// CloseAll closes every cached client. Idempotent.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, entry := range m.clients {
		if err := entry.session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing client %q: %w", name, err)
		}
		delete(m.clients, name)
	}
	return firstErr
}
