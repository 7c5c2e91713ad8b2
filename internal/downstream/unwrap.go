package downstream

import (
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Sentinel protocol codes used when the underlying transport error does
// not itself carry a JSON-RPC error code (connection setup/handshake
// failures happen before any JSON-RPC exchange takes place).
const (
	protocolCodeTransportSetup  = -32001
	protocolCodeHandshakeFailed = -32002
	protocolCodeConnectionClosed = -32000
)

// rpcCoder is implemented by JSON-RPC error types that carry a numeric
// error code; the MCP SDK's transport-level errors satisfy it when the
// failure originated from a JSON-RPC exchange rather than from process or
// network setup.
type rpcCoder interface {
	Code() int
}

func protocolCode(err error) int {
	if coder, ok := err.(rpcCoder); ok {
		return coder.Code()
	}
	return protocolCodeConnectionClosed
}

// firstTextContent extracts the message from the first text content item
// of a tool-reported error response, per spec §4.F bullet 2.
func firstTextContent(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return "downstream tool reported an error"
}

// Unwrap applies the response-unwrapping rule of spec §4.F bullet 3. It is
// exported so a test-only direct-call entry point can share it, keeping
// observed outputs byte-identical between live graph execution and
// out-of-band testing.
func Unwrap(result *mcp.CallToolResult) any {
	if result.StructuredContent != nil {
		return result.StructuredContent
	}

	if len(result.Content) == 0 {
		return nil
	}

	first := result.Content[0]
	tc, ok := first.(*mcp.TextContent)
	if !ok {
		return first
	}

	var parsed any
	if err := json.Unmarshal([]byte(tc.Text), &parsed); err != nil {
		return tc.Text
	}
	return parsed
}
