package kit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPDecodeResult holds the decoded request and an optional context enrichment.
type MCPDecodeResult struct {
	Request   any
	EnrichCtx func(context.Context) context.Context
}

// MCPDecoder extracts the typed request of an endpoint from tool arguments.
type MCPDecoder func(mcp.CallToolRequest) (*MCPDecodeResult, error)

// MCPTool binds a tool definition to the endpoint serving it.
type MCPTool struct {
	Tool     mcp.Tool
	Endpoint Endpoint
	Decode   MCPDecoder
}

// RegisterMCPTools registers every tool on srv.
func RegisterMCPTools(srv *server.MCPServer, tools ...MCPTool) {
	for _, t := range tools {
		RegisterMCPTool(srv, t.Tool, t.Endpoint, t.Decode)
	}
}

// RegisterMCPTool registers an Endpoint as an MCP tool on the given server.
// Decoding and endpoint failures are reported as tool errors, not protocol
// errors, so the calling model sees the message.
func RegisterMCPTool(srv *server.MCPServer, tool mcp.Tool, endpoint Endpoint, decode MCPDecoder) {
	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = WithTransport(ctx, TransportMCP)
		decoded, err := decode(req)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if decoded.EnrichCtx != nil {
			ctx = decoded.EnrichCtx(ctx)
		}

		resp, err := endpoint(ctx, decoded.Request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("marshal: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

// StringArg returns a trimmed string argument; numbers are formatted.
func StringArg(args map[string]any, name string) string {
	switch v := args[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// NumberArg returns a numeric argument given as a JSON number or a numeric
// string, and 0 when it is absent. Decimal commas are accepted.
func NumberArg(args map[string]any, name string) (float64, error) {
	switch v := args[name].(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(v), ",", ".")
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: not a number: %q", name, v)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%s: not a number", name)
}

// ListArg splits a comma-separated argument, or reads a JSON array of
// strings. Blank items are dropped.
func ListArg(args map[string]any, name string) []string {
	var items []string
	switch v := args[name].(type) {
	case string:
		items = strings.Split(v, ",")
	case []any:
		for _, it := range v {
			if s, ok := it.(string); ok {
				items = append(items, s)
			}
		}
	}
	out := items[:0]
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
