// Package mcpserver exposes the policy handler as the fetch_ncd_policy MCP
// tool over stdio.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/giygas/priorauth-checker/config"
	"github.com/giygas/priorauth-checker/entities"
	"github.com/giygas/priorauth-checker/logging"
	"github.com/giygas/priorauth-checker/policy"
)

// ToolName is the name callers use in tools/call
const ToolName = "fetch_ncd_policy"

// Input is the tool argument object. Every field is optional.
type Input struct {
	NCDID  string `json:"ncd_id,omitempty" jsonschema:"NCD identifier, for example 313"`
	NCDVer string `json:"ncd_ver,omitempty" jsonschema:"NCD version, for example 2"`
	Title  string `json:"title,omitempty" jsonschema:"policy title resolved to an NCD identifier and version when ncd_id is not given"`
}

// Query converts the tool arguments, values are not trimmed or validated
func (in Input) Query() entities.PolicyQuery {
	return entities.PolicyQuery{
		PolicyID:      in.NCDID,
		PolicyVersion: in.NCDVer,
		Title:         in.Title,
	}
}

// Description is the tool description advertised for a lookup source
func Description(source string) string {
	return fmt.Sprintf("Fetch CMS NCD policy using either title or direct ID/version (%s lookup).", source)
}

// New builds the MCP server with the single fetch_ncd_policy tool
func New(h *policy.Handler, source string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    config.AppName,
		Version: config.AppVersion,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolName,
		Description: Description(source),
	}, func(ctx context.Context, req *mcp.CallToolRequest, in Input) (*mcp.CallToolResult, any, error) {
		res := h.Handle(ctx, in.Query())
		// failures are reported in the text, IsError stays false
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: res.Text}},
		}, nil, nil
	})

	return server
}

// Run serves the MCP server on transport until ctx is done or the client
// disconnects. A nil transport selects stdin/stdout.
func Run(ctx context.Context, server *mcp.Server, transport mcp.Transport) error {
	if transport == nil {
		transport = &mcp.StdioTransport{}
	}
	logging.Info("MCP server running", "tool", ToolName)
	if err := server.Run(ctx, transport); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
