package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all SpendPulse tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("spendpulse", "0.1.0")
	client := NewSpendPulseClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolListEntities, h.HandleListEntities)
	s.AddTool(ToolAnalyzeEntity, h.HandleAnalyzeEntity)
	s.AddTool(ToolGetDatasetInsights, h.HandleGetDatasetInsights)
	s.AddTool(ToolLoadDemoDataset, h.HandleLoadDemoDataset)

	return s
}
