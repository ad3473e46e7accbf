package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all fraud decision tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("fraud-detection", "1.0.0")
	client := NewFraudClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolScoreTransaction, h.HandleScoreTransaction)
	s.AddTool(ToolGetThreshold, h.HandleGetThreshold)
	s.AddTool(ToolSetThreshold, h.HandleSetThreshold)
	s.AddTool(ToolGetModelInfo, h.HandleGetModelInfo)
	s.AddTool(ToolGetDriftReport, h.HandleGetDriftReport)
	s.AddTool(ToolListDecisions, h.HandleListDecisions)

	return s
}
