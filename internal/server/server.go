// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package server

import (
	"github.com/aetherlink/engram/internal/config"
	"github.com/aetherlink/engram/internal/memory"
	"github.com/aetherlink/engram/internal/pipeline"
	"github.com/aetherlink/engram/internal/processor"
	"github.com/aetherlink/engram/internal/tools"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer wraps the mcp-go server with our configuration
type MCPServer struct {
	mcpServer *server.MCPServer
	config    *config.Config
	store     *memory.Store
	processor *processor.Processor
	pipeline  *pipeline.Pipeline
}

// NewMCPServer creates a new MCP server instance and registers the
// memory tools. Tool registration honors the memory_tool_enabled
// setting: with it off the server still runs but exposes no tools.
// proc and pl may be nil when no language model is configured.
func NewMCPServer(cfg *config.Config, store *memory.Store, proc *processor.Processor, pl *pipeline.Pipeline) *MCPServer {
	mcpServer := server.NewMCPServer(
		"Engram",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	srv := &MCPServer{
		mcpServer: mcpServer,
		config:    cfg,
		store:     store,
		processor: proc,
		pipeline:  pl,
	}

	if cfg.Memory.MemoryToolEnabled {
		srv.registerTools()
	}

	return srv
}

// registerTools wires the memory tools against the store.
func (s *MCPServer) registerTools() {
	toolCtx := &tools.ToolContext{
		Store:              s.store,
		Processor:          s.processor,
		Pipeline:           s.pipeline,
		DefaultAssistantID: s.config.Memory.DefaultAssistantID,
	}

	s.mcpServer.AddTool(tools.NewCreateMemoryTool(), tools.CreateMemoryHandler(toolCtx))
	s.mcpServer.AddTool(tools.NewEditMemoryTool(), tools.EditMemoryHandler(toolCtx))
	s.mcpServer.AddTool(tools.NewDeleteMemoryTool(), tools.DeleteMemoryHandler(toolCtx))
	s.mcpServer.AddTool(tools.NewSearchMemoryTool(), tools.SearchMemoryHandler(toolCtx))
	s.mcpServer.AddTool(tools.NewListMemoriesTool(), tools.ListMemoriesHandler(toolCtx))
	s.mcpServer.AddTool(tools.NewAnalyzeConversationTool(), tools.AnalyzeConversationHandler(toolCtx))
	s.mcpServer.AddTool(tools.NewRecallContextTool(), tools.RecallContextHandler(toolCtx))
}

// GetMCPServer returns the underlying MCP server
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
