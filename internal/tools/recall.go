// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"

	"github.com/aetherlink/engram/internal/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
)

// NewRecallContextTool creates the recall_context tool definition
func NewRecallContextTool() mcp.Tool {
	return mcp.NewTool("recall_context",
		mcp.WithDescription("Retrieve memories relevant to an upcoming message and format them as a system-prompt block. Call before generating a reply so the response can draw on what is known about the user."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The user's message or topic to recall context for"),
		),
		mcp.WithString("assistant_id",
			mcp.Description("Assistant whose memory partition to recall from. Defaults to the configured assistant."),
		),
	)
}

// RecallContextHandler handles the recall_context tool
func RecallContextHandler(ctx *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Pipeline == nil || !ctx.Pipeline.IsEnabled() {
			return mcp.NewToolResultText("Memory is disabled; no context to recall."), nil
		}

		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		assistantID := ctx.assistantID(request.GetString("assistant_id", ""))

		records := ctx.Pipeline.SearchRelevantMemories(c, query, assistantID)
		prompt := pipeline.BuildMemoryPrompt(records)
		if prompt == "" {
			return mcp.NewToolResultText("No relevant memories found."), nil
		}
		return mcp.NewToolResultText(prompt), nil
	}
}
