// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/aetherlink/engram/internal/memory"
	"github.com/mark3labs/mcp-go/mcp"
)

// NewCreateMemoryTool creates the create_memory tool definition
func NewCreateMemoryTool() mcp.Tool {
	return mcp.NewTool("create_memory",
		mcp.WithDescription("Save a new long-term memory about the user. Use when the user shares a lasting fact, preference, or piece of personal context worth remembering across conversations. Near-duplicate memories are merged automatically."),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The fact to remember, as a single self-contained sentence"),
		),
		mcp.WithString("assistant_id",
			mcp.Description("Assistant whose memory partition to write to. Defaults to the configured assistant."),
		),
	)
}

// CreateMemoryHandler handles the create_memory tool
func CreateMemoryHandler(ctx *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := request.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		assistantID := ctx.assistantID(request.GetString("assistant_id", ""))

		rec, err := ctx.Store.Add(c, content, memory.AddOptions{
			AssistantID: assistantID,
			Metadata:    memory.Metadata{"source": memory.SourceManual},
		})
		if err != nil {
			if errors.Is(err, memory.ErrNotConfigured) {
				return mcp.NewToolResultError("memory is not available: no embedding model is configured"), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("failed to save memory: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Memory saved.\nID: %s\nContent: %s", rec.ID, rec.Memory)), nil
	}
}
