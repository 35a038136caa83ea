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

// NewEditMemoryTool creates the edit_memory tool definition
func NewEditMemoryTool() mcp.Tool {
	return mcp.NewTool("edit_memory",
		mcp.WithDescription("Replace the content of an existing memory. Use when a remembered fact has changed or was recorded incorrectly."),
		mcp.WithString("memory_id",
			mcp.Required(),
			mcp.Description("ID of the memory to edit"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The corrected fact that replaces the old content"),
		),
	)
}

// EditMemoryHandler handles the edit_memory tool
func EditMemoryHandler(ctx *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		memoryID, err := request.RequireString("memory_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		content, err := request.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		rec, err := ctx.Store.Update(c, memoryID, content)
		if err != nil {
			if errors.Is(err, memory.ErrNotFound) {
				return mcp.NewToolResultError(fmt.Sprintf("memory not found: %s", memoryID)), nil
			}
			if errors.Is(err, memory.ErrNotConfigured) {
				return mcp.NewToolResultError("memory is not available: no embedding model is configured"), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("failed to edit memory: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Memory updated.\nID: %s\nContent: %s", rec.ID, rec.Memory)), nil
	}
}
