// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// NewDeleteMemoryTool creates the delete_memory tool definition
func NewDeleteMemoryTool() mcp.Tool {
	return mcp.NewTool("delete_memory",
		mcp.WithDescription("Permanently remove a memory. Use when the user asks to forget something or a remembered fact is no longer true and has no replacement."),
		mcp.WithString("memory_id",
			mcp.Required(),
			mcp.Description("ID of the memory to delete"),
		),
	)
}

// DeleteMemoryHandler handles the delete_memory tool
func DeleteMemoryHandler(ctx *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		memoryID, err := request.RequireString("memory_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		removed, err := ctx.Store.Delete(c, memoryID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to delete memory: %v", err)), nil
		}
		if !removed {
			return mcp.NewToolResultText(fmt.Sprintf("No memory with ID %s; nothing to delete.", memoryID)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Memory %s deleted.", memoryID)), nil
	}
}
