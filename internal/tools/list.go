// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/aetherlink/engram/internal/memory"
	"github.com/mark3labs/mcp-go/mcp"
)

// NewListMemoriesTool creates the list_memories tool definition
func NewListMemoriesTool() mcp.Tool {
	return mcp.NewTool("list_memories",
		mcp.WithDescription("List stored memories, most recent first. Use to review everything remembered about the user."),
		mcp.WithString("assistant_id",
			mcp.Description("Assistant whose memory partition to list. Defaults to the configured assistant."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default 100)"),
		),
		mcp.WithNumber("offset",
			mcp.Description("Number of results to skip, for paging"),
		),
	)
}

// ListMemoriesHandler handles the list_memories tool
func ListMemoriesHandler(ctx *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		assistantID := ctx.assistantID(request.GetString("assistant_id", ""))
		limit := int(request.GetFloat("limit", 0))
		offset := int(request.GetFloat("offset", 0))

		result, err := ctx.Store.List(c, memory.ListOptions{
			AssistantID: assistantID,
			Limit:       limit,
			Offset:      offset,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list memories: %v", err)), nil
		}

		if result.Count == 0 {
			return mcp.NewToolResultText("No memories stored yet."), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%d memories stored (showing %d):\n", result.Count, len(result.Memories))
		for i, rec := range result.Memories {
			source := rec.Metadata["source"]
			if source == "" {
				source = memory.SourceManual
			}
			fmt.Fprintf(&b, "\n%d. %s\n   ID: %s | Source: %s | Created: %s",
				offset+i+1, rec.Memory, rec.ID, source, rec.CreatedAt.Format("2006-01-02"))
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}
