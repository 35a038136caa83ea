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

// NewSearchMemoryTool creates the search_memory tool definition
func NewSearchMemoryTool() mcp.Tool {
	return mcp.NewTool("search_memory",
		mcp.WithDescription("Search stored memories by meaning. Use to recall what is known about the user before answering questions that depend on their history or preferences."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What to look for, in natural language"),
		),
		mcp.WithString("assistant_id",
			mcp.Description("Assistant whose memory partition to search. Defaults to the configured assistant."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default 10)"),
		),
		mcp.WithNumber("threshold",
			mcp.Description("Minimum similarity score between 0 and 1 (default 0.5)"),
		),
		mcp.WithBoolean("text_only",
			mcp.Description("Match by substring instead of meaning"),
		),
	)
}

// SearchMemoryHandler handles the search_memory tool
func SearchMemoryHandler(ctx *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		assistantID := ctx.assistantID(request.GetString("assistant_id", ""))
		limit := int(request.GetFloat("limit", 0))
		threshold := request.GetFloat("threshold", 0)
		textOnly := request.GetBool("text_only", false)

		var result *memory.SearchResult
		if textOnly {
			result, err = ctx.Store.TextSearch(c, query, memory.TextSearchOptions{
				AssistantID: assistantID,
				Limit:       limit,
			})
		} else {
			result, err = ctx.Store.Search(c, query, memory.SearchOptions{
				AssistantID: assistantID,
				Limit:       limit,
				Threshold:   threshold,
			})
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		if result.Count == 0 {
			return mcp.NewToolResultText("No matching memories found."), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Found %d matching memories:\n", result.Count)
		for i, rec := range result.Memories {
			fmt.Fprintf(&b, "\n%d. %s\n   ID: %s | Score: %.2f | Updated: %s",
				i+1, rec.Memory, rec.ID, rec.Score, rec.UpdatedAt.Format("2006-01-02"))
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}
