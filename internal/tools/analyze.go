// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// NewAnalyzeConversationTool creates the analyze_conversation tool definition
func NewAnalyzeConversationTool() mcp.Tool {
	return mcp.NewTool("analyze_conversation",
		mcp.WithDescription("Extract lasting facts about the user from a conversation transcript and store them as memories. Existing memories are updated or removed when the transcript contradicts them."),
		mcp.WithString("conversation",
			mcp.Required(),
			mcp.Description("The transcript, one role-tagged turn per line (e.g. 'user: ...')"),
		),
		mcp.WithString("assistant_id",
			mcp.Description("Assistant whose memory partition to write to. Defaults to the configured assistant."),
		),
		mcp.WithBoolean("background",
			mcp.Description("Queue the analysis and return immediately instead of waiting for the result"),
		),
	)
}

// AnalyzeConversationHandler handles the analyze_conversation tool
func AnalyzeConversationHandler(ctx *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Processor == nil {
			return mcp.NewToolResultError("conversation analysis is not available: no language model is configured"), nil
		}

		conversation, err := request.RequireString("conversation")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		assistantID := ctx.assistantID(request.GetString("assistant_id", ""))

		lines := splitTurns(conversation)
		if len(lines) == 0 {
			return mcp.NewToolResultError("conversation is empty"), nil
		}

		if request.GetBool("background", false) && ctx.Pipeline != nil && ctx.Pipeline.AutoAnalyzeEnabled() {
			ctx.Pipeline.ExtractAndSaveMemories(lines, assistantID)
			return mcp.NewToolResultText("Conversation queued for analysis."), nil
		}

		result := ctx.Processor.ProcessConversation(c, lines, assistantID)

		var b strings.Builder
		fmt.Fprintf(&b, "Analysis complete: %d facts extracted.\n", len(result.ExtractedFacts))
		fmt.Fprintf(&b, "Memories added: %d, updated: %d, deleted: %d.",
			result.Added, result.Updated, result.Deleted)
		if len(result.Errors) > 0 {
			fmt.Fprintf(&b, "\nWarnings:")
			for _, e := range result.Errors {
				fmt.Fprintf(&b, "\n- %s", e)
			}
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

// splitTurns breaks a transcript into non-empty lines.
func splitTurns(conversation string) []string {
	var lines []string
	for _, line := range strings.Split(conversation, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
