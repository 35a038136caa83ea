// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"github.com/aetherlink/engram/internal/memory"
	"github.com/aetherlink/engram/internal/pipeline"
	"github.com/aetherlink/engram/internal/processor"
)

// ToolContext carries the shared dependencies every tool handler needs.
type ToolContext struct {
	Store *memory.Store

	// Processor is optional; the analyze_conversation tool reports an
	// error when it is nil.
	Processor *processor.Processor

	// Pipeline backs recall_context and background analysis. Optional.
	Pipeline *pipeline.Pipeline

	// DefaultAssistantID scopes tool calls that omit assistant_id.
	DefaultAssistantID string
}

// assistantID resolves the partition for a request-supplied value.
func (c *ToolContext) assistantID(requested string) string {
	if requested != "" {
		return requested
	}
	if c.DefaultAssistantID != "" {
		return c.DefaultAssistantID
	}
	return memory.DefaultAssistantID
}
