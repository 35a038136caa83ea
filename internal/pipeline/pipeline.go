// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package pipeline wires the memory subsystem into a chat flow: before a
// model call it retrieves relevant memories and injects them into the
// system context, after the call it queues the exchange for background
// fact extraction. Every entry point degrades to a no-op on failure so
// the chat itself is never blocked.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aetherlink/engram/internal/config"
	"github.com/aetherlink/engram/internal/llm"
	"github.com/aetherlink/engram/internal/memory"
	"github.com/aetherlink/engram/internal/processor"
)

const (
	// defaultSearchLimit bounds how many memories are injected per turn.
	defaultSearchLimit = 5

	memoriesOpenTag  = "<user_memories>"
	memoriesCloseTag = "</user_memories>"
)

// Pipeline connects a memory store and processor to a chat loop.
type Pipeline struct {
	store     *memory.Store
	processor *processor.Processor
	queue     *processor.Queue
	cfg       *config.Config
}

// New creates a pipeline. The queue is owned by the pipeline; call Close
// to drain pending background work.
func New(store *memory.Store, proc *processor.Processor, cfg *config.Config) *Pipeline {
	return &Pipeline{
		store:     store,
		processor: proc,
		queue:     processor.NewQueue(),
		cfg:       cfg,
	}
}

// IsEnabled reports whether memory features should run at all: the
// global toggle is on and both the chat and embedding models are
// configured.
func (p *Pipeline) IsEnabled() bool {
	return p.cfg.MemoryEnabled() && p.store != nil
}

// AutoAnalyzeEnabled reports whether conversations are mined for facts
// automatically after each exchange.
func (p *Pipeline) AutoAnalyzeEnabled() bool {
	return p.IsEnabled() && p.cfg.Memory.AutoAnalyzeEnabled && p.processor != nil
}

// SearchRelevantMemories returns memories related to query, for prompt
// injection. Failures are logged and produce an empty result: a chat
// turn must not fail because recall did.
func (p *Pipeline) SearchRelevantMemories(ctx context.Context, query, assistantID string) []memory.Record {
	if !p.IsEnabled() || strings.TrimSpace(query) == "" {
		return nil
	}

	limit := p.cfg.Memory.SearchLimit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	res, err := p.store.Search(ctx, query, memory.SearchOptions{
		AssistantID: assistantID,
		Limit:       limit,
		Threshold:   p.cfg.Memory.SearchThreshold,
	})
	if err != nil {
		log.Printf("[pipeline] memory search failed: %v", err)
		return nil
	}
	return res.Memories
}

// BuildMemoryPrompt renders records as a numbered block the model can
// cite. Returns "" when there is nothing to inject.
func BuildMemoryPrompt(records []memory.Record) string {
	if len(records) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Here is what you remember about this user from previous conversations:\n")
	b.WriteString(memoriesOpenTag)
	b.WriteString("\n")
	for i, rec := range records {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rec.Memory)
	}
	b.WriteString(memoriesCloseTag)
	b.WriteString("\nUse these memories naturally when relevant. Do not mention that you are reading from memory.")
	return b.String()
}

// InjectMemoryContext returns a copy of messages with the memory block
// merged into the system message, appending a new system message when
// none exists. The input slice is not modified.
func InjectMemoryContext(messages []llm.Message, memoryPrompt string) []llm.Message {
	if memoryPrompt == "" {
		return messages
	}

	out := make([]llm.Message, len(messages))
	copy(out, messages)

	for i := range out {
		if out[i].Role == llm.RoleSystem {
			out[i].Content = out[i].Content + "\n\n" + memoryPrompt
			return out
		}
	}

	// No system message; put the memory block first.
	return append([]llm.Message{{Role: llm.RoleSystem, Content: memoryPrompt}}, out...)
}

// ExtractAndSaveMemories queues the exchange for background fact
// extraction. Returns immediately; runs on the assistant's serial lane
// so exchanges from one assistant are processed in order.
func (p *Pipeline) ExtractAndSaveMemories(conversation []string, assistantID string) {
	if !p.AutoAnalyzeEnabled() || len(conversation) == 0 {
		return
	}
	if assistantID == "" {
		assistantID = p.cfg.Memory.DefaultAssistantID
	}
	if assistantID == "" {
		assistantID = memory.DefaultAssistantID
	}

	p.queue.Enqueue(assistantID, func() {
		result := p.processor.ProcessConversation(context.Background(), conversation, assistantID)
		if len(result.Errors) > 0 {
			log.Printf("[pipeline] background extraction finished with errors: %v", result.Errors)
		}
	})
}

// Close drains queued background work. Call on shutdown.
func (p *Pipeline) Close() {
	p.queue.Close()
}
