// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package processor

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/aetherlink/engram/internal/llm"
	"github.com/aetherlink/engram/internal/memory"
	"github.com/aetherlink/engram/internal/prompts"
)

// candidateLimit bounds how many existing memories are retrieved per
// extracted fact when building the update-decision context.
const candidateLimit = 5

// MemoryStore is the slice of the memory store the processor needs.
type MemoryStore interface {
	Add(ctx context.Context, text string, opts memory.AddOptions) (*memory.Record, error)
	Update(ctx context.Context, id, newText string) (*memory.Record, error)
	Delete(ctx context.Context, id string) (bool, error)
	Search(ctx context.Context, query string, opts memory.SearchOptions) (*memory.SearchResult, error)
}

// Options tunes the processor.
type Options struct {
	// CustomFactPrompt replaces the built-in fact extraction system
	// prompt when non-empty.
	CustomFactPrompt string
}

// Result summarizes one conversation-processing run.
type Result struct {
	ExtractedFacts []string
	Added          int
	Updated        int
	Deleted        int
	Errors         []string
}

// Processor runs the extract-decide-apply flow that turns conversation
// text into memory mutations.
type Processor struct {
	store MemoryStore
	llm   llm.Client
	opts  Options
}

// NewProcessor creates a processor. llmClient may be nil, in which case
// processing is a no-op reported through Result.Errors.
func NewProcessor(store MemoryStore, llmClient llm.Client, opts Options) *Processor {
	return &Processor{
		store: store,
		llm:   llmClient,
		opts:  opts,
	}
}

// ProcessConversation extracts facts from the conversation and applies
// add, update, and delete decisions against the store. It never returns
// an error: the memory path must not break the chat it rides on, so
// every failure is recorded in Result.Errors and logged instead.
func (p *Processor) ProcessConversation(ctx context.Context, conversation []string, assistantID string) *Result {
	result := &Result{}

	if p.llm == nil {
		result.Errors = append(result.Errors, "language model not configured")
		return result
	}
	if len(conversation) == 0 {
		return result
	}

	facts := p.extractFacts(ctx, conversation, result)
	result.ExtractedFacts = facts
	if len(facts) == 0 {
		return result
	}

	candidates := p.gatherCandidates(ctx, facts, assistantID)
	decisions, ok := p.decide(ctx, candidates, facts)
	if !ok {
		// The decision call failed; storing every fact as new keeps the
		// information, at worst with some redundancy.
		log.Printf("[processor] decision call failed, adding all %d facts", len(facts))
		p.addAll(ctx, facts, assistantID, result)
		return result
	}

	p.apply(ctx, decisions, assistantID, result)
	return result
}

// extractFacts runs the fact extraction prompt and parses its output.
func (p *Processor) extractFacts(ctx context.Context, conversation []string, result *Result) []string {
	system, user := prompts.BuildFactRetrievalMessages(
		prompts.ParseConversation(conversation), p.opts.CustomFactPrompt)

	response, err := p.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("fact extraction failed: %v", err))
		log.Printf("[processor] fact extraction failed: %v", err)
		return nil
	}

	facts := prompts.ParseFacts(response)
	if facts == nil {
		log.Printf("[processor] fact extraction returned unparseable output")
		return nil
	}
	return facts
}

// gatherCandidates searches existing memories similar to each fact and
// merges the results, deduplicated by record id.
func (p *Processor) gatherCandidates(ctx context.Context, facts []string, assistantID string) []prompts.MemoryEntry {
	seen := make(map[string]bool)
	var entries []prompts.MemoryEntry

	for _, fact := range facts {
		res, err := p.store.Search(ctx, fact, memory.SearchOptions{
			AssistantID: assistantID,
			Limit:       candidateLimit,
			Threshold:   -1,
		})
		if err != nil {
			log.Printf("[processor] candidate search failed for %q: %v", fact, err)
			continue
		}
		for _, rec := range res.Memories {
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			entries = append(entries, prompts.MemoryEntry{ID: rec.ID, Text: rec.Memory})
		}
	}
	return entries
}

// decide asks the model how the new facts relate to existing memories.
// The second return is false when the call or its parse failed.
func (p *Processor) decide(ctx context.Context, oldMemories []prompts.MemoryEntry, facts []string) ([]prompts.Decision, bool) {
	user := prompts.BuildUpdateMemoryPrompt(oldMemories, facts)

	response, err := p.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: prompts.UpdateMemorySystemPrompt},
		{Role: llm.RoleUser, Content: user},
	})
	if err != nil {
		log.Printf("[processor] update decision failed: %v", err)
		return nil, false
	}

	decisions := prompts.ParseDecisions(response)
	if decisions == nil {
		log.Printf("[processor] update decision returned unparseable output")
		return nil, false
	}
	return decisions, true
}

// apply executes decisions one by one. A failed decision is recorded and
// skipped; the rest still run.
func (p *Processor) apply(ctx context.Context, decisions []prompts.Decision, assistantID string, result *Result) {
	for _, d := range decisions {
		switch d.Event {
		case prompts.EventAdd:
			if err := p.add(ctx, d.Text, assistantID); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("add failed: %v", err))
				continue
			}
			result.Added++

		case prompts.EventUpdate:
			_, err := p.store.Update(ctx, d.ID, d.Text)
			if errors.Is(err, memory.ErrNotFound) {
				// The model referenced a record that no longer exists;
				// keep the information as a fresh memory.
				if err := p.add(ctx, d.Text, assistantID); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("update fallback add failed: %v", err))
					continue
				}
				result.Added++
				continue
			}
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("update %s failed: %v", d.ID, err))
				continue
			}
			result.Updated++

		case prompts.EventDelete:
			removed, err := p.store.Delete(ctx, d.ID)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("delete %s failed: %v", d.ID, err))
				continue
			}
			if removed {
				result.Deleted++
			}

		case prompts.EventNone:
			// Nothing to do.
		}
	}
}

// addAll stores every fact as a new memory. Fallback path for when the
// decision step is unavailable.
func (p *Processor) addAll(ctx context.Context, facts []string, assistantID string, result *Result) {
	for _, fact := range facts {
		if err := p.add(ctx, fact, assistantID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("add failed: %v", err))
			continue
		}
		result.Added++
	}
}

func (p *Processor) add(ctx context.Context, text, assistantID string) error {
	_, err := p.store.Add(ctx, text, memory.AddOptions{
		AssistantID: assistantID,
		Metadata:    memory.Metadata{"source": memory.SourceAuto},
	})
	return err
}
