// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package prompts

import (
	"encoding/json"
	"strings"
)

// Event is a memory-update decision kind.
type Event string

// Decision events emitted by the update-decision prompt.
const (
	EventAdd    Event = "ADD"
	EventUpdate Event = "UPDATE"
	EventDelete Event = "DELETE"
	EventNone   Event = "NONE"
)

// Decision is a single memory-update decision from the LLM.
type Decision struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Event     Event  `json:"event"`
	OldMemory string `json:"old_memory,omitempty"`
}

// factsEnvelope matches {"facts": [...]}.
type factsEnvelope struct {
	Facts []string `json:"facts"`
}

// decisionsEnvelope matches {"memory": [...]}.
type decisionsEnvelope struct {
	Memory []Decision `json:"memory"`
}

// StripCodeFences removes a Markdown code-fence wrapper from an LLM
// response, if present. Models wrap JSON in fences despite being told
// not to.
func StripCodeFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ExtractJSON finds the JSON payload in free-form LLM text: it strips
// fences, then falls back to the outermost brace/bracket span if the
// whole text still is not valid JSON. Returns nil when no parseable JSON
// is present.
func ExtractJSON(text string) json.RawMessage {
	s := StripCodeFences(text)
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}

	// Model wrapped the JSON in prose; take the outermost object or array.
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(s, pair[0])
		end := strings.LastIndex(s, pair[1])
		if start >= 0 && end > start {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return json.RawMessage(candidate)
			}
		}
	}

	return nil
}

// ParseFacts parses a fact-extraction response into a list of fact
// strings. Malformed responses yield an empty list, never an error:
// callers treat parse failure as "no facts extracted".
func ParseFacts(response string) []string {
	raw := ExtractJSON(response)
	if raw == nil {
		return nil
	}

	var env factsEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Facts != nil {
		return cleanFacts(env.Facts)
	}

	// Some models return the bare array.
	var bare []string
	if err := json.Unmarshal(raw, &bare); err == nil {
		return cleanFacts(bare)
	}

	return nil
}

func cleanFacts(facts []string) []string {
	out := make([]string, 0, len(facts))
	for _, f := range facts {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ParseDecisions parses an update-decision response into a list of
// decisions. Entries failing validation are dropped individually; a
// malformed response yields an empty list, never an error.
func ParseDecisions(response string) []Decision {
	raw := ExtractJSON(response)
	if raw == nil {
		return nil
	}

	var decisions []Decision

	var env decisionsEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Memory != nil {
		decisions = env.Memory
	} else if err := json.Unmarshal(raw, &decisions); err != nil {
		// Neither the {"memory": [...]} envelope nor a bare array.
		return nil
	}

	valid := make([]Decision, 0, len(decisions))
	for _, d := range decisions {
		if !d.validate() {
			continue
		}
		valid = append(valid, d)
	}
	return valid
}

// validate checks the structural requirements per event: ADD needs text,
// UPDATE needs id and text, DELETE needs id, NONE is always well-formed.
func (d Decision) validate() bool {
	switch d.Event {
	case EventAdd:
		return strings.TrimSpace(d.Text) != ""
	case EventUpdate:
		return d.ID != "" && strings.TrimSpace(d.Text) != ""
	case EventDelete:
		return d.ID != ""
	case EventNone:
		return true
	default:
		return false
	}
}
