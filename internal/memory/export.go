// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/aetherlink/engram/internal/hash"
	"gopkg.in/yaml.v3"
)

// ExportDocument is the portable YAML form of a memory dump. Embeddings
// are intentionally excluded; import re-embeds with the current model.
type ExportDocument struct {
	Version    int            `yaml:"version"`
	ExportedAt time.Time      `yaml:"exported_at"`
	Memories   []ExportRecord `yaml:"memories"`
}

// ExportRecord is one memory in an export document.
type ExportRecord struct {
	ID          string            `yaml:"id"`
	Memory      string            `yaml:"memory"`
	AssistantID string            `yaml:"assistant_id"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`
	CreatedAt   time.Time         `yaml:"created_at"`
	UpdatedAt   time.Time         `yaml:"updated_at"`
}

const exportVersion = 1

// Export writes all records (or one assistant's partition when
// assistantID is non-empty) to w as YAML.
func (s *Store) Export(ctx context.Context, w io.Writer, assistantID string) error {
	query := s.db.WithContext(ctx).Model(&Record{}).Order("created_at ASC")
	if assistantID != "" {
		query = query.Where("assistant_id = ?", assistantID)
	}

	var records []Record
	if err := query.Find(&records).Error; err != nil {
		return fmt.Errorf("failed to load memories for export: %w", err)
	}

	doc := ExportDocument{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC(),
		Memories:   make([]ExportRecord, 0, len(records)),
	}
	for _, rec := range records {
		doc.Memories = append(doc.Memories, ExportRecord{
			ID:          rec.ID,
			Memory:      rec.Memory,
			AssistantID: rec.AssistantID,
			Metadata:    rec.Metadata,
			CreatedAt:   rec.CreatedAt,
			UpdatedAt:   rec.UpdatedAt,
		})
	}

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

// ImportStats summarizes an import run.
type ImportStats struct {
	Imported int
	Skipped  int
	Failed   int
}

// Import reads a YAML export from r and inserts its records, re-embedding
// each with the current model. Records whose id already exists are
// skipped; individual failures are logged and counted, not fatal.
func (s *Store) Import(ctx context.Context, r io.Reader) (*ImportStats, error) {
	var doc ExportDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode import: %w", err)
	}
	if doc.Version != exportVersion {
		return nil, fmt.Errorf("unsupported export version %d", doc.Version)
	}

	stats := &ImportStats{}
	for _, entry := range doc.Memories {
		if entry.ID == "" || entry.Memory == "" {
			stats.Failed++
			continue
		}

		if _, err := s.Get(ctx, entry.ID); err == nil {
			stats.Skipped++
			continue
		} else if !errors.Is(err, ErrNotFound) {
			stats.Failed++
			log.Printf("[memory] import lookup failed for %s: %v", entry.ID, err)
			continue
		}

		vec, err := s.embed(ctx, entry.Memory)
		if err != nil {
			stats.Failed++
			log.Printf("[memory] import embed failed for %s: %v", entry.ID, err)
			continue
		}

		assistantID := entry.AssistantID
		if assistantID == "" {
			assistantID = DefaultAssistantID
		}

		rec := &Record{
			ID:          entry.ID,
			Memory:      entry.Memory,
			Hash:        hash.Sum(entry.Memory),
			AssistantID: assistantID,
			Metadata:    entry.Metadata,
			CreatedAt:   entry.CreatedAt,
			UpdatedAt:   entry.UpdatedAt,
		}
		rec.SetVector(vec)

		if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
			stats.Failed++
			log.Printf("[memory] import insert failed for %s: %v", entry.ID, err)
			continue
		}
		stats.Imported++
	}

	log.Printf("[memory] import done: %d imported, %d skipped, %d failed",
		stats.Imported, stats.Skipped, stats.Failed)
	return stats, nil
}
