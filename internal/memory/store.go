// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/aetherlink/engram/internal/embeddings"
	"github.com/aetherlink/engram/internal/hash"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Options tunes store behavior.
type Options struct {
	// DedupThreshold is the similarity at or above which a new memory is
	// treated as a duplicate of an existing one. Default: 0.85.
	DedupThreshold float64

	// Dimensions is the unified vector size embeddings are normalized to
	// before storage. 0 uses the embedder's native dimensionality.
	Dimensions int
}

// Store provides CRUD, similarity search, and text search over memory
// records. All mutating operations persist before returning; a success
// result implies durability on this device.
type Store struct {
	db       *gorm.DB
	embedder embeddings.Client
	opts     Options
}

// NewStore creates a store over db. embedder may be nil, in which case
// operations that require an embedding return ErrNotConfigured and Search
// degrades to TextSearch.
func NewStore(db *gorm.DB, embedder embeddings.Client, opts Options) *Store {
	if opts.DedupThreshold <= 0 {
		opts.DedupThreshold = 0.85
	}
	return &Store{
		db:       db,
		embedder: embedder,
		opts:     opts,
	}
}

// AddOptions scopes and annotates a new memory.
type AddOptions struct {
	AssistantID string
	Metadata    Metadata
}

// SearchOptions tunes a similarity search.
type SearchOptions struct {
	// AssistantID scopes the search to one partition. Empty searches all
	// partitions; callers must request that explicitly.
	AssistantID string
	Limit       int // Default: 10

	// Threshold is the minimum similarity for a match. 0 uses the
	// default of 0.5; a negative value disables filtering entirely.
	Threshold float64
}

// ListOptions pages through a partition.
type ListOptions struct {
	AssistantID string
	Limit       int // Default: 100
	Offset      int
}

// SearchResult carries matched records and the total match count.
type SearchResult struct {
	Memories []Record
	Count    int
}

// Add persists a new memory. Exact duplicates (same content hash) and
// near duplicates (similarity at or above the dedup threshold) within the
// partition return the existing record instead of creating a new one.
// Returns ErrNotConfigured when no embedding model is available.
func (s *Store) Add(ctx context.Context, text string, opts AddOptions) (*Record, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("memory text is empty")
	}

	assistantID := opts.AssistantID
	if assistantID == "" {
		assistantID = DefaultAssistantID
	}

	contentHash := hash.Sum(text)

	// Fast path: exact duplicate by content hash.
	if existing, err := s.findByHash(ctx, contentHash, assistantID); err == nil && existing != nil {
		log.Printf("[memory] duplicate hash, returning existing record %s", existing.ID)
		return existing, nil
	}

	vec, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	// Slow path: near duplicate by embedding similarity.
	if similar, err := s.findSimilar(ctx, vec, assistantID, s.opts.DedupThreshold); err == nil && similar != nil {
		log.Printf("[memory] near-duplicate (score %.3f), returning existing record %s", similar.Score, similar.ID)
		return similar, nil
	}

	now := time.Now()
	metadata := opts.Metadata
	if metadata == nil {
		metadata = Metadata{}
	}
	if metadata["source"] == "" {
		metadata["source"] = SourceManual
	}

	rec := &Record{
		ID:          uuid.NewString(),
		Memory:      text,
		Hash:        contentHash,
		AssistantID: assistantID,
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rec.SetVector(vec)

	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("failed to persist memory: %w", err)
	}

	log.Printf("[memory] added record %s (assistant %s)", rec.ID, assistantID)
	return rec, nil
}

// AddBatch adds several memories, skipping individual failures.
func (s *Store) AddBatch(ctx context.Context, texts []string, opts AddOptions) []Record {
	records := make([]Record, 0, len(texts))
	for _, text := range texts {
		rec, err := s.Add(ctx, text, opts)
		if err != nil {
			log.Printf("[memory] batch add failed for %q: %v", text, err)
			continue
		}
		records = append(records, *rec)
	}
	return records
}

// Update replaces a record's text, recomputing its hash and embedding and
// bumping updatedAt. Returns ErrNotFound when id does not exist.
func (s *Store) Update(ctx context.Context, id, newText string) (*Record, error) {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return nil, fmt.Errorf("memory text is empty")
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	vec, err := s.embed(ctx, newText)
	if err != nil {
		return nil, err
	}

	// updatedAt must strictly increase even under coarse clocks.
	updatedAt := time.Now()
	if !updatedAt.After(rec.UpdatedAt) {
		updatedAt = rec.UpdatedAt.Add(time.Millisecond)
	}

	rec.Memory = newText
	rec.Hash = hash.Sum(newText)
	rec.SetVector(vec)
	rec.UpdatedAt = updatedAt

	err = s.db.WithContext(ctx).Model(rec).UpdateColumns(map[string]interface{}{
		"memory":     rec.Memory,
		"hash":       rec.Hash,
		"embedding":  rec.Embedding,
		"updated_at": rec.UpdatedAt,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update memory: %w", err)
	}

	log.Printf("[memory] updated record %s", id)
	return rec, nil
}

// Delete removes a record permanently. Idempotent: returns whether a
// record was actually removed, never an ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&Record{}, "id = ?", id)
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete memory: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	log.Printf("[memory] deleted record %s", id)
	return true, nil
}

// DeleteAllForAssistant removes every record in the partition. Irreversible.
func (s *Store) DeleteAllForAssistant(ctx context.Context, assistantID string) error {
	res := s.db.WithContext(ctx).Delete(&Record{}, "assistant_id = ?", assistantID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete memories for assistant %s: %w", assistantID, res.Error)
	}
	log.Printf("[memory] deleted %d records for assistant %s", res.RowsAffected, assistantID)
	return nil
}

// Get retrieves a record by id. Returns ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load memory: %w", err)
	}
	return &rec, nil
}

// List returns records ordered by createdAt descending, paginated by
// Limit/Offset. Count is the total number of records in scope.
func (s *Store) List(ctx context.Context, opts ListOptions) (*SearchResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	query := s.db.WithContext(ctx).Model(&Record{})
	if opts.AssistantID != "" {
		query = query.Where("assistant_id = ?", opts.AssistantID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count memories: %w", err)
	}

	var records []Record
	err := query.Order("created_at DESC").Limit(opts.Limit).Offset(opts.Offset).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}

	return &SearchResult{Memories: records, Count: int(count)}, nil
}

// Search embeds the query and returns records with cosine similarity at
// or above the threshold, ordered by similarity descending with ties
// broken by most recent updatedAt. Falls back to TextSearch when no
// embedding model is available or the embed call fails.
func (s *Store) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.Threshold == 0 {
		opts.Threshold = 0.5
	}

	queryVec, err := s.embed(ctx, query)
	if err != nil {
		log.Printf("[memory] embedding unavailable, falling back to text search: %v", err)
		return s.TextSearch(ctx, query, TextSearchOptions{
			AssistantID: opts.AssistantID,
			Limit:       opts.Limit,
		})
	}

	db := s.db.WithContext(ctx).Where("embedding IS NOT NULL")
	if opts.AssistantID != "" {
		db = db.Where("assistant_id = ?", opts.AssistantID)
	}

	var candidates []Record
	if err := db.Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	scored := make([]Record, 0, len(candidates))
	for _, rec := range candidates {
		vec := rec.Vector()
		if len(vec) != len(queryVec) {
			// Stale dimensionality (embedding model changed); not comparable.
			continue
		}
		score := embeddings.CosineSimilarity(queryVec, vec)
		if score >= opts.Threshold {
			rec.Score = score
			scored = append(scored, rec)
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].UpdatedAt.After(scored[j].UpdatedAt)
	})

	if len(scored) > opts.Limit {
		scored = scored[:opts.Limit]
	}

	return &SearchResult{Memories: scored, Count: len(scored)}, nil
}

// TextSearchOptions tunes a text search.
type TextSearchOptions struct {
	AssistantID string
	Limit       int // Default: 10
}

// TextSearch matches records whose text contains the query,
// case-insensitively. Manual-browse path that needs no embedding call.
func (s *Store) TextSearch(ctx context.Context, query string, opts TextSearchOptions) (*SearchResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	db := s.db.WithContext(ctx).
		Where("LOWER(memory) LIKE ?", "%"+strings.ToLower(query)+"%")
	if opts.AssistantID != "" {
		db = db.Where("assistant_id = ?", opts.AssistantID)
	}

	var records []Record
	err := db.Order("updated_at DESC").Limit(opts.Limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to text-search memories: %w", err)
	}

	for i := range records {
		records[i].Score = 1.0
	}

	return &SearchResult{Memories: records, Count: len(records)}, nil
}

// Assistants returns the distinct partition ids present in the store.
func (s *Store) Assistants(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Record{}).
		Distinct("assistant_id").Order("assistant_id").Pluck("assistant_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list assistants: %w", err)
	}
	return ids, nil
}

// embed generates the normalized embedding for text.
func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, ErrNotConfigured
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	target := s.opts.Dimensions
	if target <= 0 {
		target = s.embedder.Dimensions()
	}
	return embeddings.Normalize(vec, target), nil
}

// findByHash locates an exact-duplicate record within the partition.
// Hashes compare case-insensitively; the SQL prefilter narrows the scan
// and hash.Equal confirms the match.
func (s *Store) findByHash(ctx context.Context, contentHash, assistantID string) (*Record, error) {
	var candidates []Record
	err := s.db.WithContext(ctx).
		Where("LOWER(hash) = LOWER(?) AND assistant_id = ?", contentHash, assistantID).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	for _, rec := range candidates {
		if hash.Equal(rec.Hash, contentHash) {
			return &rec, nil
		}
	}
	return nil, nil
}

// findSimilar returns the first record in the partition whose similarity
// to vec meets the threshold.
func (s *Store) findSimilar(ctx context.Context, vec []float32, assistantID string, threshold float64) (*Record, error) {
	var candidates []Record
	err := s.db.WithContext(ctx).
		Where("assistant_id = ? AND embedding IS NOT NULL", assistantID).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	for _, rec := range candidates {
		other := rec.Vector()
		if len(other) != len(vec) {
			continue
		}
		if score := embeddings.CosineSimilarity(vec, other); score >= threshold {
			rec.Score = score
			return &rec, nil
		}
	}
	return nil, nil
}
