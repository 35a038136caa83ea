// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package memory

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aetherlink/engram/internal/embeddings"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(newTestDB(t), embeddings.NewMockClient(64), Options{})
}

func TestAddAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Add(ctx, "User prefers dark mode", AddOptions{AssistantID: "asst-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "User prefers dark mode", rec.Memory)
	assert.Equal(t, "asst-1", rec.AssistantID)
	assert.NotEmpty(t, rec.Hash)
	assert.NotEmpty(t, rec.Embedding)
	assert.Equal(t, SourceManual, rec.Metadata["source"])

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Memory, got.Memory)
	assert.Equal(t, rec.Hash, got.Hash)
}

func TestAddDefaultsAssistantID(t *testing.T) {
	store := newTestStore(t)

	rec, err := store.Add(context.Background(), "likes coffee", AddOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultAssistantID, rec.AssistantID)
}

func TestAddRejectsEmptyText(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Add(context.Background(), "   ", AddOptions{})
	assert.Error(t, err)
}

func TestAddDeduplicatesByHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Add(ctx, "User is vegetarian", AddOptions{AssistantID: "a"})
	require.NoError(t, err)

	second, err := store.Add(ctx, "User is vegetarian", AddOptions{AssistantID: "a"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	list, err := store.List(ctx, ListOptions{AssistantID: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Count)
}

func TestAddDedupHashCaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db, embeddings.NewMockClient(64), Options{})
	ctx := context.Background()

	first, err := store.Add(ctx, "User is vegetarian", AddOptions{AssistantID: "a"})
	require.NoError(t, err)

	// Hashes compare case-insensitively, whatever casing is on disk.
	err = db.Model(&Record{}).Where("id = ?", first.ID).
		Update("hash", strings.ToUpper(first.Hash)).Error
	require.NoError(t, err)

	second, err := store.Add(ctx, "User is vegetarian", AddOptions{AssistantID: "a"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestAddDedupScopedByAssistant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Add(ctx, "User is vegetarian", AddOptions{AssistantID: "a"})
	require.NoError(t, err)

	second, err := store.Add(ctx, "User is vegetarian", AddOptions{AssistantID: "b"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAddWithoutEmbedder(t *testing.T) {
	store := NewStore(newTestDB(t), nil, Options{})

	_, err := store.Add(context.Background(), "something", AddOptions{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestAddBatchSkipsFailures(t *testing.T) {
	store := newTestStore(t)

	records := store.AddBatch(context.Background(),
		[]string{"fact one", "", "fact two"}, AddOptions{AssistantID: "a"})
	assert.Len(t, records, 2)
}

func TestUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Add(ctx, "User lives in Berlin", AddOptions{AssistantID: "a"})
	require.NoError(t, err)
	oldHash := rec.Hash
	oldUpdated := rec.UpdatedAt
	oldVec := rec.Vector()

	updated, err := store.Update(ctx, rec.ID, "User lives in Munich")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, updated.ID)
	assert.Equal(t, "User lives in Munich", updated.Memory)
	assert.NotEqual(t, oldHash, updated.Hash)
	assert.True(t, updated.UpdatedAt.After(oldUpdated))
	assert.NotEqual(t, oldVec, updated.Vector())

	// Persisted, not just in-memory.
	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "User lives in Munich", got.Memory)
}

func TestUpdateNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Update(context.Background(), "missing-id", "text")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Add(ctx, "temporary fact", AddOptions{})
	require.NoError(t, err)

	removed, err := store.Delete(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Delete(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = store.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAllForAssistant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "fact a", AddOptions{AssistantID: "a"})
	require.NoError(t, err)
	_, err = store.Add(ctx, "fact b", AddOptions{AssistantID: "b"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteAllForAssistant(ctx, "a"))

	listA, err := store.List(ctx, ListOptions{AssistantID: "a"})
	require.NoError(t, err)
	assert.Equal(t, 0, listA.Count)

	listB, err := store.List(ctx, ListOptions{AssistantID: "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, listB.Count)
}

func TestListOrderAndPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	texts := []string{"first fact", "second fact", "third fact"}
	for _, text := range texts {
		_, err := store.Add(ctx, text, AddOptions{AssistantID: "a"})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	list, err := store.List(ctx, ListOptions{AssistantID: "a"})
	require.NoError(t, err)
	require.Equal(t, 3, list.Count)
	assert.Equal(t, "third fact", list.Memories[0].Memory)
	assert.Equal(t, "first fact", list.Memories[2].Memory)

	page, err := store.List(ctx, ListOptions{AssistantID: "a", Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Count)
	require.Len(t, page.Memories, 1)
	assert.Equal(t, "second fact", page.Memories[0].Memory)
}

func TestSearchReturnsRelevantScopedResults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Add(ctx, "User enjoys hiking in the Alps", AddOptions{AssistantID: "a"})
	require.NoError(t, err)
	_, err = store.Add(ctx, "User enjoys hiking in the Alps", AddOptions{AssistantID: "b"})
	require.NoError(t, err)

	// The mock embedder is deterministic: identical text yields an
	// identical vector, so searching the same text scores 1.0.
	res, err := store.Search(ctx, "User enjoys hiking in the Alps", SearchOptions{AssistantID: "a"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, rec.ID, res.Memories[0].ID)
	assert.InDelta(t, 1.0, res.Memories[0].Score, 0.0001)
}

func TestSearchRespectsThresholdAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, text := range []string{"alpha fact", "beta fact", "gamma fact"} {
		_, err := store.Add(ctx, text, AddOptions{AssistantID: "a"})
		require.NoError(t, err)
	}

	// Threshold near 1 only matches the identical text.
	res, err := store.Search(ctx, "alpha fact", SearchOptions{
		AssistantID: "a",
		Threshold:   0.99,
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "alpha fact", res.Memories[0].Memory)
}

func TestSearchSkipsStaleDimensions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	oldStore := NewStore(db, embeddings.NewMockClient(32), Options{Dimensions: 32})
	_, err := oldStore.Add(ctx, "stale dimension fact", AddOptions{AssistantID: "a"})
	require.NoError(t, err)

	newStore := NewStore(db, embeddings.NewMockClient(64), Options{Dimensions: 64})
	res, err := newStore.Search(ctx, "stale dimension fact", SearchOptions{AssistantID: "a"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
}

func TestSearchFallsBackToTextSearch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seeded := NewStore(db, embeddings.NewMockClient(64), Options{})
	_, err := seeded.Add(ctx, "User speaks French", AddOptions{AssistantID: "a"})
	require.NoError(t, err)

	bare := NewStore(db, nil, Options{})
	res, err := bare.Search(ctx, "french", SearchOptions{AssistantID: "a"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "User speaks French", res.Memories[0].Memory)
}

func TestTextSearchCaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "User works at Aetherlink", AddOptions{AssistantID: "a"})
	require.NoError(t, err)

	res, err := store.TextSearch(ctx, "AETHERLINK", TextSearchOptions{AssistantID: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)

	res, err = store.TextSearch(ctx, "nonexistent", TextSearchOptions{AssistantID: "a"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
}

func TestAssistants(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "fact one", AddOptions{AssistantID: "beta"})
	require.NoError(t, err)
	_, err = store.Add(ctx, "fact two", AddOptions{AssistantID: "alpha"})
	require.NoError(t, err)

	ids, err := store.Assistants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, ids)
}
