// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package processor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aetherlink/engram/internal/embeddings"
	"github.com/aetherlink/engram/internal/llm"
	"github.com/aetherlink/engram/internal/memory"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, memory.Migrate(db))
	return memory.NewStore(db, embeddings.NewMockClient(64), memory.Options{})
}

func TestProcessConversationAddsFacts(t *testing.T) {
	store := newTestStore(t)
	mock := &llm.MockClient{Responses: []string{
		`{"facts": ["用户叫小明", "用户喜欢喝咖啡"]}`,
		`{"memory": [
			{"id": "", "text": "用户叫小明", "event": "ADD"},
			{"id": "", "text": "用户喜欢喝咖啡", "event": "ADD"}
		]}`,
	}}
	p := NewProcessor(store, mock, Options{})

	result := p.ProcessConversation(context.Background(),
		[]string{"user: 我叫小明，我喜欢喝咖啡", "assistant: 你好小明！"}, "asst-1")

	assert.Equal(t, []string{"用户叫小明", "用户喜欢喝咖啡"}, result.ExtractedFacts)
	assert.Equal(t, 2, result.Added)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 2, mock.CallCount)

	list, err := store.List(context.Background(), memory.ListOptions{AssistantID: "asst-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Count)
	for _, rec := range list.Memories {
		assert.Equal(t, memory.SourceAuto, rec.Metadata["source"])
	}
}

func TestProcessConversationUpdatesExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	existing, err := store.Add(ctx, "用户喜欢喝茶", memory.AddOptions{AssistantID: "asst-1"})
	require.NoError(t, err)

	mock := &llm.MockClient{Responses: []string{
		`{"facts": ["用户现在喜欢喝咖啡"]}`,
		fmt.Sprintf(`{"memory": [
			{"id": "%s", "text": "用户现在喜欢喝咖啡", "event": "UPDATE", "old_memory": "用户喜欢喝茶"}
		]}`, existing.ID),
	}}
	p := NewProcessor(store, mock, Options{})

	result := p.ProcessConversation(ctx, []string{"user: 我现在改喝咖啡了"}, "asst-1")
	assert.Equal(t, 1, result.Updated)
	assert.Empty(t, result.Errors)

	got, err := store.Get(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "用户现在喜欢喝咖啡", got.Memory)
}

func TestProcessConversationDeletes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	existing, err := store.Add(ctx, "用户是素食主义者", memory.AddOptions{AssistantID: "asst-1"})
	require.NoError(t, err)

	mock := &llm.MockClient{Responses: []string{
		`{"facts": ["用户不再是素食主义者"]}`,
		fmt.Sprintf(`{"memory": [
			{"id": "%s", "text": "", "event": "DELETE"}
		]}`, existing.ID),
	}}
	p := NewProcessor(store, mock, Options{})

	result := p.ProcessConversation(ctx, []string{"user: 我现在也吃肉了"}, "asst-1")
	assert.Equal(t, 1, result.Deleted)

	_, err = store.Get(ctx, existing.ID)
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestProcessConversationUpdateFallsBackToAdd(t *testing.T) {
	store := newTestStore(t)
	mock := &llm.MockClient{Responses: []string{
		`{"facts": ["用户住在上海"]}`,
		`{"memory": [
			{"id": "stale-id", "text": "用户住在上海", "event": "UPDATE"}
		]}`,
	}}
	p := NewProcessor(store, mock, Options{})

	result := p.ProcessConversation(context.Background(), []string{"user: 我住在上海"}, "asst-1")
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 0, result.Updated)
	assert.Empty(t, result.Errors)
}

func TestProcessConversationDecisionFailureAddsAll(t *testing.T) {
	store := newTestStore(t)
	calls := 0
	mock := &llm.MockClient{CompleteFunc: func(messages []llm.Message) (string, error) {
		calls++
		if calls == 1 {
			return `{"facts": ["用户叫小红", "用户是医生"]}`, nil
		}
		return "", fmt.Errorf("model unavailable")
	}}
	p := NewProcessor(store, mock, Options{})

	result := p.ProcessConversation(context.Background(), []string{"user: 我叫小红，是医生"}, "asst-1")
	assert.Equal(t, 2, result.Added)
	assert.Empty(t, result.Errors)
}

func TestProcessConversationExtractionFailure(t *testing.T) {
	store := newTestStore(t)
	mock := &llm.MockClient{CompleteFunc: func(messages []llm.Message) (string, error) {
		return "", fmt.Errorf("timeout")
	}}
	p := NewProcessor(store, mock, Options{})

	result := p.ProcessConversation(context.Background(), []string{"user: 你好"}, "asst-1")
	assert.Empty(t, result.ExtractedFacts)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, 1, mock.CallCount)
}

func TestProcessConversationUnparseableFacts(t *testing.T) {
	store := newTestStore(t)
	mock := &llm.MockClient{Responses: []string{"I could not find any facts, sorry!"}}
	p := NewProcessor(store, mock, Options{})

	result := p.ProcessConversation(context.Background(), []string{"user: 你好"}, "asst-1")
	assert.Empty(t, result.ExtractedFacts)
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 1, mock.CallCount)
}

func TestProcessConversationNoLLM(t *testing.T) {
	p := NewProcessor(newTestStore(t), nil, Options{})

	result := p.ProcessConversation(context.Background(), []string{"user: 你好"}, "asst-1")
	assert.Len(t, result.Errors, 1)
}

func TestProcessConversationEmptyConversation(t *testing.T) {
	mock := &llm.MockClient{}
	p := NewProcessor(newTestStore(t), mock, Options{})

	result := p.ProcessConversation(context.Background(), nil, "asst-1")
	assert.Empty(t, result.Errors)
	assert.Equal(t, 0, mock.CallCount)
}

func TestProcessConversationCustomPrompt(t *testing.T) {
	store := newTestStore(t)
	mock := &llm.MockClient{Responses: []string{
		`{"facts": []}`,
	}}
	p := NewProcessor(store, mock, Options{CustomFactPrompt: "Only extract dietary preferences."})

	p.ProcessConversation(context.Background(), []string{"user: 你好"}, "asst-1")
	require.NotEmpty(t, mock.LastMessages)
	assert.Equal(t, "Only extract dietary preferences.", mock.LastMessages[0].Content)
}

func TestProcessConversationEndToEnd(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mock := &llm.MockClient{Responses: []string{
		`{"facts": ["用户喜欢深色模式"]}`,
		`{"memory": [{"text": "用户喜欢深色模式", "event": "ADD"}]}`,
	}}
	p := NewProcessor(store, mock, Options{})

	result := p.ProcessConversation(ctx,
		[]string{"用户: 我喜欢深色模式", "助手: 好的，我记住了"}, "asst-1")
	require.Equal(t, 1, result.Added)
	require.Empty(t, result.Errors)

	// The stored fact is findable afterwards.
	res, err := store.Search(ctx, "用户喜欢深色模式", memory.SearchOptions{AssistantID: "asst-1"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "用户喜欢深色模式", res.Memories[0].Memory)
}

// flakyStore fails Add for texts containing a marker, passing everything
// else through to the real store.
type flakyStore struct {
	*memory.Store
	failMarker string
}

func (f *flakyStore) Add(ctx context.Context, text string, opts memory.AddOptions) (*memory.Record, error) {
	if strings.Contains(text, f.failMarker) {
		return nil, fmt.Errorf("disk full")
	}
	return f.Store.Add(ctx, text, opts)
}

func TestProcessConversationPartialFailure(t *testing.T) {
	store := newTestStore(t)
	mock := &llm.MockClient{Responses: []string{
		`{"facts": ["用户喜欢爬山", "用户养了一只猫"]}`,
		`{"memory": [
			{"id": "", "text": "用户喜欢爬山", "event": "ADD"},
			{"id": "", "text": "用户养了一只猫", "event": "ADD"}
		]}`,
	}}
	p := NewProcessor(&flakyStore{Store: store, failMarker: "爬山"}, mock, Options{})

	result := p.ProcessConversation(context.Background(), []string{"user: 我喜欢爬山，还养了一只猫"}, "asst-1")
	assert.Equal(t, 1, result.Added)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "disk full")

	list, err := store.List(context.Background(), memory.ListOptions{AssistantID: "asst-1"})
	require.NoError(t, err)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "用户养了一只猫", list.Memories[0].Memory)
}
