// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/pdiddy/decision-engine/internal/cache"
	"github.com/pdiddy/decision-engine/pkg/types"
)

// mockStore returns canned candidates and counts calls.
type mockStore struct {
	candidates []Candidate
	err        error
	calls      int32
}

func (m *mockStore) SimilaritySearch(_ context.Context, _ string, k int) ([]Candidate, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.candidates) > k {
		return m.candidates[:k], nil
	}
	return m.candidates, nil
}

func newTestEngine(store VectorStore, cfg types.RetrievalConfig) *Engine {
	return NewEngine(store, cache.New(cache.NewMemory(0), nil), cfg, nil)
}

func TestQueryOrdersByDescendingScore(t *testing.T) {
	store := &mockStore{candidates: []Candidate{
		{Text: "mid", DocumentID: "d1", Score: 0.6},
		{Text: "high", DocumentID: "d2", Score: 0.9},
		{Text: "low", DocumentID: "d3", Score: 0.45},
	}}
	e := newTestEngine(store, types.RetrievalConfig{TopK: 5, MinRelevance: 0.1})

	got, err := e.Query(context.Background(), "query", 0, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].EffectiveScore() > got[i-1].EffectiveScore() {
			t.Errorf("passages out of order at %d: %f > %f",
				i, got[i].EffectiveScore(), got[i-1].EffectiveScore())
		}
	}
}

func TestQueryDropsBelowMinRelevance(t *testing.T) {
	store := &mockStore{candidates: []Candidate{
		{Text: "keep", DocumentID: "d1", Score: 0.8},
		{Text: "drop", DocumentID: "d2", Score: 0.2},
	}}
	e := newTestEngine(store, types.RetrievalConfig{TopK: 5})

	got, err := e.Query(context.Background(), "query", 0, 0.5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Text != "keep" {
		t.Errorf("kept %q, want %q", got[0].Text, "keep")
	}
}

func TestQueryTruncatesToTopK(t *testing.T) {
	var candidates []Candidate
	for i := 0; i < 10; i++ {
		candidates = append(candidates, Candidate{
			Text: "passage", DocumentID: "d", Score: 0.9 - float64(i)*0.01,
		})
	}
	store := &mockStore{candidates: candidates}
	e := newTestEngine(store, types.RetrievalConfig{TopK: 3, CandidateK: 10, MinRelevance: 0.1})

	got, err := e.Query(context.Background(), "query", 0, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}
}

func TestQueryNoMatchesIsEmptyNotError(t *testing.T) {
	store := &mockStore{candidates: []Candidate{
		{Text: "weak", DocumentID: "d1", Score: 0.1},
	}}
	e := newTestEngine(store, types.RetrievalConfig{TopK: 5, MinRelevance: 0.9})

	got, err := e.Query(context.Background(), "query", 0, 0)
	if err != nil {
		t.Fatalf("Query() error = %v, want nil", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestQueryStoreErrorPropagates(t *testing.T) {
	store := &mockStore{err: errors.New("store offline")}
	e := newTestEngine(store, types.RetrievalConfig{})

	_, err := e.Query(context.Background(), "query", 0, 0)
	if err == nil {
		t.Fatal("Query() error = nil, want store error")
	}
}

func TestQueryRepeatServedFromCache(t *testing.T) {
	store := &mockStore{candidates: []Candidate{
		{Text: "p", DocumentID: "d", Score: 0.8},
	}}
	e := newTestEngine(store, types.RetrievalConfig{TopK: 5})

	if _, err := e.Query(context.Background(), "query", 5, 0.3); err != nil {
		t.Fatalf("first Query() error = %v", err)
	}
	if _, err := e.Query(context.Background(), "query", 5, 0.3); err != nil {
		t.Fatalf("second Query() error = %v", err)
	}
	if got := atomic.LoadInt32(&store.calls); got != 1 {
		t.Errorf("store calls = %d, want 1 (second query cached)", got)
	}

	// Different parameters must not share a cache entry.
	if _, err := e.Query(context.Background(), "query", 4, 0.3); err != nil {
		t.Fatalf("third Query() error = %v", err)
	}
	if got := atomic.LoadInt32(&store.calls); got != 2 {
		t.Errorf("store calls = %d, want 2 (distinct params)", got)
	}
}

func TestRerankBoostsLexicalOverlap(t *testing.T) {
	// Same first-stage score; the passage mentioning the query terms
	// should rank first after reranking.
	store := &mockStore{candidates: []Candidate{
		{Text: "unrelated clause about logistics", DocumentID: "d1", Score: 0.7},
		{Text: "privacy policy for healthcare data", DocumentID: "d2", Score: 0.7},
	}}
	e := newTestEngine(store, types.RetrievalConfig{TopK: 5, MinRelevance: 0.1, EnableRerank: true})

	got, err := e.Query(context.Background(), "healthcare privacy", 0, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].SourceDocumentID != "d2" {
		t.Errorf("top passage = %s, want d2 (lexical match)", got[0].SourceDocumentID)
	}
	if got[0].RerankScore == nil {
		t.Fatal("RerankScore not set with reranking enabled")
	}
	if got[1].EffectiveScore() > got[0].EffectiveScore() {
		t.Error("effective scores out of order after rerank")
	}
}

func TestRerankDisabledLeavesScores(t *testing.T) {
	store := &mockStore{candidates: []Candidate{
		{Text: "passage", DocumentID: "d1", Score: 0.7},
	}}
	e := newTestEngine(store, types.RetrievalConfig{TopK: 5})

	got, err := e.Query(context.Background(), "query", 0, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got[0].RerankScore != nil {
		t.Error("RerankScore set with reranking disabled")
	}
}
