// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieval ranks strategy-document passages for a query using a
// two-stage retrieve-then-rerank pipeline with a minimum-relevance cutoff.
// The vector store is an external collaborator behind the VectorStore
// interface; results are cached keyed by the full query parameters.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/pdiddy/decision-engine/internal/cache"
	"github.com/pdiddy/decision-engine/pkg/types"
)

// Candidate is one first-stage hit from the vector store, scored in [0,1].
type Candidate struct {
	Text       string
	DocumentID string
	Score      float64
}

// VectorStore performs first-stage similarity search. Implementations
// return up to k candidates ordered by descending similarity.
type VectorStore interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]Candidate, error)
}

// Engine is the two-stage retrieval pipeline.
type Engine struct {
	store  VectorStore
	cache  *cache.Cache
	cfg    types.RetrievalConfig
	logger *zap.Logger
}

// NewEngine builds an engine over store. Zero config fields get defaults:
// TopK 5, CandidateK 20, MinRelevance 0.35.
func NewEngine(store VectorStore, c *cache.Cache, cfg types.RetrievalConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.CandidateK <= 0 {
		cfg.CandidateK = 20
	}
	if cfg.CandidateK < cfg.TopK {
		cfg.CandidateK = cfg.TopK
	}
	if cfg.MinRelevance <= 0 {
		cfg.MinRelevance = 0.35
	}
	return &Engine{store: store, cache: c, cfg: cfg, logger: logger}
}

// Query returns up to topK passages relevant to text, ordered by
// descending effective score. Passages below minRelevance are dropped.
// An empty result means no strategy constraint matched; it is a valid
// outcome, not an error. Zero topK/minRelevance use the engine defaults.
func (e *Engine) Query(ctx context.Context, text string, topK int, minRelevance float64) ([]types.RetrievedPassage, error) {
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	if minRelevance <= 0 {
		minRelevance = e.cfg.MinRelevance
	}

	key := cache.Fingerprint("retrieval", text,
		strconv.Itoa(topK),
		strconv.FormatFloat(minRelevance, 'f', -1, 64),
		strconv.FormatBool(e.cfg.EnableRerank))

	raw, err := e.cache.GetOrCompute(ctx, key, 0, func(ctx context.Context) ([]byte, error) {
		passages, err := e.query(ctx, text, topK, minRelevance)
		if err != nil {
			return nil, err
		}
		return json.Marshal(passages)
	})
	if err != nil {
		return nil, err
	}

	var passages []types.RetrievedPassage
	if err := json.Unmarshal(raw, &passages); err != nil {
		return nil, fmt.Errorf("decoding cached passages: %w", err)
	}
	return passages, nil
}

func (e *Engine) query(ctx context.Context, text string, topK int, minRelevance float64) ([]types.RetrievedPassage, error) {
	candidateK := e.cfg.CandidateK
	if candidateK < topK {
		candidateK = topK
	}

	candidates, err := e.store.SimilaritySearch(ctx, text, candidateK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	passages := make([]types.RetrievedPassage, 0, len(candidates))
	for _, c := range candidates {
		passages = append(passages, types.RetrievedPassage{
			Text:             c.Text,
			SourceDocumentID: c.DocumentID,
			RelevanceScore:   c.Score,
		})
	}

	if e.cfg.EnableRerank {
		rerank(text, passages)
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].EffectiveScore() > passages[j].EffectiveScore()
	})

	filtered := passages[:0]
	for _, p := range passages {
		if p.EffectiveScore() >= minRelevance {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) > topK {
		filtered = filtered[:topK]
	}

	e.logger.Debug("retrieval query complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(filtered)),
		zap.Float64("min_relevance", minRelevance))

	return filtered, nil
}
