// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"strings"
	"unicode"

	"github.com/pdiddy/decision-engine/pkg/types"
)

// Rerank weights: the combined score keeps most of the first-stage
// similarity and blends in lexical overlap with the query.
const (
	similarityWeight = 0.7
	keywordWeight    = 0.3
)

// rerank fills RerankScore for each passage in place:
// similarityWeight * relevance + keywordWeight * query-term overlap.
// A cross-encoder model could replace this without changing the engine.
func rerank(query string, passages []types.RetrievedPassage) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return
	}

	for i := range passages {
		content := strings.ToLower(passages[i].Text)

		matched := 0
		for term := range terms {
			if strings.Contains(content, term) {
				matched++
			}
		}
		overlap := float64(matched) / float64(len(terms))

		score := passages[i].RelevanceScore*similarityWeight + overlap*keywordWeight
		passages[i].RerankScore = &score
	}
}

// tokenize lowercases s and splits it into a set of alphanumeric terms.
func tokenize(s string) map[string]struct{} {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	terms := make(map[string]struct{})
	for _, f := range strings.Fields(b.String()) {
		terms[f] = struct{}{}
	}
	return terms
}
