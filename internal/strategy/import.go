// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package strategy

import (
	"context"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Document is one strategy document in an import file: an identifier plus
// its pre-chunked passages. Chunking itself happens upstream in the
// ingestion pipeline; the engine only indexes what it is given.
type Document struct {
	// ID identifies the source document (e.g. "strategy-2026-q3").
	ID string `yaml:"id" json:"id"`

	// Passages are the retrievable text units of the document.
	Passages []string `yaml:"passages" json:"passages"`
}

// ImportFile loads a YAML file of documents into the index, replacing any
// previously indexed passages for the same document IDs. Returns the
// number of passages indexed.
func (s *Store) ImportFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}

	var docs []Document
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}

	total := 0
	for _, doc := range docs {
		if doc.ID == "" {
			return total, fmt.Errorf("document without id in %s", path)
		}
		if err := s.ReplaceDocument(ctx, doc.ID, doc.Passages); err != nil {
			return total, fmt.Errorf("importing %s: %w", doc.ID, err)
		}
		total += len(doc.Passages)
	}
	return total, nil
}
