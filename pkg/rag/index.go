package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Document is one knowledge-base entry. Embedding may be pre-filled from a
// cache; Add computes it otherwise.
type Document struct {
	ID        int64
	Title     string
	Content   string
	Category  string
	SourceURL string
	Embedding []float64
}

// ScoredDocument is a search hit with its cosine similarity to the query.
type ScoredDocument struct {
	Document
	Score float64
}

// Index is an in-memory vector index over knowledge documents.
type Index struct {
	embedder Embedder

	mu      sync.RWMutex
	docs    []Document
	vectors [][]float64
}

// NewIndex creates an empty index backed by the given embedder.
func NewIndex(embedder Embedder) *Index {
	return &Index{embedder: embedder}
}

// Len reports the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Add indexes documents, embedding only those that arrive without a cached
// vector. The returned slice has every embedding filled so callers can
// persist freshly computed ones.
func (ix *Index) Add(ctx context.Context, docs ...Document) ([]Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	var missing []int
	var texts []string
	for i, d := range docs {
		if len(d.Embedding) == 0 {
			missing = append(missing, i)
			texts = append(texts, d.Content)
		}
	}
	if len(missing) > 0 {
		vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed documents: %w", err)
		}
		if len(vectors) != len(missing) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(missing))
		}
		for j, i := range missing {
			docs[i].Embedding = vectors[j]
		}
	}

	ix.mu.Lock()
	for _, d := range docs {
		ix.docs = append(ix.docs, d)
		ix.vectors = append(ix.vectors, d.Embedding)
	}
	ix.mu.Unlock()
	return docs, nil
}

// Search returns the k most similar documents, best first.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]ScoredDocument, error) {
	if k <= 0 {
		return nil, nil
	}
	ix.mu.RLock()
	empty := len(ix.docs) == 0
	ix.mu.RUnlock()
	if empty {
		return nil, nil
	}

	queryVec, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	scored := make([]ScoredDocument, 0, len(ix.docs))
	for i, d := range ix.docs {
		scored = append(scored, ScoredDocument{
			Document: d,
			Score:    cosineSimilarity(queryVec, ix.vectors[i]),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
