package server

import (
	"encoding/json"
	"net/http"

	"github.com/voxstudy/voxstudy/pkg/rag"
	"github.com/voxstudy/voxstudy/pkg/store"
)

type knowledgeHit struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	Category       string  `json:"category"`
	SourceURL      string  `json:"source_url,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

func (s *Server) handleKnowledgeSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(&req); err != nil || req.Query == "" {
		writeError(w, http.StatusBadRequest, "No search query provided")
		return
	}
	if req.Limit <= 0 || req.Limit > 20 {
		req.Limit = 5
	}

	hits, err := s.knowledge.SearchKnowledge(r.Context(), req.Query, req.Limit)
	if err != nil {
		s.logger.Error("knowledge search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error during search")
		return
	}

	results := make([]knowledgeHit, len(hits))
	for i, h := range hits {
		results[i] = knowledgeHit{
			ID:             h.ID,
			Title:          h.Title,
			Content:        h.Content,
			Category:       h.Category,
			SourceURL:      h.SourceURL,
			RelevanceScore: h.Score,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"query":   req.Query,
		"count":   len(results),
		"success": true,
	})
}

func (s *Server) handleKnowledgeAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title     string `json:"title"`
		Content   string `json:"content"`
		Category  string `json:"category"`
		SourceURL string `json:"source_url"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	switch {
	case req.Title == "":
		writeError(w, http.StatusBadRequest, "Missing required field: title")
		return
	case req.Content == "":
		writeError(w, http.StatusBadRequest, "Missing required field: content")
		return
	case req.Category == "":
		writeError(w, http.StatusBadRequest, "Missing required field: category")
		return
	}

	ctx := r.Context()
	id, err := s.db.AddKnowledge(ctx, store.KnowledgeItem{
		Title:     req.Title,
		Content:   req.Content,
		Category:  req.Category,
		SourceURL: req.SourceURL,
	})
	if err != nil {
		s.logger.Error("knowledge persist failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to add knowledge")
		return
	}

	// Indexing failure leaves the document searchable after the next
	// restart reindex, so only log it.
	doc, err := s.knowledge.AddKnowledge(ctx, rag.Document{
		ID:        id,
		Title:     req.Title,
		Content:   req.Content,
		Category:  req.Category,
		SourceURL: req.SourceURL,
	})
	if err != nil {
		s.logger.Warn("knowledge indexing failed", "error", err, "id", id)
	} else if len(doc.Embedding) > 0 {
		if err := s.db.SetEmbedding(ctx, id, doc.Embedding); err != nil {
			s.logger.Warn("embedding cache write failed", "error", err, "id", id)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Knowledge added successfully",
		"success": true,
	})
}
