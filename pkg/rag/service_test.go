package rag

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeEmbedder maps known substrings onto fixed unit vectors so similarity
// ordering is deterministic.
type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (f *fakeEmbedder) vectorFor(text string) []float64 {
	for key, vec := range f.vectors {
		if strings.Contains(text, key) {
			return vec
		}
	}
	return []float64{0, 0, 1}
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = f.vectorFor(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectorFor(text), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSearchRanksBySimilarity(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float64{
		"pomodoro": {1, 0, 0},
		"cornell":  {0, 1, 0},
	}}
	ix := NewIndex(emb)
	_, err := ix.Add(context.Background(),
		Document{Title: "Timers", Content: "pomodoro intervals", Category: "Time Management"},
		Document{Title: "Notes", Content: "cornell sections", Category: "Note-Taking"},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	hits, err := ix.Search(context.Background(), "tell me about pomodoro", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Title != "Timers" {
		t.Errorf("best hit = %q, want Timers", hits[0].Title)
	}
	if hits[0].Score <= hits[1].Score {
		t.Errorf("scores not descending: %v then %v", hits[0].Score, hits[1].Score)
	}
}

func TestAddUsesCachedEmbeddingsAndFillsMissing(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float64{"fresh": {1, 0, 0}}}
	ix := NewIndex(emb)

	docs, err := ix.Add(context.Background(),
		Document{Title: "Cached", Content: "cached content", Embedding: []float64{0, 1, 0}},
		Document{Title: "Fresh", Content: "fresh content"},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := docs[0].Embedding; got[1] != 1 {
		t.Errorf("cached embedding replaced: %v", got)
	}
	if got := docs[1].Embedding; len(got) == 0 || got[0] != 1 {
		t.Errorf("missing embedding not computed: %v", got)
	}

	// A cached vector must be searchable without re-embedding.
	emb.err = errors.New("embedder must not be called for documents")
	hits, err := ix.Search(context.Background(), "q", 2)
	if hits != nil || err == nil {
		// Query embedding still goes through the embedder; only the
		// document side is cached.
		t.Fatalf("Search = %v, %v", hits, err)
	}
}

func TestSearchEmptyIndexReturnsNothing(t *testing.T) {
	ix := NewIndex(&fakeEmbedder{})
	hits, err := ix.Search(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("got %d hits from empty index", len(hits))
	}
}

func TestContextForQueryFormatsAndCaps(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float64{"topic": {1, 0, 0}}}
	ix := NewIndex(emb)
	long := strings.Repeat("x", MaxContextLength)
	_, err := ix.Add(context.Background(),
		Document{Title: "First", Content: "topic short content"},
		Document{Title: "Second", Content: "topic " + long},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	svc := NewService(ix, testLogger())
	got := svc.ContextForQuery(context.Background(), "topic")
	if !strings.HasPrefix(got, "[First]: topic short content") && !strings.Contains(got, "[First]:") {
		t.Errorf("context missing titled section: %q", got[:min(len(got), 80)])
	}
	if len(got) > MaxContextLength+3 {
		t.Errorf("context length %d exceeds cap", len(got))
	}
	if strings.Contains(got, long) {
		t.Error("oversized document should have been truncated")
	}
}

func TestContextForQueryDegradesOnEmbedderFailure(t *testing.T) {
	emb := &fakeEmbedder{}
	ix := NewIndex(emb)
	if _, err := ix.Add(context.Background(), Document{Title: "T", Content: "c"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	emb.err = errors.New("embed down")

	svc := NewService(ix, testLogger())
	if got := svc.ContextForQuery(context.Background(), "q"); got != "" {
		t.Fatalf("got %q, want empty context on failure", got)
	}
}

func TestRecommendationsDeduplicateCategories(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float64{"q": {1, 0, 0}}}
	ix := NewIndex(emb)
	_, err := ix.Add(context.Background(),
		Document{Title: "A", Content: "q", Category: "Study Methods"},
		Document{Title: "B", Content: "q", Category: "Study Methods"},
		Document{Title: "C", Content: "q", Category: "Note-Taking"},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	svc := NewService(ix, testLogger())
	recs := svc.Recommendations(context.Background(), "q")
	want := []string{"Review Study Methods materials", "Review Note-Taking materials"}
	if len(recs) != len(want) {
		t.Fatalf("recs = %v", recs)
	}
	for i := range want {
		if recs[i] != want[i] {
			t.Errorf("recs[%d] = %q, want %q", i, recs[i], want[i])
		}
	}
}

func TestRecommendationsAddStudyExtrasAndCapAtFive(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float64{"study": {1, 0, 0}}}
	ix := NewIndex(emb)
	_, err := ix.Add(context.Background(),
		Document{Title: "A", Content: "study", Category: "Study Methods"},
		Document{Title: "B", Content: "study", Category: "Time Management"},
		Document{Title: "C", Content: "study", Category: "Note-Taking"},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	svc := NewService(ix, testLogger())
	recs := svc.Recommendations(context.Background(), "how should I study")
	if len(recs) != 5 {
		t.Fatalf("got %d recommendations, want 5: %v", len(recs), recs)
	}
	if recs[3] != "Try active recall techniques" {
		t.Errorf("recs[3] = %q", recs[3])
	}
}

func TestNilServiceReturnsEmptyResults(t *testing.T) {
	var svc *Service
	if got := svc.ContextForQuery(context.Background(), "q"); got != "" {
		t.Errorf("context = %q", got)
	}
	recs := svc.Recommendations(context.Background(), "how to learn")
	if len(recs) != 3 {
		t.Errorf("nil service should still give general study extras, got %v", recs)
	}
	if _, err := svc.AddKnowledge(context.Background(), Document{}); err == nil {
		t.Error("AddKnowledge on nil service should fail")
	}
}

func TestDefaultKnowledgeHasFourSeedDocuments(t *testing.T) {
	docs := DefaultKnowledge()
	if len(docs) != 4 {
		t.Fatalf("got %d seed documents, want 4", len(docs))
	}
	categories := map[string]bool{}
	for _, d := range docs {
		if d.Title == "" || d.Content == "" || d.Category == "" {
			t.Errorf("incomplete seed document %+v", d.Title)
		}
		categories[d.Category] = true
	}
	if !categories["Study Methods"] || !categories["Time Management"] || !categories["Note-Taking"] {
		t.Errorf("unexpected categories: %v", categories)
	}
}

func TestCohereEmbedderSendsInputTypes(t *testing.T) {
	var inputTypes []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req cohereEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		inputTypes = append(inputTypes, req.InputType)
		out := make([][]float64, len(req.Texts))
		for i := range out {
			out[i] = []float64{1, 2, 3}
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": out})
	}))
	defer srv.Close()

	emb := NewCohereEmbedder("key", WithEmbedBaseURL(srv.URL))
	if _, err := emb.EmbedDocuments(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("EmbedDocuments: %v", err)
	}
	vec, err := emb.EmbedQuery(context.Background(), "q")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("query vector length = %d", len(vec))
	}
	if len(inputTypes) != 2 || inputTypes[0] != "search_document" || inputTypes[1] != "search_query" {
		t.Errorf("input types = %v", inputTypes)
	}
}
