package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// MaxContextLength bounds the knowledge context injected into prompts.
const MaxContextLength = 1000

// Service answers knowledge lookups for the chat pipeline. A nil Service is
// usable and returns empty results, so callers need no embedder checks.
type Service struct {
	index  *Index
	logger *slog.Logger
}

// NewService builds a RAG service over an index. Returns nil when index is
// nil so an unconfigured embedder degrades to no retrieval.
func NewService(index *Index, logger *slog.Logger) *Service {
	if index == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{index: index, logger: logger}
}

// AddKnowledge indexes a new document and returns it with the computed
// embedding filled in.
func (s *Service) AddKnowledge(ctx context.Context, doc Document) (Document, error) {
	if s == nil {
		return doc, fmt.Errorf("knowledge index not configured")
	}
	added, err := s.index.Add(ctx, doc)
	if err != nil {
		return doc, err
	}
	return added[0], nil
}

// SearchKnowledge returns up to k documents relevant to the query.
func (s *Service) SearchKnowledge(ctx context.Context, query string, k int) ([]ScoredDocument, error) {
	if s == nil {
		return nil, nil
	}
	return s.index.Search(ctx, query, k)
}

// ContextForQuery assembles a "[title]: content" context block from the top
// three hits, capped at MaxContextLength characters. Failures degrade to an
// empty context rather than blocking the chat.
func (s *Service) ContextForQuery(ctx context.Context, query string) string {
	if s == nil {
		return ""
	}
	hits, err := s.index.Search(ctx, query, 3)
	if err != nil {
		s.logger.Warn("knowledge search failed", "error", err)
		return ""
	}

	var b strings.Builder
	for _, hit := range hits {
		addition := fmt.Sprintf("[%s]: %s\n\n", hit.Title, hit.Content)
		if b.Len()+len(addition) <= MaxContextLength {
			b.WriteString(addition)
			continue
		}
		remaining := MaxContextLength - b.Len()
		prefix := fmt.Sprintf("[%s]: ", hit.Title)
		if remaining > 50 && remaining > len(prefix) {
			b.WriteString(prefix)
			b.WriteString(hit.Content[:remaining-len(prefix)])
			b.WriteString("...")
		}
		break
	}
	return b.String()
}

// Recommendations suggests study actions based on the categories of the top
// five hits, with general techniques added for study-related queries. At
// most five are returned.
func (s *Service) Recommendations(ctx context.Context, query string) []string {
	var recs []string
	if s != nil {
		hits, err := s.index.Search(ctx, query, 5)
		if err != nil {
			s.logger.Warn("knowledge search failed", "error", err)
		}
		seen := make(map[string]bool)
		for _, hit := range hits {
			if seen[hit.Category] {
				continue
			}
			seen[hit.Category] = true
			recs = append(recs, fmt.Sprintf("Review %s materials", hit.Category))
		}
	}

	lower := strings.ToLower(query)
	if strings.Contains(lower, "study") || strings.Contains(lower, "learn") {
		recs = append(recs,
			"Try active recall techniques",
			"Use spaced repetition for memorization",
			"Take regular breaks using the Pomodoro technique",
		)
	}
	if len(recs) > 5 {
		recs = recs[:5]
	}
	return recs
}

// DefaultKnowledge is the seed content indexed when the knowledge base is
// empty.
func DefaultKnowledge() []Document {
	return []Document{
		{
			Title:    "Study Techniques: Spaced Repetition",
			Category: "Study Methods",
			Content: "Spaced repetition is a learning technique that involves reviewing information at increasing intervals. " +
				"This method is based on the psychological spacing effect, where information is more easily recalled if learning sessions " +
				"are spaced out over time rather than concentrated in a short period. The key principles include: 1) Initial learning session, " +
				"2) First review after 1 day, 3) Second review after 3 days, 4) Third review after 1 week, 5) Subsequent reviews at increasing " +
				"intervals. This technique is particularly effective for memorizing facts, vocabulary, and concepts that require long-term retention.",
		},
		{
			Title:    "Active Learning Strategies",
			Category: "Study Methods",
			Content: "Active learning involves engaging with material through activities that require students to analyze, synthesize, " +
				"and evaluate information. Unlike passive learning (like reading or listening to lectures), active learning strategies include: " +
				"summarizing information in your own words, asking questions about the material, discussing concepts with peers, teaching others, " +
				"creating mind maps or concept diagrams, solving problems and applying knowledge, and self-testing through quizzes or flashcards. " +
				"Research shows that active learning significantly improves retention and understanding compared to passive methods.",
		},
		{
			Title:    "Time Management: Pomodoro Technique",
			Category: "Time Management",
			Content: "The Pomodoro Technique is a time management method that uses short, focused work intervals followed by brief breaks. " +
				"The standard approach involves: 1) Choose a task to work on, 2) Set a timer for 25 minutes (one 'Pomodoro'), 3) Work on the task " +
				"until the timer rings, 4) Take a 5-minute break, 5) Repeat the cycle, 6) After 4 Pomodoros, take a longer 15-30 minute break. " +
				"This technique helps maintain focus, prevents burnout, and makes large tasks feel more manageable by breaking them into smaller, " +
				"timed segments.",
		},
		{
			Title:    "Note-Taking: Cornell Method",
			Category: "Note-Taking",
			Content: "The Cornell Note-Taking System is an effective method for organizing and reviewing notes. It involves dividing your " +
				"note page into three sections: 1) Note-taking area (right side, largest section) for writing main notes during class or reading, " +
				"2) Cue column (left side, narrow) for keywords, questions, and main ideas added during review, 3) Summary section (bottom) for a " +
				"brief summary of the page's content. This system encourages active engagement with material and makes reviewing more efficient by " +
				"providing clear organization and built-in study cues.",
		},
	}
}
