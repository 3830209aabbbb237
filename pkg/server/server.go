// Package server exposes the study assistant's HTTP API: transcription,
// chat, synthesis, sessions, knowledge search and a live transcription
// WebSocket.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxstudy/voxstudy/pkg/ai"
	"github.com/voxstudy/voxstudy/pkg/rag"
	"github.com/voxstudy/voxstudy/pkg/server/breaker"
	"github.com/voxstudy/voxstudy/pkg/server/config"
	"github.com/voxstudy/voxstudy/pkg/server/ratelimit"
	"github.com/voxstudy/voxstudy/pkg/speech/stt"
	"github.com/voxstudy/voxstudy/pkg/speech/tts"
	"github.com/voxstudy/voxstudy/pkg/store"
)

// SessionStore is the persistence surface the handlers need.
type SessionStore interface {
	Ping(ctx context.Context) error
	CreateSession(ctx context.Context, name string) (*store.Session, error)
	GetSession(ctx context.Context, id int64) (*store.Session, error)
	DeleteSession(ctx context.Context, id int64) error
	RecentSessions(ctx context.Context, limit int) ([]store.Session, error)
	AppendConversation(ctx context.Context, conv store.Conversation) (int64, error)
	RecentConversations(ctx context.Context, sessionID int64, limit int) ([]store.Conversation, error)
	AddKnowledge(ctx context.Context, item store.KnowledgeItem) (int64, error)
	SetEmbedding(ctx context.Context, id int64, vector []float64) error
	GetPreferences(ctx context.Context, sessionKey string) (*store.Preferences, error)
	UpsertPreferences(ctx context.Context, p store.Preferences) error
}

// Generator produces chat completions. *ai.Chain satisfies it.
type Generator interface {
	Available() bool
	Generate(ctx context.Context, req ai.Request) (text, source string, err error)
}

// Knowledge answers retrieval queries. *rag.Service satisfies it.
type Knowledge interface {
	ContextForQuery(ctx context.Context, query string) string
	Recommendations(ctx context.Context, query string) []string
	SearchKnowledge(ctx context.Context, query string, k int) ([]rag.ScoredDocument, error)
	AddKnowledge(ctx context.Context, doc rag.Document) (rag.Document, error)
}

// Deps are the injected collaborators. STT and TTS may be nil when the
// matching credentials are absent; their routes then report the service as
// unconfigured.
type Deps struct {
	Store     SessionStore
	STT       stt.Provider
	TTS       tts.Provider
	AI        Generator
	Knowledge Knowledge
	Logger    *slog.Logger
	Limiter   *ratelimit.Limiter
	Breaker   *breaker.Breaker
	Metrics   *Metrics

	// RealtimeSTT opens a live transcription stream for /api/live.
	// Left nil, the route reports the service as unconfigured.
	RealtimeSTT func() (*stt.RealtimeSession, error)
}

type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	mux     *http.ServeMux
	limiter *ratelimit.Limiter
	breaker *breaker.Breaker
	metrics *Metrics

	db        SessionStore
	sttp      stt.Provider
	ttsp      tts.Provider
	chain     Generator
	knowledge Knowledge
	realtime  func() (*stt.RealtimeSession, error)
}

func New(cfg config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.Config{Limits: map[ratelimit.Service]ratelimit.Limit{
			ratelimit.ServiceSTT:     {Requests: cfg.RateLimitSTT, Window: cfg.RateLimitWindow},
			ratelimit.ServiceTTS:     {Requests: cfg.RateLimitTTS, Window: cfg.RateLimitWindow},
			ratelimit.ServiceChat:    {Requests: cfg.RateLimitChat, Window: cfg.RateLimitWindow},
			ratelimit.ServiceGeneral: {Requests: cfg.RateLimitGeneral, Window: cfg.RateLimitWindow},
		}})
	}
	brk := deps.Breaker
	if brk == nil {
		brk = breaker.New(breaker.Config{
			FailureThreshold: cfg.BreakerFailureThreshold,
			Timeout:          cfg.BreakerTimeout,
			Logger:           logger,
		})
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	if deps.Knowledge == nil {
		// A nil *rag.Service degrades to empty retrieval results.
		deps.Knowledge = (*rag.Service)(nil)
	}
	if deps.AI == nil {
		deps.AI = ai.NewChain(logger)
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
		limiter:   limiter,
		breaker:   brk,
		metrics:   metrics,
		db:        deps.Store,
		sttp:      deps.STT,
		ttsp:      deps.TTS,
		chain:     deps.AI,
		knowledge: deps.Knowledge,
		realtime:  deps.RealtimeSTT,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))

	s.mux.HandleFunc("POST /api/transcribe", s.rateLimited(ratelimit.ServiceSTT, s.handleTranscribe))
	s.mux.HandleFunc("POST /api/synthesize", s.rateLimited(ratelimit.ServiceTTS, s.handleSynthesize))
	s.mux.HandleFunc("POST /api/chat", s.rateLimited(ratelimit.ServiceChat, s.handleChat))

	s.mux.HandleFunc("POST /api/session", s.rateLimited(ratelimit.ServiceGeneral, s.handleCreateSession))
	s.mux.HandleFunc("GET /api/sessions", s.rateLimited(ratelimit.ServiceGeneral, s.handleRecentSessions))
	s.mux.HandleFunc("DELETE /api/session/{id}", s.rateLimited(ratelimit.ServiceGeneral, s.handleDeleteSession))
	s.mux.HandleFunc("GET /api/session/{id}/summary", s.rateLimited(ratelimit.ServiceGeneral, s.handleSessionSummary))

	s.mux.HandleFunc("POST /api/knowledge/search", s.rateLimited(ratelimit.ServiceGeneral, s.handleKnowledgeSearch))
	s.mux.HandleFunc("POST /api/knowledge/add", s.rateLimited(ratelimit.ServiceGeneral, s.handleKnowledgeAdd))

	s.mux.HandleFunc("GET /api/preferences", s.rateLimited(ratelimit.ServiceGeneral, s.handleGetPreferences))
	s.mux.HandleFunc("PUT /api/preferences", s.rateLimited(ratelimit.ServiceGeneral, s.handlePutPreferences))

	s.mux.HandleFunc("GET /api/voices", s.rateLimited(ratelimit.ServiceGeneral, s.handleVoices))
	s.mux.HandleFunc("GET /api/live", s.handleLive)
}

// Handler returns the mux wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.metricsMiddleware(h)
	h = corsMiddleware(s.cfg.CORSAllowedOrigins, h)
	h = recoverMiddleware(s.logger, h)
	h = accessLogMiddleware(s.logger, h)
	h = requestIDMiddleware(h)
	return h
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)
		// The matched mux pattern keeps the label set bounded; raw paths
		// would mint a new series per session id or scanner probe.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.Request(route, strconv.Itoa(sw.status), time.Since(start).Seconds())
	})
}
