// Package store persists study sessions, conversations, knowledge documents
// and user preferences in PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Session is one study session.
type Session struct {
	ID                int64
	Name              string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	TotalInteractions int
}

// Conversation is one user/assistant exchange within a session.
type Conversation struct {
	ID            int64
	SessionID     int64
	UserInput     string
	AIResponse    string
	InputMethod   string
	Timestamp     time.Time
	AudioDuration float64
}

// KnowledgeItem is one knowledge-base document. Embedding is the cached
// document vector, empty until one has been computed.
type KnowledgeItem struct {
	ID        int64
	Title     string
	Content   string
	Category  string
	SourceURL string
	Embedding []float64
	CreatedAt time.Time
}

// Preferences holds per-browser-session user settings.
type Preferences struct {
	SessionKey     string
	VoiceEnabled   bool
	SpeechRate     float64
	PreferredVoice string
	Theme          string
}

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks database liveness.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateSession inserts a new study session.
func (s *Store) CreateSession(ctx context.Context, name string) (*Session, error) {
	var sess Session
	err := s.pool.QueryRow(ctx, `
		INSERT INTO study_sessions (session_name)
		VALUES ($1)
		RETURNING id, session_name, created_at, updated_at, total_interactions`,
		name,
	).Scan(&sess.ID, &sess.Name, &sess.CreatedAt, &sess.UpdatedAt, &sess.TotalInteractions)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &sess, nil
}

// GetSession loads one session by id.
func (s *Store) GetSession(ctx context.Context, id int64) (*Session, error) {
	var sess Session
	err := s.pool.QueryRow(ctx, `
		SELECT id, session_name, created_at, updated_at, total_interactions
		FROM study_sessions WHERE id = $1`,
		id,
	).Scan(&sess.ID, &sess.Name, &sess.CreatedAt, &sess.UpdatedAt, &sess.TotalInteractions)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

// RecentSessions lists the most recently updated sessions.
// DeleteSession removes a session; its conversations go with it through the
// foreign-key cascade.
func (s *Store) DeleteSession(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM study_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) RecentSessions(ctx context.Context, limit int) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_name, created_at, updated_at, total_interactions
		FROM study_sessions ORDER BY updated_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Name, &sess.CreatedAt, &sess.UpdatedAt, &sess.TotalInteractions); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// AppendConversation records one exchange and bumps the session's
// interaction counter in the same transaction.
func (s *Store) AppendConversation(ctx context.Context, conv Conversation) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO conversations (session_id, user_input, ai_response, input_method, audio_duration)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		conv.SessionID, conv.UserInput, conv.AIResponse, conv.InputMethod, conv.AudioDuration,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert conversation: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE study_sessions
		SET total_interactions = total_interactions + 1, updated_at = now()
		WHERE id = $1`,
		conv.SessionID,
	)
	if err != nil {
		return 0, fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// RecentConversations returns the last limit exchanges of a session in
// chronological order.
func (s *Store) RecentConversations(ctx context.Context, sessionID int64, limit int) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, user_input, ai_response, input_method, timestamp, coalesce(audio_duration, 0)
		FROM (
			SELECT * FROM conversations
			WHERE session_id = $1
			ORDER BY timestamp DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY timestamp ASC, id ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.SessionID, &c.UserInput, &c.AIResponse, &c.InputMethod, &c.Timestamp, &c.AudioDuration); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// AddKnowledge inserts a knowledge document and returns its id.
func (s *Store) AddKnowledge(ctx context.Context, item KnowledgeItem) (int64, error) {
	emb, err := embeddingJSON(item.Embedding)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO knowledge_base (title, content, category, source_url, embedding)
		VALUES ($1, $2, $3, nullif($4, ''), $5)
		RETURNING id`,
		item.Title, item.Content, item.Category, item.SourceURL, emb,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert knowledge: %w", err)
	}
	return id, nil
}

// SetEmbedding caches a computed document vector.
func (s *Store) SetEmbedding(ctx context.Context, id int64, vector []float64) error {
	emb, err := embeddingJSON(vector)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE knowledge_base SET embedding = $2 WHERE id = $1`, id, emb)
	if err != nil {
		return fmt.Errorf("set embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListKnowledge returns all knowledge documents, oldest first.
func (s *Store) ListKnowledge(ctx context.Context) ([]KnowledgeItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, content, category, coalesce(source_url, ''), embedding, created_at
		FROM knowledge_base ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list knowledge: %w", err)
	}
	defer rows.Close()

	var items []KnowledgeItem
	for rows.Next() {
		var item KnowledgeItem
		var emb []byte
		if err := rows.Scan(&item.ID, &item.Title, &item.Content, &item.Category, &item.SourceURL, &emb, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan knowledge: %w", err)
		}
		if len(emb) > 0 {
			if err := json.Unmarshal(emb, &item.Embedding); err != nil {
				return nil, fmt.Errorf("decode embedding for knowledge %d: %w", item.ID, err)
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// embeddingJSON encodes a vector for the jsonb column, nil when absent.
func embeddingJSON(vector []float64) ([]byte, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(vector)
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}
	return b, nil
}

// GetPreferences loads preferences for a browser session key.
func (s *Store) GetPreferences(ctx context.Context, sessionKey string) (*Preferences, error) {
	var p Preferences
	err := s.pool.QueryRow(ctx, `
		SELECT session_id, voice_enabled, speech_rate, preferred_voice, theme_preference
		FROM user_preferences WHERE session_id = $1`,
		sessionKey,
	).Scan(&p.SessionKey, &p.VoiceEnabled, &p.SpeechRate, &p.PreferredVoice, &p.Theme)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return &p, nil
}

// UpsertPreferences creates or updates preferences for a browser session
// key.
func (s *Store) UpsertPreferences(ctx context.Context, p Preferences) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_preferences (session_id, voice_enabled, speech_rate, preferred_voice, theme_preference)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE
		SET voice_enabled = excluded.voice_enabled,
		    speech_rate = excluded.speech_rate,
		    preferred_voice = excluded.preferred_voice,
		    theme_preference = excluded.theme_preference,
		    updated_at = now()`,
		p.SessionKey, p.VoiceEnabled, p.SpeechRate, p.PreferredVoice, p.Theme,
	)
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}
