// Package memory provides semantic fact recall and a small key-value
// preference store. Facts live in SQLite with a sqlite-vec index for
// nearest-neighbor search; search degrades to an empty result set whenever
// the index or the embedding backend is unavailable, so callers can treat
// recall as strictly best-effort.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

// Fact is one recalled memory with its distance from the query (smaller is
// closer).
type Fact struct {
	ID       string  `json:"id"`
	Content  string  `json:"content"`
	Distance float64 `json:"distance"`
}

// Store holds facts and preferences.
type Store struct {
	db       *sql.DB
	embedder EmbeddingProvider
	logger   zerolog.Logger
}

// Config holds store configuration.
type Config struct {
	DBPath   string
	Logger   zerolog.Logger
	Embedder EmbeddingProvider // optional; nil disables semantic search
}

// NewStore opens (creating if needed) the memory store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{
		db:       db,
		embedder: cfg.Embedder,
		logger:   cfg.Logger.With().Str("module", "memory").Logger(),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS facts (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata TEXT,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS preferences (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	if s.embedder != nil {
		vectorSchema := fmt.Sprintf(`
			CREATE VIRTUAL TABLE IF NOT EXISTS facts_vec USING vec0(
				fact_id TEXT PRIMARY KEY,
				embedding float[%d] distance_metric=cosine
			);
		`, s.embedder.Dimension())
		if _, err := s.db.Exec(vectorSchema); err != nil {
			return fmt.Errorf("failed to create vector table: %w", err)
		}
	}

	return nil
}

// AddFact stores a fact and indexes it for semantic recall. Duplicate fact
// text is allowed; every call produces a new id.
func (s *Store) AddFact(ctx context.Context, text string, metadata map[string]interface{}) (string, error) {
	id := "fact_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]

	var meta sql.NullString
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			return "", fmt.Errorf("failed to marshal metadata: %w", err)
		}
		meta = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO facts (id, content, metadata, created_at) VALUES (?, ?, ?, ?)",
		id, text, meta, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert fact: %w", err)
	}

	if s.embedder != nil {
		if err := s.indexFact(ctx, id, text); err != nil {
			// The fact row is kept; it just won't surface in semantic search.
			s.logger.Warn().Str("fact_id", id).Err(err).Msg("Failed to index fact")
		}
	}

	return id, nil
}

func (s *Store) indexFact(ctx context.Context, id, text string) error {
	embedding, err := s.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO facts_vec (fact_id, embedding) VALUES (?, ?)",
		id, string(embeddingJSON),
	)
	return err
}

// Search returns up to n facts nearest to the query, closest first. It
// never fails: any error from the embedder or the index yields an empty
// result, and the caller proceeds without recalled context.
func (s *Store) Search(ctx context.Context, query string, n int) []Fact {
	if s.embedder == nil || query == "" || n <= 0 {
		return nil
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Query embedding failed, skipping recall")
		return nil
	}

	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.content, vec_distance_cosine(v.embedding, ?) AS distance
		FROM facts_vec v
		JOIN facts f ON f.id = v.fact_id
		ORDER BY distance ASC
		LIMIT ?
	`, string(embeddingJSON), n)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Vector search failed, skipping recall")
		return nil
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.ID, &f.Content, &f.Distance); err != nil {
			s.logger.Debug().Err(err).Msg("Failed to scan search result")
			return nil
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil
	}

	return facts
}

// GetPreference returns the stored value for key, or ok=false if unset.
func (s *Store) GetPreference(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read preference: %w", err)
	}
	return value, true, nil
}

// SetPreference stores a preference, last write wins.
func (s *Store) SetPreference(key, value string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO preferences (key, value, updated_at) VALUES (?, ?, ?)",
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to store preference: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
