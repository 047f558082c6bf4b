package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harun/orkestra/pkg/llm"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Cache stores LLM responses keyed by a content hash of (model, messages).
// Entries older than the TTL read as absent and are deleted lazily on the
// next lookup. A TTL of zero or less never expires.
type Cache struct {
	db     *sql.DB
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// New opens (creating if needed) the response cache at dbPath.
func New(dbPath string, ttl time.Duration, logger zerolog.Logger) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open response cache: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	c := &Cache{
		db:     db,
		ttl:    ttl,
		logger: logger.With().Str("module", "cache").Logger(),
		now:    time.Now,
	}

	schema := `
		CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return c, nil
}

// Key derives the deterministic cache key for a request. It is a pure
// function of the model and the ordered message list.
func Key(model string, messages []llm.Message) string {
	payload := struct {
		Model    string        `json:"model"`
		Messages []llm.Message `json:"messages"`
	}{Model: model, Messages: messages}

	// llm.Message has fixed field order, so marshaling is stable.
	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response for (model, messages), or ok=false on a
// miss or an expired entry.
func (c *Cache) Get(model string, messages []llm.Message) (string, bool) {
	key := Key(model, messages)

	var value string
	var createdAt int64
	err := c.db.QueryRow("SELECT value, created_at FROM cache WHERE key = ?", key).
		Scan(&value, &createdAt)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("Cache lookup failed")
		return "", false
	}

	if c.ttl > 0 && c.now().Sub(time.Unix(createdAt, 0)) > c.ttl {
		if _, err := c.db.Exec("DELETE FROM cache WHERE key = ?", key); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to delete expired cache entry")
		}
		return "", false
	}

	return value, true
}

// Set stores a response, overwriting any prior entry for the same key.
func (c *Cache) Set(model string, messages []llm.Message, response string) error {
	key := Key(model, messages)
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO cache (key, value, created_at) VALUES (?, ?, ?)",
		key, response, c.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
