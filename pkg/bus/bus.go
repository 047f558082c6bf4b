package bus

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Message is a single logged communication turn. Rows are append-only;
// ordering by ID is the authoritative insertion order.
type Message struct {
	ID        int64                  `json:"id"`
	Timestamp string                 `json:"timestamp"`
	Source    string                 `json:"source"`
	Target    string                 `json:"target"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Bus persists every user, orchestrator and inter-agent message to SQLite.
type Bus struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New opens (creating if needed) the message log at dbPath.
func New(dbPath string, logger zerolog.Logger) (*Bus, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open message log: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	b := &Bus{
		db:     db,
		logger: logger.With().Str("module", "bus").Logger(),
	}

	if err := b.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return b, nil
}

func (b *Bus) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_messages_source ON messages(source);
		CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);
	`
	_, err := b.db.Exec(schema)
	return err
}

// Log appends one message row. Metadata may be nil.
func (b *Bus) Log(source, target, role, content string, metadata map[string]interface{}) error {
	var meta sql.NullString
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		meta = sql.NullString{String: string(data), Valid: true}
	}

	_, err := b.db.Exec(
		`INSERT INTO messages (timestamp, source, target, role, content, metadata)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), source, target, role, content, meta,
	)
	if err != nil {
		return fmt.Errorf("failed to log message: %w", err)
	}
	return nil
}

// Recent returns up to limit messages, newest first. An empty source
// returns messages from all senders.
func (b *Bus) Recent(limit int, source string) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := b.db.Query(
		`SELECT id, timestamp, source, target, role, content, metadata
		 FROM messages
		 WHERE (? = '' OR source = ?)
		 ORDER BY id DESC
		 LIMIT ?`,
		source, source, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var meta sql.NullString
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.Source, &m.Target, &m.Role, &m.Content, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if meta.Valid {
			if err := json.Unmarshal([]byte(meta.String), &m.Metadata); err != nil {
				b.logger.Warn().Int64("id", m.ID).Err(err).Msg("Failed to decode message metadata")
			}
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// Count returns the total number of logged messages.
func (b *Bus) Count() (int64, error) {
	var n int64
	if err := b.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (b *Bus) Close() error {
	return b.db.Close()
}
