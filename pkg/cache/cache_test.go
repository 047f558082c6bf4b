package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harun/orkestra/pkg/llm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "cache.db")
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	c, err := New(dbPath, ttl, logger)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return c
}

func testMessages() []llm.Message {
	return []llm.Message{
		{Role: "system", Content: "You are helpful."},
		{Role: "user", Content: "hello"},
	}
}

func TestSetGet(t *testing.T) {
	c := createTestCache(t, time.Hour)

	require.NoError(t, c.Set("gpt-4o-mini", testMessages(), "hi there"))

	value, ok := c.Get("gpt-4o-mini", testMessages())
	assert.True(t, ok)
	assert.Equal(t, "hi there", value)
}

func TestGetMiss(t *testing.T) {
	c := createTestCache(t, time.Hour)

	_, ok := c.Get("gpt-4o-mini", testMessages())
	assert.False(t, ok)
}

func TestKeyDeterminism(t *testing.T) {
	k1 := Key("gpt-4o-mini", testMessages())
	k2 := Key("gpt-4o-mini", testMessages())
	assert.Equal(t, k1, k2)
}

func TestKeySensitivity(t *testing.T) {
	base := Key("gpt-4o-mini", testMessages())

	// Different model
	assert.NotEqual(t, base, Key("gpt-4o", testMessages()))

	// Different content
	assert.NotEqual(t, base, Key("gpt-4o-mini", []llm.Message{
		{Role: "system", Content: "You are helpful."},
		{Role: "user", Content: "goodbye"},
	}))

	// Reordered messages
	assert.NotEqual(t, base, Key("gpt-4o-mini", []llm.Message{
		{Role: "user", Content: "hello"},
		{Role: "system", Content: "You are helpful."},
	}))
}

func TestOverwrite(t *testing.T) {
	c := createTestCache(t, time.Hour)

	require.NoError(t, c.Set("gpt-4o-mini", testMessages(), "first"))
	require.NoError(t, c.Set("gpt-4o-mini", testMessages(), "second"))

	value, ok := c.Get("gpt-4o-mini", testMessages())
	assert.True(t, ok)
	assert.Equal(t, "second", value)
}

func TestTTLExpiry(t *testing.T) {
	c := createTestCache(t, 60*time.Second)

	inserted := time.Now()
	c.now = func() time.Time { return inserted }
	require.NoError(t, c.Set("gpt-4o-mini", testMessages(), "cached"))

	// Present just before the TTL
	c.now = func() time.Time { return inserted.Add(59 * time.Second) }
	_, ok := c.Get("gpt-4o-mini", testMessages())
	assert.True(t, ok)

	// Absent just after the TTL
	c.now = func() time.Time { return inserted.Add(61 * time.Second) }
	_, ok = c.Get("gpt-4o-mini", testMessages())
	assert.False(t, ok)

	// Expired entry is deleted, not just hidden
	var n int
	require.NoError(t, c.db.QueryRow("SELECT COUNT(*) FROM cache").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c := createTestCache(t, 0)

	inserted := time.Now()
	c.now = func() time.Time { return inserted }
	require.NoError(t, c.Set("gpt-4o-mini", testMessages(), "cached"))

	c.now = func() time.Time { return inserted.Add(365 * 24 * time.Hour) }
	value, ok := c.Get("gpt-4o-mini", testMessages())
	assert.True(t, ok)
	assert.Equal(t, "cached", value)
}
