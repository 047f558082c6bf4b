package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/orkestra/pkg/bus"
	"github.com/harun/orkestra/pkg/ledger"
	"github.com/harun/orkestra/pkg/memory"
)

type fakePipeline struct {
	tokens []string
}

func (f *fakePipeline) Process(_ context.Context, _, _ string, _ bool) <-chan string {
	out := make(chan string, len(f.tokens))
	for _, t := range f.tokens {
		out <- t
	}
	close(out)
	return out
}

type fixture struct {
	server *Server
	bus    *bus.Bus
	ledger *ledger.Ledger
}

func createFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	dir := t.TempDir()
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	b, err := bus.New(filepath.Join(dir, "messages.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	l, err := ledger.New(filepath.Join(dir, "costs.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	m, err := memory.NewStore(memory.Config{
		DBPath: filepath.Join(dir, "memory.db"),
		Logger: logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	cfg := Config{
		OutputDir: filepath.Join(dir, "output"),
		Pipeline:  &fakePipeline{tokens: []string{"Hello", " there"}},
		Bus:       b,
		Ledger:    l,
		Memory:    m,
		Logger:    logger,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	s, err := NewServer(cfg)
	require.NoError(t, err)
	return &fixture{server: s, bus: b, ledger: l}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestLoginAndAuth(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	f := createFixture(t, func(cfg *Config) { cfg.PasswordHash = hash })
	routes := f.server.routes()

	// Unauthenticated request is rejected
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest("GET", "/api/cost", nil))
	assert.Equal(t, 401, rec.Code)

	// Wrong password
	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest("POST", "/api/login", bytes.NewBufferString(`{"password":"nope"}`)))
	assert.Equal(t, 401, rec.Code)

	// Correct password yields a token
	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest("POST", "/api/login", bytes.NewBufferString(`{"password":"hunter2"}`)))
	require.Equal(t, 200, rec.Code)
	token, _ := decode(t, rec)["token"].(string)
	require.NotEmpty(t, token)

	// Token grants access
	req := httptest.NewRequest("GET", "/api/cost", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)

	// Logout revokes it
	req = httptest.NewRequest("POST", "/api/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	req = httptest.NewRequest("GET", "/api/cost", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, req)
	assert.Equal(t, 401, rec.Code)
}

func TestOpenModeWithoutPassword(t *testing.T) {
	f := createFixture(t, nil)
	rec := httptest.NewRecorder()
	f.server.routes().ServeHTTP(rec, httptest.NewRequest("GET", "/api/cost", nil))
	assert.Equal(t, 200, rec.Code)
}

func TestMessagesEndpoint(t *testing.T) {
	f := createFixture(t, nil)
	require.NoError(t, f.bus.Log("cli", "orchestrator", "user", "what time is it", nil))
	require.NoError(t, f.bus.Log("orchestrator", "cli", "assistant", "noon", nil))

	rec := httptest.NewRecorder()
	f.server.routes().ServeHTTP(rec, httptest.NewRequest("GET", "/api/messages?limit=10", nil))
	require.Equal(t, 200, rec.Code)

	messages, ok := decode(t, rec)["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestCostEndpoint(t *testing.T) {
	f := createFixture(t, nil)
	_, err := f.ledger.Record("orchestrator", "gpt-4o-mini", 1000, 1000)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	f.server.routes().ServeHTTP(rec, httptest.NewRequest("GET", "/api/cost", nil))
	require.Equal(t, 200, rec.Code)

	body := decode(t, rec)
	assert.InDelta(t, 0.00075, body["daily_usd"], 1e-9)
	assert.InDelta(t, 0.00075, body["monthly_usd"], 1e-9)
}

func TestMemoryEndpoint(t *testing.T) {
	f := createFixture(t, nil)
	routes := f.server.routes()

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest("POST", "/api/memory", bytes.NewBufferString(`{"content":"prefers tea over coffee"}`)))
	require.Equal(t, 200, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["id"])

	// Search without an embedder degrades to an empty result
	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest("GET", "/api/memory?q=tea", nil))
	assert.Equal(t, 200, rec.Code)

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest("GET", "/api/memory", nil))
	assert.Equal(t, 400, rec.Code)
}

func TestFilesEndpointAndContainment(t *testing.T) {
	f := createFixture(t, nil)
	routes := f.server.routes()

	require.NoError(t, os.MkdirAll(f.server.cfg.OutputDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.server.cfg.OutputDir, "report.txt"), []byte("done"), 0644))

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest("GET", "/api/files", nil))
	require.Equal(t, 200, rec.Code)
	files, ok := decode(t, rec)["files"].([]interface{})
	require.True(t, ok)
	require.Len(t, files, 1)

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest("GET", "/api/files/download?path=report.txt", nil))
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "done", rec.Body.String())

	// Traversal outside the output dir is rejected
	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest("GET", "/api/files/download?path=../messages.db", nil))
	assert.Equal(t, 403, rec.Code)
}

func TestChatWebSocket(t *testing.T) {
	f := createFixture(t, nil)
	ts := httptest.NewServer(f.server.routes())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(chatRequest{Message: "hi"}))

	var got []chatEvent
	for {
		var ev chatEvent
		require.NoError(t, conn.ReadJSON(&ev))
		got = append(got, ev)
		if ev.Type == "done" {
			break
		}
	}

	require.Len(t, got, 3)
	assert.Equal(t, "Hello", got[0].Text)
	assert.Equal(t, " there", got[1].Text)
}
