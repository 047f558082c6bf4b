package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/harun/orkestra/internal/metrics"
	"github.com/harun/orkestra/pkg/bus"
	"github.com/harun/orkestra/pkg/ledger"
	"github.com/harun/orkestra/pkg/memory"
)

// Pipeline is the request entry point the dashboard feeds chat
// messages into.
type Pipeline interface {
	Process(ctx context.Context, message, source string, stream bool) <-chan string
}

// Config holds dashboard server configuration.
type Config struct {
	Host         string // default "127.0.0.1"
	Port         int    // default 3000
	PasswordHash string // bcrypt; empty disables auth
	OutputDir    string

	Pipeline Pipeline
	Bus      *bus.Bus
	Ledger   *ledger.Ledger
	Memory   *memory.Store
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// Server serves the local dashboard API.
type Server struct {
	cfg      Config
	sessions *sessionStore
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	server         *http.Server
	isShuttingDown bool
	shutdownMu     sync.RWMutex
}

// NewServer creates a dashboard server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 3000
	}

	return &Server{
		cfg:      cfg,
		sessions: newSessionStore(),
		logger:   cfg.Logger.With().Str("module", "dashboard").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Local-only surface; the listener binds loopback.
				return true
			},
		},
	}, nil
}

// Start starts serving; it blocks until the server is shut down.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler: s.routes(),
	}

	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting dashboard server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	if s.server == nil {
		return nil
	}
	s.logger.Info().Msg("Shutting down dashboard server")
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/logout", s.authed(s.handleLogout))
	mux.HandleFunc("/api/messages", s.authed(s.handleMessages))
	mux.HandleFunc("/api/cost", s.authed(s.handleCost))
	mux.HandleFunc("/api/memory", s.authed(s.handleMemory))
	mux.HandleFunc("/api/files", s.authed(s.handleFiles))
	mux.HandleFunc("/api/files/download", s.authed(s.handleDownload))
	mux.HandleFunc("/ws/chat", s.authed(s.handleChat))
	if s.cfg.Metrics != nil {
		mux.Handle("/metrics", s.cfg.Metrics.Handler())
	}
	return mux
}

// authed wraps a handler with token validation. With no password hash
// configured the dashboard is open and every request passes.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.PasswordHash != "" {
			token := bearerToken(r.Header.Get("Authorization"), r.URL.Query().Get("token"))
			if !s.sessions.valid(token) {
				writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"error": "unauthorized"})
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"error": "method not allowed"})
		return
	}

	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid request body"})
		return
	}

	if !checkPassword(s.cfg.PasswordHash, body.Password) {
		s.logger.Warn().Str("ip", r.RemoteAddr).Msg("Dashboard login rejected")
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"error": "invalid password"})
		return
	}

	token, err := s.sessions.issue()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "failed to create session"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r.Header.Get("Authorization"), r.URL.Query().Get("token"))
	s.sessions.revoke(token)
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	messages, err := s.cfg.Bus.Recent(limit, r.URL.Query().Get("source"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

func (s *Server) handleCost(w http.ResponseWriter, _ *http.Request) {
	daily, err := s.cfg.Ledger.DailyTotal()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	monthly, err := s.cfg.Ledger.MonthlyTotal()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"daily_usd":   daily,
		"monthly_usd": monthly,
	})
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query().Get("q")
		if query == "" {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "missing query parameter q"})
			return
		}
		facts := s.cfg.Memory.Search(r.Context(), query, 10)
		writeJSON(w, http.StatusOK, map[string]interface{}{"facts": facts})

	case http.MethodPost:
		var body struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Content) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "content is required"})
			return
		}
		id, err := s.cfg.Memory.AddFact(r.Context(), body.Content, map[string]interface{}{"source": "dashboard"})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": id})

	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"error": "method not allowed"})
	}
}

type fileInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

func (s *Server) handleFiles(w http.ResponseWriter, _ *http.Request) {
	entries, err := os.ReadDir(s.cfg.OutputDir)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"files": []fileInfo{}})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}

	files := make([]fileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": files})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("path")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "missing path parameter"})
		return
	}

	root, err := filepath.Abs(s.cfg.OutputDir)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	target, err := filepath.Abs(filepath.Join(root, name))
	if err != nil || (target != root && !strings.HasPrefix(target, root+string(filepath.Separator))) {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{"error": "path outside output directory"})
		return
	}

	http.ServeFile(w, r, target)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
