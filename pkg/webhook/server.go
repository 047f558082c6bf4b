package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/harun/orkestra/internal/metrics"
	"github.com/rs/zerolog"
)

// ServerOptions configures the webhook server.
type ServerOptions struct {
	Host               string        // default "127.0.0.1"
	Port               int           // default 3001
	RateLimitPerMinute int           // default 100
	HandlerTimeout     time.Duration // default 30s
}

// Server serves the registered webhook endpoints.
type Server struct {
	options  ServerOptions
	registry *Registry
	limiter  *RateLimiter
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	server       *http.Server
	inFlightReqs sync.WaitGroup
}

// NewServer creates a webhook server over the given registry.
func NewServer(options ServerOptions, registry *Registry, m *metrics.Metrics, logger zerolog.Logger) *Server {
	if options.Host == "" {
		options.Host = "127.0.0.1"
	}
	if options.Port == 0 {
		options.Port = 3001
	}
	if options.RateLimitPerMinute == 0 {
		options.RateLimitPerMinute = 100
	}
	if options.HandlerTimeout == 0 {
		options.HandlerTimeout = 30 * time.Second
	}

	return &Server{
		options:  options,
		registry: registry,
		limiter:  NewRateLimiter(options.RateLimitPerMinute),
		metrics:  m,
		logger:   logger.With().Str("module", "webhook").Logger(),
	}
}

// Start starts serving; it blocks until the server is shut down.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleWebhook)

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: mux,
	}

	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting webhook server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webhook server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.limiter.Stop()
	if s.server == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	endpoint, ok := s.registry.Lookup(r.Method, r.URL.Path)
	if !ok {
		s.count(r.URL.Path, "not_found")
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "unknown webhook"})
		return
	}

	ip := clientIP(r)
	if !s.limiter.Allow(ip) {
		s.count(endpoint.Path, "rate_limited")
		w.Header().Set("Retry-After", fmt.Sprintf("%d", s.limiter.RetryAfter(ip)))
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{"error": "rate limit exceeded"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "failed to read body"})
		return
	}

	if endpoint.Secret != "" {
		signature := r.Header.Get(endpoint.SignatureHeader)
		if !verifySignature(string(body), signature, endpoint.Secret, endpoint.SignatureAlgorithm) {
			s.count(endpoint.Path, "bad_signature")
			s.logger.Warn().Str("path", endpoint.Path).Str("ip", ip).Msg("Webhook signature rejected")
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"error": "invalid signature"})
			return
		}
	}

	payload := map[string]interface{}{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			// Non-JSON payloads pass through as raw text.
			payload = map[string]interface{}{"raw": string(body)}
		}
	}

	deliveryID, err := gonanoid.New()
	if err != nil {
		deliveryID = "unknown"
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.options.HandlerTimeout)
	defer cancel()

	response, err := endpoint.Handler(ctx, payload)
	if err != nil {
		s.count(endpoint.Path, "error")
		s.logger.Error().Str("path", endpoint.Path).Str("delivery", deliveryID).Err(err).Msg("Webhook handler failed")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":       err.Error(),
			"delivery_id": deliveryID,
		})
		return
	}

	s.count(endpoint.Path, "ok")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":          true,
		"response":    response,
		"delivery_id": deliveryID,
	})
}

func (s *Server) count(path, status string) {
	if s.metrics != nil {
		s.metrics.WebhookDeliveriesTotal.WithLabelValues(path, status).Inc()
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
