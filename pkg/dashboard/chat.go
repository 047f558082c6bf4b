package dashboard

import (
	"net/http"

	"github.com/gorilla/websocket"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatEvent struct {
	Type string `json:"type"` // "token", "done", "error"
	Text string `json:"text,omitempty"`
}

// handleChat upgrades the connection and runs a message loop: each
// inbound frame is one chat message, answered as a stream of token
// frames terminated by a done frame.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}
	defer conn.Close()

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.DashboardSessionsActive.Inc()
		defer s.cfg.Metrics.DashboardSessionsActive.Dec()
	}

	s.logger.Info().Str("ip", r.RemoteAddr).Msg("Chat client connected")

	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error().Err(err).Msg("WebSocket error")
			}
			return
		}
		if req.Message == "" {
			if err := conn.WriteJSON(chatEvent{Type: "error", Text: "message is required"}); err != nil {
				return
			}
			continue
		}

		for token := range s.cfg.Pipeline.Process(r.Context(), req.Message, "dashboard", true) {
			if err := conn.WriteJSON(chatEvent{Type: "token", Text: token}); err != nil {
				s.logger.Error().Err(err).Msg("Failed to send chat token")
				return
			}
		}
		if err := conn.WriteJSON(chatEvent{Type: "done"}); err != nil {
			return
		}
	}
}
