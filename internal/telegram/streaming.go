package telegram

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// editInterval caps message edits per chat. Telegram throttles bots
// that edit more often.
const editInterval = time.Second

// Streaming renders a pipeline token stream as progressive edits of
// one Telegram message.
type Streaming struct {
	bot    *Bot
	logger zerolog.Logger

	lastEdit map[int64]time.Time
	mu       sync.Mutex
}

// Stream is one in-flight streamed reply.
type Stream struct {
	ChatID    int64
	MessageID int
	content   strings.Builder
	sent      string
	mu        sync.Mutex
}

// NewStreaming creates a streaming handler.
func NewStreaming(bot *Bot) *Streaming {
	return &Streaming{
		bot:      bot,
		logger:   bot.logger.With().Str("module", "streaming").Logger(),
		lastEdit: make(map[int64]time.Time),
	}
}

// StartStream sends the placeholder message the reply streams into.
func (s *Streaming) StartStream(chatID int64, placeholder string) (*Stream, error) {
	sent, err := s.bot.api.Send(tgbotapi.NewMessage(chatID, placeholder))
	if err != nil {
		return nil, fmt.Errorf("failed to send initial message: %w", err)
	}

	s.logger.Debug().
		Int64("chat_id", chatID).
		Int("message_id", sent.MessageID).
		Msg("Stream started")

	return &Stream{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// AppendChunk accumulates a token and, rate limit permitting, edits
// the message to show the partial reply.
func (s *Streaming) AppendChunk(stream *Stream, chunk string) error {
	stream.mu.Lock()
	stream.content.WriteString(chunk)
	content := stream.content.String()
	stream.mu.Unlock()

	if !s.shouldEdit(stream.ChatID) {
		return nil
	}
	return s.edit(stream, content)
}

// FinishStream sends the final edit with the complete reply.
func (s *Streaming) FinishStream(stream *Stream) error {
	stream.mu.Lock()
	content := stream.content.String()
	stream.mu.Unlock()

	if content == "" {
		content = "(no response)"
	}
	err := s.edit(stream, content)

	s.logger.Debug().
		Int64("chat_id", stream.ChatID).
		Int("message_id", stream.MessageID).
		Msg("Stream finished")

	return err
}

func (s *Streaming) edit(stream *Stream, content string) error {
	stream.mu.Lock()
	unchanged := stream.sent == content
	stream.mu.Unlock()
	if unchanged {
		return nil
	}

	edit := tgbotapi.NewEditMessageText(stream.ChatID, stream.MessageID, content)
	if _, err := s.bot.api.Send(edit); err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return fmt.Errorf("failed to update message: %w", err)
	}

	stream.mu.Lock()
	stream.sent = content
	stream.mu.Unlock()

	s.mu.Lock()
	s.lastEdit[stream.ChatID] = time.Now()
	s.mu.Unlock()

	return nil
}

func (s *Streaming) shouldEdit(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.lastEdit[chatID]
	if !ok {
		return true
	}
	return time.Since(last) >= editInterval
}
