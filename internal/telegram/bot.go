package telegram

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/harun/orkestra/internal/config"
	"github.com/harun/orkestra/internal/metrics"
)

// Pipeline is the request entry point the bot feeds messages into.
type Pipeline interface {
	Process(ctx context.Context, message, source string, stream bool) <-chan string
}

// CostReporter reports accumulated spend for the /cost command.
type CostReporter interface {
	DailyTotal() (float64, error)
	MonthlyTotal() (float64, error)
}

// botAPI is the slice of tgbotapi.BotAPI the bot uses. Tests provide
// a fake.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot bridges Telegram chats into the request pipeline.
type Bot struct {
	api       botAPI
	config    *config.TelegramConfig
	pipeline  Pipeline
	costs     CostReporter
	memory    FactStore
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	streaming *Streaming
	commands  *Commands

	mu      sync.Mutex
	running bool
	updates tgbotapi.UpdatesChannel
}

// FactStore persists facts for the /remember command.
type FactStore interface {
	AddFact(ctx context.Context, text string, metadata map[string]interface{}) (string, error)
}

// Config holds bot dependencies.
type Config struct {
	Telegram *config.TelegramConfig
	Pipeline Pipeline
	Costs    CostReporter
	Memory   FactStore
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// New creates a Telegram bot instance. It authenticates against the
// Telegram API immediately.
func New(cfg Config) (*Bot, error) {
	if cfg.Telegram == nil {
		return nil, fmt.Errorf("telegram config is required")
	}
	if cfg.Telegram.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot := newBot(api, cfg)
	bot.logger.Info().
		Str("username", api.Self.UserName).
		Int64("id", api.Self.ID).
		Msg("Telegram bot authenticated")

	return bot, nil
}

func newBot(api botAPI, cfg Config) *Bot {
	bot := &Bot{
		api:      api,
		config:   cfg.Telegram,
		pipeline: cfg.Pipeline,
		costs:    cfg.Costs,
		memory:   cfg.Memory,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger.With().Str("module", "telegram").Logger(),
	}
	bot.streaming = NewStreaming(bot)
	bot.commands = NewCommands(bot)
	return bot
}

// Start begins processing updates.
func (b *Bot) Start() error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return fmt.Errorf("bot is already running")
	}
	b.running = true
	b.mu.Unlock()

	b.logger.Info().Msg("Starting Telegram bot")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	b.updates = b.api.GetUpdatesChan(u)

	go b.processUpdates()

	return nil
}

// Stop stops the bot.
func (b *Bot) Stop() error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return fmt.Errorf("bot is not running")
	}
	b.running = false
	b.mu.Unlock()

	b.logger.Info().Msg("Stopping Telegram bot")
	b.api.StopReceivingUpdates()
	return nil
}

// IsRunning returns whether the bot is running.
func (b *Bot) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *Bot) processUpdates() {
	for update := range b.updates {
		if !b.IsRunning() {
			break
		}
		if err := b.handleUpdate(update); err != nil {
			b.logger.Error().
				Err(err).
				Int("update_id", update.UpdateID).
				Msg("Failed to handle update")
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) error {
	if update.Message == nil || update.Message.Text == "" {
		return nil
	}
	msg := update.Message

	if !b.allowed(msg.Chat.ID) {
		b.logger.Warn().Int64("chat_id", msg.Chat.ID).Msg("Message from chat outside allowlist dropped")
		return nil
	}

	if b.metrics != nil {
		b.metrics.TelegramMessagesTotal.Inc()
	}

	if msg.IsCommand() {
		return b.commands.Handle(msg)
	}
	return b.handleMessage(msg)
}

// allowed reports whether a chat may talk to the bot. An empty
// allowlist means open access.
func (b *Bot) allowed(chatID int64) bool {
	if len(b.config.Allowlist) == 0 {
		return true
	}
	for _, id := range b.config.Allowlist {
		if id == chatID {
			return true
		}
	}
	return false
}

// handleMessage runs a chat message through the pipeline, streaming
// the reply as message edits.
func (b *Bot) handleMessage(msg *tgbotapi.Message) error {
	source := fmt.Sprintf("telegram:%d", msg.Chat.ID)
	b.logger.Debug().Str("source", source).Msg("Processing chat message")

	stream, err := b.streaming.StartStream(msg.Chat.ID, "...")
	if err != nil {
		return err
	}

	for token := range b.pipeline.Process(context.Background(), msg.Text, source, true) {
		if err := b.streaming.AppendChunk(stream, token); err != nil {
			b.logger.Warn().Err(err).Msg("Failed to update streamed message")
		}
	}

	return b.streaming.FinishStream(stream)
}

// SendMessage sends a plain text message.
func (b *Bot) SendMessage(chatID int64, text string) error {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
