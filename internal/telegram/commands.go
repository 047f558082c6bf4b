package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Commands handles bot commands.
type Commands struct {
	bot      *Bot
	logger   zerolog.Logger
	handlers map[string]CommandFunc
}

// CommandFunc is a function that handles a command.
type CommandFunc func(CommandContext) error

// CommandContext carries command metadata.
type CommandContext struct {
	ChatID  int64
	Command string
	Args    string
}

// NewCommands creates the command handler with the built-in commands
// registered.
func NewCommands(bot *Bot) *Commands {
	c := &Commands{
		bot:      bot,
		logger:   bot.logger.With().Str("module", "commands").Logger(),
		handlers: make(map[string]CommandFunc),
	}
	c.Register("start", c.handleStart)
	c.Register("cost", c.handleCost)
	c.Register("remember", c.handleRemember)
	return c
}

// Register registers a command handler.
func (c *Commands) Register(command string, handler CommandFunc) {
	c.handlers[command] = handler
}

// Handle dispatches a command message.
func (c *Commands) Handle(msg *tgbotapi.Message) error {
	ctx := CommandContext{
		ChatID:  msg.Chat.ID,
		Command: msg.Command(),
		Args:    strings.TrimSpace(msg.CommandArguments()),
	}

	c.logger.Debug().
		Int64("chat_id", ctx.ChatID).
		Str("command", ctx.Command).
		Msg("Command received")

	handler, ok := c.handlers[ctx.Command]
	if !ok {
		return c.bot.SendMessage(ctx.ChatID, fmt.Sprintf("Unknown command: /%s", ctx.Command))
	}
	return handler(ctx)
}

func (c *Commands) handleStart(ctx CommandContext) error {
	return c.bot.SendMessage(ctx.ChatID,
		"Hi! Send me a message and I will route it through the assistant.\n"+
			"Commands: /cost shows today's spend, /remember <fact> stores a fact.")
}

func (c *Commands) handleCost(ctx CommandContext) error {
	if c.bot.costs == nil {
		return c.bot.SendMessage(ctx.ChatID, "Cost tracking is not available.")
	}

	daily, err := c.bot.costs.DailyTotal()
	if err != nil {
		return c.bot.SendMessage(ctx.ChatID, fmt.Sprintf("Error: %v", err))
	}
	monthly, err := c.bot.costs.MonthlyTotal()
	if err != nil {
		return c.bot.SendMessage(ctx.ChatID, fmt.Sprintf("Error: %v", err))
	}

	return c.bot.SendMessage(ctx.ChatID,
		fmt.Sprintf("Spend today: $%.4f\nSpend this month: $%.4f", daily, monthly))
}

func (c *Commands) handleRemember(ctx CommandContext) error {
	if c.bot.memory == nil {
		return c.bot.SendMessage(ctx.ChatID, "Memory is not available.")
	}
	if ctx.Args == "" {
		return c.bot.SendMessage(ctx.ChatID, "Usage: /remember <fact>")
	}

	id, err := c.bot.memory.AddFact(context.Background(), ctx.Args, map[string]interface{}{
		"source": fmt.Sprintf("telegram:%d", ctx.ChatID),
	})
	if err != nil {
		return c.bot.SendMessage(ctx.ChatID, fmt.Sprintf("Failed to store fact: %v", err))
	}
	return c.bot.SendMessage(ctx.ChatID, fmt.Sprintf("Remembered (%s).", id))
}
