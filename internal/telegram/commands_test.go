package telegram

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCosts struct {
	daily, monthly float64
}

func (f *fakeCosts) DailyTotal() (float64, error)   { return f.daily, nil }
func (f *fakeCosts) MonthlyTotal() (float64, error) { return f.monthly, nil }

type fakeFacts struct {
	lastText string
}

func (f *fakeFacts) AddFact(_ context.Context, text string, _ map[string]interface{}) (string, error) {
	f.lastText = text
	return "fact_abc123", nil
}

func commandMessage(chatID int64, text string) *tgbotapi.Message {
	msg := chatMessage(chatID, text)
	cmdLen := len(text)
	for i, r := range text {
		if r == ' ' {
			cmdLen = i
			break
		}
	}
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}}
	return msg
}

func lastMessageText(t *testing.T, api *fakeAPI) string {
	t.Helper()
	sent := api.messages()
	require.NotEmpty(t, sent)
	msg, ok := sent[len(sent)-1].(tgbotapi.MessageConfig)
	require.True(t, ok)
	return msg.Text
}

func TestCostCommand(t *testing.T) {
	bot, api, _ := createTestBot(t, func(cfg *Config) {
		cfg.Costs = &fakeCosts{daily: 0.1234, monthly: 2.5}
	})

	require.NoError(t, bot.handleUpdate(tgbotapi.Update{Message: commandMessage(42, "/cost")}))

	text := lastMessageText(t, api)
	assert.Contains(t, text, "$0.1234")
	assert.Contains(t, text, "$2.5000")
}

func TestRememberCommand(t *testing.T) {
	facts := &fakeFacts{}
	bot, api, _ := createTestBot(t, func(cfg *Config) { cfg.Memory = facts })

	require.NoError(t, bot.handleUpdate(tgbotapi.Update{Message: commandMessage(42, "/remember likes short answers")}))

	assert.Equal(t, "likes short answers", facts.lastText)
	assert.Contains(t, lastMessageText(t, api), "fact_abc123")
}

func TestRememberCommandWithoutArgs(t *testing.T) {
	bot, api, _ := createTestBot(t, func(cfg *Config) { cfg.Memory = &fakeFacts{} })

	require.NoError(t, bot.handleUpdate(tgbotapi.Update{Message: commandMessage(42, "/remember")}))
	assert.Contains(t, lastMessageText(t, api), "Usage")
}

func TestUnknownCommand(t *testing.T) {
	bot, api, _ := createTestBot(t, nil)

	require.NoError(t, bot.handleUpdate(tgbotapi.Update{Message: commandMessage(42, "/bogus")}))
	assert.Contains(t, lastMessageText(t, api), "Unknown command")
}

func TestStartCommand(t *testing.T) {
	bot, api, _ := createTestBot(t, nil)

	require.NoError(t, bot.handleUpdate(tgbotapi.Update{Message: commandMessage(42, "/start")}))
	assert.Contains(t, lastMessageText(t, api), "/cost")
}
