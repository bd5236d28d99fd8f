package telegram

import (
	"errors"
	"testing"
	"time"

	"quant-platform/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

type recordingBot struct {
	to   []telebot.Recipient
	msgs []string
	err  error
}

func (b *recordingBot) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.to = append(b.to, to)
	b.msgs = append(b.msgs, what.(string))
	return &telebot.Message{}, nil
}

func TestNotifier_SendAlert(t *testing.T) {
	bot := &recordingBot{}
	n := newNotifier(&config.TelegramConfig{ChatID: -100123, MaxAlertPerMin: 2, TimeoutDuration: 20 * time.Millisecond}, bot)

	require.NoError(t, n.SendAlert("first"))
	require.NoError(t, n.SendAlert("second"))
	assert.ErrorIs(t, n.SendAlert("third"), ErrAlertRateLimited)

	assert.Equal(t, []string{"first", "second"}, bot.msgs)
	assert.Equal(t, "-100123", bot.to[0].Recipient())
}

func TestNotifier_SendError(t *testing.T) {
	bot := &recordingBot{err: errors.New("chat not found")}
	n := newNotifier(&config.TelegramConfig{ChatID: 1}, bot)

	assert.ErrorContains(t, n.SendAlert("x"), "chat not found")
}
