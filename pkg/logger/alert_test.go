package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	mu       sync.Mutex
	messages []string
}

func (s *recordingSink) SendAlert(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	return nil
}

func (s *recordingSink) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

func TestAlertCore_OnlyFlaggedEntries(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := &recordingSink{}
	log := FromZap(zap.New(core)).WithAlertSink(sink, zapcore.ErrorLevel)

	log.Error("plain error")
	log.ErrorContextWithAlert(context.Background(), "job run failed",
		StringField("job_name", "daily_kospi"),
		ErrorField(errors.New("boom")),
	)

	require.Eventually(t, func() bool { return len(sink.Messages()) == 1 }, time.Second, 10*time.Millisecond)
	msg := sink.Messages()[0]
	assert.Contains(t, msg, "job run failed")
	assert.Contains(t, msg, "job_name: daily_kospi")
	assert.Contains(t, msg, "error: boom")
	assert.NotContains(t, msg, "send_alert")

	// Each entry is written once to the wrapped core.
	assert.Equal(t, 2, logs.Len())
}

func TestAlertCore_BelowMinLevel(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	sink := &recordingSink{}
	log := FromZap(zap.New(core)).WithAlertSink(sink, zapcore.ErrorLevel)

	log.Warn("flagged warning", AlertField())

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sink.Messages())
}

func TestAlertCore_WithFieldsCarried(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	sink := &recordingSink{}
	log := FromZap(zap.New(core)).WithAlertSink(sink, zapcore.ErrorLevel).With(StringField("run_id", "abc"))

	log.Error("failed", AlertField())

	require.Eventually(t, func() bool { return len(sink.Messages()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Contains(t, sink.Messages()[0], "run_id: abc")
}

func TestFromContext(t *testing.T) {
	base := FromZap(zap.NewNop())
	child := base.With(StringField("k", "v"))

	assert.Same(t, base, base.FromContext(context.Background()))
	assert.Same(t, child, base.FromContext(NewContext(context.Background(), child)))
}
