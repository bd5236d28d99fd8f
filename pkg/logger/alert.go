package logger

import (
	"fmt"
	"sort"
	"strings"

	"quant-platform/pkg/common"

	"go.uber.org/zap/zapcore"
)

// AlertSink receives formatted alert messages. Implementations must not
// log through the alerting logger or they will loop.
type AlertSink interface {
	SendAlert(message string) error
}

type AlertCore struct {
	core     zapcore.Core
	sink     AlertSink
	minLevel zapcore.Level
	fields   []zapcore.Field
}

func NewAlertCore(core zapcore.Core, sink AlertSink, minLevel zapcore.Level) *AlertCore {
	return &AlertCore{
		core:     core,
		sink:     sink,
		minLevel: minLevel,
	}
}

func (a *AlertCore) Enabled(lvl zapcore.Level) bool {
	return a.core.Enabled(lvl)
}

func (a *AlertCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(a.fields)+len(fields))
	merged = append(merged, a.fields...)
	merged = append(merged, fields...)
	return &AlertCore{
		core:     a.core.With(fields),
		sink:     a.sink,
		minLevel: a.minLevel,
		fields:   merged,
	}
}

func (a *AlertCore) Check(entry zapcore.Entry, checkedEntry *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if a.Enabled(entry.Level) {
		return checkedEntry.AddCore(entry, a)
	}
	return checkedEntry
}

func (a *AlertCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if entry.Level >= a.minLevel && shouldAlert(fields) {
		all := make([]zapcore.Field, 0, len(a.fields)+len(fields))
		all = append(all, a.fields...)
		all = append(all, fields...)
		message := FormatAlert(entry, all)
		go func() {
			_ = a.sink.SendAlert(message)
		}()
	}
	return a.core.Write(entry, fields)
}

func (a *AlertCore) Sync() error {
	return a.core.Sync()
}

func shouldAlert(fields []zapcore.Field) bool {
	for _, f := range fields {
		if f.Key == common.KEY_LOG_HOOK_SEND_ALERT && f.Type == zapcore.BoolType && f.Integer == 1 {
			return true
		}
	}
	return false
}

// FormatAlert renders an entry and its fields as a plain text alert.
func FormatAlert(entry zapcore.Entry, fields []zapcore.Field) string {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		if f.Key == common.KEY_LOG_HOOK_SEND_ALERT {
			continue
		}
		f.AddTo(enc)
	}

	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s\n", entry.Level.CapitalString(), entry.Message)
	for _, k := range keys {
		fmt.Fprintf(&sb, "- %s: %v\n", k, enc.Fields[k])
	}
	fmt.Fprintf(&sb, "time: %s", entry.Time.Format("2006-01-02 15:04:05"))
	return sb.String()
}
