package logger

import (
	"time"

	"github.com/rs/zerolog"
)

// LogEventAdapter adapts zerolog events to LogEvent, filtering sensitive values.
type LogEventAdapter struct {
	event  *zerolog.Event
	filter *SensitiveDataFilter
}

func (a *LogEventAdapter) with(e *zerolog.Event) LogEvent {
	return &LogEventAdapter{event: e, filter: a.filter}
}

// Msg writes the entry
func (a *LogEventAdapter) Msg(msg string) { a.event.Msg(msg) }

// Msgf writes the entry with a formatted message
func (a *LogEventAdapter) Msgf(format string, args ...any) { a.event.Msgf(format, args...) }

func (a *LogEventAdapter) Err(err error) LogEvent { return a.with(a.event.Err(err)) }

func (a *LogEventAdapter) Str(key, value string) LogEvent {
	if a.filter != nil {
		value = a.filter.FilterString(key, value)
	}
	return a.with(a.event.Str(key, value))
}

func (a *LogEventAdapter) Int(key string, value int) LogEvent {
	return a.with(a.event.Int(key, value))
}

func (a *LogEventAdapter) Int64(key string, value int64) LogEvent {
	return a.with(a.event.Int64(key, value))
}

func (a *LogEventAdapter) Bool(key string, value bool) LogEvent {
	return a.with(a.event.Bool(key, value))
}

func (a *LogEventAdapter) Dur(key string, d time.Duration) LogEvent {
	return a.with(a.event.Dur(key, d))
}

func (a *LogEventAdapter) Interface(key string, i any) LogEvent {
	if a.filter != nil {
		i = a.filter.FilterValue(key, i)
	}
	return a.with(a.event.Interface(key, i))
}

func (a *LogEventAdapter) Bytes(key string, val []byte) LogEvent {
	if a.filter != nil && a.filter.isSensitiveField(key) {
		return a.with(a.event.Str(key, a.filter.config.MaskValue))
	}
	return a.with(a.event.Bytes(key, val))
}

// Debug creates a debug-level log event
func (l *ZeroLogger) Debug() LogEvent {
	return &LogEventAdapter{event: l.zlog.Debug(), filter: l.filter}
}

// Info creates an info-level log event
func (l *ZeroLogger) Info() LogEvent {
	return &LogEventAdapter{event: l.zlog.Info(), filter: l.filter}
}

// Warn creates a warning-level log event
func (l *ZeroLogger) Warn() LogEvent {
	return &LogEventAdapter{event: l.zlog.Warn(), filter: l.filter}
}

// Error creates an error-level log event
func (l *ZeroLogger) Error() LogEvent {
	return &LogEventAdapter{event: l.zlog.Error(), filter: l.filter}
}

// Fatal creates a fatal-level log event. Sending it exits the process.
func (l *ZeroLogger) Fatal() LogEvent {
	return &LogEventAdapter{event: l.zlog.Fatal(), filter: l.filter}
}
