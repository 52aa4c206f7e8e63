package notify

import "github.com/gaborage/finbricks/logger"

// LogSink writes notifications to a logger, mapping severity to log level.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates a sink that logs through log
func NewLogSink(log logger.Logger) *LogSink {
	if log == nil {
		log = logger.Nop()
	}
	return &LogSink{log: log.WithFields(map[string]any{"component": "notify"})}
}

func (s *LogSink) Push(n Notification) {
	var ev logger.LogEvent
	switch n.Severity {
	case SeverityError:
		ev = s.log.Error()
	case SeverityWarning:
		ev = s.log.Warn()
	default:
		ev = s.log.Info()
	}
	ev.Str("severity", string(n.Severity)).Msg(n.Message)
}
