// Package notify delivers user-facing notifications (toasts) produced by the
// API client. Sinks are fire-and-forget: Push never blocks the caller on
// delivery and never returns an error.
package notify

// Severity ranks a notification for display
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Notification is a message shown to the user.
type Notification struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Sink receives notifications.
type Sink interface {
	Push(n Notification)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Notification)

func (f SinkFunc) Push(n Notification) { f(n) }

type multiSink []Sink

// Multi fans every notification out to all sinks in order. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSink) Push(n Notification) {
	for _, s := range m {
		s.Push(n)
	}
}

// Discard drops every notification
var Discard Sink = SinkFunc(func(Notification) {})
