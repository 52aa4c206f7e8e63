package notify

import "sync/atomic"

// ChannelSink buffers notifications on a channel for a UI loop to consume.
// When the buffer is full new notifications are dropped rather than blocking
// the request that produced them.
type ChannelSink struct {
	ch      chan Notification
	dropped atomic.Int64
}

// NewChannelSink creates a sink with the given buffer size (minimum 1)
func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSink{ch: make(chan Notification, buffer)}
}

func (s *ChannelSink) Push(n Notification) {
	select {
	case s.ch <- n:
	default:
		s.dropped.Add(1)
	}
}

// C returns the receive side of the buffer
func (s *ChannelSink) C() <-chan Notification { return s.ch }

// Dropped counts notifications lost to a full buffer
func (s *ChannelSink) Dropped() int64 { return s.dropped.Load() }

// Drain returns everything currently buffered without blocking.
func (s *ChannelSink) Drain() []Notification {
	var out []Notification
	for {
		select {
		case n := <-s.ch:
			out = append(out, n)
		default:
			return out
		}
	}
}
