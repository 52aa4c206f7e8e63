package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gaborage/finbricks/logger"
)

const (
	defaultAMQPBuffer  = 32
	amqpPublishTimeout = 5 * time.Second
)

// Publisher is the subset of *amqp.Channel the sink publishes through.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPOptions configures an AMQPSink
type AMQPOptions struct {
	Exchange   string
	RoutingKey string
	// Buffer bounds pending publishes; overflow is dropped and logged
	Buffer int
}

type amqpMessage struct {
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// AMQPSink publishes notifications as JSON to an exchange so a separate UI
// process can render them. Publishing happens on a background goroutine in
// Push order.
type AMQPSink struct {
	pub  Publisher
	opts AMQPOptions
	log  logger.Logger
	now  func() time.Time

	// mu orders Push against Close so nothing is queued after the drain.
	mu      sync.RWMutex
	closed  bool
	queue   chan Notification
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	closers []func() error
}

// NewAMQPSink starts a sink publishing through pub. Call Close to flush.
func NewAMQPSink(pub Publisher, opts AMQPOptions, log logger.Logger) *AMQPSink {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultAMQPBuffer
	}
	if log == nil {
		log = logger.Nop()
	}
	s := &AMQPSink{
		pub:     pub,
		opts:    opts,
		log:     log.WithFields(map[string]any{"component": "notify", "exchange": opts.Exchange}),
		now:     time.Now,
		queue:   make(chan Notification, opts.Buffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.run()
	return s
}

// DialAMQP connects to the broker, declares the exchange as a durable topic
// exchange and returns a sink owning the connection.
func DialAMQP(url string, opts AMQPOptions, log logger.Logger) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(opts.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", opts.Exchange, err)
	}
	s := NewAMQPSink(ch, opts, log)
	s.closers = []func() error{ch.Close, conn.Close}
	return s, nil
}

func (s *AMQPSink) Push(n Notification) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.log.Warn().Str("notification", n.Message).Msg("Notification sink closed, dropping")
		return
	}
	select {
	case s.queue <- n:
	default:
		s.log.Warn().Str("notification", n.Message).Msg("Notification buffer full, dropping")
	}
}

func (s *AMQPSink) run() {
	defer close(s.stopped)
	for {
		select {
		case n := <-s.queue:
			s.publish(n)
		case <-s.done:
			for {
				select {
				case n := <-s.queue:
					s.publish(n)
				default:
					return
				}
			}
		}
	}
}

func (s *AMQPSink) publish(n Notification) {
	body, err := json.Marshal(amqpMessage{Message: n.Message, Severity: n.Severity, Timestamp: s.now().UTC()})
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to encode notification")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), amqpPublishTimeout)
	defer cancel()

	err = s.pub.PublishWithContext(ctx, s.opts.Exchange, s.opts.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		MessageId:    uuid.New().String(),
		Timestamp:    s.now(),
		Type:         string(n.Severity),
		Body:         body,
	})
	if err != nil {
		s.log.Error().Err(err).Str("routing_key", s.opts.RoutingKey).Msg("Failed to publish notification")
	}
}

// Close stops accepting notifications, publishes what is queued and closes
// the broker connection when the sink owns one.
func (s *AMQPSink) Close() error {
	var errs []error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.done)
		s.mu.Unlock()
		<-s.stopped
		for _, c := range s.closers {
			errs = append(errs, c())
		}
	})
	return errors.Join(errs...)
}
