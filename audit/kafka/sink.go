package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/segmentio/kafka-go"
)

// Writer is the subset of *kafka.Writer used by Sink.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config configures NewSink.
type Config struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with small batches for low audit latency.
func DefaultConfig(brokers []string, topic string) Config {
	return Config{
		Brokers:      brokers,
		Topic:        topic,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}

// Sink writes one Kafka message per audit event. Messages are keyed by chain
// id, falling back to the subject, so events of one chain stay ordered within
// a partition.
type Sink struct {
	writer       Writer
	logger       *slog.Logger
	writeTimeout time.Duration
	failed       atomic.Uint64
}

var _ goSession.AuditSink = (*Sink)(nil)

var errNoBrokers = errors.New("kafka audit sink: no brokers configured")

// NewSink builds a Sink backed by a kafka.Writer.
func NewSink(cfg Config, logger *slog.Logger) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errNoBrokers
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka audit sink: topic is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return NewSinkWithWriter(w, cfg.WriteTimeout, logger), nil
}

// NewSinkWithWriter wraps an existing writer. A zero timeout means the
// caller's context alone bounds each write.
func NewSinkWithWriter(w Writer, writeTimeout time.Duration, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{writer: w, logger: logger, writeTimeout: writeTimeout}
}

// Emit publishes event. Failures are logged and counted, never returned.
func (s *Sink) Emit(ctx context.Context, event goSession.AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	msg, err := encode(event)
	if err != nil {
		s.failed.Add(1)
		s.logger.ErrorContext(ctx, "kafka audit sink: encode failed", "event_type", event.EventType, "error", err)
		return
	}

	if s.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
		defer cancel()
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.failed.Add(1)
		s.logger.ErrorContext(ctx, "kafka audit sink: publish failed",
			slog.String("event_type", event.EventType),
			slog.String("error", err.Error()),
		)
	}
}

// Failed reports how many events could not be published.
func (s *Sink) Failed() uint64 {
	if s == nil {
		return 0
	}
	return s.failed.Load()
}

// Close flushes and closes the writer.
func (s *Sink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

func encode(event goSession.AuditEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	key := event.ChainID
	if key == "" {
		key = event.Subject
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "success", Value: []byte(strconv.FormatBool(event.Success))},
		},
	}, nil
}
