package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"deskhealth/internal/config"
	"deskhealth/internal/logger"
	"deskhealth/internal/metrics"
	"deskhealth/internal/models"
)

// Producer errors
var (
	ErrProducerClosed  = errors.New("producer is closed")
	ErrSerializeFailed = errors.New("failed to serialize message")
	ErrUnhealthy       = errors.New("no kafka broker reachable")
)

// MessageWriter is the part of kafka.Writer the producer uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Stats() kafka.WriterStats
	Close() error
}

// Producer mirrors feed envelopes to a Kafka topic as JSON. Each envelope
// is written once; delivery failures are reported, not retried.
type Producer struct {
	topic         string
	brokers       []string
	healthTimeout time.Duration
	writer        MessageWriter
	closed        atomic.Bool

	// Metrics
	messagesSent   atomic.Uint64
	messagesFailed atomic.Uint64
	bytesWritten   atomic.Uint64
}

// ProducerOption is a functional option for configuring the producer
type ProducerOption func(*Producer)

// WithWriter replaces the kafka.Writer, mainly for tests
func WithWriter(w MessageWriter) ProducerOption {
	return func(p *Producer) { p.writer = w }
}

// NewProducer creates a new Kafka producer with the given configuration
func NewProducer(cfg config.KafkaConfig, opts ...ProducerOption) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}

	if cfg.Topic == "" {
		return nil, errors.New("topic is required")
	}

	p := &Producer{
		topic:         cfg.Topic,
		brokers:       cfg.Brokers,
		healthTimeout: cfg.WriteTimeout,
	}
	if p.healthTimeout <= 0 {
		p.healthTimeout = 5 * time.Second
	}

	// Apply options
	for _, opt := range opts {
		opt(p)
	}

	if p.writer == nil {
		p.writer = &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{}, // Partition by key
			BatchSize:              1,
			WriteTimeout:           cfg.WriteTimeout,
			RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
			Compression:            getCompression(cfg.Compression),
			MaxAttempts:            1,
			AllowAutoTopicCreation: true,
		}
	}

	log := logger.WithComponent("kafka_producer")
	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("kafka mirror initialized")

	return p, nil
}

// getCompression returns the kafka compression codec
func getCompression(name string) compress.Compression {
	switch name {
	case "gzip":
		return compress.Gzip
	case "snappy":
		return compress.Snappy
	case "lz4":
		return compress.Lz4
	case "zstd":
		return compress.Zstd
	default:
		return compress.None // no compression
	}
}

// Name identifies the sink in logs and metrics
func (p *Producer) Name() string { return "kafka" }

// Publish writes an envelope to Kafka
func (p *Producer) Publish(ctx context.Context, envelope *models.Envelope) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	// Serialize envelope to JSON
	data, err := json.Marshal(envelope)
	if err != nil {
		p.messagesFailed.Add(1)
		return fmt.Errorf("%w: %v", ErrSerializeFailed, err)
	}

	msg := kafka.Message{
		Key:   []byte(envelope.PartitionKey), // Partition by device
		Value: data,
		Headers: []kafka.Header{
			{Key: "feed", Value: []byte(envelope.Feed)},
			{Key: "device_id", Value: []byte(envelope.DeviceID)},
			{Key: "tick_id", Value: []byte(envelope.TickID)},
		},
		Time: envelope.CreatedAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.messagesFailed.Add(1)
		return fmt.Errorf("kafka write %s: %w", envelope.Feed, err)
	}

	p.messagesSent.Add(1)
	p.bytesWritten.Add(uint64(len(data)))
	metrics.MirrorBytesWritten.Add(float64(len(data)))
	return nil
}

// Close closes the writer
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil // Already closed
	}
	return p.writer.Close()
}

// Stats returns producer statistics
func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		MessagesSent:   p.messagesSent.Load(),
		MessagesFailed: p.messagesFailed.Load(),
		BytesWritten:   p.bytesWritten.Load(),
	}
}

// ProducerStats holds producer metrics
type ProducerStats struct {
	MessagesSent   uint64 `json:"messages_sent"`
	MessagesFailed uint64 `json:"messages_failed"`
	BytesWritten   uint64 `json:"bytes_written"`
}

// HealthCheck dials the brokers in turn and reads the mirror topic's
// partitions. An unknown topic still counts as healthy since the writer
// creates it on first write.
func (p *Producer) HealthCheck(ctx context.Context) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	ctx, cancel := context.WithTimeout(ctx, p.healthTimeout)
	defer cancel()

	var lastErr error
	for _, broker := range p.brokers {
		if lastErr = p.probeBroker(ctx, broker); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%w: %v", ErrUnhealthy, lastErr)
}

func (p *Producer) probeBroker(ctx context.Context, broker string) error {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	if _, err := conn.ReadPartitions(p.topic); err != nil && !errors.Is(err, kafka.UnknownTopicOrPartition) {
		return err
	}
	return nil
}
