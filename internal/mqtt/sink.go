package mqtt

import (
	"context"

	"deskhealth/internal/models"
)

// FeedPublisher is the publish half of a broker connection
type FeedPublisher interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte) error
}

// Sink publishes envelopes to their feed topic
type Sink struct {
	conn   FeedPublisher
	topics Topics
}

// NewSink creates a sink writing through conn
func NewSink(conn FeedPublisher, topics Topics) *Sink {
	return &Sink{conn: conn, topics: topics}
}

// Name identifies the sink in logs and metrics
func (s *Sink) Name() string { return "mqtt" }

// Publish sends the envelope payload as-is to its feed topic
func (s *Sink) Publish(ctx context.Context, envelope *models.Envelope) error {
	return s.conn.Publish(ctx, s.topics.Feed(envelope.Feed), []byte(envelope.Payload), envelope.QoS)
}
