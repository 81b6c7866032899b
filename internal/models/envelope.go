package models

import (
	"time"
)

// Feed names the channel a message belongs to
type Feed string

const (
	FeedTemperature Feed = "temperature"
	FeedHumidity    Feed = "humidity"
	FeedMoisture    Feed = "moisture"
	FeedDistance    Feed = "distance"
	FeedAlerts      Feed = "alerts"
	FeedMode        Feed = "mode"
)

// TelemetryFeeds lists the feeds written every tick, in publish order.
var TelemetryFeeds = []Feed{FeedTemperature, FeedHumidity, FeedMoisture, FeedDistance}

// Envelope wraps one outbound feed value with delivery metadata
type Envelope struct {
	// Feed the payload is published to
	Feed Feed `json:"feed"`

	// Raw feed value, e.g. "23.41" or an alert message
	Payload string `json:"payload"`

	// MQTT quality of service
	QoS byte `json:"qos"`

	// Internal metadata
	DeviceID     string    `json:"device_id"`
	CreatedAt    time.Time `json:"created_at"`
	TickID       string    `json:"tick_id,omitempty"`
	PartitionKey string    `json:"partition_key"`
}

// NewEnvelope creates an envelope for a feed value
func NewEnvelope(feed Feed, payload string, qos byte, deviceID string) *Envelope {
	return &Envelope{
		Feed:         feed,
		Payload:      payload,
		QoS:          qos,
		DeviceID:     deviceID,
		CreatedAt:    time.Now().UTC(),
		PartitionKey: deviceID, // partition by device for ordering
	}
}

// WithTick tags the envelope with the tick that produced it
func (e *Envelope) WithTick(tickID string) *Envelope {
	e.TickID = tickID
	return e
}
