// Package mqtt provides the broker connection used to publish feed values
// and receive mode control messages.
//
// Subscriptions are remembered and re-established whenever paho
// reconnects, since the session is clean.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"deskhealth/internal/logger"
)

// Client errors
var (
	ErrConnect        = errors.New("mqtt connect failed")
	ErrPublish        = errors.New("mqtt publish failed")
	ErrPublishTimeout = errors.New("mqtt publish timeout")
	ErrSubscribe      = errors.New("mqtt subscribe failed")
	ErrClosed         = errors.New("mqtt client is closed")
)

// Handler receives a message delivered on a subscribed topic
type Handler func(topic string, payload []byte)

// Options configures a broker connection
type Options struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

type subscription struct {
	qos     byte
	handler Handler
}

// Client is a connected MQTT client
type Client struct {
	conn           paho.Client
	publishTimeout time.Duration
	closed         atomic.Bool

	mu   sync.Mutex
	subs map[string]subscription
}

// Connect dials the broker and blocks until the connection is up, the
// connect timeout passes, or ctx is done.
func Connect(ctx context.Context, o Options) (*Client, error) {
	log := logger.WithComponent("mqtt")

	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 5 * time.Second
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}

	c := &Client{
		publishTimeout: o.PublishTimeout,
		subs:           make(map[string]subscription),
	}

	opts := paho.NewClientOptions().
		AddBroker(o.BrokerURL).
		SetClientID(o.ClientID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetKeepAlive(o.KeepAlive).
		SetConnectTimeout(o.ConnectTimeout).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Msg("mqtt connection lost")
		})

	c.conn = paho.NewClient(opts)

	token := c.conn.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		c.conn.Disconnect(0)
		return nil, fmt.Errorf("%w: %v", ErrConnect, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, o.BrokerURL, err)
	}

	log.Info().
		Str("broker", o.BrokerURL).
		Str("client_id", o.ClientID).
		Msg("mqtt connected")
	return c, nil
}

// onConnect restores subscriptions after an automatic reconnect
func (c *Client) onConnect(conn paho.Client) {
	log := logger.WithComponent("mqtt")

	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, s := range c.subs {
		subs[topic] = s
	}
	c.mu.Unlock()

	for topic, s := range subs {
		token := conn.Subscribe(topic, s.qos, wrap(s.handler))
		go func(topic string, token paho.Token) {
			switch {
			case !token.WaitTimeout(c.publishTimeout):
				log.Warn().Str("topic", topic).Msg("resubscribe timed out")
			case token.Error() != nil:
				log.Error().Err(token.Error()).Str("topic", topic).Msg("resubscribe failed")
			default:
				log.Info().Str("topic", topic).Msg("resubscribed")
			}
		}(topic, token)
	}
}

// Publish sends payload to topic and waits for the broker to take it, at
// most the publish timeout or until ctx is done. Failures are not retried.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos byte) error {
	if c.closed.Load() {
		return ErrClosed
	}

	timer := time.NewTimer(c.publishTimeout)
	defer timer.Stop()

	token := c.conn.Publish(topic, qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", ErrPublish, topic, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: %w: %s after %s", ErrPublish, ErrPublishTimeout, topic, c.publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPublish, topic, err)
	}
	return nil
}

// Subscribe registers handler for topic. The handler runs on paho's
// delivery goroutine.
func (c *Client) Subscribe(topic string, qos byte, handler Handler) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	token := c.conn.Subscribe(topic, qos, wrap(handler))
	if !token.WaitTimeout(c.publishTimeout) {
		c.forget(topic)
		return fmt.Errorf("%w: %s: timeout", ErrSubscribe, topic)
	}
	if err := token.Error(); err != nil {
		c.forget(topic)
		return fmt.Errorf("%w: %s: %v", ErrSubscribe, topic, err)
	}

	log := logger.WithComponent("mqtt")
	log.Info().Str("topic", topic).Msg("subscribed")
	return nil
}

// Unsubscribe removes the subscription for topic
func (c *Client) Unsubscribe(topic string) error {
	c.forget(topic)

	if c.closed.Load() {
		return ErrClosed
	}

	token := c.conn.Unsubscribe(topic)
	if !token.WaitTimeout(c.publishTimeout) {
		return fmt.Errorf("unsubscribe %s: timeout", topic)
	}
	return token.Error()
}

// forget drops topic from the set restored on reconnect
func (c *Client) forget(topic string) {
	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()
}

// Subscriptions lists the topics restored on reconnect
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	topics := make([]string, 0, len(c.subs))
	for topic := range c.subs {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// IsConnected reports whether the broker connection is currently up
func (c *Client) IsConnected() bool {
	return !c.closed.Load() && c.conn.IsConnectionOpen()
}

// Close disconnects from the broker. Safe to call more than once.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}
	c.conn.Disconnect(250)
	log := logger.WithComponent("mqtt")
	log.Info().Msg("mqtt disconnected")
	return nil
}

func wrap(h Handler) paho.MessageHandler {
	return func(_ paho.Client, m paho.Message) {
		payload := make([]byte, len(m.Payload()))
		copy(payload, m.Payload())
		h(m.Topic(), payload)
	}
}
