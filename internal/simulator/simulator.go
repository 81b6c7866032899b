package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"deskhealth/internal/alerts"
	"deskhealth/internal/config"
	"deskhealth/internal/handlers"
	"deskhealth/internal/kafka"
	"deskhealth/internal/logger"
	"deskhealth/internal/metrics"
	"deskhealth/internal/models"
	"deskhealth/internal/mqtt"
	"deskhealth/internal/sensor"
	"deskhealth/internal/state"
	"deskhealth/internal/websocket"
	"deskhealth/internal/worker"
)

// QoS levels used on the feeds
const (
	TelemetryQoS byte = 0
	AlertQoS     byte = 1
	ModeQoS      byte = 1
)

// Phase is the lifecycle state of the simulator
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseRunning      Phase = "running"
	PhaseShuttingDown Phase = "shutting_down"
	PhaseStopped      Phase = "stopped"
)

// ErrNotConnected is reported by Healthy before connect or after shutdown
var ErrNotConnected = errors.New("broker not connected")

// Messenger is the broker connection the simulator needs
type Messenger interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte) error
	Subscribe(topic string, qos byte, handler mqtt.Handler) error
	Unsubscribe(topic string) error
	IsConnected() bool
	Close() error
}

// Dialer opens the broker connection
type Dialer func(ctx context.Context, cfg *config.Config) (Messenger, error)

// ReadingSource produces one reading per tick
type ReadingSource interface {
	Next(now time.Time) models.Reading
}

// DialMQTT connects to the configured broker with paho
func DialMQTT(ctx context.Context, cfg *config.Config) (Messenger, error) {
	return mqtt.Connect(ctx, mqtt.Options{
		BrokerURL:      cfg.BrokerURL(),
		ClientID:       cfg.MQTT.ClientID,
		Username:       cfg.Account.Username,
		Password:       cfg.Account.Key,
		KeepAlive:      cfg.MQTT.KeepAlive,
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
		PublishTimeout: cfg.MQTT.PublishTimeout,
	})
}

// Simulator ties the sensor, rule evaluator and broker together.
type Simulator struct {
	cfg       *config.Config
	state     *state.State
	readings  ReadingSource
	evaluator *alerts.Evaluator
	topics    mqtt.Topics
	hub       *websocket.Hub
	dial      Dialer
	now       func() time.Time
	mirror    worker.Publisher

	// set during Run before any concurrent reader starts
	conn       Messenger
	dispatcher *worker.Dispatcher
	httpServer *http.Server

	phase atomic.Value // Phase
	ticks atomic.Uint64
	wg    sync.WaitGroup
}

// Option customizes a Simulator
type Option func(*Simulator)

// WithDialer replaces the MQTT dialer
func WithDialer(d Dialer) Option {
	return func(s *Simulator) { s.dial = d }
}

// WithReadingSource replaces the random sensor
func WithReadingSource(r ReadingSource) Option {
	return func(s *Simulator) { s.readings = r }
}

// WithRandSource seeds the random sensor
func WithRandSource(src rand.Source) Option {
	return func(s *Simulator) { s.readings = sensor.NewSimulator(src) }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithMirror adds a second sink next to MQTT, replacing the configured
// Kafka mirror
func WithMirror(p worker.Publisher) Option {
	return func(s *Simulator) { s.mirror = p }
}

// New constructs a Simulator with given config.
func New(cfg *config.Config, opts ...Option) *Simulator {
	s := &Simulator{
		cfg:    cfg,
		topics: mqtt.Topics{Namespace: cfg.Account.Username},
		hub:    websocket.NewHub(),
		dial:   DialMQTT,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.readings == nil {
		s.readings = sensor.NewSimulator(nil)
	}

	s.state = state.New(models.DefaultThresholds(), cfg.Sim.NotifyEnabled, s.now())
	s.evaluator = alerts.NewEvaluator(s.state)
	s.phase.Store(PhaseIdle)
	return s
}

// Phase reports the lifecycle state
func (s *Simulator) Phase() Phase {
	return s.phase.Load().(Phase)
}

// State exposes the shared threshold state
func (s *Simulator) State() *state.State {
	return s.state
}

// Run connects, subscribes to the mode feed and ticks until ctx is
// cancelled. The broker connection is released on every return path.
func (s *Simulator) Run(ctx context.Context) error {
	log := logger.WithComponent("simulator")
	s.phase.Store(PhaseRunning)
	defer s.phase.Store(PhaseStopped)

	log.Info().
		Str("broker", s.cfg.BrokerURL()).
		Str("namespace", s.cfg.Account.Username).
		Dur("interval", s.cfg.Sim.Interval).
		Bool("notify_enabled", s.state.NotifyEnabled()).
		Msg("simulator starting")

	conn, err := s.dial(ctx, s.cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to broker")
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	s.conn = conn
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("broker close error")
		}
	}()

	if err := s.initMirror(); err != nil {
		log.Error().Err(err).Msg("failed to initialize kafka mirror")
		return fmt.Errorf("failed to initialize kafka mirror: %w", err)
	}
	if c, ok := s.mirror.(io.Closer); ok {
		defer func() {
			if cerr := c.Close(); cerr != nil {
				log.Error().Err(cerr).Msg("kafka mirror close error")
			}
		}()
	}

	// background goroutines finish before the connection is closed
	defer s.wg.Wait()

	s.initDispatcher()
	s.dispatcher.Start()
	defer s.dispatcher.Stop()

	hubCtx, stopHub := context.WithCancel(context.Background())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(hubCtx)
	}()
	defer stopHub()

	modeTopic := s.topics.Mode()
	if err := conn.Subscribe(modeTopic, ModeQoS, s.onModeMessage); err != nil {
		log.Error().Err(err).Str("topic", modeTopic).Msg("failed to subscribe to mode feed")
		return fmt.Errorf("failed to subscribe to mode feed: %w", err)
	}
	defer func() {
		if uerr := conn.Unsubscribe(modeTopic); uerr != nil {
			log.Warn().Err(uerr).Msg("unsubscribe failed")
		}
	}()

	if s.cfg.HTTP.Addr != "" {
		s.startHTTPServer()
		defer s.stopHTTPServer()
	}

	s.loop(ctx)

	s.phase.Store(PhaseShuttingDown)
	log.Info().Msg("shutdown signal received")
	return nil
}

// loop ticks immediately, then on every interval until ctx is done
func (s *Simulator) loop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Sim.Interval)
	defer ticker.Stop()

	s.Tick(s.now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(s.now())
		}
	}
}

// initMirror creates the Kafka mirror when configured
func (s *Simulator) initMirror() error {
	if s.mirror != nil || !s.cfg.Kafka.Enabled() {
		return nil
	}
	producer, err := kafka.NewProducer(s.cfg.Kafka)
	if err != nil {
		return err
	}
	s.mirror = producer
	return nil
}

// initDispatcher sets up the outbound queue over the connected sinks
func (s *Simulator) initDispatcher() {
	sinks := []worker.Publisher{mqtt.NewSink(s.conn, s.topics)}
	if s.mirror != nil {
		sinks = append(sinks, s.mirror)
	}
	s.dispatcher = worker.NewDispatcher(worker.Config{
		Sinks:          sinks,
		Workers:        s.cfg.Dispatch.Workers,
		QueueSize:      s.cfg.Dispatch.QueueSize,
		PublishTimeout: s.cfg.MQTT.PublishTimeout,
	})
}

// Tick runs one iteration: read, publish telemetry, evaluate, emit
// alerts. It returns the alerts raised.
func (s *Simulator) Tick(now time.Time) []models.Alert {
	log := logger.WithComponent("simulator")
	tickID := uuid.New().String()

	r := s.readings.Next(now)
	s.ticks.Add(1)
	metrics.TicksTotal.Inc()
	metrics.SensorValue.WithLabelValues("temperature").Set(r.Temperature)
	metrics.SensorValue.WithLabelValues("humidity").Set(float64(r.Humidity))
	metrics.SensorValue.WithLabelValues("moisture").Set(float64(r.Moisture))
	metrics.SensorValue.WithLabelValues("distance").Set(float64(r.Distance))

	for _, feed := range models.TelemetryFeeds {
		s.send(models.NewEnvelope(feed, FeedValue(r, feed), TelemetryQoS, s.cfg.MQTT.ClientID).WithTick(tickID))
	}
	s.hub.Broadcast(websocket.EventReading, r)

	log.Info().
		Str("tick_id", tickID).
		Str("thresholds", s.state.Thresholds().String()).
		Bool("notify", s.state.NotifyEnabled()).
		Msg(r.String())

	raised := s.evaluator.Evaluate(r, now)
	for _, a := range raised {
		s.emit(a, tickID)
	}
	return raised
}

// emit logs an alert locally and transmits it when notify is on
func (s *Simulator) emit(a models.Alert, tickID string) {
	transmit := s.state.NotifyEnabled()
	if transmit {
		s.send(models.NewEnvelope(models.FeedAlerts, a.Message, AlertQoS, s.cfg.MQTT.ClientID).WithTick(tickID))
	}

	log := logger.WithComponent("simulator")
	log.Warn().
		Str("kind", string(a.Kind)).
		Str("alert_id", a.ID).
		Bool("transmitted", transmit).
		Msgf("ALERT: %s", a.Message)

	metrics.AlertsTotal.WithLabelValues(string(a.Kind), strconv.FormatBool(transmit)).Inc()
	s.hub.Broadcast(websocket.EventAlert, a)
}

// send queues an envelope without waiting for the broker
func (s *Simulator) send(env *models.Envelope) {
	log := logger.WithFeed(string(env.Feed))
	if s.dispatcher == nil {
		log.Debug().Msg("not connected, envelope dropped")
		return
	}
	if err := s.dispatcher.Enqueue(env); err != nil {
		log.Warn().Err(err).Msg("envelope dropped")
	}
}

// onModeMessage handles a message on the mode feed
func (s *Simulator) onModeMessage(topic string, payload []byte) {
	s.ApplyMode(mqtt.DecodePayload(payload))
}

// ApplyMode switches the threshold preset and announces it to live
// feed clients. Unknown modes are logged and ignored.
func (s *Simulator) ApplyMode(text string) (models.Mode, bool) {
	m, ok := s.state.ApplyMode(text)
	if ok {
		s.hub.Broadcast(websocket.EventMode, s.state.Snapshot())
	}
	return m, ok
}

// Snapshot returns the current state
func (s *Simulator) Snapshot() state.Snapshot {
	return s.state.Snapshot()
}

// SetNotify toggles external alert transmission
func (s *Simulator) SetNotify(enabled bool) {
	s.state.SetNotify(enabled)
}

// Healthy reports whether the broker connection is up
func (s *Simulator) Healthy(ctx context.Context) error {
	if s.Phase() != PhaseRunning || s.conn == nil || !s.conn.IsConnected() {
		return ErrNotConnected
	}
	if h, ok := s.mirror.(interface{ HealthCheck(context.Context) error }); ok {
		if err := h.HealthCheck(ctx); err != nil {
			return fmt.Errorf("kafka mirror: %w", err)
		}
	}
	return nil
}

// Stats is a point-in-time view of simulator counters
type Stats struct {
	Phase      Phase                `json:"phase"`
	Ticks      uint64               `json:"ticks"`
	Dispatcher worker.Stats         `json:"dispatcher"`
	Mirror     *kafka.ProducerStats `json:"mirror,omitempty"`
}

// Stats returns counters for the inspection endpoint
func (s *Simulator) Stats() interface{} {
	st := Stats{
		Phase: s.Phase(),
		Ticks: s.ticks.Load(),
	}
	if s.dispatcher != nil {
		st.Dispatcher = s.dispatcher.Stats()
	}
	if p, ok := s.mirror.(*kafka.Producer); ok {
		ps := p.Stats()
		st.Mirror = &ps
	}
	return st
}

// Router returns the HTTP control surface
func (s *Simulator) Router() http.Handler {
	return handlers.NewRouter(handlers.NewControlHandler(s, s.hub))
}

// startHTTPServer serves the control surface in the background
func (s *Simulator) startHTTPServer() {
	log := logger.WithComponent("simulator")

	s.httpServer = &http.Server{
		Addr:         s.cfg.HTTP.Addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info().Str("addr", s.cfg.HTTP.Addr).Msg("starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()
}

func (s *Simulator) stopHTTPServer() {
	log := logger.WithComponent("simulator")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Info().Msg("stopping HTTP server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
}

// FeedValue formats one reading field the way the feed stores it
func FeedValue(r models.Reading, feed models.Feed) string {
	switch feed {
	case models.FeedTemperature:
		return strconv.FormatFloat(r.Temperature, 'f', 2, 64)
	case models.FeedHumidity:
		return strconv.Itoa(r.Humidity)
	case models.FeedMoisture:
		return strconv.Itoa(r.Moisture)
	case models.FeedDistance:
		return strconv.Itoa(r.Distance)
	default:
		return ""
	}
}
