package worker

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"deskhealth/internal/logger"
	"deskhealth/internal/metrics"
	"deskhealth/internal/models"
)

// ErrDispatcherStopped is returned when enqueueing after Stop
var ErrDispatcherStopped = errors.New("dispatcher is stopped")

// ErrQueueFull is returned when the outbound queue has no room
var ErrQueueFull = errors.New("dispatch queue full")

// Publisher delivers an envelope to one sink (MQTT, Kafka mirror)
type Publisher interface {
	Name() string
	Publish(ctx context.Context, envelope *models.Envelope) error
}

// Dispatcher drains a queue of outbound envelopes and hands each one to
// every sink. Enqueue never blocks, so the tick loop never waits on the
// broker. Failed publishes are logged and counted, never retried.
type Dispatcher struct {
	sinks          []Publisher
	queue          chan *models.Envelope
	workers        int
	publishTimeout time.Duration
	drainTimeout   time.Duration

	mu      sync.RWMutex
	stopped bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	// Metrics
	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// Config holds dispatcher configuration
type Config struct {
	Sinks          []Publisher
	Workers        int
	QueueSize      int
	PublishTimeout time.Duration
	DrainTimeout   time.Duration
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		sinks:          cfg.Sinks,
		queue:          make(chan *models.Envelope, cfg.QueueSize),
		workers:        cfg.Workers,
		publishTimeout: cfg.PublishTimeout,
		drainTimeout:   cfg.DrainTimeout,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start begins processing envelopes
func (d *Dispatcher) Start() {
	log := logger.WithComponent("dispatcher")

	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	log.Info().
		Int("workers", d.workers).
		Int("queue_size", cap(d.queue)).
		Strs("sinks", names).
		Msg("starting dispatcher")

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Enqueue hands an envelope to the workers without blocking
func (d *Dispatcher) Enqueue(envelope *models.Envelope) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrDispatcherStopped
	}

	select {
	case d.queue <- envelope:
		metrics.DispatchQueueSize.Set(float64(len(d.queue)))
		return nil
	default:
		d.dropped.Add(1)
		metrics.DispatchDroppedTotal.Inc()
		return ErrQueueFull
	}
}

// Stop refuses new envelopes, gives the workers the drain timeout to
// flush what is queued, then abandons whatever is left.
func (d *Dispatcher) Stop() {
	log := logger.WithComponent("dispatcher")

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	log.Info().Msg("stopping dispatcher")

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(d.drainTimeout):
		log.Warn().Int("queued", len(d.queue)).Msg("drain timeout - abandoning queued envelopes")
	}
	d.cancel()
	<-done

	log.Info().Msg("dispatcher stopped")
}

// worker publishes envelopes from the queue
func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	log := logger.WithComponent("dispatcher").With().Int("worker_id", id).Logger()
	log.Debug().Msg("worker started")
	defer log.Debug().Msg("worker stopped")

	for envelope := range d.queue {
		metrics.DispatchQueueSize.Set(float64(len(d.queue)))
		if d.ctx.Err() != nil {
			d.dropped.Add(1)
			continue
		}
		d.deliver(envelope)
	}
}

// deliver publishes one envelope to every sink
func (d *Dispatcher) deliver(envelope *models.Envelope) {
	for _, sink := range d.sinks {
		d.publish(sink, envelope)
	}
}

func (d *Dispatcher) publish(sink Publisher, envelope *models.Envelope) {
	log := logger.WithComponent("dispatcher")

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Str("sink", sink.Name()).
				Msg("sink panic recovered")
			metrics.PanicsRecovered.WithLabelValues("dispatcher").Inc()
			d.failed.Add(1)
		}
	}()

	ctx, cancel := context.WithTimeout(d.ctx, d.publishTimeout)
	defer cancel()

	start := time.Now()
	err := sink.Publish(ctx, envelope)
	duration := time.Since(start)

	metrics.PublishDuration.WithLabelValues(sink.Name()).Observe(duration.Seconds())

	if err != nil {
		log.Warn().
			Err(err).
			Str("sink", sink.Name()).
			Str("feed", string(envelope.Feed)).
			Dur("duration", duration).
			Msg("publish failed")
		d.failed.Add(1)
		metrics.PublishTotal.WithLabelValues(sink.Name(), string(envelope.Feed), "failed").Inc()
		return
	}

	d.published.Add(1)
	metrics.PublishTotal.WithLabelValues(sink.Name(), string(envelope.Feed), "success").Inc()
}

// Stats returns dispatcher statistics
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Published: d.published.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
		Queued:    len(d.queue),
	}
}

// Stats holds dispatcher counters. Published and Failed count sink
// deliveries, so one envelope with two sinks counts twice.
type Stats struct {
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
	Queued    int    `json:"queued"`
}
