package state

import (
	"sync/atomic"
	"time"

	"deskhealth/internal/logger"
	"deskhealth/internal/metrics"
	"deskhealth/internal/mode"
	"deskhealth/internal/models"
)

// State is the process-wide threshold and hydration state shared by the
// tick loop and the mode control listener.
//
// No mutex is taken. Each field is written from one path only:
//   - thresholds and mode: mode changes (control feed or POST /mode), via ApplyMode
//   - lastDrink: the tick loop, via ResetDrink
//   - notify: startup and the HTTP control surface
//
// Thresholds are swapped as a whole, so a reader never sees half of a
// preset. A tick may see a mode change one interval late.
type State struct {
	thresholds atomic.Pointer[models.Thresholds]
	mode       atomic.Value // models.Mode
	lastDrink  atomic.Int64 // unix nanos
	notify     atomic.Bool
}

// New creates a state holding the given thresholds, with the last drink
// set to now.
func New(initial models.Thresholds, notify bool, now time.Time) *State {
	s := &State{}
	s.thresholds.Store(&initial)
	s.mode.Store(models.ModeUnknown)
	s.lastDrink.Store(now.UnixNano())
	s.notify.Store(notify)
	return s
}

// Thresholds returns the current thresholds snapshot
func (s *State) Thresholds() models.Thresholds {
	return *s.thresholds.Load()
}

// Mode returns the last applied mode, ModeUnknown until one is applied
func (s *State) Mode() models.Mode {
	return s.mode.Load().(models.Mode)
}

// ApplyMode resolves text and, when it names a preset, replaces the
// thresholds with it. Unknown modes leave the state untouched.
func (s *State) ApplyMode(text string) (models.Mode, bool) {
	log := logger.WithComponent("state")

	m, t, ok := mode.Resolve(text)
	if !ok {
		log.Warn().
			Str("mode", text).
			Msg("unknown mode (use focus/relax/sleep)")
		metrics.ModeChangesTotal.WithLabelValues(string(models.ModeUnknown)).Inc()
		return m, false
	}

	s.thresholds.Store(&t)
	s.mode.Store(m)
	metrics.ModeChangesTotal.WithLabelValues(string(m)).Inc()

	log.Info().
		Str("mode", string(m)).
		Int("close_distance_cm", t.CloseDistanceCm).
		Dur("hydrate_interval", t.HydrateInterval).
		Msgf("mode %s -> %s", m, t)
	return m, true
}

// LastDrink returns the time of the last hydration event or reminder
func (s *State) LastDrink() time.Time {
	return time.Unix(0, s.lastDrink.Load())
}

// ResetDrink records t as the last hydration event
func (s *State) ResetDrink(t time.Time) {
	s.lastDrink.Store(t.UnixNano())
}

// NotifyEnabled reports whether alerts are transmitted externally
func (s *State) NotifyEnabled() bool {
	return s.notify.Load()
}

// SetNotify toggles external alert transmission
func (s *State) SetNotify(enabled bool) {
	s.notify.Store(enabled)
}

// Snapshot is a point-in-time copy of the state for inspection
type Snapshot struct {
	Mode          models.Mode       `json:"mode"`
	Thresholds    models.Thresholds `json:"thresholds"`
	NotifyEnabled bool              `json:"notify_enabled"`
	LastDrink     time.Time         `json:"last_drink"`
}

// Snapshot copies the current state
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Mode:          s.Mode(),
		Thresholds:    s.Thresholds(),
		NotifyEnabled: s.NotifyEnabled(),
		LastDrink:     s.LastDrink().UTC(),
	}
}
