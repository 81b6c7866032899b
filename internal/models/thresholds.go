package models

import (
	"fmt"
	"time"
)

// Mode is a threshold preset selected from the dashboard
type Mode string

const (
	ModeFocus   Mode = "focus"
	ModeRelax   Mode = "relax"
	ModeSleep   Mode = "sleep"
	ModeUnknown Mode = "unknown"
)

// IsValid reports whether the mode names a known preset
func (m Mode) IsValid() bool {
	switch m {
	case ModeFocus, ModeRelax, ModeSleep:
		return true
	default:
		return false
	}
}

// Thresholds holds the limits the rule evaluator checks readings against.
// A Thresholds value is always replaced as a whole.
type Thresholds struct {
	// Distance under which the user is too close to the screen
	CloseDistanceCm int `json:"close_distance_cm"`

	// Maximum time between drinks before a reminder fires
	HydrateInterval time.Duration `json:"hydrate_interval"`
}

// DefaultThresholds are in effect until the first mode message arrives.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CloseDistanceCm: 20,
		HydrateInterval: 30 * time.Minute,
	}
}

// String renders thresholds as "close<25cm hydrate=20min"
func (t Thresholds) String() string {
	return fmt.Sprintf("close<%dcm hydrate=%dmin", t.CloseDistanceCm, int(t.HydrateInterval/time.Minute))
}
