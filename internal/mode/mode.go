// Package mode maps dashboard mode strings to threshold presets.
package mode

import (
	"errors"
	"strings"
	"time"

	"deskhealth/internal/models"
)

// ErrUnknownMode reports a mode payload that names no preset
var ErrUnknownMode = errors.New("unknown mode (use focus/relax/sleep)")

var presets = map[models.Mode]models.Thresholds{
	// strict rules
	models.ModeFocus: {CloseDistanceCm: 25, HydrateInterval: 20 * time.Minute},
	// moderate
	models.ModeRelax: {CloseDistanceCm: 30, HydrateInterval: 45 * time.Minute},
	// very lenient
	models.ModeSleep: {CloseDistanceCm: 15, HydrateInterval: 120 * time.Minute},
}

// Normalize trims and lower-cases a raw mode payload
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Resolve maps text to a preset. Every input yields exactly one outcome:
// a known mode with its thresholds and ok=true, or ModeUnknown with
// zero thresholds and ok=false.
func Resolve(text string) (models.Mode, models.Thresholds, bool) {
	m := models.Mode(Normalize(text))
	t, ok := presets[m]
	if !ok {
		return models.ModeUnknown, models.Thresholds{}, false
	}
	return m, t, true
}

// Presets returns a copy of the preset table
func Presets() map[models.Mode]models.Thresholds {
	out := make(map[models.Mode]models.Thresholds, len(presets))
	for m, t := range presets {
		out[m] = t
	}
	return out
}
