// Package sensor fabricates desk sensor readings. Every draw is
// independent; there is no history or smoothing.
package sensor

import (
	"math/rand"
	"time"

	"deskhealth/internal/models"
)

// Simulator produces synthetic readings. It is not safe for concurrent use.
type Simulator struct {
	rng *rand.Rand
}

// NewSimulator creates a simulator drawing from src. A nil src seeds from
// the clock.
func NewSimulator(src rand.Source) *Simulator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Simulator{rng: rand.New(src)}
}

// Next draws a fresh reading stamped with now
func (s *Simulator) Next(now time.Time) models.Reading {
	return models.Reading{
		Temperature: s.uniform(models.MinTemperature, models.MaxTemperature),
		Humidity:    s.intBetween(models.MinHumidity, models.MaxHumidity),
		Moisture:    s.intBetween(models.MinMoisture, models.MaxMoisture),
		Distance:    s.intBetween(models.MinDistance, models.MaxDistance),
		TakenAt:     now,
	}
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// intBetween returns an int in [lo, hi]
func (s *Simulator) intBetween(lo, hi int) int {
	return lo + s.rng.Intn(hi-lo+1)
}
