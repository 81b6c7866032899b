package sensor_test

import (
	"math/rand"
	"testing"
	"time"

	"deskhealth/internal/models"
	"deskhealth/internal/sensor"
)

func TestReadingsStayInRange(t *testing.T) {
	sim := sensor.NewSimulator(rand.NewSource(42))
	now := time.Now()

	seen := map[string]map[int]bool{
		"humidity": {},
		"moisture": {},
		"distance": {},
	}

	for i := 0; i < 20000; i++ {
		r := sim.Next(now)
		if err := r.Validate(); err != nil {
			t.Fatalf("reading %d out of range: %v (%s)", i, err, r)
		}
		if !r.TakenAt.Equal(now) {
			t.Fatalf("reading not stamped with now")
		}
		seen["humidity"][r.Humidity] = true
		seen["moisture"][r.Moisture] = true
		seen["distance"][r.Distance] = true
	}

	// both ends of each inclusive integer range must be reachable
	bounds := map[string][2]int{
		"humidity": {models.MinHumidity, models.MaxHumidity},
		"moisture": {models.MinMoisture, models.MaxMoisture},
		"distance": {models.MinDistance, models.MaxDistance},
	}
	for name, b := range bounds {
		if !seen[name][b[0]] || !seen[name][b[1]] {
			t.Errorf("%s never hit bound %v", name, b)
		}
		if want := b[1] - b[0] + 1; len(seen[name]) != want {
			t.Errorf("%s produced %d distinct values, want %d", name, len(seen[name]), want)
		}
	}
}

func TestSameSeedSameReadings(t *testing.T) {
	a := sensor.NewSimulator(rand.NewSource(7))
	b := sensor.NewSimulator(rand.NewSource(7))
	now := time.Now()

	for i := 0; i < 100; i++ {
		if ra, rb := a.Next(now), b.Next(now); ra != rb {
			t.Fatalf("draw %d differs: %s vs %s", i, ra, rb)
		}
	}
}

func TestNilSourceSeedsFromClock(t *testing.T) {
	sim := sensor.NewSimulator(nil)
	if err := sim.Next(time.Now()).Validate(); err != nil {
		t.Errorf("unexpected out-of-range reading: %v", err)
	}
}

func TestDrinkDetected(t *testing.T) {
	tests := []struct {
		moisture int
		want     bool
	}{
		{380, false},
		{400, false},
		{401, true},
		{420, true},
	}
	for _, tt := range tests {
		r := models.Reading{Moisture: tt.moisture}
		if got := r.DrinkDetected(); got != tt.want {
			t.Errorf("DrinkDetected(%d) = %v, want %v", tt.moisture, got, tt.want)
		}
	}
}
