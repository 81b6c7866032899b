package models

import (
	"errors"
	"fmt"
	"time"
)

// Synthetic sensor ranges. Bounds are inclusive.
const (
	MinTemperature = 18.0
	MaxTemperature = 30.0

	MinHumidity = 30
	MaxHumidity = 70

	MinMoisture = 380
	MaxMoisture = 420

	MinDistance = 10
	MaxDistance = 50

	// DrinkMoistureThreshold is the raw moisture value above which the
	// glass sensor counts as touched.
	DrinkMoistureThreshold = 400
)

// Validation errors
var (
	ErrTemperatureRange = errors.New("temperature out of range")
	ErrHumidityRange    = errors.New("humidity out of range")
	ErrMoistureRange    = errors.New("moisture out of range")
	ErrDistanceRange    = errors.New("distance out of range")
)

// Reading is one tick worth of simulated desk sensor data
type Reading struct {
	// Temperature in degrees Celsius
	Temperature float64 `json:"temperature"`

	// Relative humidity in percent
	Humidity int `json:"humidity"`

	// Raw glass sensor value
	Moisture int `json:"moisture"`

	// Distance between user and screen in centimeters
	Distance int `json:"distance"`

	// Time the reading was produced
	TakenAt time.Time `json:"taken_at"`
}

// DrinkDetected reports whether the glass sensor registered contact.
func (r Reading) DrinkDetected() bool {
	return r.Moisture > DrinkMoistureThreshold
}

// Validate checks the reading against the synthetic ranges
func (r Reading) Validate() error {
	if r.Temperature < MinTemperature || r.Temperature > MaxTemperature {
		return fmt.Errorf("%w: %.2f", ErrTemperatureRange, r.Temperature)
	}
	if r.Humidity < MinHumidity || r.Humidity > MaxHumidity {
		return fmt.Errorf("%w: %d", ErrHumidityRange, r.Humidity)
	}
	if r.Moisture < MinMoisture || r.Moisture > MaxMoisture {
		return fmt.Errorf("%w: %d", ErrMoistureRange, r.Moisture)
	}
	if r.Distance < MinDistance || r.Distance > MaxDistance {
		return fmt.Errorf("%w: %d", ErrDistanceRange, r.Distance)
	}
	return nil
}

// String renders the reading the way the console debug line shows it.
func (r Reading) String() string {
	return fmt.Sprintf("T=%.1fC H=%d%% M=%d D=%dcm", r.Temperature, r.Humidity, r.Moisture, r.Distance)
}
