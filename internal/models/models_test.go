package models_test

import (
	"errors"
	"testing"
	"time"

	"deskhealth/internal/models"
)

func TestReadingValidate(t *testing.T) {
	valid := models.Reading{Temperature: 23.4, Humidity: 50, Moisture: 400, Distance: 30}

	tests := []struct {
		name    string
		mutate  func(r *models.Reading)
		wantErr error
	}{
		{"valid", func(r *models.Reading) {}, nil},
		{"lower bounds", func(r *models.Reading) {
			*r = models.Reading{Temperature: 18, Humidity: 30, Moisture: 380, Distance: 10}
		}, nil},
		{"upper bounds", func(r *models.Reading) {
			*r = models.Reading{Temperature: 30, Humidity: 70, Moisture: 420, Distance: 50}
		}, nil},
		{"too hot", func(r *models.Reading) { r.Temperature = 30.01 }, models.ErrTemperatureRange},
		{"humidity low", func(r *models.Reading) { r.Humidity = 29 }, models.ErrHumidityRange},
		{"moisture high", func(r *models.Reading) { r.Moisture = 421 }, models.ErrMoistureRange},
		{"distance low", func(r *models.Reading) { r.Distance = 9 }, models.ErrDistanceRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDrinkDetected(t *testing.T) {
	if (models.Reading{Moisture: 400}).DrinkDetected() {
		t.Error("400 is not above the threshold")
	}
	if !(models.Reading{Moisture: 401}).DrinkDetected() {
		t.Error("401 should count as a drink")
	}
}

func TestReadingString(t *testing.T) {
	r := models.Reading{Temperature: 23.44, Humidity: 45, Moisture: 390, Distance: 15}
	if got, want := r.String(), "T=23.4C H=45% M=390 D=15cm"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestModeIsValid(t *testing.T) {
	for _, m := range []models.Mode{models.ModeFocus, models.ModeRelax, models.ModeSleep} {
		if !m.IsValid() {
			t.Errorf("%s should be valid", m)
		}
	}
	if models.ModeUnknown.IsValid() || models.Mode("party").IsValid() {
		t.Error("unknown modes should not be valid")
	}
}

func TestDefaultThresholds(t *testing.T) {
	th := models.DefaultThresholds()
	if th.CloseDistanceCm != 20 || th.HydrateInterval != 30*time.Minute {
		t.Errorf("unexpected defaults: %+v", th)
	}
	if got := th.String(); got != "close<20cm hydrate=30min" {
		t.Errorf("unexpected string: %q", got)
	}
}

func TestNewEnvelope(t *testing.T) {
	env := models.NewEnvelope(models.FeedTemperature, "23.41", 0, "dev-1").WithTick("tick-1")

	if env.PartitionKey != "dev-1" {
		t.Errorf("expected partition key dev-1, got %q", env.PartitionKey)
	}
	if env.TickID != "tick-1" {
		t.Errorf("expected tick id tick-1, got %q", env.TickID)
	}
	if env.CreatedAt.IsZero() || env.CreatedAt.Location() != time.UTC {
		t.Error("expected UTC creation time")
	}
}

func TestTelemetryFeedOrder(t *testing.T) {
	want := []models.Feed{models.FeedTemperature, models.FeedHumidity, models.FeedMoisture, models.FeedDistance}
	if len(models.TelemetryFeeds) != len(want) {
		t.Fatalf("expected %d feeds, got %d", len(want), len(models.TelemetryFeeds))
	}
	for i, f := range want {
		if models.TelemetryFeeds[i] != f {
			t.Errorf("feed %d: expected %s, got %s", i, f, models.TelemetryFeeds[i])
		}
	}
}

func TestNewAlert(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	a := models.NewAlert(models.AlertHot, "hot", models.Reading{Temperature: 29}, at)
	b := models.NewAlert(models.AlertHot, "hot", models.Reading{Temperature: 29}, at)

	if a.ID == "" || a.ID == b.ID {
		t.Error("expected unique alert ids")
	}
	if !a.RaisedAt.Equal(at) || a.RaisedAt.Location() != time.UTC {
		t.Errorf("expected UTC raise time, got %v", a.RaisedAt)
	}
}
