package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertKind identifies which rule raised an alert
type AlertKind string

const (
	AlertHydrate  AlertKind = "hydrate"
	AlertTooClose AlertKind = "too_close"
	AlertHot      AlertKind = "hot"
	AlertCold     AlertKind = "cold"
	AlertDry      AlertKind = "dry"
)

// Alert is an advisory raised by the rule evaluator
type Alert struct {
	ID       string    `json:"id"`
	Kind     AlertKind `json:"kind"`
	Message  string    `json:"message"`
	RaisedAt time.Time `json:"raised_at"`

	// Reading that triggered the alert
	Reading Reading `json:"reading"`
}

// NewAlert creates an alert with a fresh ID
func NewAlert(kind AlertKind, message string, reading Reading, at time.Time) Alert {
	return Alert{
		ID:       uuid.New().String(),
		Kind:     kind,
		Message:  message,
		RaisedAt: at.UTC(),
		Reading:  reading,
	}
}
