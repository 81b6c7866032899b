package alerts

import (
	"time"

	"deskhealth/internal/metrics"
	"deskhealth/internal/models"
	"deskhealth/internal/state"
)

// Rule pairs an alert kind with the text published for it.
type Rule struct {
	Kind    models.AlertKind
	Message string
}

// Rules, in evaluation order.
var (
	RuleHydrate  = Rule{models.AlertHydrate, "Reminder: Take a sip of water!"}
	RuleTooClose = Rule{models.AlertTooClose, "You're too close to the screen!"}
	RuleHot      = Rule{models.AlertHot, "It's hot — open a window!"}
	RuleCold     = Rule{models.AlertCold, "It's cold — consider heating."}
	RuleDry      = Rule{models.AlertDry, "Air is dry — ventilate or hydrate."}
)

// Comfort limits. They do not change with the mode.
const (
	HotAbove  = 28.0
	ColdBelow = 18.0
	DryBelow  = 40
)

// Evaluator checks readings against the shared state. It must only be
// driven from the tick loop, which owns the last-drink field.
type Evaluator struct {
	state *state.State
}

// NewEvaluator creates an evaluator over st
func NewEvaluator(st *state.State) *Evaluator {
	return &Evaluator{state: st}
}

// Evaluate runs the rules against r at time now and returns the alerts
// to emit, in rule order.
func (e *Evaluator) Evaluate(r models.Reading, now time.Time) []models.Alert {
	var out []models.Alert
	raise := func(rule Rule) {
		out = append(out, models.NewAlert(rule.Kind, rule.Message, r, now))
	}

	// one snapshot per evaluation so a concurrent mode swap can't split it
	th := e.state.Thresholds()

	// hydration event if the glass was touched
	if r.DrinkDetected() {
		e.state.ResetDrink(now)
		metrics.DrinkEventsTotal.Inc()
	}

	// reminder resets the clock so it fires once per interval
	if now.Sub(e.state.LastDrink()) > th.HydrateInterval {
		raise(RuleHydrate)
		e.state.ResetDrink(now)
	}

	if r.Distance > 0 && r.Distance < th.CloseDistanceCm {
		raise(RuleTooClose)
	}

	if r.Temperature > HotAbove {
		raise(RuleHot)
	} else if r.Temperature < ColdBelow {
		raise(RuleCold)
	}

	if r.Humidity < DryBelow {
		raise(RuleDry)
	}

	return out
}

// Messages returns the alert texts, convenient for logging and tests
func Messages(alerts []models.Alert) []string {
	out := make([]string, len(alerts))
	for i, a := range alerts {
		out[i] = a.Message
	}
	return out
}
