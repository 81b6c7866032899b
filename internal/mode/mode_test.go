package mode_test

import (
	"testing"
	"time"

	"deskhealth/internal/mode"
	"deskhealth/internal/models"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantMode models.Mode
		wantOK   bool
		want     models.Thresholds
	}{
		{"focus", "focus", models.ModeFocus, true, models.Thresholds{CloseDistanceCm: 25, HydrateInterval: 1200 * time.Second}},
		{"relax", "relax", models.ModeRelax, true, models.Thresholds{CloseDistanceCm: 30, HydrateInterval: 2700 * time.Second}},
		{"sleep", "sleep", models.ModeSleep, true, models.Thresholds{CloseDistanceCm: 15, HydrateInterval: 7200 * time.Second}},
		{"upper case with spaces", "  FOCUS\n", models.ModeFocus, true, models.Thresholds{CloseDistanceCm: 25, HydrateInterval: 1200 * time.Second}},
		{"mixed case", "ReLaX", models.ModeRelax, true, models.Thresholds{CloseDistanceCm: 30, HydrateInterval: 2700 * time.Second}},
		{"unknown", "quiet", models.ModeUnknown, false, models.Thresholds{}},
		{"empty", "", models.ModeUnknown, false, models.Thresholds{}},
		{"literal unknown", "unknown", models.ModeUnknown, false, models.Thresholds{}},
		{"inner space", "fo cus", models.ModeUnknown, false, models.Thresholds{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, th, ok := mode.Resolve(tt.input)
			if m != tt.wantMode || ok != tt.wantOK || th != tt.want {
				t.Errorf("Resolve(%q) = (%s, %+v, %v), want (%s, %+v, %v)",
					tt.input, m, th, ok, tt.wantMode, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPresetsIsCopy(t *testing.T) {
	p := mode.Presets()
	if len(p) != 3 {
		t.Fatalf("expected 3 presets, got %d", len(p))
	}

	p[models.ModeFocus] = models.Thresholds{}
	_, th, _ := mode.Resolve("focus")
	if th.CloseDistanceCm != 25 {
		t.Error("mutating Presets result changed the resolver")
	}
}
