package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdjustConfidence(t *testing.T) {
	tuning := DefaultTuning()

	tests := []struct {
		name    string
		raw     float64
		words   int
		signals int
		alts    []Alternative
		want    float64
	}{
		{"untouched", 0.92, 120, 3, nil, 0.92},
		{"short transcript caps", 0.97, 20, 3, nil, 0.85},
		{"few signals caps", 0.97, 120, 1, nil, 0.9},
		{"both caps take the lower", 0.97, 10, 0, nil, 0.85},
		{"caps never raise", 0.4, 10, 0, nil, 0.4},
		{"close alternative penalised", 0.8, 120, 3, []Alternative{{EntryType: "x", Confidence: 0.7}}, 0.7},
		{"distant alternative ignored", 0.9, 120, 3, []Alternative{{EntryType: "x", Confidence: 0.5}}, 0.9},
		{"top alternative decides", 0.9, 120, 3, []Alternative{{Confidence: 0.2}, {Confidence: 0.8}}, 0.8},
		{"penalty clamps at zero", 0.05, 120, 3, []Alternative{{Confidence: 0.05}}, 0},
		{"penalty after cap", 0.95, 10, 3, []Alternative{{Confidence: 0.9}}, 0.75},
		{"rounds to two decimals", 0.876, 120, 3, nil, 0.87},
		{"rounding never exceeds raw", 0.8751, 120, 3, nil, 0.87},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdjustConfidence(tt.raw, tt.words, tt.signals, tt.alts, tuning)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestAdjustConfidenceIsMonotonic(t *testing.T) {
	tuning := DefaultTuning()
	for raw := 0.0; raw <= 1.0; raw += 0.007 {
		for _, words := range []int{0, 49, 50, 400} {
			for _, signals := range []int{0, 1, 2, 5} {
				for _, alt := range []float64{-1, 0, raw - 0.2, raw - 0.1, raw} {
					var alts []Alternative
					if alt >= 0 {
						alts = []Alternative{{EntryType: "alt", Confidence: alt}}
					}
					got := AdjustConfidence(raw, words, signals, alts, tuning)
					assert.LessOrEqual(t, got, raw, "raw=%v words=%d signals=%d alt=%v", raw, words, signals, alt)
					assert.GreaterOrEqual(t, got, 0.0)
				}
			}
		}
	}
}
