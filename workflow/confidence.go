package workflow

import "math"

// AdjustConfidence deflates a self-reported classification confidence. It
// never raises raw: short transcripts and thin signal lists cap it, and a
// runner-up closer than AlternativeGap to the raw score subtracts
// AlternativePenalty. The result is rounded to two decimals without
// exceeding the capped value.
func AdjustConfidence(raw float64, wordCount, signals int, alternatives []Alternative, t Tuning) float64 {
	c := math.Min(1, raw)
	if c < 0 {
		return math.Min(0, raw)
	}

	if wordCount < t.ShortTranscriptWords {
		c = math.Min(c, t.ShortTranscriptCap)
	}
	if signals < t.MinSignals {
		c = math.Min(c, t.FewSignalsCap)
	}

	if len(alternatives) > 0 {
		top := alternatives[0].Confidence
		for _, alt := range alternatives[1:] {
			top = math.Max(top, alt.Confidence)
		}
		if raw-top < t.AlternativeGap {
			c = math.Max(0, c-t.AlternativePenalty)
		}
	}

	rounded := math.Round(c*100) / 100
	if rounded > c {
		rounded = math.Min(c, math.Floor(c*100)/100)
	}
	return rounded
}
