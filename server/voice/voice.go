// Package voice is a mock of the voice-analysis endpoint - a coin
// flip standing in for real signal processing. Only the interface
// contract matters to callers.
package voice

import (
	"math"
	"math/rand"
	"time"
)

type Result struct {
	DangerDetected bool    `json:"danger_detected"`
	Confidence     float64 `json:"confidence"`
}

type Analyzer struct {
	rng *rand.Rand
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Analyze pretends to inspect an audio sample. Roughly 1 in 10 calls
// reports danger, with a made-up confidence score.
func (a *Analyzer) Analyze() Result {
	if a.rng.Float64() > 0.90 {
		confidence := 0.7 + a.rng.Float64()*0.29
		return Result{
			DangerDetected: true,
			Confidence:     math.Round(confidence*100) / 100,
		}
	}

	return Result{DangerDetected: false, Confidence: 0.0}
}
