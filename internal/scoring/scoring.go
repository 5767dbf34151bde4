package scoring

import (
	"math"

	"github.com/spendpulse/spendpulse/internal/features"
)

// Band is the ordinal risk category derived from the final score.
type Band string

const (
	BandLow      Band = "Low"
	BandMedium   Band = "Medium"
	BandHigh     Band = "High"
	BandCritical Band = "Critical"
)

// Component weights; must sum to 1.0.
const (
	weightSpike    = 0.25
	weightBurst    = 0.25
	weightEOM      = 0.20
	weightTiming   = 0.15
	weightCategory = 0.15
)

// Breakdown holds the 5 normalized score components, each in [0,1].
type Breakdown struct {
	Spike    float64 `json:"spike"`
	Burst    float64 `json:"burst"`
	EOM      float64 `json:"eom"`
	Timing   float64 `json:"timing"`
	Category float64 `json:"category"`
}

// Result is the scored assessment of one entity.
type Result struct {
	Score     float64   `json:"score"` // 0-100, 1 decimal place
	Breakdown Breakdown `json:"breakdown"`
	Band      Band      `json:"band"`
}

// Score computes the impulse risk score for one feature vector against a
// calibration. Total function: never fails for well-formed inputs.
func Score(v features.Vector, cal Calibration) Result {
	b := Breakdown{
		Spike:    normalize(v.SpikeIntensity, 0, cal.SpikeP95),
		Burst:    burstComponent(v, cal),
		EOM:      normalize(math.Max(v.EOMSpendRatio, v.EOMCountRatio), 0, cal.EOMRatioP95),
		Timing:   timingComponent(v, cal),
		Category: categoryComponent(v, cal),
	}

	score := 100 * (weightSpike*b.Spike +
		weightBurst*b.Burst +
		weightEOM*b.EOM +
		weightTiming*b.Timing +
		weightCategory*b.Category)
	score = math.Max(0, math.Min(100, score))
	score = math.Round(score*10) / 10

	return Result{Score: score, Breakdown: b, Band: BandFor(score)}
}

// BandFor maps a 0-100 score to its risk band. Boundaries are inclusive on
// the upper edge: 25.0 is Low, 25.1 is Medium.
func BandFor(score float64) Band {
	score = math.Max(0, math.Min(100, score))
	switch {
	case score <= 25:
		return BandLow
	case score <= 50:
		return BandMedium
	case score <= 75:
		return BandHigh
	default:
		return BandCritical
	}
}

// burstComponent blends the short-gap ratio with the densest 2-hour window.
func burstComponent(v features.Vector, cal Calibration) float64 {
	max2h := math.Min(float64(v.MaxTxIn2H), cal.MaxTxIn2HP95)
	return 0.6*math.Min(1, v.BurstRatio30Min) + 0.4*normalize(max2h, 0, cal.MaxTxIn2HP95)
}

// timingComponent: late-night and weekend shares plus low hour entropy
// (narrow habitual windows read as more impulsive).
func timingComponent(v features.Vector, cal Calibration) float64 {
	ent := math.Min(v.HourEntropy, cal.HourEntropyP95)
	return 0.4*v.LateNightRatio + 0.3*v.WeekendRatio + 0.3*(1-ent/cal.HourEntropyP95)
}

// categoryComponent: concentration plus low diversity.
func categoryComponent(v features.Vector, cal Calibration) float64 {
	bound := cal.CategoryDiversityP95
	lowDiversity := normalize(bound-math.Min(float64(v.CategoryDiversity), bound), 0, bound)
	return 0.6*v.CategoryConcentration + 0.4*lowDiversity
}

// normalize clamps and scales x into [0,1] between low and high.
func normalize(x, low, high float64) float64 {
	if high <= low {
		return 0
	}
	return math.Max(0, math.Min(1, (x-low)/(high-low)))
}
