// Package scoring turns a behavioural feature vector into an explainable
// impulse risk score.
//
// Scores are composites of 5 normalized components weighted to sum to 1.0.
// Normalization bounds come from a per-dataset Calibration fit on the 95th
// percentile of the population, so "high" always means high relative to the
// dataset, with fixed floors preventing degenerate near-zero bounds.
package scoring

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/spendpulse/spendpulse/internal/features"
)

// Calibration holds the normalization high bounds for the 5
// dispersion-sensitive fields. Immutable after fit.
type Calibration struct {
	SpikeP95             float64 `json:"spike_p95"`
	MaxTxIn2HP95         float64 `json:"max_tx_in_2h_p95"`
	EOMRatioP95          float64 `json:"eom_ratio_p95"`
	HourEntropyP95       float64 `json:"hour_entropy_p95"`
	CategoryDiversityP95 float64 `json:"category_diversity_p95"`
}

// Fallback bounds used when a dataset is untrained or a sample is empty.
const (
	defaultSpikeBound     = 5.0
	defaultMaxTx2HBound   = 20.0
	defaultEOMBound       = 3.0
	defaultEntropyBound   = 4.0
	defaultDiversityBound = 10.0
)

// Floors keep bounds meaningful on degenerate populations.
const (
	floorSpikeBound     = 1.0
	floorMaxTx2HBound   = 3.0
	floorEOMBound       = 0.5
	floorEntropyBound   = 1.0
	floorDiversityBound = 3.0
)

// DefaultCalibration returns the fixed fallback bounds.
func DefaultCalibration() Calibration {
	return Calibration{
		SpikeP95:             defaultSpikeBound,
		MaxTxIn2HP95:         defaultMaxTx2HBound,
		EOMRatioP95:          defaultEOMBound,
		HourEntropyP95:       defaultEntropyBound,
		CategoryDiversityP95: defaultDiversityBound,
	}
}

// FitCalibration fits normalization bounds from a sample of feature vectors.
// Each bound is the 95th percentile of its field across the sample (robust to
// outliers), floored at a fixed minimum. Non-finite values are filtered
// before the percentile; an empty filtered sample falls back to the default.
func FitCalibration(sample []features.Vector) Calibration {
	spike := make([]float64, 0, len(sample))
	max2h := make([]float64, 0, len(sample))
	eom := make([]float64, 0, len(sample))
	entropy := make([]float64, 0, len(sample))
	diversity := make([]float64, 0, len(sample))
	for _, v := range sample {
		spike = append(spike, v.SpikeIntensity)
		max2h = append(max2h, float64(v.MaxTxIn2H))
		eom = append(eom, math.Max(v.EOMSpendRatio, v.EOMCountRatio))
		entropy = append(entropy, v.HourEntropy)
		diversity = append(diversity, float64(v.CategoryDiversity))
	}

	return Calibration{
		SpikeP95:             math.Max(floorSpikeBound, percentile95(spike, defaultSpikeBound)),
		MaxTxIn2HP95:         math.Max(floorMaxTx2HBound, percentile95(max2h, defaultMaxTx2HBound)),
		EOMRatioP95:          math.Max(floorEOMBound, percentile95(eom, defaultEOMBound)),
		HourEntropyP95:       math.Max(floorEntropyBound, percentile95(entropy, defaultEntropyBound)),
		CategoryDiversityP95: math.Max(floorDiversityBound, percentile95(diversity, defaultDiversityBound)),
	}
}

// percentile95 computes the 95th percentile of the finite values in xs,
// or def when none remain.
func percentile95(xs []float64, def float64) float64 {
	finite := make([]float64, 0, len(xs))
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		finite = append(finite, x)
	}
	if len(finite) == 0 {
		return def
	}
	sort.Float64s(finite)
	return stat.Quantile(0.95, stat.LinInterp, finite, nil)
}
