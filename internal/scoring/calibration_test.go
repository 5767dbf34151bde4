package scoring

import (
	"math"
	"testing"

	"github.com/spendpulse/spendpulse/internal/features"
)

func TestFitCalibrationEmptySampleUsesDefaults(t *testing.T) {
	cal := FitCalibration(nil)
	if cal != DefaultCalibration() {
		t.Errorf("empty sample should produce defaults, got %+v", cal)
	}
}

func TestFitCalibrationFloors(t *testing.T) {
	// A flat, tiny population: every percentile is near zero, so floors kick in.
	sample := make([]features.Vector, 10)
	for i := range sample {
		sample[i] = features.Vector{MaxTxIn2H: 1, CategoryDiversity: 1}
	}
	cal := FitCalibration(sample)

	if cal.SpikeP95 < 1.0 {
		t.Errorf("spike bound %f below floor 1.0", cal.SpikeP95)
	}
	if cal.MaxTxIn2HP95 < 3.0 {
		t.Errorf("max2h bound %f below floor 3.0", cal.MaxTxIn2HP95)
	}
	if cal.EOMRatioP95 < 0.5 {
		t.Errorf("eom bound %f below floor 0.5", cal.EOMRatioP95)
	}
	if cal.HourEntropyP95 < 1.0 {
		t.Errorf("entropy bound %f below floor 1.0", cal.HourEntropyP95)
	}
	if cal.CategoryDiversityP95 < 3.0 {
		t.Errorf("diversity bound %f below floor 3.0", cal.CategoryDiversityP95)
	}
}

func TestFitCalibrationFiltersNonFinite(t *testing.T) {
	sample := []features.Vector{
		{SpikeIntensity: math.NaN(), EOMSpendRatio: math.Inf(1)},
		{SpikeIntensity: 2.0, EOMSpendRatio: 1.0},
		{SpikeIntensity: 4.0, EOMSpendRatio: 2.0},
	}
	cal := FitCalibration(sample)
	if math.IsNaN(cal.SpikeP95) || math.IsInf(cal.SpikeP95, 0) {
		t.Errorf("spike bound not finite: %f", cal.SpikeP95)
	}
	if math.IsNaN(cal.EOMRatioP95) || math.IsInf(cal.EOMRatioP95, 0) {
		t.Errorf("eom bound not finite: %f", cal.EOMRatioP95)
	}
}

func TestFitCalibrationReproducible(t *testing.T) {
	sample := make([]features.Vector, 0, 100)
	for i := 0; i < 100; i++ {
		sample = append(sample, features.Vector{
			SpikeIntensity:    float64(i) / 7,
			MaxTxIn2H:         i % 11,
			EOMSpendRatio:     float64(i) / 30,
			HourEntropy:       float64(i%5) + 0.2,
			CategoryDiversity: i % 14,
		})
	}
	first := FitCalibration(sample)
	for i := 0; i < 3; i++ {
		if got := FitCalibration(sample); got != first {
			t.Fatalf("calibration not reproducible: %+v vs %+v", got, first)
		}
	}
}

func TestFitCalibrationTracksPopulation(t *testing.T) {
	// Population where spike intensity runs 0..99: p95 should be well above
	// the floor and below the max.
	sample := make([]features.Vector, 100)
	for i := range sample {
		sample[i] = features.Vector{SpikeIntensity: float64(i)}
	}
	cal := FitCalibration(sample)
	if cal.SpikeP95 < 90 || cal.SpikeP95 > 99 {
		t.Errorf("spike p95 = %f, want in [90,99]", cal.SpikeP95)
	}
}
