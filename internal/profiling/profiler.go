// Package profiling segments entities into behavioural clusters.
//
// A Profiler is fit once per dataset on a z-standardized 6-dimensional
// subspace of the feature vector and afterwards assigns any vector to one of
// 5 fixed, human-labelled clusters. When the population is too small to
// cluster, assignment falls back to the default "Steady spender" profile
// instead of failing.
package profiling

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/spendpulse/spendpulse/internal/features"
)

// ClusterCount is the fixed number of behavioural segments.
const ClusterCount = 5

// DefaultMaxFitSamples caps how many entities a single fit will consume.
const DefaultMaxFitSamples = 50_000

// DefaultSeed drives subsampling and centroid initialization. Injectable via
// Config so tests can control determinism.
const DefaultSeed = 42

// Cluster id -> display label.
var profileLabels = [ClusterCount]string{
	"Steady spender",
	"Late-night spender",
	"Impulse burst buyer",
	"End-of-month splurger",
	"Category-loyal spender",
}

// Label returns the display label for a cluster id.
func Label(clusterID int) string {
	if clusterID < 0 || clusterID >= ClusterCount {
		return profileLabels[0]
	}
	return profileLabels[clusterID]
}

// Config controls fitting.
type Config struct {
	MaxFitSamples int
	Seed          int64
}

// DefaultConfig returns the production fitting configuration.
func DefaultConfig() Config {
	return Config{MaxFitSamples: DefaultMaxFitSamples, Seed: DefaultSeed}
}

// Profile is the cluster assignment for one entity.
type Profile struct {
	ClusterID      int                `json:"cluster_id"`
	Label          string             `json:"profile_label"`
	Interpretation string             `json:"interpretation"`
	KeyStats       map[string]float64 `json:"key_stats"`
}

// Profiler holds a fitted scaler and partition model. Immutable after Fit;
// safe for concurrent Assign calls.
type Profiler struct {
	scaler *scaler
	model  Model
	fitted bool
}

// Fit fits a profiler on a sample of feature vectors using the default
// k-means partitioner. Fewer than ClusterCount samples yields an unfitted
// profiler whose Assign falls back to the default profile.
func Fit(sample []features.Vector, cfg Config) *Profiler {
	return FitWith(sample, NewKMeans(ClusterCount, cfg.Seed), cfg)
}

// FitWith fits using a caller-supplied partitioner.
func FitWith(sample []features.Vector, part Partitioner, cfg Config) *Profiler {
	if len(sample) < ClusterCount {
		return &Profiler{}
	}
	if cfg.MaxFitSamples <= 0 {
		cfg.MaxFitSamples = DefaultMaxFitSamples
	}

	points := make([][]float64, 0, len(sample))
	for _, v := range sample {
		points = append(points, clusterPoint(v))
	}
	if len(points) > cfg.MaxFitSamples {
		rng := rand.New(rand.NewSource(cfg.Seed))
		idx := rng.Perm(len(points))[:cfg.MaxFitSamples]
		sub := make([][]float64, 0, cfg.MaxFitSamples)
		for _, i := range idx {
			sub = append(sub, points[i])
		}
		points = sub
	}

	sc := fitScaler(points)
	scaled := make([][]float64, len(points))
	for i, p := range points {
		scaled[i] = sc.transform(p)
	}

	model, err := part.Fit(scaled)
	if err != nil {
		return &Profiler{}
	}
	return &Profiler{scaler: sc, model: model, fitted: true}
}

// Fitted reports whether a model was actually fit.
func (p *Profiler) Fitted() bool { return p != nil && p.fitted }

// Assign maps a feature vector to its behavioural profile. The
// interpretation sentence is a transparency heuristic derived from feature
// thresholds, independent of the assigned cluster id.
func (p *Profiler) Assign(v features.Vector) Profile {
	if !p.Fitted() {
		return Profile{
			ClusterID:      0,
			Label:          profileLabels[0],
			Interpretation: "Insufficient data for behaviour profile.",
			KeyStats:       keyStats(v),
		}
	}
	id := p.model.Predict(p.scaler.transform(clusterPoint(v)))
	return Profile{
		ClusterID:      id,
		Label:          Label(id),
		Interpretation: interpret(v),
		KeyStats:       keyStats(v),
	}
}

// clusterPoint projects a vector onto the 6 clustering dimensions, in fixed
// order.
func clusterPoint(v features.Vector) []float64 {
	return []float64{
		v.LateNightRatio,
		v.WeekendRatio,
		v.SpikeIntensity,
		v.BurstRatio30Min,
		v.EOMSpendRatio,
		v.CategoryConcentration,
	}
}

func keyStats(v features.Vector) map[string]float64 {
	return map[string]float64{
		"late_night_ratio":       v.LateNightRatio,
		"weekend_ratio":          v.WeekendRatio,
		"spike_intensity":        v.SpikeIntensity,
		"burst_ratio_30min":      v.BurstRatio30Min,
		"eom_spend_ratio":        v.EOMSpendRatio,
		"category_concentration": v.CategoryConcentration,
	}
}

// interpret picks an explanation by fixed priority thresholds.
func interpret(v features.Vector) string {
	switch {
	case v.LateNightRatio > 0.2:
		return "More transactions occur late at night."
	case v.BurstRatio30Min > 0.25:
		return "Frequent short-interval (burst) purchases."
	case v.EOMSpendRatio > 0.8:
		return "Spending tends to rise at end of month."
	case v.CategoryConcentration > 0.5:
		return "Spending concentrated in few categories."
	default:
		return "Relatively steady spending pattern across time and categories."
	}
}

// scaler standardizes each dimension to zero mean and unit variance
// (population std; zero-variance dimensions pass through unscaled).
type scaler struct {
	mean []float64
	std  []float64
}

func fitScaler(points [][]float64) *scaler {
	dim := len(points[0])
	sc := &scaler{mean: make([]float64, dim), std: make([]float64, dim)}

	col := make([]float64, len(points))
	for d := 0; d < dim; d++ {
		for i, p := range points {
			col[i] = p[d]
		}
		mean := stat.Mean(col, nil)
		var variance float64
		for _, x := range col {
			diff := x - mean
			variance += diff * diff
		}
		std := math.Sqrt(variance / float64(len(col)))
		if std == 0 {
			std = 1
		}
		sc.mean[d] = mean
		sc.std[d] = std
	}
	return sc
}

func (s *scaler) transform(p []float64) []float64 {
	out := make([]float64, len(p))
	for d, x := range p {
		out[d] = (x - s.mean[d]) / s.std[d]
	}
	return out
}
