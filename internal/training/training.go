// Package training orchestrates per-dataset model fitting. A dataset is
// trained at most once per process lifetime; the fitted artifacts are
// immutable and shared by every subsequent analysis.
package training

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/spendpulse/spendpulse/internal/features"
	"github.com/spendpulse/spendpulse/internal/ingest"
	"github.com/spendpulse/spendpulse/internal/metrics"
	"github.com/spendpulse/spendpulse/internal/profiling"
	"github.com/spendpulse/spendpulse/internal/scoring"
	"github.com/spendpulse/spendpulse/internal/syncutil"
	"github.com/spendpulse/spendpulse/internal/traces"
)

var (
	// ErrNotTrained is returned when artifacts are requested for a dataset
	// that has not been trained yet.
	ErrNotTrained = errors.New("dataset not trained")

	// ErrNoEntities is returned when a dataset has no entities to fit on.
	ErrNoEntities = errors.New("dataset has no entities")
)

// GlobalInsights summarizes score and profile distribution across the
// entities sampled during training.
type GlobalInsights struct {
	MeanScore       float64              `json:"mean_score"`
	P50Score        float64              `json:"p50_score"`
	P75Score        float64              `json:"p75_score"`
	P90Score        float64              `json:"p90_score"`
	BandCounts      map[scoring.Band]int `json:"band_counts"`
	ClusterCounts   map[string]int       `json:"cluster_counts"`
	SampledEntities int                  `json:"sampled_entities"`
}

// Artifacts is the immutable result of training one dataset.
type Artifacts struct {
	Trained          bool                `json:"trained"`
	TrainedUserCount int                 `json:"trained_user_count"`
	TrainedAt        time.Time           `json:"trained_at"`
	Calibration      scoring.Calibration `json:"calibration"`
	Profiler         *profiling.Profiler `json:"-"`
	Insights         GlobalInsights      `json:"insights"`
}

// Config controls training behaviour.
type Config struct {
	SampleCap int   // Max entities sampled for fitting (default 50 000)
	Seed      int64 // RNG seed for sampling and centroid init (default 42)
}

// DefaultConfig returns the production training configuration.
func DefaultConfig() Config {
	return Config{SampleCap: profiling.DefaultMaxFitSamples, Seed: profiling.DefaultSeed}
}

// Trainer fits and caches artifacts per dataset id.
type Trainer struct {
	cfg       Config
	logger    *slog.Logger
	mu        sync.RWMutex
	artifacts map[string]*Artifacts
	locks     *syncutil.ContextShardedMutex
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithLogger sets the logger used during training.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trainer) {
		t.logger = logger
	}
}

// New creates a Trainer.
func New(cfg Config, opts ...Option) *Trainer {
	if cfg.SampleCap <= 0 {
		cfg.SampleCap = profiling.DefaultMaxFitSamples
	}
	t := &Trainer{
		cfg:       cfg,
		logger:    slog.Default(),
		artifacts: make(map[string]*Artifacts),
		locks:     syncutil.NewContextShardedMutex(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Artifacts returns the fitted artifacts for a dataset, or ErrNotTrained.
func (t *Trainer) Artifacts(datasetID string) (*Artifacts, error) {
	t.mu.RLock()
	a := t.artifacts[datasetID]
	t.mu.RUnlock()
	if a == nil {
		return nil, ErrNotTrained
	}
	return a, nil
}

// EnsureTrained fits the dataset if it has not been fitted yet and returns
// the artifacts. Concurrent calls for the same dataset serialize on a
// per-dataset lock; every caller receives the same record. A failed fit
// installs nothing, so a later call retries.
func (t *Trainer) EnsureTrained(ctx context.Context, ds *ingest.Dataset) (*Artifacts, error) {
	id := ds.ID()

	t.mu.RLock()
	a := t.artifacts[id]
	t.mu.RUnlock()
	if a != nil {
		metrics.TrainingsTotal.WithLabelValues("cached").Inc()
		return a, nil
	}

	unlock, err := t.locks.LockContext(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-check under the per-dataset lock: another caller may have
	// finished while we waited.
	t.mu.RLock()
	a = t.artifacts[id]
	t.mu.RUnlock()
	if a != nil {
		metrics.TrainingsTotal.WithLabelValues("cached").Inc()
		return a, nil
	}

	a, err = t.fit(ctx, ds)
	if err != nil {
		metrics.TrainingsTotal.WithLabelValues("failed").Inc()
		t.logger.Error("training failed", "dataset_id", id, "error", err)
		return nil, err
	}

	t.mu.Lock()
	t.artifacts[id] = a
	t.mu.Unlock()

	metrics.TrainingsTotal.WithLabelValues("fitted").Inc()
	t.logger.Info("dataset trained",
		"dataset_id", id,
		"entities_sampled", a.TrainedUserCount,
		"mean_score", a.Insights.MeanScore,
	)
	return a, nil
}

func (t *Trainer) fit(ctx context.Context, ds *ingest.Dataset) (*Artifacts, error) {
	start := time.Now()
	ctx, span := traces.StartSpan(ctx, "training.fit", traces.DatasetID(ds.ID()))
	defer span.End()

	entities := sampleEntities(ds.Entities(), t.cfg.SampleCap, t.cfg.Seed)
	if len(entities) == 0 {
		return nil, ErrNoEntities
	}

	vecs := make([]features.Vector, 0, len(entities))
	for i, entityID := range entities {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		txs, err := ds.EntityTransactions(entityID)
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, features.Extract(txs))
	}

	cal := scoring.FitCalibration(vecs)
	prof := profiling.Fit(vecs, profiling.Config{
		MaxFitSamples: t.cfg.SampleCap,
		Seed:          t.cfg.Seed,
	})

	insights := computeInsights(vecs, cal, prof)

	metrics.TrainingDuration.Observe(time.Since(start).Seconds())
	metrics.TrainingEntitiesSampled.Observe(float64(len(entities)))
	span.SetAttributes(traces.EntityCount(len(entities)))

	return &Artifacts{
		Trained:          true,
		TrainedUserCount: len(entities),
		TrainedAt:        time.Now().UTC(),
		Calibration:      cal,
		Profiler:         prof,
		Insights:         insights,
	}, nil
}

// sampleEntities picks up to cap entity ids deterministically. The input
// slice is sorted, so the seeded permutation is reproducible across runs.
func sampleEntities(entities []string, limit int, seed int64) []string {
	if len(entities) <= limit {
		return entities
	}
	rng := rand.New(rand.NewSource(seed))
	idx := rng.Perm(len(entities))[:limit]
	out := make([]string, 0, limit)
	for _, i := range idx {
		out = append(out, entities[i])
	}
	return out
}

func computeInsights(vecs []features.Vector, cal scoring.Calibration, prof *profiling.Profiler) GlobalInsights {
	scores := make([]float64, 0, len(vecs))
	bands := map[scoring.Band]int{
		scoring.BandLow:      0,
		scoring.BandMedium:   0,
		scoring.BandHigh:     0,
		scoring.BandCritical: 0,
	}
	clusters := make(map[string]int)

	for _, v := range vecs {
		res := scoring.Score(v, cal)
		scores = append(scores, res.Score)
		bands[res.Band]++
		clusters[prof.Assign(v).Label]++
	}

	sort.Float64s(scores)
	return GlobalInsights{
		MeanScore:       round1(stat.Mean(scores, nil)),
		P50Score:        round1(stat.Quantile(0.50, stat.LinInterp, scores, nil)),
		P75Score:        round1(stat.Quantile(0.75, stat.LinInterp, scores, nil)),
		P90Score:        round1(stat.Quantile(0.90, stat.LinInterp, scores, nil)),
		BandCounts:      bands,
		ClusterCounts:   clusters,
		SampledEntities: len(vecs),
	}
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
