package training

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/spendpulse/spendpulse/internal/ingest"
	"github.com/spendpulse/spendpulse/internal/metrics"
)

// BootstrapState is the observable phase of demo dataset preparation.
type BootstrapState string

const (
	StateIdle     BootstrapState = "idle"
	StateLoading  BootstrapState = "loading"
	StateTraining BootstrapState = "training"
	StateReady    BootstrapState = "ready"
	StateError    BootstrapState = "error"
)

// BootstrapStatus is a point-in-time snapshot for polling clients.
type BootstrapStatus struct {
	State     BootstrapState `json:"state"`
	DatasetID string         `json:"dataset_id,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Bootstrap loads and trains the configured demo dataset in the background
// so the first interactive request does not pay the fit cost. Start returns
// immediately; progress is observable through Status.
type Bootstrap struct {
	path    string
	maxRows int
	store   ingest.Store
	trainer *Trainer
	logger  *slog.Logger

	mu        sync.Mutex
	state     BootstrapState
	datasetID string
	errMsg    string
}

// NewBootstrap creates a demo bootstrap. An empty path leaves it idle.
func NewBootstrap(path string, maxRows int, store ingest.Store, trainer *Trainer, logger *slog.Logger) *Bootstrap {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bootstrap{
		path:    path,
		maxRows: maxRows,
		store:   store,
		trainer: trainer,
		logger:  logger,
		state:   StateIdle,
	}
}

// Start kicks off background preparation. Safe to call once at server boot.
func (b *Bootstrap) Start(ctx context.Context) {
	if b.path == "" {
		return
	}
	b.setState(StateLoading, "", "")
	go b.run(ctx)
}

func (b *Bootstrap) run(ctx context.Context) {
	f, err := os.Open(b.path)
	if err != nil {
		b.fail("open demo dataset", err)
		return
	}
	defer f.Close()

	ds, err := ingest.ParseCSV(f, b.maxRows)
	if err != nil {
		b.fail("parse demo dataset", err)
		return
	}
	if err := b.store.Put(ctx, ds); err != nil {
		b.fail("store demo dataset", err)
		return
	}
	metrics.DatasetsLoaded.Inc()
	metrics.DatasetRowsIngested.Add(float64(ds.Summary().Rows))

	b.setState(StateTraining, ds.ID(), "")
	b.logger.Info("demo dataset loaded",
		"dataset_id", ds.ID(),
		"rows", ds.Summary().Rows,
		"entities", ds.Summary().Entities,
	)

	if _, err := b.trainer.EnsureTrained(ctx, ds); err != nil {
		b.fail("train demo dataset", err)
		return
	}
	b.setState(StateReady, ds.ID(), "")
	b.logger.Info("demo dataset ready", "dataset_id", ds.ID())
}

// Status returns the current bootstrap snapshot.
func (b *Bootstrap) Status() BootstrapStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BootstrapStatus{State: b.state, DatasetID: b.datasetID, Error: b.errMsg}
}

// ReadyDatasetID returns the demo dataset id once preparation finished.
func (b *Bootstrap) ReadyDatasetID() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateReady {
		return "", false
	}
	return b.datasetID, true
}

func (b *Bootstrap) setState(s BootstrapState, datasetID, errMsg string) {
	b.mu.Lock()
	b.state = s
	if datasetID != "" {
		b.datasetID = datasetID
	}
	b.errMsg = errMsg
	b.mu.Unlock()
}

func (b *Bootstrap) fail(stage string, err error) {
	b.logger.Error("demo bootstrap failed", "stage", stage, "error", err)
	b.setState(StateError, "", stage+": "+err.Error())
}
