package server

import (
	"errors"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spendpulse/spendpulse/internal/explain"
	"github.com/spendpulse/spendpulse/internal/features"
	"github.com/spendpulse/spendpulse/internal/ingest"
	"github.com/spendpulse/spendpulse/internal/logging"
	"github.com/spendpulse/spendpulse/internal/metrics"
	"github.com/spendpulse/spendpulse/internal/pagination"
	"github.com/spendpulse/spendpulse/internal/scoring"
	"github.com/spendpulse/spendpulse/internal/traces"
	"github.com/spendpulse/spendpulse/internal/training"
	"github.com/spendpulse/spendpulse/internal/validation"
)

// UploadResponse summarizes a freshly ingested dataset.
type UploadResponse struct {
	DatasetID string   `json:"dataset_id"`
	Rows      int      `json:"rows"`
	Users     int      `json:"users"`
	DateRange []string `json:"date_range"`
}

func uploadResponse(ds *ingest.Dataset) UploadResponse {
	sum := ds.Summary()
	return UploadResponse{
		DatasetID: ds.ID(),
		Rows:      sum.Rows,
		Users:     sum.Entities,
		DateRange: []string{
			sum.FirstDate.Format("2006-01-02"),
			sum.LastDate.Format("2006-01-02"),
		},
	}
}

func (s *Server) uploadDatasetHandler(c *gin.Context) {
	if c.Query("demo") == "1" {
		s.loadDemoDataset(c)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "no file provided",
		})
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "file must be a CSV",
		})
		return
	}

	ctx, span := traces.StartSpan(c.Request.Context(), "ingest")
	defer span.End()

	ds, err := ingest.ParseCSV(file, s.cfg.MaxRows)
	if err != nil {
		if errors.Is(err, ingest.ErrNoValidRows) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": "no valid transaction rows in file",
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	if err := s.store.Put(ctx, ds); err != nil {
		s.serverError(c, "store dataset", err)
		return
	}
	sum := ds.Summary()
	span.SetAttributes(traces.DatasetID(ds.ID()),
		traces.RowCount(sum.Rows), traces.EntityCount(sum.Entities))
	metrics.DatasetsLoaded.Inc()
	metrics.DatasetRowsIngested.Add(float64(sum.Rows))

	logging.L(ctx).Info("dataset uploaded",
		"dataset_id", ds.ID(),
		"rows", sum.Rows,
		"entities", sum.Entities,
	)
	c.JSON(http.StatusOK, uploadResponse(ds))
}

// loadDemoDataset serves ?demo=1 uploads. If the background bootstrap
// already prepared the demo dataset, that one is reused; otherwise the
// configured file is loaded synchronously.
func (s *Server) loadDemoDataset(c *gin.Context) {
	if id, ok := s.bootstrap.ReadyDatasetID(); ok {
		if ds, err := s.store.Get(c.Request.Context(), id); err == nil {
			c.JSON(http.StatusOK, uploadResponse(ds))
			return
		}
	}

	if s.cfg.DemoDatasetPath == "" {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "config_error",
			"message": "demo dataset path not configured",
		})
		return
	}

	f, err := os.Open(s.cfg.DemoDatasetPath)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "demo dataset file not found",
		})
		return
	}
	defer f.Close()

	ds, err := ingest.ParseCSV(f, s.cfg.MaxRows)
	if err != nil {
		s.serverError(c, "parse demo dataset", err)
		return
	}
	if err := s.store.Put(c.Request.Context(), ds); err != nil {
		s.serverError(c, "store demo dataset", err)
		return
	}
	metrics.DatasetsLoaded.Inc()
	metrics.DatasetRowsIngested.Add(float64(ds.Summary().Rows))

	c.JSON(http.StatusOK, uploadResponse(ds))
}

func (s *Server) getDatasetHandler(c *gin.Context) {
	ds, ok := s.dataset(c)
	if !ok {
		return
	}

	trained := false
	var trainedAt *time.Time
	if a, err := s.trainer.Artifacts(ds.ID()); err == nil {
		trained = true
		trainedAt = &a.TrainedAt
	}

	sum := ds.Summary()
	c.JSON(http.StatusOK, gin.H{
		"dataset_id": ds.ID(),
		"rows":       sum.Rows,
		"users":      sum.Entities,
		"date_range": []string{
			sum.FirstDate.Format("2006-01-02"),
			sum.LastDate.Format("2006-01-02"),
		},
		"trained":    trained,
		"trained_at": trainedAt,
	})
}

const (
	defaultEntityPageSize = 100
	maxEntityPageSize     = 1000
)

func (s *Server) listEntitiesHandler(c *gin.Context) {
	ds, ok := s.dataset(c)
	if !ok {
		return
	}

	limit := defaultEntityPageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": "limit must be a positive integer",
			})
			return
		}
		if n > maxEntityPageSize {
			n = maxEntityPageSize
		}
		limit = n
	}

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "invalid cursor",
		})
		return
	}

	// Entity list is sorted by id, so the cursor is the last id seen.
	all := ds.EntityList()
	if cursor != nil {
		i := sort.Search(len(all), func(i int) bool {
			return all[i].EntityID > cursor.ID
		})
		all = all[i:]
	}
	if len(all) > limit+1 {
		all = all[:limit+1]
	}

	page, next, hasMore := pagination.ComputePage(all, limit, func(e ingest.EntityInfo) string {
		return e.EntityID
	})

	c.JSON(http.StatusOK, gin.H{
		"users":       page,
		"next_cursor": next,
		"has_more":    hasMore,
	})
}

func (s *Server) trainHandler(c *gin.Context) {
	ds, ok := s.dataset(c)
	if !ok {
		return
	}

	a, err := s.trainer.EnsureTrained(c.Request.Context(), ds)
	if err != nil {
		if errors.Is(err, training.ErrNoEntities) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": "dataset has no entities to train on",
			})
			return
		}
		s.serverError(c, "train dataset", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trained":            a.Trained,
		"trained_user_count": a.TrainedUserCount,
		"trained_at":         a.TrainedAt,
		"calibration":        a.Calibration,
		"insights":           a.Insights,
	})
}

func (s *Server) insightsHandler(c *gin.Context) {
	ds, ok := s.dataset(c)
	if !ok {
		return
	}

	a, err := s.trainer.Artifacts(ds.ID())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_trained",
			"message": "dataset has not been trained",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"dataset_id":         ds.ID(),
		"trained_at":         a.TrainedAt,
		"trained_user_count": a.TrainedUserCount,
		"insights":           a.Insights,
	})
}

func (s *Server) analysisHandler(c *gin.Context) {
	ds, ok := s.dataset(c)
	if !ok {
		return
	}

	entityID := c.Param("entityId")
	if !validation.IsValidEntityID(entityID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "invalid entity id",
		})
		return
	}

	txs, err := ds.EntityTransactions(entityID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "entity not found in dataset",
		})
		return
	}

	ctx, span := traces.StartSpan(c.Request.Context(), "analysis",
		traces.DatasetID(ds.ID()), traces.EntityID(entityID))
	defer span.End()

	// First analysis on an untrained dataset fits it on demand.
	a, err := s.trainer.EnsureTrained(ctx, ds)
	if err != nil {
		s.serverError(c, "train dataset", err)
		return
	}

	v := features.Extract(txs)
	result := scoring.Score(v, a.Calibration)
	profile := a.Profiler.Assign(v)
	drivers := explain.TopDrivers(result.Breakdown, 5)

	span.SetAttributes(traces.Band(string(result.Band)))
	metrics.AnalysesTotal.WithLabelValues(string(result.Band)).Inc()

	c.JSON(http.StatusOK, gin.H{
		"entity_id":       entityID,
		"features":        v,
		"risk_score":      result.Score,
		"risk_band":       result.Band,
		"score_breakdown": result.Breakdown,
		"top_drivers":     drivers,
		"profile":         profile,
		"evidence":        explain.Evidence(v),
		"chart_series":    explain.BuildChartSeries(txs),
	})
}

// NudgeRequest carries the aggregated analysis summary nudges are built
// from. No raw transaction data crosses this boundary.
type NudgeRequest struct {
	RiskScore    float64            `json:"risk_score"`
	RiskBand     string             `json:"risk_band"`
	ProfileLabel string             `json:"profile_label"`
	TopDrivers   []string           `json:"top_drivers"`
	Metrics      map[string]float64 `json:"metrics"`
}

func (s *Server) nudgesHandler(c *gin.Context) {
	var req NudgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.Required("risk_band", req.RiskBand),
		validation.MaxLength("risk_band", req.RiskBand, 32),
		validation.MaxLength("profile_label", req.ProfileLabel, validation.MaxStringLength),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
		})
		return
	}

	// Drivers feed substring matching; strip noise before they do.
	for i, d := range req.TopDrivers {
		req.TopDrivers[i] = validation.SanitizeString(d, 200)
	}

	band := scoring.Band(req.RiskBand)
	switch band {
	case scoring.BandLow, scoring.BandMedium, scoring.BandHigh, scoring.BandCritical:
	default:
		band = scoring.BandLow
	}

	c.JSON(http.StatusOK, gin.H{"nudges": explain.Nudges(band, req.TopDrivers)})
}

func (s *Server) demoStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.bootstrap.Status())
}

// dataset resolves the :id param to a stored dataset, writing the 404
// response itself when missing.
func (s *Server) dataset(c *gin.Context) (*ingest.Dataset, bool) {
	ds, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "dataset not found",
		})
		return nil, false
	}
	return ds, true
}

func (s *Server) serverError(c *gin.Context, op string, err error) {
	logging.L(c.Request.Context()).Error(op+" failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "server_error",
		"message": "An unexpected error occurred",
	})
}
