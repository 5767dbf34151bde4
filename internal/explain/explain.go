// Package explain turns scored features into human-readable evidence:
// ranked drivers, evidence sentences, and chart-ready series.
package explain

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/spendpulse/spendpulse/internal/features"
	"github.com/spendpulse/spendpulse/internal/ingest"
	"github.com/spendpulse/spendpulse/internal/scoring"
)

const eps = 1e-10

// Human-readable labels for score components, in display priority order.
var componentLabels = []struct {
	key   string
	label string
}{
	{"spike", "Spending spikes"},
	{"burst", "Burst buying"},
	{"eom", "End-of-month surge"},
	{"timing", "Timing triggers"},
	{"category", "Category concentration"},
}

// TopDrivers returns component labels ranked by contribution, largest
// first. Ties keep the fixed component order.
func TopDrivers(b scoring.Breakdown, n int) []string {
	values := map[string]float64{
		"spike":    b.Spike,
		"burst":    b.Burst,
		"eom":      b.EOM,
		"timing":   b.Timing,
		"category": b.Category,
	}

	ranked := make([]string, 0, len(componentLabels))
	for _, c := range componentLabels {
		ranked = append(ranked, c.key)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return values[ranked[i]] > values[ranked[j]]
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]string, 0, n)
	for _, key := range ranked[:n] {
		for _, c := range componentLabels {
			if c.key == key {
				out = append(out, c.label)
				break
			}
		}
	}
	return out
}

// Evidence produces short sentences grounded in feature values. At most 5.
func Evidence(v features.Vector) []string {
	var lines []string
	if v.LateNightRatio > 0.15 {
		lines = append(lines, fmt.Sprintf(
			"%d%% of transactions occurred late at night (22:00–04:59).",
			int(math.Round(v.LateNightRatio*100))))
	}
	if v.BurstRatio30Min > 0.2 {
		lines = append(lines, fmt.Sprintf(
			"%d%% of transaction gaps were under 30 minutes (burst pattern).",
			int(math.Round(v.BurstRatio30Min*100))))
	}
	if v.MaxTxIn2H >= 5 {
		lines = append(lines, fmt.Sprintf(
			"Largest 2-hour window had %d transactions.", v.MaxTxIn2H))
	}
	if v.EOMSpendRatio > 0.5 {
		lines = append(lines, fmt.Sprintf(
			"Last-5-days-of-month spend was %.1fx the rest-of-month spend.",
			v.EOMSpendRatio))
	}
	if v.CategoryConcentration > 0.5 {
		lines = append(lines, fmt.Sprintf(
			"Spending was concentrated in few categories (%d%% in top category).",
			int(math.Round(v.CategoryConcentration*100))))
	}
	if v.SpikeIntensity > 2 {
		lines = append(lines, "Daily spend or transaction count showed notable spikes.")
	}
	if len(lines) > 5 {
		lines = lines[:5]
	}
	return lines
}

// DailyPoint is one day of aggregated spend.
type DailyPoint struct {
	Date    string  `json:"date"`
	Value   float64 `json:"value"`
	IsSpike bool    `json:"is_spike"`
}

// HourlyPoint is the transaction count for one hour of day.
type HourlyPoint struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// CategoryShare is the transaction share of one category.
type CategoryShare struct {
	Category string  `json:"category"`
	Share    float64 `json:"share"`
}

// EOMComparison contrasts last-5-days-of-month spend against the rest.
type EOMComparison struct {
	Last5Days   float64 `json:"last_5_days"`
	RestOfMonth float64 `json:"rest_of_month"`
}

// ChartSeries holds chart-ready series for one entity.
type ChartSeries struct {
	DailySpend           []DailyPoint    `json:"daily_spend"`
	HourlyCounts         []HourlyPoint   `json:"hourly_counts"`
	CategoryDistribution []CategoryShare `json:"category_distribution"`
	EOMComparison        EOMComparison   `json:"eom_comparison"`
}

// BuildChartSeries aggregates an entity's transactions into display series.
func BuildChartSeries(txs []ingest.Transaction) ChartSeries {
	out := ChartSeries{
		DailySpend:           []DailyPoint{},
		HourlyCounts:         []HourlyPoint{},
		CategoryDistribution: []CategoryShare{},
	}
	if len(txs) == 0 {
		return out
	}

	dailyTotals := make(map[string]float64)
	hourCounts := make(map[int]int)
	catCounts := make(map[string]int)
	for _, tx := range txs {
		amt := math.Abs(tx.Amount)
		dailyTotals[tx.Timestamp.Format("2006-01-02")] += amt
		hourCounts[tx.Timestamp.Hour()]++
		catCounts[tx.Category3]++

		if inLastFiveDaysOfMonth(tx) {
			out.EOMComparison.Last5Days += amt
		} else {
			out.EOMComparison.RestOfMonth += amt
		}
	}

	// Daily spend, chronological, with a spike flag at z > 2.
	days := make([]string, 0, len(dailyTotals))
	for d := range dailyTotals {
		days = append(days, d)
	}
	sort.Strings(days)
	values := make([]float64, len(days))
	for i, d := range days {
		values[i] = dailyTotals[d]
	}
	var meanV, stdV float64
	if len(values) >= 2 {
		meanV = stat.Mean(values, nil)
		stdV = stat.StdDev(values, nil)
	}
	for i, d := range days {
		spike := stdV > 0 && (values[i]-meanV)/(stdV+eps) > 2
		out.DailySpend = append(out.DailySpend, DailyPoint{Date: d, Value: values[i], IsSpike: spike})
	}

	for h := 0; h < 24; h++ {
		if c, ok := hourCounts[h]; ok {
			out.HourlyCounts = append(out.HourlyCounts, HourlyPoint{Hour: h, Count: c})
		}
	}

	// Category shares, largest first; name breaks ties for stable output.
	cats := make([]string, 0, len(catCounts))
	for c := range catCounts {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		if catCounts[cats[i]] != catCounts[cats[j]] {
			return catCounts[cats[i]] > catCounts[cats[j]]
		}
		return cats[i] < cats[j]
	})
	total := float64(len(txs))
	for _, c := range cats {
		out.CategoryDistribution = append(out.CategoryDistribution, CategoryShare{
			Category: c,
			Share:    float64(catCounts[c]) / total,
		})
	}

	return out
}

func inLastFiveDaysOfMonth(tx ingest.Transaction) bool {
	t := tx.Timestamp
	daysInMonth := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
	return t.Day() >= daysInMonth-4
}
