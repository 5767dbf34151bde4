// Package features computes the per-entity behavioural feature vector from
// raw transaction rows.
//
// Extraction is a total function: any input, including an empty slice,
// produces a well-defined vector. Results are independent of input ordering
// because transactions are sorted by timestamp before any gap or window
// math runs.
package features

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/spendpulse/spendpulse/internal/ingest"
)

// eps guards divisions against zero denominators.
const eps = 1e-10

// Vector is the fixed-shape behavioural summary of one entity.
// Ratios are in [0,1]; counts are non-negative.
type Vector struct {
	LateNightRatio        float64 `json:"late_night_ratio"`
	WeekendRatio          float64 `json:"weekend_ratio"`
	HourEntropy           float64 `json:"hour_entropy"`
	SpikeIntensity        float64 `json:"spike_intensity"`
	BurstRatio30Min       float64 `json:"burst_ratio_30min"`
	MaxTxIn2H             int     `json:"max_tx_in_2h"`
	EOMSpendRatio         float64 `json:"eom_spend_ratio"`
	EOMCountRatio         float64 `json:"eom_count_ratio"`
	CategoryConcentration float64 `json:"category_concentration"`
	CategoryDiversity     int     `json:"category_diversity"`
	TxCount               int     `json:"tx_count"`
	TotalSpend            float64 `json:"total_spend"`
}

// Extract computes the feature vector for one entity's transactions.
func Extract(txs []ingest.Transaction) Vector {
	n := len(txs)
	if n == 0 {
		return Vector{}
	}

	sorted := make([]ingest.Transaction, n)
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var v Vector
	v.TxCount = n

	var hourCounts [24]int
	var lateNight, weekend int
	for _, tx := range sorted {
		h := tx.Timestamp.Hour()
		hourCounts[h]++
		if h >= 22 || h < 5 {
			lateNight++
		}
		wd := tx.Timestamp.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			weekend++
		}
		v.TotalSpend += math.Abs(tx.Amount)
	}
	v.LateNightRatio = float64(lateNight) / float64(n)
	v.WeekendRatio = float64(weekend) / float64(n)
	v.HourEntropy = hourEntropy(hourCounts[:], n)

	v.SpikeIntensity = spikeIntensity(sorted)
	v.BurstRatio30Min = burstRatio(sorted)
	v.MaxTxIn2H = maxTxIn2h(sorted)
	v.EOMSpendRatio, v.EOMCountRatio = eomRatios(sorted)
	v.CategoryConcentration, v.CategoryDiversity = categoryStats(sorted)

	return v
}

// hourEntropy is the Shannon entropy (base 2) of the hour-of-day
// distribution. Fewer than 2 transactions carry no spread information.
func hourEntropy(counts []int, total int) float64 {
	if total < 2 {
		return 0
	}
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// spikeIntensity aggregates transactions per calendar day and returns the
// larger of the two maximum absolute z-scores (daily count, daily spend),
// using population mean/std. Fewer than 2 distinct days yields 0.
func spikeIntensity(txs []ingest.Transaction) float64 {
	type dayAgg struct {
		count float64
		spend float64
	}
	days := make(map[string]*dayAgg)
	order := make([]string, 0)
	for _, tx := range txs {
		key := tx.Timestamp.Format("2006-01-02")
		agg, ok := days[key]
		if !ok {
			agg = &dayAgg{}
			days[key] = agg
			order = append(order, key)
		}
		agg.count++
		agg.spend += math.Abs(tx.Amount)
	}
	if len(days) < 2 {
		return 0
	}

	counts := make([]float64, 0, len(order))
	spends := make([]float64, 0, len(order))
	for _, key := range order {
		counts = append(counts, days[key].count)
		spends = append(spends, days[key].spend)
	}
	return math.Max(maxAbsZScore(counts), maxAbsZScore(spends))
}

// maxAbsZScore returns max |x - mean| / (popStd + eps) over xs.
func maxAbsZScore(xs []float64) float64 {
	mean := stat.Mean(xs, nil)
	var variance float64
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(xs)))

	var maxZ float64
	for _, x := range xs {
		z := math.Abs(x-mean) / (std + eps)
		if z > maxZ {
			maxZ = z
		}
	}
	return maxZ
}

// burstRatio is the fraction of strictly positive consecutive gaps that are
// at most 30 minutes. No positive gaps yields 0.
func burstRatio(txs []ingest.Transaction) float64 {
	var positive, short int
	for i := 1; i < len(txs); i++ {
		gap := txs[i].Timestamp.Sub(txs[i-1].Timestamp)
		if gap <= 0 {
			continue
		}
		positive++
		if gap <= 30*time.Minute {
			short++
		}
	}
	if positive == 0 {
		return 0
	}
	return float64(short) / float64(positive)
}

// maxTxIn2h finds the densest closed 2-hour window [t, t+2h] over the sorted
// transactions with a linear two-pointer scan.
func maxTxIn2h(txs []ingest.Transaction) int {
	best := 0
	j := 0
	for i := range txs {
		if j < i {
			j = i
		}
		end := txs[i].Timestamp.Add(2 * time.Hour)
		for j < len(txs) && !txs[j].Timestamp.After(end) {
			j++
		}
		if j-i > best {
			best = j - i
		}
	}
	return best
}

// eomRatios compares spend and count in the last 5 calendar days of each
// transaction's month against the rest of that month, summed over the
// entity's history.
func eomRatios(txs []ingest.Transaction) (spendRatio, countRatio float64) {
	var lastSpend, restSpend float64
	var lastCount, restCount float64
	for _, tx := range txs {
		amt := math.Abs(tx.Amount)
		if inLastFiveDaysOfMonth(tx.Timestamp) {
			lastSpend += amt
			lastCount++
		} else {
			restSpend += amt
			restCount++
		}
	}
	return lastSpend / (restSpend + eps), lastCount / (restCount + eps)
}

func inLastFiveDaysOfMonth(t time.Time) bool {
	daysInMonth := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
	return t.Day() >= daysInMonth-4
}

// categoryStats returns the max share of any single tertiary category and
// the count of distinct tertiary categories.
func categoryStats(txs []ingest.Transaction) (concentration float64, diversity int) {
	counts := make(map[string]int)
	for _, tx := range txs {
		counts[tx.Category3]++
	}
	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	return float64(maxCount) / float64(len(txs)), len(counts)
}
