package features

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/spendpulse/spendpulse/internal/ingest"
)

func tx(entity string, ts time.Time, amount float64, cat3 string) ingest.Transaction {
	return ingest.Transaction{
		EntityID:  entity,
		Timestamp: ts,
		Amount:    amount,
		Category1: "A",
		Category2: "B",
		Category3: cat3,
	}
}

func TestExtractEmpty(t *testing.T) {
	v := Extract(nil)
	if v != (Vector{}) {
		t.Errorf("empty input should produce zero vector, got %+v", v)
	}
}

func TestExtractSingleTransaction(t *testing.T) {
	// Tuesday 14:00, mid-month
	ts := time.Date(2024, 3, 12, 14, 0, 0, 0, time.UTC)
	v := Extract([]ingest.Transaction{tx("c1", ts, 25.0, "groceries")})

	if v.TxCount != 1 {
		t.Errorf("tx_count = %d, want 1", v.TxCount)
	}
	if v.HourEntropy != 0 {
		t.Errorf("hour_entropy = %f, want 0 for single transaction", v.HourEntropy)
	}
	if v.MaxTxIn2H != 1 {
		t.Errorf("max_tx_in_2h = %d, want 1", v.MaxTxIn2H)
	}
	if v.BurstRatio30Min != 0 {
		t.Errorf("burst_ratio_30min = %f, want 0 (no gaps)", v.BurstRatio30Min)
	}
	if v.SpikeIntensity != 0 {
		t.Errorf("spike_intensity = %f, want 0 (single day)", v.SpikeIntensity)
	}
	if v.LateNightRatio != 0 {
		t.Errorf("late_night_ratio = %f, want 0 for a 14:00 purchase", v.LateNightRatio)
	}
	if v.CategoryDiversity != 1 || v.CategoryConcentration != 1.0 {
		t.Errorf("category stats = (%f, %d), want (1.0, 1)",
			v.CategoryConcentration, v.CategoryDiversity)
	}
}

// Ten transactions at 02:00, same calendar day, 5-minute gaps: the canonical
// late-night burst.
func TestExtractLateNightBurst(t *testing.T) {
	base := time.Date(2024, 3, 13, 2, 0, 0, 0, time.UTC)
	var txs []ingest.Transaction
	for i := 0; i < 10; i++ {
		txs = append(txs, tx("c1", base.Add(time.Duration(i)*5*time.Minute), 10, "misc"))
	}

	v := Extract(txs)
	if v.LateNightRatio != 1.0 {
		t.Errorf("late_night_ratio = %f, want 1.0", v.LateNightRatio)
	}
	if v.BurstRatio30Min != 1.0 {
		t.Errorf("burst_ratio_30min = %f, want 1.0", v.BurstRatio30Min)
	}
	if v.MaxTxIn2H != 10 {
		t.Errorf("max_tx_in_2h = %d, want 10", v.MaxTxIn2H)
	}
	if v.SpikeIntensity != 0 {
		t.Errorf("spike_intensity = %f, want 0 (single day)", v.SpikeIntensity)
	}
}

func TestExtractOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	var txs []ingest.Transaction
	for i := 0; i < 50; i++ {
		txs = append(txs, tx("c1",
			base.Add(time.Duration(rng.Intn(90*24))*time.Hour),
			rng.Float64()*200-20,
			[]string{"food", "tech", "travel"}[i%3]))
	}

	want := Extract(txs)

	shuffled := make([]ingest.Transaction, len(txs))
	copy(shuffled, txs)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	got := Extract(shuffled)

	if got != want {
		t.Errorf("extraction depends on input order:\n got %+v\nwant %+v", got, want)
	}
}

func TestExtractRangeInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	base := time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC)
	for trial := 0; trial < 20; trial++ {
		n := rng.Intn(40) + 1
		var txs []ingest.Transaction
		for i := 0; i < n; i++ {
			txs = append(txs, tx("c1",
				base.Add(time.Duration(rng.Intn(200*24*60))*time.Minute),
				rng.Float64()*500-100,
				[]string{"a", "b", "c", "d", "e"}[rng.Intn(5)]))
		}
		v := Extract(txs)

		for name, r := range map[string]float64{
			"late_night_ratio":       v.LateNightRatio,
			"weekend_ratio":          v.WeekendRatio,
			"burst_ratio_30min":      v.BurstRatio30Min,
			"category_concentration": v.CategoryConcentration,
		} {
			if r < 0 || r > 1 {
				t.Errorf("trial %d: %s = %f outside [0,1]", trial, name, r)
			}
		}
		if v.MaxTxIn2H < 1 {
			t.Errorf("trial %d: max_tx_in_2h = %d, want >= 1 with transactions present", trial, v.MaxTxIn2H)
		}
		if v.CategoryDiversity < 1 {
			t.Errorf("trial %d: category_diversity = %d, want >= 1", trial, v.CategoryDiversity)
		}
		if v.HourEntropy < 0 {
			t.Errorf("trial %d: hour_entropy = %f, want >= 0", trial, v.HourEntropy)
		}
		if v.SpikeIntensity < 0 || math.IsNaN(v.SpikeIntensity) {
			t.Errorf("trial %d: spike_intensity = %f invalid", trial, v.SpikeIntensity)
		}
		if v.TotalSpend < 0 {
			t.Errorf("trial %d: total_spend = %f, want >= 0 (amounts abs'd)", trial, v.TotalSpend)
		}
	}
}

func TestWeekendRatio(t *testing.T) {
	// Sat 2024-03-16, Sun 2024-03-17, Mon 2024-03-18
	txs := []ingest.Transaction{
		tx("c1", time.Date(2024, 3, 16, 10, 0, 0, 0, time.UTC), 10, "x"),
		tx("c1", time.Date(2024, 3, 17, 10, 0, 0, 0, time.UTC), 10, "x"),
		tx("c1", time.Date(2024, 3, 18, 10, 0, 0, 0, time.UTC), 10, "x"),
		tx("c1", time.Date(2024, 3, 18, 12, 0, 0, 0, time.UTC), 10, "x"),
	}
	v := Extract(txs)
	if v.WeekendRatio != 0.5 {
		t.Errorf("weekend_ratio = %f, want 0.5", v.WeekendRatio)
	}
}

func TestHourEntropyUniform(t *testing.T) {
	// 4 transactions in 4 distinct hours: entropy = log2(4) = 2
	base := time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC)
	var txs []ingest.Transaction
	for i := 0; i < 4; i++ {
		txs = append(txs, tx("c1", base.Add(time.Duration(i)*time.Hour), 5, "x"))
	}
	v := Extract(txs)
	if math.Abs(v.HourEntropy-2.0) > 1e-9 {
		t.Errorf("hour_entropy = %f, want 2.0", v.HourEntropy)
	}
}

func TestEOMRatios(t *testing.T) {
	// March 2024 has 31 days; the 27th..31st are the last 5 days.
	txs := []ingest.Transaction{
		tx("c1", time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), 30, "x"),
		tx("c1", time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), 30, "x"),
		tx("c1", time.Date(2024, 3, 28, 12, 0, 0, 0, time.UTC), 60, "x"),
		tx("c1", time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC), 60, "x"),
	}
	v := Extract(txs)
	if math.Abs(v.EOMSpendRatio-2.0) > 1e-6 {
		t.Errorf("eom_spend_ratio = %f, want ~2.0", v.EOMSpendRatio)
	}
	if math.Abs(v.EOMCountRatio-1.0) > 1e-6 {
		t.Errorf("eom_count_ratio = %f, want ~1.0", v.EOMCountRatio)
	}
}

func TestMaxTxIn2hBoundaryInclusive(t *testing.T) {
	base := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	txs := []ingest.Transaction{
		tx("c1", base, 10, "x"),
		tx("c1", base.Add(2*time.Hour), 10, "x"),               // exactly on the closed boundary
		tx("c1", base.Add(2*time.Hour+time.Second), 10, "x"),   // just outside the first window
		tx("c1", base.Add(10*time.Hour), 10, "x"),
	}
	v := Extract(txs)
	// Window starting at base+2h covers the boundary tx and the one a second later.
	if v.MaxTxIn2H != 2 {
		t.Errorf("max_tx_in_2h = %d, want 2", v.MaxTxIn2H)
	}
}

func TestSpikeIntensityFlatDays(t *testing.T) {
	// Identical daily totals: z-scores are all 0.
	var txs []ingest.Transaction
	for d := 0; d < 5; d++ {
		txs = append(txs, tx("c1",
			time.Date(2024, 3, 10+d, 12, 0, 0, 0, time.UTC), 50, "x"))
	}
	v := Extract(txs)
	if v.SpikeIntensity != 0 {
		t.Errorf("spike_intensity = %f, want 0 for flat days", v.SpikeIntensity)
	}
}

func TestSpikeIntensityDetectsSpike(t *testing.T) {
	var txs []ingest.Transaction
	for d := 0; d < 9; d++ {
		txs = append(txs, tx("c1",
			time.Date(2024, 3, 1+d, 12, 0, 0, 0, time.UTC), 10, "x"))
	}
	// One day with 20x spend
	txs = append(txs, tx("c1", time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), 200, "x"))

	v := Extract(txs)
	if v.SpikeIntensity < 2.0 {
		t.Errorf("spike_intensity = %f, want >= 2.0 for an obvious outlier day", v.SpikeIntensity)
	}
}
