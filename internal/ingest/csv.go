package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Required CSV columns. authorized_flag is accepted but ignored.
var requiredColumns = []string{
	"entity_id",
	"timestamp",
	"amount",
	"category_1",
	"category_2",
	"category_3",
}

// DefaultMaxRows caps rows loaded per dataset to bound memory on huge CSVs.
const DefaultMaxRows = 500_000

// Timestamp layouts tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseCSV streams a transaction CSV and returns a new dataset with a fresh
// UUID. Rows with unparseable timestamps are dropped; unparseable amounts
// become zero. maxRows <= 0 means DefaultMaxRows.
func ParseCSV(r io.Reader, maxRows int) (*Dataset, error) {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var txs []Transaction
	for len(txs) < maxRows {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Skip malformed lines rather than failing the whole upload.
			if _, ok := err.(*csv.ParseError); ok {
				continue
			}
			return nil, fmt.Errorf("read row: %w", err)
		}

		tx, ok := parseRow(rec, cols)
		if !ok {
			continue
		}
		txs = append(txs, tx)
	}

	if len(txs) == 0 {
		return nil, ErrNoValidRows
	}
	return NewDataset(uuid.NewString(), txs), nil
}

// columnIndex maps required column names to header positions.
type columnIndex map[string]int

func mapColumns(header []string) (columnIndex, error) {
	cols := make(columnIndex, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func parseRow(rec []string, cols columnIndex) (Transaction, bool) {
	field := func(name string) string {
		i := cols[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	entity := field("entity_id")
	if entity == "" {
		return Transaction{}, false
	}
	ts, ok := parseTimestamp(field("timestamp"))
	if !ok {
		return Transaction{}, false
	}

	return Transaction{
		EntityID:  entity,
		Timestamp: ts,
		Amount:    parseAmount(field("amount")),
		Category1: field("category_1"),
		Category2: field("category_2"),
		Category3: field("category_3"),
	}, true
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseAmount coerces bad or non-finite values to zero.
func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
