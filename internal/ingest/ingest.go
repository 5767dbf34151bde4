// Package ingest parses transaction CSVs into immutable in-memory datasets
// keyed by dataset id.
//
// A Dataset is created once at upload time and never mutated: the analytics
// pipeline reads entity transaction slices from it concurrently without
// locking. Rows with unparseable timestamps are dropped during parsing;
// unparseable amounts are coerced to zero so downstream feature math stays
// total.
package ingest

import (
	"errors"
	"sort"
	"time"
)

var (
	// ErrDatasetNotFound is returned when a dataset id is unknown.
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrEntityNotFound is returned when an entity has no transactions in a dataset.
	ErrEntityNotFound = errors.New("entity not found in dataset")
	// ErrNoValidRows is returned when parsing yields zero usable transactions.
	ErrNoValidRows = errors.New("no valid rows after parsing")
)

// Transaction is a single purchase row. Amount keeps the raw sign; feature
// extraction takes the absolute value.
type Transaction struct {
	EntityID  string    `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`
	Amount    float64   `json:"amount"`
	Category1 string    `json:"category_1"`
	Category2 string    `json:"category_2"`
	Category3 string    `json:"category_3"`
}

// Summary describes a dataset at a glance.
type Summary struct {
	Rows      int       `json:"rows"`
	Entities  int       `json:"entities"`
	FirstDate time.Time `json:"first_date"`
	LastDate  time.Time `json:"last_date"`
}

// EntityInfo is one row of the entity listing.
type EntityInfo struct {
	EntityID  string    `json:"entity_id"`
	TxCount   int       `json:"tx_count"`
	FirstDate time.Time `json:"first_date"`
	LastDate  time.Time `json:"last_date"`
}

// Dataset is an immutable collection of transactions plus an entity index.
type Dataset struct {
	id       string
	txs      []Transaction
	byEntity map[string][]int
	entities []string // sorted
	summary  Summary
}

// NewDataset builds a dataset from parsed transactions. The slice is owned by
// the dataset after the call.
func NewDataset(id string, txs []Transaction) *Dataset {
	d := &Dataset{
		id:       id,
		txs:      txs,
		byEntity: make(map[string][]int),
	}
	for i, tx := range txs {
		d.byEntity[tx.EntityID] = append(d.byEntity[tx.EntityID], i)
		if d.summary.FirstDate.IsZero() || tx.Timestamp.Before(d.summary.FirstDate) {
			d.summary.FirstDate = tx.Timestamp
		}
		if tx.Timestamp.After(d.summary.LastDate) {
			d.summary.LastDate = tx.Timestamp
		}
	}
	d.entities = make([]string, 0, len(d.byEntity))
	for e := range d.byEntity {
		d.entities = append(d.entities, e)
	}
	sort.Strings(d.entities)
	d.summary.Rows = len(txs)
	d.summary.Entities = len(d.entities)
	return d
}

// ID returns the dataset id.
func (d *Dataset) ID() string { return d.id }

// Summary returns the dataset summary.
func (d *Dataset) Summary() Summary { return d.summary }

// Entities returns the sorted entity ids. The returned slice is a copy.
func (d *Dataset) Entities() []string {
	out := make([]string, len(d.entities))
	copy(out, d.entities)
	return out
}

// EntityTransactions returns a copy of one entity's transactions, or
// ErrEntityNotFound if the entity does not appear in the dataset.
func (d *Dataset) EntityTransactions(entityID string) ([]Transaction, error) {
	idx, ok := d.byEntity[entityID]
	if !ok {
		return nil, ErrEntityNotFound
	}
	out := make([]Transaction, len(idx))
	for i, j := range idx {
		out[i] = d.txs[j]
	}
	return out, nil
}

// EntityList returns per-entity counts and date ranges, sorted by entity id.
func (d *Dataset) EntityList() []EntityInfo {
	out := make([]EntityInfo, 0, len(d.entities))
	for _, e := range d.entities {
		idx := d.byEntity[e]
		info := EntityInfo{EntityID: e, TxCount: len(idx)}
		for _, j := range idx {
			ts := d.txs[j].Timestamp
			if info.FirstDate.IsZero() || ts.Before(info.FirstDate) {
				info.FirstDate = ts
			}
			if ts.After(info.LastDate) {
				info.LastDate = ts
			}
		}
		out = append(out, info)
	}
	return out
}
