// Package insight turns a price table and a KPI selection into a numeric
// snapshot and an analyst prompt, and extracts the generated text from an
// inference response.
package insight

import (
	"fmt"
	"time"

	"BtcInsight/internal/calculator"
	"BtcInsight/internal/model"
)

// IndicatorValue is the newest value of one indicator.
type IndicatorValue struct {
	KPI   model.KPI `json:"kpi"`
	Value float64   `json:"value"`
	Valid bool      `json:"valid"`
}

// PriceRange summarises where the latest close sits in the table.
type PriceRange struct {
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Position float64 `json:"position"`
}

// Snapshot holds the latest price and indicator values plus the full
// series for charting consumers.
type Snapshot struct {
	Asset  string                              `json:"asset"`
	Time   time.Time                           `json:"time"`
	Price  float64                             `json:"price"`
	Values []IndicatorValue                    `json:"values"`
	Series map[model.KPI]model.IndicatorSeries `json:"series"`
	Range  PriceRange                          `json:"range"`
	Rows   []model.OHLCBar                     `json:"rows"`
}

// Value returns the latest value for k.
func (s *Snapshot) Value(k model.KPI) (IndicatorValue, bool) {
	for _, v := range s.Values {
		if v.KPI == k {
			return v, true
		}
	}
	return IndicatorValue{}, false
}

// BuildSnapshot computes every selected indicator missing from the table
// on closing prices and takes the newest value of each. The table is not
// modified.
func BuildSnapshot(table *model.Table, sel model.Selection) (*Snapshot, error) {
	if table == nil || table.Len() == 0 {
		return nil, &model.InsufficientDataError{Need: 1, Got: 0}
	}
	kpis := sel.Members()
	if len(kpis) == 0 {
		return nil, &model.InvalidSelectionError{}
	}

	closes := table.Closes()
	last, _ := table.Last()

	snap := &Snapshot{
		Asset:  table.Asset,
		Time:   last.Time,
		Price:  last.Close,
		Values: make([]IndicatorValue, 0, len(kpis)),
		Series: make(map[model.KPI]model.IndicatorSeries, len(kpis)),
		Rows:   make([]model.OHLCBar, table.Len()),
	}
	copy(snap.Rows, table.Rows)

	for _, k := range kpis {
		series, ok := table.Indicator(k)
		if ok {
			cp := make(model.IndicatorSeries, len(series))
			copy(cp, series)
			series = cp
		} else {
			computed, err := calculator.Compute(k, closes)
			if err != nil {
				return nil, fmt.Errorf("compute %s: %w", k, err)
			}
			series = computed
		}
		v, valid := series.Last()
		snap.Series[k] = series
		snap.Values = append(snap.Values, IndicatorValue{KPI: k, Value: v, Valid: valid})
	}

	if high, low, err := calculator.PriceRange(closes); err == nil {
		pos, _ := calculator.RangePosition(snap.Price, high, low)
		snap.Range = PriceRange{High: high, Low: low, Position: pos}
	}
	return snap, nil
}
