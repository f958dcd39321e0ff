package model

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"
)

// PricePoint is a single (time, price) observation.
type PricePoint struct {
	Time  time.Time
	Price float64
}

// OHLCBar represents a single candlestick bar.
type OHLCBar struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// IndicatorSeries is aligned index-for-index with the rows of a Table.
// NaN marks a position with no usable value.
type IndicatorSeries []float64

// Last returns the final value and whether it is usable.
func (s IndicatorSeries) Last() (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	v := s[len(s)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// MarshalJSON writes unusable positions as null.
func (s IndicatorSeries) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	var b bytes.Buffer
	b.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			b.WriteString("null")
			continue
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.Bytes(), nil
}

// UnmarshalJSON reads null positions back as NaN.
func (s *IndicatorSeries) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = nil
		return nil
	}
	out := make(IndicatorSeries, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	*s = out
	return nil
}

// Table is a time-indexed price history plus any indicator series
// already attached to it.
type Table struct {
	Asset      string                  `json:"asset"`
	Rows       []OHLCBar               `json:"rows"`
	Indicators map[KPI]IndicatorSeries `json:"indicators,omitempty"`
	FetchedAt  time.Time               `json:"fetched_at"`
}

// NewPriceTable builds a Table from price-only points. Each row carries
// the price in all four OHLC fields.
func NewPriceTable(asset string, points []PricePoint) *Table {
	rows := make([]OHLCBar, len(points))
	for i, p := range points {
		rows[i] = OHLCBar{Time: p.Time, Open: p.Price, High: p.Price, Low: p.Price, Close: p.Price}
	}
	t := &Table{Asset: asset, Rows: rows}
	t.Normalize()
	return t
}

// NewOHLCTable builds a Table from OHLC bars.
func NewOHLCTable(asset string, bars []OHLCBar) *Table {
	rows := make([]OHLCBar, len(bars))
	copy(rows, bars)
	t := &Table{Asset: asset, Rows: rows}
	t.Normalize()
	return t
}

// Normalize sorts rows by time and collapses duplicate timestamps,
// keeping the last observation. Attached indicators are dropped since
// their alignment no longer holds.
func (t *Table) Normalize() {
	sort.SliceStable(t.Rows, func(i, j int) bool { return t.Rows[i].Time.Before(t.Rows[j].Time) })
	out := t.Rows[:0]
	for _, r := range t.Rows {
		if n := len(out); n > 0 && out[n-1].Time.Equal(r.Time) {
			out[n-1] = r
			continue
		}
		out = append(out, r)
	}
	t.Rows = out
	t.Indicators = nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Closes returns a fresh slice of closing prices.
func (t *Table) Closes() []float64 {
	closes := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		closes[i] = r.Close
	}
	return closes
}

// Last returns the newest row.
func (t *Table) Last() (OHLCBar, bool) {
	if len(t.Rows) == 0 {
		return OHLCBar{}, false
	}
	return t.Rows[len(t.Rows)-1], true
}

// Indicator returns an attached series if its length matches the rows.
func (t *Table) Indicator(k KPI) (IndicatorSeries, bool) {
	s, ok := t.Indicators[k]
	if !ok || len(s) != len(t.Rows) {
		return nil, false
	}
	return s, true
}

// Attach stores a series for k. The series must match the row count.
func (t *Table) Attach(k KPI, s IndicatorSeries) bool {
	if len(s) != len(t.Rows) {
		return false
	}
	if t.Indicators == nil {
		t.Indicators = make(map[KPI]IndicatorSeries)
	}
	t.Indicators[k] = s
	return true
}

// AttachByDate aligns date-keyed values (YYYY-MM-DD, UTC) onto the rows.
// Rows without a matching date get NaN. It reports how many rows matched.
func (t *Table) AttachByDate(k KPI, values map[string]DatedValue) int {
	s := make(IndicatorSeries, len(t.Rows))
	matched := 0
	for i, r := range t.Rows {
		v, ok := values[r.Time.UTC().Format(DateLayout)]
		if !ok || !v.Valid {
			s[i] = math.NaN()
			continue
		}
		s[i] = v.Value
		matched++
	}
	t.Attach(k, s)
	return matched
}

// Clone returns a deep copy so callers never share buffers.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	c := &Table{Asset: t.Asset, FetchedAt: t.FetchedAt}
	c.Rows = make([]OHLCBar, len(t.Rows))
	copy(c.Rows, t.Rows)
	if t.Indicators != nil {
		c.Indicators = make(map[KPI]IndicatorSeries, len(t.Indicators))
		for k, s := range t.Indicators {
			cp := make(IndicatorSeries, len(s))
			copy(cp, s)
			c.Indicators[k] = cp
		}
	}
	return c
}

// DateLayout is the ISO date format used by indicator providers.
const DateLayout = "2006-01-02"

// DatedValue is a provider-supplied indicator value. Valid is false when
// the provider sent non-numeric content.
type DatedValue struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}
