package collector

import (
	"context"
	"fmt"
	"time"

	"BtcInsight/internal/metrics"
	"BtcInsight/internal/model"

	"github.com/rs/zerolog/log"
)

// Collector assembles the price table for one refresh.
type Collector struct {
	Fetcher  Fetcher
	Provider IndicatorProvider // optional
	Asset    string
	Symbol   string // provider symbol, e.g. BTCUSD
	Days     int
	Kind     SeriesKind
	UseSpot  bool
	Metrics  *metrics.Metrics
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, asset string, days int, kind SeriesKind) *Collector {
	if kind == "" {
		kind = KindPrices
	}
	return &Collector{Fetcher: fetcher, Asset: asset, Days: days, Kind: kind}
}

// Collect fetches the history and attaches provider indicators for the
// selected KPIs. Provider failures fall back to local computation.
func (c *Collector) Collect(ctx context.Context, sel model.Selection) (*model.Table, error) {
	var tbl *model.Table
	var err error
	switch c.Kind {
	case KindOHLC:
		tbl, err = c.Fetcher.FetchOHLC(ctx, c.Asset, c.Days)
	default:
		tbl, err = c.Fetcher.FetchPrices(ctx, c.Asset, c.Days)
	}
	c.Metrics.ObserveFetch(c.Fetcher.Name(), string(c.Kind), err)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", c.Kind, err)
	}
	if tbl.Len() == 0 {
		return nil, fmt.Errorf("fetch %s: %w", c.Kind, &model.FetchError{Source: c.Fetcher.Name(), Op: string(c.Kind), Err: fmt.Errorf("empty series")})
	}
	tbl = tbl.Clone()

	if c.UseSpot {
		price, err := c.Fetcher.FetchSpotPrice(ctx, c.Asset)
		c.Metrics.ObserveFetch(c.Fetcher.Name(), "spot", err)
		if err != nil {
			log.Warn().Err(err).Msg("spot price fetch failed, using last close")
		} else {
			appendSpot(tbl, price, time.Now().UTC())
		}
	}

	if c.Provider != nil {
		c.attachProvided(ctx, tbl, sel)
	}
	return tbl, nil
}

func (c *Collector) attachProvided(ctx context.Context, tbl *model.Table, sel model.Selection) {
	for _, k := range sel.Members() {
		values, err := c.Provider.FetchIndicator(ctx, c.Symbol, k)
		c.Metrics.ObserveFetch(c.Provider.Name(), string(k), err)
		if err != nil {
			log.Warn().Err(err).Str("kpi", string(k)).Msg("provider indicator failed, computing locally")
			continue
		}
		if matched := tbl.AttachByDate(k, values); matched == 0 {
			delete(tbl.Indicators, k)
			log.Warn().Str("kpi", string(k)).Msg("provider dates do not overlap the series, computing locally")
		}
	}
}

// appendSpot adds the spot price as the newest row when it is newer than
// the last one.
func appendSpot(tbl *model.Table, price float64, now time.Time) {
	last, ok := tbl.Last()
	if ok && !now.After(last.Time) {
		return
	}
	tbl.Rows = append(tbl.Rows, model.OHLCBar{Time: now, Open: price, High: price, Low: price, Close: price})
}
