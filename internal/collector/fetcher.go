package collector

import (
	"context"

	"BtcInsight/internal/model"
)

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	FetchPrices(ctx context.Context, asset string, days int) (*model.Table, error)
	FetchOHLC(ctx context.Context, asset string, days int) (*model.Table, error)
	FetchSpotPrice(ctx context.Context, asset string) (float64, error)
	Name() string
}

// IndicatorProvider returns precomputed indicator values keyed by ISO date.
type IndicatorProvider interface {
	FetchIndicator(ctx context.Context, symbol string, kpi model.KPI) (map[string]model.DatedValue, error)
	Name() string
}

// SeriesKind selects which history endpoint the collector uses.
type SeriesKind string

const (
	KindPrices SeriesKind = "prices"
	KindOHLC   SeriesKind = "ohlc"
)
