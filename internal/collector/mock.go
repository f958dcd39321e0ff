package collector

import (
	"context"
	"time"

	"BtcInsight/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price float64
	Bars  []model.OHLCBar
	End   time.Time // last bar time; defaults to today UTC
	Err   error
	Calls int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchPrices(_ context.Context, asset string, days int) (*model.Table, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return model.NewOHLCTable(asset, m.bars(days)), nil
}

func (m *MockFetcher) FetchOHLC(ctx context.Context, asset string, days int) (*model.Table, error) {
	return m.FetchPrices(ctx, asset, days)
}

func (m *MockFetcher) FetchSpotPrice(_ context.Context, _ string) (float64, error) {
	m.Calls++
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Price, nil
}

func (m *MockFetcher) bars(days int) []model.OHLCBar {
	if m.Bars != nil {
		return m.Bars
	}
	end := m.End
	if end.IsZero() {
		end = time.Now().UTC().Truncate(24 * time.Hour)
	}
	return generateMockBars(m.Price, days, end)
}

func generateMockBars(basePrice float64, count int, end time.Time) []model.OHLCBar {
	bars := make([]model.OHLCBar, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCBar{
			Time:  end.AddDate(0, 0, -(count - 1 - i)),
			Open:  p * 0.999,
			High:  p * 1.005,
			Low:   p * 0.995,
			Close: p,
		}
	}
	return bars
}

// MockProvider serves fixed indicator values.
type MockProvider struct {
	Values map[model.KPI]map[string]model.DatedValue
	Err    error
}

func (m *MockProvider) Name() string { return "mock-indicators" }

func (m *MockProvider) FetchIndicator(_ context.Context, _ string, kpi model.KPI) (map[string]model.DatedValue, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Values[kpi], nil
}
