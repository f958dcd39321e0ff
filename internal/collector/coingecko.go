package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"BtcInsight/internal/model"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const (
	DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"
	defaultTimeout      = 10 * time.Second
)

// ClientOptions holds settings shared by the HTTP collaborators.
type ClientOptions struct {
	Timeout time.Duration
	Proxy   string
}

func (o ClientOptions) timeout() time.Duration {
	if o.Timeout <= 0 {
		return defaultTimeout
	}
	return o.Timeout
}

// CoinGeckoFetcher implements Fetcher using the CoinGecko public API.
type CoinGeckoFetcher struct {
	client     *resty.Client
	VsCurrency string
}

// NewCoinGeckoFetcher creates a fetcher. apiKey is optional and sent as
// the demo-plan header.
func NewCoinGeckoFetcher(baseURL, apiKey, vsCurrency string, opts ClientOptions) *CoinGeckoFetcher {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	if vsCurrency == "" {
		vsCurrency = "usd"
	}
	c := newRestyClient(baseURL, opts)
	if apiKey != "" {
		c.SetHeader("x-cg-demo-api-key", apiKey)
	}
	return &CoinGeckoFetcher{client: c, VsCurrency: vsCurrency}
}

func (f *CoinGeckoFetcher) Name() string { return "coingecko" }

// FetchPrices returns daily (timestamp, price) history as a Table.
func (f *CoinGeckoFetcher) FetchPrices(ctx context.Context, asset string, days int) (*model.Table, error) {
	body, err := f.get(ctx, "market_chart", "/coins/{id}/market_chart", asset, map[string]string{
		"vs_currency": f.VsCurrency,
		"days":        strconv.Itoa(days),
		"interval":    "daily",
	})
	if err != nil {
		return nil, err
	}

	var chart struct {
		Prices [][]json.Number `json:"prices"`
	}
	if err := decodeStrict(body, &chart); err != nil {
		return nil, f.fail("market_chart", 0, fmt.Errorf("decode: %w", err))
	}
	if len(chart.Prices) == 0 {
		return nil, f.fail("market_chart", 0, errors.New("no price data returned"))
	}

	points := make([]model.PricePoint, 0, len(chart.Prices))
	for i, row := range chart.Prices {
		if len(row) < 2 {
			return nil, f.fail("market_chart", 0, fmt.Errorf("row %d: expected [timestamp, price]", i))
		}
		ts, err := parseMillis(row[0])
		if err != nil {
			return nil, f.fail("market_chart", 0, fmt.Errorf("row %d: %w", i, err))
		}
		price, err := parseDecimal(row[1])
		if err != nil {
			return nil, f.fail("market_chart", 0, fmt.Errorf("row %d: %w", i, err))
		}
		points = append(points, model.PricePoint{Time: ts, Price: price})
	}

	tbl := model.NewPriceTable(asset, points)
	tbl.FetchedAt = time.Now()
	return tbl, nil
}

// FetchOHLC returns (timestamp, open, high, low, close) candles as a Table.
func (f *CoinGeckoFetcher) FetchOHLC(ctx context.Context, asset string, days int) (*model.Table, error) {
	body, err := f.get(ctx, "ohlc", "/coins/{id}/ohlc", asset, map[string]string{
		"vs_currency": f.VsCurrency,
		"days":        strconv.Itoa(days),
	})
	if err != nil {
		return nil, err
	}

	var rows [][]json.Number
	if err := decodeStrict(body, &rows); err != nil {
		return nil, f.fail("ohlc", 0, fmt.Errorf("decode: %w", err))
	}
	if len(rows) == 0 {
		return nil, f.fail("ohlc", 0, errors.New("no candles returned"))
	}

	bars := make([]model.OHLCBar, 0, len(rows))
	for i, row := range rows {
		if len(row) < 5 {
			return nil, f.fail("ohlc", 0, fmt.Errorf("row %d: expected [timestamp, open, high, low, close]", i))
		}
		ts, err := parseMillis(row[0])
		if err != nil {
			return nil, f.fail("ohlc", 0, fmt.Errorf("row %d: %w", i, err))
		}
		var vals [4]float64
		for j := 0; j < 4; j++ {
			v, err := parseDecimal(row[j+1])
			if err != nil {
				return nil, f.fail("ohlc", 0, fmt.Errorf("row %d: %w", i, err))
			}
			vals[j] = v
		}
		bars = append(bars, model.OHLCBar{Time: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3]})
	}

	tbl := model.NewOHLCTable(asset, bars)
	tbl.FetchedAt = time.Now()
	return tbl, nil
}

// FetchSpotPrice returns the current price of asset.
func (f *CoinGeckoFetcher) FetchSpotPrice(ctx context.Context, asset string) (float64, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":           asset,
			"vs_currencies": f.VsCurrency,
		}).
		Get("/simple/price")
	if err != nil {
		return 0, f.fail("spot price", 0, err)
	}
	if !resp.IsSuccess() {
		return 0, f.fail("spot price", resp.StatusCode(), errors.New(truncate(resp.String(), 200)))
	}

	var result map[string]map[string]json.Number
	if err := decodeStrict(resp.Body(), &result); err != nil {
		return 0, f.fail("spot price", 0, fmt.Errorf("decode: %w", err))
	}
	raw, ok := result[asset][f.VsCurrency]
	if !ok {
		return 0, f.fail("spot price", 0, fmt.Errorf("no %s price for %s", f.VsCurrency, asset))
	}
	price, err := parseDecimal(raw)
	if err != nil {
		return 0, f.fail("spot price", 0, err)
	}
	return price, nil
}

func (f *CoinGeckoFetcher) get(ctx context.Context, op, path, asset string, params map[string]string) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetPathParam("id", asset).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return nil, f.fail(op, 0, err)
	}
	if !resp.IsSuccess() {
		return nil, f.fail(op, resp.StatusCode(), errors.New(truncate(resp.String(), 200)))
	}
	return resp.Body(), nil
}

func (f *CoinGeckoFetcher) fail(op string, status int, err error) error {
	return &model.FetchError{Source: f.Name(), Op: op, Status: status, Err: err}
}

func decodeStrict(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(v)
}

func parseDecimal(n json.Number) (float64, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", n.String(), err)
	}
	f, ok := finiteFloat(d)
	if !ok {
		return 0, fmt.Errorf("parse %q: out of range", n.String())
	}
	return f, nil
}

// finiteFloat converts d and reports whether the result is finite.
func finiteFloat(d decimal.Decimal) (float64, bool) {
	f, _ := d.Float64()
	return f, !math.IsInf(f, 0) && !math.IsNaN(f)
}

func parseMillis(n json.Number) (time.Time, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", n.String(), err)
	}
	return time.UnixMilli(d.IntPart()).UTC(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
