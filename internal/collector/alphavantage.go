package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"BtcInsight/internal/model"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const DefaultAlphaVantageURL = "https://www.alphavantage.co"

// AlphaVantageFetcher implements IndicatorProvider using the Alpha Vantage
// technical indicator endpoints.
type AlphaVantageFetcher struct {
	client *resty.Client
	APIKey string
}

// NewAlphaVantageFetcher creates a provider client.
func NewAlphaVantageFetcher(baseURL, apiKey string, opts ClientOptions) *AlphaVantageFetcher {
	if baseURL == "" {
		baseURL = DefaultAlphaVantageURL
	}
	return &AlphaVantageFetcher{client: newRestyClient(baseURL, opts), APIKey: apiKey}
}

func (f *AlphaVantageFetcher) Name() string { return "alphavantage" }

// FetchIndicator returns one value per ISO date. Non-numeric values are
// kept with Valid=false so callers can render them as unavailable.
func (f *AlphaVantageFetcher) FetchIndicator(ctx context.Context, symbol string, kpi model.KPI) (map[string]model.DatedValue, error) {
	function := "EMA"
	if kpi == model.KPIRSI {
		function = "RSI"
	}
	if !kpi.Valid() {
		return nil, f.fail(function, 0, fmt.Errorf("unsupported indicator %q", kpi))
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function":    function,
			"symbol":      symbol,
			"interval":    "daily",
			"time_period": strconv.Itoa(kpi.Window()),
			"series_type": "close",
			"apikey":      f.APIKey,
		}).
		Get("/query")
	if err != nil {
		return nil, f.fail(function, 0, err)
	}
	if !resp.IsSuccess() {
		return nil, f.fail(function, resp.StatusCode(), errors.New(truncate(resp.String(), 200)))
	}
	return parseTechnicalAnalysis(resp.Body(), function)
}

// parseTechnicalAnalysis decodes
// {"Technical Analysis: RSI": {"2024-01-02": {"RSI": "55.10"}}}.
func parseTechnicalAnalysis(body []byte, function string) (map[string]model.DatedValue, error) {
	var doc map[string]json.RawMessage
	if err := decodeStrict(body, &doc); err != nil {
		return nil, &model.FetchError{Source: "alphavantage", Op: function, Err: fmt.Errorf("decode: %w", err)}
	}
	for _, key := range []string{"Error Message", "Note", "Information"} {
		if raw, ok := doc[key]; ok {
			var msg string
			_ = json.Unmarshal(raw, &msg)
			return nil, &model.FetchError{Source: "alphavantage", Op: function, Err: errors.New(msg)}
		}
	}

	raw, ok := doc["Technical Analysis: "+function]
	if !ok {
		return nil, &model.FetchError{Source: "alphavantage", Op: function, Err: errors.New("missing technical analysis block")}
	}
	var series map[string]map[string]json.RawMessage
	if err := decodeStrict(raw, &series); err != nil {
		return nil, &model.FetchError{Source: "alphavantage", Op: function, Err: fmt.Errorf("decode series: %w", err)}
	}

	out := make(map[string]model.DatedValue, len(series))
	for date, fields := range series {
		if len(date) > len(model.DateLayout) {
			date = date[:len(model.DateLayout)] // intraday keys carry a time
		}
		out[date] = parseField(fields[function])
	}
	return out, nil
}

func parseField(raw json.RawMessage) model.DatedValue {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// some mirrors send bare numbers
		s = string(raw)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return model.DatedValue{}
	}
	v, ok := finiteFloat(d)
	if !ok {
		return model.DatedValue{}
	}
	return model.DatedValue{Value: v, Valid: true}
}

func (f *AlphaVantageFetcher) fail(op string, status int, err error) error {
	return &model.FetchError{Source: f.Name(), Op: op, Status: status, Err: err}
}
