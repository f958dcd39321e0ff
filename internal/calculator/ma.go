package calculator

import (
	"errors"
	"math"

	"BtcInsight/internal/model"
)

// RollingMean returns the trailing simple mean over period samples.
// Positions with fewer than period samples are NaN.
func RollingMean(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if period <= 0 || i < period-1 {
			out[i] = math.NaN()
			continue
		}
		// Summed per window so a run of zeros stays exactly zero.
		sum := 0.0
		for _, v := range values[i-period+1 : i+1] {
			sum += v
		}
		out[i] = sum / float64(period)
	}
	return out
}

// CalculateEMA computes the exponential moving average with
// alpha = 2/(window+1), seeded with the first price.
func CalculateEMA(closes []float64, window int) (model.IndicatorSeries, error) {
	if window <= 0 {
		return nil, errors.New("window must be positive")
	}
	if len(closes) == 0 {
		return nil, &model.InsufficientDataError{Need: 1, Got: 0}
	}
	alpha := 2.0 / float64(window+1)
	out := make(model.IndicatorSeries, len(closes))
	out[0] = closes[0]
	for i := 1; i < len(closes); i++ {
		out[i] = out[i-1] + alpha*(closes[i]-out[i-1])
	}
	return out, nil
}

// Compute dispatches a KPI to its indicator over closing prices.
func Compute(kpi model.KPI, closes []float64) (model.IndicatorSeries, error) {
	switch {
	case kpi == model.KPIRSI:
		return CalculateRSI(closes, kpi.Window())
	case kpi.IsEMA():
		return CalculateEMA(closes, kpi.Window())
	default:
		return nil, errors.New("unsupported indicator: " + string(kpi))
	}
}
