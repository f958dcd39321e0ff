package calculator

import (
	"errors"
	"math"

	"BtcInsight/internal/model"
)

// NeutralRSI fills positions where RSI is undefined.
const NeutralRSI = 50.0

// CalculateRSI computes RSI over a trailing simple mean of gains and losses.
// The output is aligned with closes. Positions before `period` samples are
// available, and flat windows where both averages are zero, hold NeutralRSI.
func CalculateRSI(closes []float64, period int) (model.IndicatorSeries, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if len(closes) == 0 {
		return nil, &model.InsufficientDataError{Need: 1, Got: 0}
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	avgGain := RollingMean(gains, period)
	avgLoss := RollingMean(losses, period)

	out := make(model.IndicatorSeries, len(closes))
	for i := range closes {
		out[i] = rsiValue(avgGain[i], avgLoss[i])
	}
	return out, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if math.IsNaN(avgGain) || math.IsNaN(avgLoss) {
		return NeutralRSI
	}
	if avgLoss == 0 {
		if avgGain == 0 {
			return NeutralRSI // 0/0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}
