package marketdata

import "github.com/dyike/MarketPulse/models"

// Estimator derives a display-oriented indicator snapshot. It is not a
// technical-analysis computation: only the latest close is used and the
// oscillators are jittered samples around plausible values. The
// recommendation prompt relies on these exact fields and ranges.
type Estimator struct {
	rnd Source
}

func NewEstimator(rnd Source) *Estimator {
	return &Estimator{rnd: rnd}
}

func (e *Estimator) Estimate(history []models.PricePoint) models.TechnicalIndicators {
	if len(history) == 0 {
		return models.TechnicalIndicators{}
	}
	last := history[len(history)-1].Close

	return models.TechnicalIndicators{
		RSI: 45 + e.rnd.Float64()*20,
		MACD: models.MACD{
			Value:     centered(e.rnd) * 5,
			Signal:    centered(e.rnd) * 4,
			Histogram: centered(e.rnd) * 2,
		},
		SMA20: last * (1 + centered(e.rnd)*0.01),
		SMA50: last * (1 + centered(e.rnd)*0.02),
		BollingerBands: models.BollingerBands{
			Upper:  last * 1.05,
			Middle: last,
			Lower:  last * 0.95,
		},
	}
}
