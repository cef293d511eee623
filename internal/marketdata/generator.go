package marketdata

import (
	"math"
	"time"

	"github.com/dyike/MarketPulse/models"
)

const (
	// DefaultHistoryPoints is the number of steps walked at bootstrap; the
	// generated series has one more point than this.
	DefaultHistoryPoints = 50

	historyVolatility = 0.005
	wickFraction      = 0.2
	maxVolume         = 1_000_000
	historyStep       = time.Hour
)

// TimeLayout renders timestamps as ISO-8601 UTC with milliseconds.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Generator produces synthetic hourly OHLC history by random walk.
type Generator struct {
	rnd Source
	now func() time.Time
}

func NewGenerator(rnd Source, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{rnd: rnd, now: now}
}

// Generate walks count steps from basePrice and returns count+1 points,
// oldest first, the last stamped with the generator's current time.
// Volatility is a fixed band of 0.5% of basePrice for the whole series.
func (g *Generator) Generate(basePrice float64, count int) []models.PricePoint {
	if count <= 0 {
		count = DefaultHistoryPoints
	}

	band := basePrice * historyVolatility
	now := g.now().UTC()
	current := basePrice

	history := make([]models.PricePoint, 0, count+1)
	for i := count; i >= 0; i-- {
		ts := now.Add(-time.Duration(i) * historyStep)

		open := current
		closePx := current + centered(g.rnd)*band
		high := math.Max(open, closePx) + g.rnd.Float64()*band*wickFraction
		low := math.Min(open, closePx) - g.rnd.Float64()*band*wickFraction
		volume := int64(math.Floor(g.rnd.Float64() * maxVolume))

		history = append(history, models.PricePoint{
			Time:   ts.Format(TimeLayout),
			Price:  closePx,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePx,
			Volume: volume,
		})
		current = closePx
	}
	return history
}
