package marketdata

import (
	"math"
	"sync"
	"time"

	"github.com/dyike/MarketPulse/models"
)

// tickVolatility bounds a live tick to ±0.05% of the current price
// (a 0.1% band), tighter than the bootstrap walk.
const tickVolatility = 0.001

// Feed bootstraps one Asset per configured instrument and owns them between
// ticks. Readers always receive copies.
type Feed struct {
	instruments []models.Instrument
	points      int
	rnd         Source
	gen         *Generator
	est         *Estimator

	mu     sync.RWMutex
	assets []models.Asset
	index  map[string]int
}

type FeedOption func(*feedOptions)

type feedOptions struct {
	rnd    Source
	now    func() time.Time
	points int
}

// WithSource injects the random source shared by history, ticks and indicators.
func WithSource(src Source) FeedOption {
	return func(o *feedOptions) {
		if src != nil {
			o.rnd = src
		}
	}
}

// WithClock sets the clock used to stamp generated history.
func WithClock(now func() time.Time) FeedOption {
	return func(o *feedOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithHistoryPoints sets how many steps the bootstrap walk takes.
func WithHistoryPoints(n int) FeedOption {
	return func(o *feedOptions) {
		if n > 0 {
			o.points = n
		}
	}
}

func NewFeed(instruments []models.Instrument, opts ...FeedOption) *Feed {
	options := feedOptions{
		now:    time.Now,
		points: DefaultHistoryPoints,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.rnd == nil {
		options.rnd = NewSource(0)
	}

	list := make([]models.Instrument, len(instruments))
	copy(list, instruments)

	return &Feed{
		instruments: list,
		points:      options.points,
		rnd:         options.rnd,
		gen:         NewGenerator(options.rnd, options.now),
		est:         NewEstimator(options.rnd),
		index:       make(map[string]int, len(list)),
	}
}

// InitAssets builds a fresh Asset for every configured instrument, in
// configuration order, and makes them the feed's owned state.
func (f *Feed) InitAssets() []models.Asset {
	assets := make([]models.Asset, 0, len(f.instruments))
	index := make(map[string]int, len(f.instruments))
	for _, inst := range f.instruments {
		index[inst.Symbol] = len(assets)
		assets = append(assets, f.bootstrap(inst))
	}

	f.mu.Lock()
	f.assets = assets
	f.index = index
	f.mu.Unlock()

	return cloneAll(assets)
}

func (f *Feed) bootstrap(inst models.Instrument) models.Asset {
	history := f.gen.Generate(inst.BasePrice, f.points)
	last := history[len(history)-1]

	// The bootstrap change is the last interval's move; ticks later rebase
	// it on the first retained point.
	prev := last
	if len(history) > 1 {
		prev = history[len(history)-2]
	}
	change := last.Close - prev.Close

	high, low := extremes(history)
	return models.Asset{
		Symbol:        inst.Symbol,
		Name:          inst.Name,
		Price:         last.Close,
		Change:        change,
		ChangePercent: percentOf(change, prev.Close),
		High:          high,
		Low:           low,
		Volume:        last.Volume,
		History:       history,
		Indicators:    f.est.Estimate(history),
	}
}

// Advance applies one intraday tick to asset and returns the new state. The
// tick is merged into the last history point; the window never grows. The
// input is left untouched.
func (f *Feed) Advance(asset models.Asset) models.Asset {
	next := asset.Clone()
	if len(next.History) == 0 {
		return next
	}

	price := next.Price + centered(f.rnd)*next.Price*tickVolatility

	last := &next.History[len(next.History)-1]
	last.Price = price
	last.Close = price
	last.High = math.Max(last.High, price)
	last.Low = math.Min(last.Low, price)

	first := next.History[0].Close
	next.Price = price
	next.Change = price - first
	next.ChangePercent = percentOf(next.Change, first)
	next.High = math.Max(next.High, last.High)
	next.Low = math.Min(next.Low, last.Low)
	next.Indicators = f.est.Estimate(next.History)
	return next
}

// Tick advances every owned asset once and returns the new snapshot.
func (f *Feed) Tick() []models.Asset {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.assets {
		f.assets[i] = f.Advance(f.assets[i])
	}
	return cloneAll(f.assets)
}

// Snapshot returns copies of the owned assets in configuration order.
func (f *Feed) Snapshot() []models.Asset {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return cloneAll(f.assets)
}

// Asset returns a copy of the owned asset with the given symbol.
func (f *Feed) Asset(symbol string) (models.Asset, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	i, ok := f.index[symbol]
	if !ok {
		return models.Asset{}, false
	}
	return f.assets[i].Clone(), true
}

// Instruments returns the configured instrument list.
func (f *Feed) Instruments() []models.Instrument {
	list := make([]models.Instrument, len(f.instruments))
	copy(list, f.instruments)
	return list
}

func cloneAll(assets []models.Asset) []models.Asset {
	out := make([]models.Asset, len(assets))
	for i, a := range assets {
		out[i] = a.Clone()
	}
	return out
}

func extremes(history []models.PricePoint) (high, low float64) {
	high, low = math.Inf(-1), math.Inf(1)
	for _, p := range history {
		high = math.Max(high, p.High)
		low = math.Min(low, p.Low)
	}
	return high, low
}

func percentOf(change, base float64) float64 {
	if base == 0 {
		return 0
	}
	return change / base * 100
}
