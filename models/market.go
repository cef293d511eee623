package models

// Instrument is one configured tradable asset.
type Instrument struct {
	Symbol    string  `json:"symbol" yaml:"symbol"`
	Name      string  `json:"name" yaml:"name"`
	BasePrice float64 `json:"basePrice" yaml:"base_price"`
}

// PricePoint is one sampled interval of an asset's history.
// Price mirrors Close at creation and is kept for display convenience.
type PricePoint struct {
	Time   string  `json:"time"`
	Price  float64 `json:"price"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

type MACD struct {
	Value     float64 `json:"value"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// TechnicalIndicators is recomputed wholesale on every history mutation.
type TechnicalIndicators struct {
	RSI            float64        `json:"rsi"`
	MACD           MACD           `json:"macd"`
	SMA20          float64        `json:"sma20"`
	SMA50          float64        `json:"sma50"`
	BollingerBands BollingerBands `json:"bollingerBands"`
}

// Asset is the live state of one instrument. Price always equals the close
// of the last history point.
type Asset struct {
	Symbol        string              `json:"symbol"`
	Name          string              `json:"name"`
	Price         float64             `json:"price"`
	Change        float64             `json:"change"`
	ChangePercent float64             `json:"changePercent"`
	High          float64             `json:"high"`
	Low           float64             `json:"low"`
	Volume        int64               `json:"volume"`
	History       []PricePoint        `json:"history"`
	Indicators    TechnicalIndicators `json:"indicators"`
}

// Clone returns a copy that shares no history storage with a.
func (a Asset) Clone() Asset {
	if a.History != nil {
		h := make([]PricePoint, len(a.History))
		copy(h, a.History)
		a.History = h
	}
	return a
}

// Last returns the newest history point, or the zero point for an empty history.
func (a Asset) Last() PricePoint {
	if len(a.History) == 0 {
		return PricePoint{}
	}
	return a.History[len(a.History)-1]
}

// Tail returns up to n of the newest history points, oldest first.
func (a Asset) Tail(n int) []PricePoint {
	if n <= 0 || len(a.History) == 0 {
		return nil
	}
	if n > len(a.History) {
		n = len(a.History)
	}
	return a.History[len(a.History)-n:]
}
