// Package dashboard holds the state a front end renders: the live asset list,
// the current selection and its latest recommendation.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dyike/MarketPulse/consts"
	"github.com/dyike/MarketPulse/internal/advisor"
	"github.com/dyike/MarketPulse/internal/logger"
	"github.com/dyike/MarketPulse/models"
)

var (
	ErrUnknownSymbol = errors.New("dashboard: unknown symbol")
	ErrNoSelection   = errors.New("dashboard: no asset selected")
)

// Feed is the market-data source the dashboard drives.
type Feed interface {
	InitAssets() []models.Asset
	Tick() []models.Asset
	Snapshot() []models.Asset
	Asset(symbol string) (models.Asset, bool)
}

// Analyzer produces a recommendation for one asset.
type Analyzer interface {
	Analyze(ctx context.Context, asset models.Asset) (models.AIRecommendation, error)
}

// Recorder receives tick and supersede observations.
type Recorder interface {
	ObserveTick(elapsed time.Duration)
	ObserveSuperseded()
}

// Event is pushed to subscribers. Only the fields relevant to Type are set.
type Event struct {
	Type           string                   `json:"type"`
	Assets         []models.Asset           `json:"assets,omitempty"`
	Symbol         string                   `json:"symbol,omitempty"`
	RequestID      string                   `json:"requestId,omitempty"`
	Recommendation *models.AIRecommendation `json:"recommendation,omitempty"`
	Analysing      bool                     `json:"analysing"`
	ErrorCode      string                   `json:"errorCode,omitempty"`
	Error          string                   `json:"error,omitempty"`
	LastUpdated    time.Time                `json:"lastUpdated"`
}

// View is a read-only snapshot of the session.
type View struct {
	Assets         []models.Asset           `json:"assets"`
	SelectedSymbol string                   `json:"selectedSymbol,omitempty"`
	Selected       *models.Asset            `json:"selected,omitempty"`
	Recommendation *models.AIRecommendation `json:"recommendation,omitempty"`
	Analysing      bool                     `json:"analysing"`
	ErrorCode      string                   `json:"errorCode,omitempty"`
	Error          string                   `json:"error,omitempty"`
	LastUpdated    time.Time                `json:"lastUpdated"`
}

// AnalysisResult reports how one analysis request resolved.
type AnalysisResult struct {
	RequestID      string                  `json:"requestId"`
	Symbol         string                  `json:"symbol"`
	Applied        bool                    `json:"applied"`
	Recommendation models.AIRecommendation `json:"recommendation"`
}

type Option func(*Dashboard)

func WithClock(now func() time.Time) Option {
	return func(d *Dashboard) {
		if now != nil {
			d.now = now
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(d *Dashboard) { d.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dashboard) {
		if l != nil {
			d.logger = l
		}
	}
}

// Dashboard is safe for concurrent use. Analyses may overlap; the response to
// the latest request for the still-selected asset wins.
type Dashboard struct {
	feed     Feed
	analyzer Analyzer
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu             sync.RWMutex
	selected       string
	latestID       string
	recommendation *models.AIRecommendation
	analysing      bool
	errCode        string
	errMsg         string
	lastUpdated    time.Time

	subMu   sync.RWMutex
	subs    map[int]func(Event)
	nextSub int
}

func New(feed Feed, analyzer Analyzer, opts ...Option) *Dashboard {
	d := &Dashboard{
		feed:     feed,
		analyzer: analyzer,
		logger:   slog.Default(),
		now:      time.Now,
		subs:     make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Bootstrap builds the initial assets and selects the first one. It does not
// analyse; callers follow up with Refresh.
func (d *Dashboard) Bootstrap() []models.Asset {
	assets := d.feed.InitAssets()

	d.mu.Lock()
	d.lastUpdated = d.now()
	d.recommendation = nil
	d.errCode, d.errMsg = "", ""
	d.selected = ""
	if len(assets) > 0 {
		d.selected = assets[0].Symbol
	}
	selected := d.selected
	ts := d.lastUpdated
	d.mu.Unlock()

	d.publish(Event{Type: consts.EventTick, Assets: assets, LastUpdated: ts})
	if selected != "" {
		d.publish(Event{Type: consts.EventSelection, Symbol: selected, LastUpdated: ts})
	}
	return assets
}

// Tick advances every asset once and stamps the update time.
func (d *Dashboard) Tick() []models.Asset {
	start := time.Now()
	assets := d.feed.Tick()

	d.mu.Lock()
	d.lastUpdated = d.now()
	ts := d.lastUpdated
	d.mu.Unlock()

	if d.recorder != nil {
		d.recorder.ObserveTick(time.Since(start))
	}
	d.publish(Event{Type: consts.EventTick, Assets: assets, LastUpdated: ts})
	return assets
}

// Select makes symbol the current selection and analyses it. Selecting the
// already selected symbol re-analyses it.
func (d *Dashboard) Select(ctx context.Context, symbol string) (AnalysisResult, error) {
	if _, ok := d.feed.Asset(symbol); !ok {
		return AnalysisResult{}, ErrUnknownSymbol
	}

	d.mu.Lock()
	changed := d.selected != symbol
	d.selected = symbol
	if changed {
		d.recommendation = nil
		d.errCode, d.errMsg = "", ""
	}
	ts := d.lastUpdated
	d.mu.Unlock()

	if changed {
		d.publish(Event{Type: consts.EventSelection, Symbol: symbol, LastUpdated: ts})
	}
	return d.analyze(ctx, symbol)
}

// Refresh re-analyses the current selection.
func (d *Dashboard) Refresh(ctx context.Context) (AnalysisResult, error) {
	d.mu.RLock()
	symbol := d.selected
	d.mu.RUnlock()
	if symbol == "" {
		return AnalysisResult{}, ErrNoSelection
	}
	return d.analyze(ctx, symbol)
}

func (d *Dashboard) analyze(ctx context.Context, symbol string) (AnalysisResult, error) {
	asset, ok := d.feed.Asset(symbol)
	if !ok {
		return AnalysisResult{}, ErrUnknownSymbol
	}

	id := uuid.NewString()
	d.mu.Lock()
	d.latestID = id
	d.analysing = true
	ts := d.lastUpdated
	d.mu.Unlock()
	d.publish(Event{Type: consts.EventAnalysing, Symbol: symbol, RequestID: id, Analysing: true, LastUpdated: ts})

	ctx = logger.WithTraceID(ctx, id)
	rec, err := d.analyzer.Analyze(ctx, asset)
	result := AnalysisResult{RequestID: id, Symbol: symbol, Recommendation: rec}

	d.mu.Lock()
	if d.latestID != id || d.selected != symbol {
		if d.latestID == id {
			d.analysing = false
		}
		d.mu.Unlock()
		if d.recorder != nil {
			d.recorder.ObserveSuperseded()
		}
		d.logger.InfoContext(ctx, "discarding superseded analysis",
			append([]any{"symbol", symbol}, logger.LogWithTrace(ctx)...)...)
		return result, nil
	}

	d.analysing = false
	if err != nil {
		d.recommendation = nil
		d.errCode = ErrorCode(err)
		d.errMsg = err.Error()
	} else {
		r := rec
		d.recommendation = &r
		d.errCode, d.errMsg = "", ""
	}
	ev := Event{
		Type:        consts.EventRecommendation,
		Symbol:      symbol,
		RequestID:   id,
		ErrorCode:   d.errCode,
		Error:       d.errMsg,
		LastUpdated: d.lastUpdated,
	}
	if d.recommendation != nil {
		r := cloneRecommendation(*d.recommendation)
		ev.Recommendation = &r
	}
	d.mu.Unlock()

	d.publish(ev)
	if err != nil {
		return result, err
	}
	result.Applied = true
	return result, nil
}

// View returns the session filtered by a case-insensitive substring of the
// symbol or name. An empty filter keeps every asset.
func (d *Dashboard) View(filter string) View {
	assets := d.feed.Snapshot()

	d.mu.RLock()
	v := View{
		SelectedSymbol: d.selected,
		Analysing:      d.analysing,
		ErrorCode:      d.errCode,
		Error:          d.errMsg,
		LastUpdated:    d.lastUpdated,
	}
	if d.recommendation != nil {
		r := cloneRecommendation(*d.recommendation)
		v.Recommendation = &r
	}
	d.mu.RUnlock()

	for i := range assets {
		if assets[i].Symbol == v.SelectedSymbol {
			sel := assets[i]
			v.Selected = &sel
			break
		}
	}
	v.Assets = FilterAssets(assets, filter)
	return v
}

// Selected returns the currently selected symbol.
func (d *Dashboard) Selected() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selected
}

// Asset returns a copy of one asset.
func (d *Dashboard) Asset(symbol string) (models.Asset, bool) {
	return d.feed.Asset(symbol)
}

// Subscribe registers fn for every event and returns a function removing it.
// fn runs on the publishing goroutine and must not block.
func (d *Dashboard) Subscribe(fn func(Event)) func() {
	d.subMu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	d.subMu.Unlock()

	return func() {
		d.subMu.Lock()
		delete(d.subs, id)
		d.subMu.Unlock()
	}
}

func (d *Dashboard) publish(ev Event) {
	d.subMu.RLock()
	fns := make([]func(Event), 0, len(d.subs))
	for _, fn := range d.subs {
		fns = append(fns, fn)
	}
	d.subMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// FilterAssets keeps assets whose symbol or name contains filter, ignoring case.
func FilterAssets(assets []models.Asset, filter string) []models.Asset {
	q := strings.ToLower(strings.TrimSpace(filter))
	out := make([]models.Asset, 0, len(assets))
	for _, a := range assets {
		if q == "" ||
			strings.Contains(strings.ToLower(a.Symbol), q) ||
			strings.Contains(strings.ToLower(a.Name), q) {
			out = append(out, a)
		}
	}
	return out
}

// ErrorCode maps an analysis error to the code shown to the front end.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, advisor.ErrMissingCredential):
		return consts.CodeCredentialMissing
	case errors.Is(err, advisor.ErrCredentialInvalid):
		return consts.CodeCredentialInvalid
	default:
		return consts.CodeAnalysisFailed
	}
}

func cloneRecommendation(r models.AIRecommendation) models.AIRecommendation {
	if r.Reasoning != nil {
		r.Reasoning = append([]string(nil), r.Reasoning...)
	}
	if r.TargetPrice != nil {
		tp := *r.TargetPrice
		r.TargetPrice = &tp
	}
	return r
}
