// Package advisor asks an external chat model for a BUY/HOLD/SELL call on one
// asset. Credential problems surface as errors; every other failure degrades
// to a fixed neutral recommendation.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/MarketPulse/config"
	"github.com/dyike/MarketPulse/internal/logger"
	"github.com/dyike/MarketPulse/models"
)

// DefaultTimeout bounds one analysis request.
const DefaultTimeout = 30 * time.Second

// CredentialProvider yields the API key in effect right now.
type CredentialProvider interface {
	CurrentCredential() (string, bool)
}

// Recorder receives one observation per analysis.
type Recorder interface {
	ObserveAnalysis(outcome string, elapsed time.Duration)
}

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFallback
	OutcomeCredentialInvalid
	OutcomeMissingCredential
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFallback:
		return "fallback"
	case OutcomeCredentialInvalid:
		return "credential_invalid"
	case OutcomeMissingCredential:
		return "credential_missing"
	default:
		return "unknown"
	}
}

// Result is the outcome of one analysis. Recommendation is set for success and
// fallback. Err is the cause for every outcome except success; for a fallback
// it is informational only.
type Result struct {
	Outcome        Outcome
	Recommendation models.AIRecommendation
	Err            error
}

// Settings are the per-request knobs that can change at runtime.
type Settings struct {
	Temperature    float32
	Timeout        time.Duration
	CurrencyCode   string
	CurrencySymbol string
	MarketRegion   string
}

func DefaultSettings() Settings {
	return Settings{
		Temperature:    0.2,
		Timeout:        DefaultTimeout,
		CurrencyCode:   "INR",
		CurrencySymbol: "₹",
		MarketRegion:   "Indian",
	}
}

// SettingsFromConfig picks the request settings out of cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	s := DefaultSettings()
	s.Temperature = float32(cfg.Temperature)
	s.Timeout = cfg.AnalysisTimeoutDuration()
	if cfg.CurrencyCode != "" {
		s.CurrencyCode = cfg.CurrencyCode
	}
	if cfg.CurrencySymbol != "" {
		s.CurrencySymbol = cfg.CurrencySymbol
	}
	if cfg.MarketRegion != "" {
		s.MarketRegion = cfg.MarketRegion
	}
	return s
}

type Option func(*Client)

func WithSettings(s Settings) Option {
	return func(c *Client) { c.settings = s }
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client issues analysis requests. It is safe for concurrent use.
type Client struct {
	creds    CredentialProvider
	template prompt.ChatTemplate
	recorder Recorder
	logger   *slog.Logger

	chain    compose.Runnable[map[string]any, *schema.Message]
	chainErr error

	mu       sync.RWMutex
	factory  ModelFactory
	settings Settings
}

func NewClient(creds CredentialProvider, factory ModelFactory, opts ...Option) *Client {
	c := &Client{
		creds:    creds,
		factory:  factory,
		template: newTemplate(),
		settings: DefaultSettings(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.settings.Timeout <= 0 {
		c.settings.Timeout = DefaultTimeout
	}
	c.chain, c.chainErr = compileChain(context.Background(), c.template)
	return c
}

// Reconfigure swaps the model factory and settings for subsequent requests.
// Requests already in flight keep the old ones.
func (c *Client) Reconfigure(factory ModelFactory, s Settings) {
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	c.mu.Lock()
	if factory != nil {
		c.factory = factory
	}
	c.settings = s
	c.mu.Unlock()
}

func (c *Client) current() (ModelFactory, Settings) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.factory, c.settings
}

// Analyze returns a recommendation for asset. Only ErrMissingCredential and
// ErrCredentialInvalid are ever returned; other failures yield Fallback().
func (c *Client) Analyze(ctx context.Context, asset models.Asset) (models.AIRecommendation, error) {
	res := c.Evaluate(ctx, asset)
	switch res.Outcome {
	case OutcomeMissingCredential, OutcomeCredentialInvalid:
		return models.AIRecommendation{}, res.Err
	}
	return res.Recommendation, nil
}

// Evaluate is Analyze with the outcome kept explicit.
func (c *Client) Evaluate(ctx context.Context, asset models.Asset) Result {
	start := time.Now()
	res := c.evaluate(ctx, asset)
	elapsed := time.Since(start)

	attrs := append([]any{
		"symbol", asset.Symbol,
		"outcome", res.Outcome.String(),
		"elapsed", elapsed,
	}, logger.LogWithTrace(ctx)...)
	switch res.Outcome {
	case OutcomeSuccess:
		c.logger.InfoContext(ctx, "analysis completed", attrs...)
	case OutcomeFallback:
		c.logger.WarnContext(ctx, "analysis degraded to fallback", append(attrs, "error", res.Err)...)
	default:
		c.logger.ErrorContext(ctx, "analysis rejected", append(attrs, "error", res.Err)...)
	}

	if c.recorder != nil {
		c.recorder.ObserveAnalysis(res.Outcome.String(), elapsed)
	}
	return res
}

func (c *Client) evaluate(ctx context.Context, asset models.Asset) Result {
	var apiKey string
	ok := false
	if c.creds != nil {
		apiKey, ok = c.creds.CurrentCredential()
	}
	if !ok || apiKey == "" {
		return Result{Outcome: OutcomeMissingCredential, Err: ErrMissingCredential}
	}

	factory, settings := c.current()
	if factory == nil {
		return fallback(errors.New("no chat model configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, settings.Timeout)
	defer cancel()

	cm, err := factory(ctx, apiKey)
	if err != nil {
		return fallback(fmt.Errorf("create chat model: %w", err))
	}

	if c.chainErr != nil {
		return fallback(fmt.Errorf("compile analysis chain: %w", c.chainErr))
	}

	tm := &trackedModel{BaseChatModel: cm}
	reply, err := c.chain.Invoke(context.WithValue(ctx, requestModelKey{}, tm), promptVariables(asset, settings),
		compose.WithChatModelOption(model.WithTemperature(settings.Temperature)))
	if err != nil {
		// Only the model's own error can mean a rejected key.
		if tm.err != nil && isCredentialRejected(tm.err) {
			return Result{Outcome: OutcomeCredentialInvalid, Err: fmt.Errorf("%w: %w", ErrCredentialInvalid, tm.err)}
		}
		return fallback(fmt.Errorf("generate: %w", err))
	}
	if reply == nil {
		return fallback(fmt.Errorf("%w: no message", ErrMalformedReply))
	}

	rec, err := ParseRecommendation(reply.Content)
	if err != nil {
		return fallback(err)
	}
	return Result{Outcome: OutcomeSuccess, Recommendation: rec}
}

// chainName is the graph name shown by the eino debug server.
const chainName = "market_analysis"

// compileChain builds the prompt -> model chain once. The model node resolves
// the request's own chat model from the context.
func compileChain(ctx context.Context, tpl prompt.ChatTemplate) (compose.Runnable[map[string]any, *schema.Message], error) {
	return compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(tpl, compose.WithNodeName("analysis_prompt")).
		AppendChatModel(requestModel{}, compose.WithNodeName("analysis_model")).
		Compile(ctx, compose.WithGraphName(chainName))
}

type requestModelKey struct{}

// requestModel forwards to the chat model bound to the request context.
type requestModel struct{}

func (requestModel) bound(ctx context.Context) (model.BaseChatModel, error) {
	cm, ok := ctx.Value(requestModelKey{}).(model.BaseChatModel)
	if !ok || cm == nil {
		return nil, errors.New("no chat model bound to request")
	}
	return cm, nil
}

func (r requestModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	cm, err := r.bound(ctx)
	if err != nil {
		return nil, err
	}
	return cm.Generate(ctx, input, opts...)
}

func (r requestModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	cm, err := r.bound(ctx)
	if err != nil {
		return nil, err
	}
	return cm.Stream(ctx, input, opts...)
}

// trackedModel keeps the error returned by the wrapped model, which the chain
// otherwise reports wrapped in node context.
type trackedModel struct {
	model.BaseChatModel
	err error
}

func (m *trackedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	msg, err := m.BaseChatModel.Generate(ctx, input, opts...)
	m.err = err
	return msg, err
}

func fallback(cause error) Result {
	return Result{Outcome: OutcomeFallback, Recommendation: Fallback(), Err: cause}
}
