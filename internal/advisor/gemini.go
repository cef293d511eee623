package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-resty/resty/v2"

	"github.com/dyike/MarketPulse/consts"
)

// GeminiConfig configures the Generative Language REST chat model.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	// Timeout bounds the HTTP exchange; the caller's context may be shorter.
	Timeout   time.Duration
	MaxTokens int
	// ResponseSchema, when set, forces a JSON reply of that shape.
	ResponseSchema map[string]any
}

// GeminiChatModel is an eino chat model backed by the generateContent endpoint.
type GeminiChatModel struct {
	client *resty.Client
	conf   GeminiConfig
}

var _ model.BaseChatModel = (*GeminiChatModel)(nil)

// APIError is a non-2xx answer from the Gemini endpoint.
type APIError struct {
	Status  int
	Reason  string
	Message string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("gemini: status %d %s: %s", e.Status, e.Reason, e.Message)
	}
	return fmt.Sprintf("gemini: status %d: %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status of the failed call.
func (e *APIError) StatusCode() int {
	return e.Status
}

func NewGeminiChatModel(_ context.Context, conf *GeminiConfig) (*GeminiChatModel, error) {
	if conf == nil {
		return nil, errors.New("gemini: config is required")
	}
	if strings.TrimSpace(conf.APIKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if strings.TrimSpace(conf.Model) == "" {
		return nil, errors.New("gemini: model is required")
	}

	c := *conf
	if c.BaseURL == "" {
		c.BaseURL = consts.DefaultGeminiURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(c.BaseURL, "/"))
	client.SetTimeout(c.Timeout)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("x-goog-api-key", c.APIKey)

	return &GeminiChatModel{client: client, conf: c}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
	Temperature      *float32       `json:"temperature,omitempty"`
	TopP             *float32       `json:"topP,omitempty"`
	MaxOutputTokens  *int           `json:"maxOutputTokens,omitempty"`
	StopSequences    []string       `json:"stopSequences,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (m *GeminiChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{}, opts...)
	body := m.buildRequest(input, options)

	modelName := m.conf.Model
	if options.Model != nil && *options.Model != "" {
		modelName = *options.Model
	}

	var out geminiResponse
	var apiErr geminiErrorBody
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1beta/models/" + modelName + ":generateContent")
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return nil, &APIError{Status: resp.StatusCode(), Reason: apiErr.Error.Status, Message: msg}
	}

	if len(out.Candidates) == 0 {
		return nil, errors.New("gemini: response has no candidates")
	}
	cand := out.Candidates[0]
	var text strings.Builder
	for _, p := range cand.Content.Parts {
		text.WriteString(p.Text)
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("gemini: empty response (finish reason %q)", cand.FinishReason)
	}

	msg := schema.AssistantMessage(text.String(), nil)
	msg.ResponseMeta = &schema.ResponseMeta{
		FinishReason: cand.FinishReason,
		Usage: &schema.TokenUsage{
			PromptTokens:     out.UsageMetadata.PromptTokenCount,
			CompletionTokens: out.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      out.UsageMetadata.TotalTokenCount,
		},
	}
	return msg, nil
}

// Stream has no incremental mode; it yields the full Generate reply as one chunk.
func (m *GeminiChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *GeminiChatModel) buildRequest(input []*schema.Message, options *model.Options) geminiRequest {
	req := geminiRequest{
		GenerationConfig: geminiGenerationConfig{
			Temperature: options.Temperature,
			TopP:        options.TopP,
		},
	}
	if len(options.Stop) > 0 {
		req.GenerationConfig.StopSequences = options.Stop
	}

	maxTokens := m.conf.MaxTokens
	if options.MaxTokens != nil {
		maxTokens = *options.MaxTokens
	}
	if maxTokens > 0 {
		req.GenerationConfig.MaxOutputTokens = &maxTokens
	}
	if m.conf.ResponseSchema != nil {
		req.GenerationConfig.ResponseMimeType = "application/json"
		req.GenerationConfig.ResponseSchema = m.conf.ResponseSchema
	}

	var system []geminiPart
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			system = append(system, geminiPart{Text: msg.Content})
		case schema.Assistant:
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: msg.Content}}})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: msg.Content}}})
		}
	}
	if len(system) > 0 {
		req.SystemInstruction = &geminiContent{Parts: system}
	}
	return req
}
