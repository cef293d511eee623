package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/MarketPulse/config"
	"github.com/dyike/MarketPulse/consts"
	"github.com/dyike/MarketPulse/internal/logger"
	"github.com/dyike/MarketPulse/models"
)

func geminiServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			raw, _ := io.ReadAll(r.Body)
			m := map[string]any{}
			_ = json.Unmarshal(raw, &m)
			m["_path"] = r.URL.Path
			m["_key"] = r.Header.Get("x-goog-api-key")
			*seen = m
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func geminiClient(t *testing.T, url string) *Client {
	t.Helper()
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.LLMProvider = consts.ProviderGemini
	cfg.BackendURL = url
	factory, err := NewModelFactory(cfg)
	if err != nil {
		t.Fatalf("NewModelFactory: %v", err)
	}
	return NewClient(staticCredential{key: "secret", ok: true}, factory,
		WithSettings(SettingsFromConfig(cfg)), WithLogger(logger.Discard()))
}

func TestGeminiSuccess(t *testing.T) {
	reply, _ := json.Marshal(validReply)
	body := `{"candidates":[{"content":{"role":"model","parts":[{"text":` + string(reply) + `}]},"finishReason":"STOP"}],` +
		`"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":5,"totalTokenCount":15}}`
	var seen map[string]any
	srv := geminiServer(t, http.StatusOK, body, &seen)

	rec, err := geminiClient(t, srv.URL).Analyze(context.Background(), testAsset())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Recommendation != models.RecommendationBuy || rec.Confidence != 82 {
		t.Errorf("unexpected recommendation %+v", rec)
	}

	if seen["_path"] != "/v1beta/models/"+consts.DefaultGeminiModel+":generateContent" {
		t.Errorf("unexpected path %v", seen["_path"])
	}
	if seen["_key"] != "secret" {
		t.Errorf("expected api key header, got %v", seen["_key"])
	}
	gen, _ := seen["generationConfig"].(map[string]any)
	if gen["responseMimeType"] != "application/json" {
		t.Errorf("expected json mime type, got %v", gen["responseMimeType"])
	}
	if _, ok := gen["responseSchema"]; !ok {
		t.Error("expected response schema in request")
	}
	if temp, _ := gen["temperature"].(float64); temp < 0.19 || temp > 0.21 {
		t.Errorf("expected temperature 0.2, got %v", gen["temperature"])
	}
	if _, ok := seen["systemInstruction"]; !ok {
		t.Error("expected system instruction in request")
	}
}

func TestGeminiNotFoundIsCredentialInvalid(t *testing.T) {
	body := `{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`
	srv := geminiServer(t, http.StatusNotFound, body, nil)

	_, err := geminiClient(t, srv.URL).Analyze(context.Background(), testAsset())
	if !errors.Is(err, ErrCredentialInvalid) {
		t.Fatalf("expected ErrCredentialInvalid, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode() != http.StatusNotFound {
		t.Errorf("expected wrapped APIError with 404, got %v", err)
	}
}

func TestGeminiServerErrorFallsBack(t *testing.T) {
	srv := geminiServer(t, http.StatusInternalServerError, `{"error":{"code":500,"message":"backend error"}}`, nil)

	rec, err := geminiClient(t, srv.URL).Analyze(context.Background(), testAsset())
	if err != nil {
		t.Fatalf("expected fallback, got %v", err)
	}
	assertFallback(t, rec)
}

func TestGeminiMalformedBodyFallsBack(t *testing.T) {
	body := `{"candidates":[{"content":{"parts":[{"text":"not json at all"}]}}]}`
	srv := geminiServer(t, http.StatusOK, body, nil)

	rec, err := geminiClient(t, srv.URL).Analyze(context.Background(), testAsset())
	if err != nil {
		t.Fatalf("expected fallback, got %v", err)
	}
	assertFallback(t, rec)
}

func TestGeminiNoCandidates(t *testing.T) {
	srv := geminiServer(t, http.StatusOK, `{"candidates":[]}`, nil)
	cm, err := NewGeminiChatModel(context.Background(), &GeminiConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewGeminiChatModel: %v", err)
	}
	if _, err := cm.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")}); err == nil {
		t.Fatal("expected error for empty candidate list")
	}
}

func TestGeminiStreamYieldsReply(t *testing.T) {
	body := `{"candidates":[{"content":{"parts":[{"text":"hello"}]},"finishReason":"STOP"}]}`
	var seen map[string]any
	srv := geminiServer(t, http.StatusOK, body, &seen)
	cm, err := NewGeminiChatModel(context.Background(), &GeminiConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewGeminiChatModel: %v", err)
	}

	sr, err := cm.Stream(context.Background(), []*schema.Message{
		schema.UserMessage("hi"),
		schema.AssistantMessage("earlier", nil),
	}, model.WithMaxTokens(64))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer sr.Close()
	msg, err := sr.Recv()
	if err != nil || msg.Content != "hello" {
		t.Fatalf("expected hello, got %v / %v", msg, err)
	}

	contents, _ := seen["contents"].([]any)
	if len(contents) != 2 {
		t.Fatalf("expected two contents, got %v", seen["contents"])
	}
	second, _ := contents[1].(map[string]any)
	if second["role"] != "model" {
		t.Errorf("expected assistant turn mapped to model, got %v", second["role"])
	}
	gen, _ := seen["generationConfig"].(map[string]any)
	if gen["maxOutputTokens"] != float64(64) {
		t.Errorf("expected maxOutputTokens 64, got %v", gen["maxOutputTokens"])
	}
	if _, ok := gen["responseMimeType"]; ok {
		t.Error("no schema configured, mime type must be omitted")
	}
}

func TestNewGeminiChatModelValidates(t *testing.T) {
	if _, err := NewGeminiChatModel(context.Background(), &GeminiConfig{Model: "m"}); err == nil {
		t.Error("expected error without api key")
	}
	if _, err := NewGeminiChatModel(context.Background(), &GeminiConfig{APIKey: "k"}); err == nil {
		t.Error("expected error without model")
	}
}

func TestNewModelFactoryProviders(t *testing.T) {
	for _, p := range []string{consts.ProviderGemini, consts.ProviderOpenAI, consts.ProviderDeepSeek} {
		cfg := config.DefaultConfigWithRoot(t.TempDir())
		cfg.LLMProvider = p
		cfg.Model = config.DefaultModel(p)
		factory, err := NewModelFactory(cfg)
		if err != nil {
			t.Fatalf("%s: %v", p, err)
		}
		cm, err := factory(context.Background(), "key")
		if err != nil || cm == nil {
			t.Errorf("%s: expected chat model, got %v / %v", p, cm, err)
		}
	}

	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.LLMProvider = "claude"
	if _, err := NewModelFactory(cfg); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected unsupported provider error, got %v", err)
	}
}

func TestDeepSeekFactoryUsesBackendURL(t *testing.T) {
	paths := make(chan string, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.Header.Get("Authorization") + " " + r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"authentication_error"}}`)
	}))
	defer srv.Close()

	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.LLMProvider = consts.ProviderDeepSeek
	cfg.Model = consts.DefaultDeepSeekModel
	cfg.BackendURL = srv.URL
	factory, err := NewModelFactory(cfg)
	if err != nil {
		t.Fatalf("NewModelFactory: %v", err)
	}
	cm, err := factory(context.Background(), "ds-key")
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if _, err := cm.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")}); err == nil {
		t.Fatal("expected error from rejected request")
	}

	select {
	case got := <-paths:
		if got != "Bearer ds-key /chat/completions" {
			t.Errorf("unexpected request %q", got)
		}
	default:
		t.Fatal("deepseek request did not reach the configured backend")
	}
}
