package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dyike/MarketPulse/consts"
)

type Config struct {
	ProjectDir string `json:"project_dir"`

	LLMProvider   string  `json:"llm_provider"`
	Model         string  `json:"model"`
	BackendURL    string  `json:"backend_url"`
	CredentialEnv string  `json:"credential_env"`
	Temperature   float64 `json:"temperature"`
	MaxTokens     int     `json:"max_tokens"`

	// Seconds; zero means the default.
	AnalysisTimeout int `json:"analysis_timeout"`
	TickInterval    int `json:"tick_interval"`

	HistoryPoints   int    `json:"history_points"`
	InstrumentsFile string `json:"instruments_file"`
	Seed            int64  `json:"seed"`

	CurrencyCode   string `json:"currency_code"`
	CurrencySymbol string `json:"currency_symbol"`
	MarketRegion   string `json:"market_region"`

	ListenAddr string `json:"listen_addr"`
	LogLevel   string `json:"log_level"`
	LogFormat  string `json:"log_format"`
	Debug      bool   `json:"debug"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	cfg := DefaultConfigWithRoot(currentDir)

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()

	return cfg
}

// DefaultConfigWithRoot returns the built-in defaults without reading the environment.
func DefaultConfigWithRoot(root string) *Config {
	return &Config{
		ProjectDir: root,

		LLMProvider:   consts.ProviderGemini,
		Model:         consts.DefaultGeminiModel,
		BackendURL:    "",
		CredentialEnv: consts.DefaultCredentialEnv,
		Temperature:   0.2,
		MaxTokens:     2048,

		AnalysisTimeout: 30,
		TickInterval:    5,

		HistoryPoints: 50,

		CurrencyCode:   "INR",
		CurrencySymbol: "₹",
		MarketRegion:   "Indian",

		ListenAddr: ":8080",
		LogLevel:   "info",
		LogFormat:  "text",

		EinoDebugEnabled: false,
		EinoDebugPort:    52538,
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = strings.ToLower(val)
		// The default model belongs to the default provider.
		if os.Getenv("LLM_MODEL") == "" {
			c.Model = DefaultModel(c.LLMProvider)
		}
	}
	if val := os.Getenv("LLM_MODEL"); val != "" {
		c.Model = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}
	if val := os.Getenv("CREDENTIAL_ENV"); val != "" {
		c.CredentialEnv = val
	}
	if val := os.Getenv("LLM_TEMPERATURE"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.Temperature = v
		}
	}
	if val := os.Getenv("LLM_MAX_TOKENS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxTokens = v
		}
	}

	if val := os.Getenv("ANALYSIS_TIMEOUT"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.AnalysisTimeout = v
		}
	}
	if val := os.Getenv("TICK_INTERVAL"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.TickInterval = v
		}
	}
	if val := os.Getenv("HISTORY_POINTS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.HistoryPoints = v
		}
	}
	if val := os.Getenv("INSTRUMENTS_FILE"); val != "" {
		c.InstrumentsFile = val
	}
	if val := os.Getenv("MARKET_SEED"); val != "" {
		if v, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.Seed = v
		}
	}

	if val := os.Getenv("CURRENCY_CODE"); val != "" {
		c.CurrencyCode = val
	}
	if val := os.Getenv("CURRENCY_SYMBOL"); val != "" {
		c.CurrencySymbol = val
	}
	if val := os.Getenv("MARKET_REGION"); val != "" {
		c.MarketRegion = val
	}

	if val := os.Getenv("LISTEN_ADDR"); val != "" {
		c.ListenAddr = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.LogFormat = val
	}
	if val := os.Getenv("MARKETPULSE_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}

	if val := os.Getenv("EINO_DEBUG_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EinoDebugEnabled = enabled
		}
	}
	if val := os.Getenv("EINO_DEBUG_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.EinoDebugPort = port
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case consts.ProviderGemini, consts.ProviderOpenAI, consts.ProviderDeepSeek:
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLMProvider)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model is required")
	}
	if strings.TrimSpace(c.CredentialEnv) == "" {
		return fmt.Errorf("credential_env is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2], got %v", c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative")
	}
	if c.AnalysisTimeout < 0 {
		return fmt.Errorf("analysis_timeout must not be negative")
	}
	if c.TickInterval < 0 {
		return fmt.Errorf("tick_interval must not be negative")
	}
	if c.HistoryPoints < 0 {
		return fmt.Errorf("history_points must not be negative")
	}
	return nil
}

// AnalysisTimeoutDuration returns the per-request deadline for the recommendation service.
func (c *Config) AnalysisTimeoutDuration() time.Duration {
	if c.AnalysisTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.AnalysisTimeout) * time.Second
}

// TickIntervalDuration returns the cadence at which the feed is advanced.
func (c *Config) TickIntervalDuration() time.Duration {
	if c.TickInterval <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TickInterval) * time.Second
}

// ResolvedInstrumentsFile returns InstrumentsFile relative to ProjectDir.
func (c *Config) ResolvedInstrumentsFile() string {
	path := strings.TrimSpace(c.InstrumentsFile)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.ProjectDir, path)
}

// DefaultModel returns the model used when only a provider is configured.
func DefaultModel(provider string) string {
	switch provider {
	case consts.ProviderOpenAI:
		return consts.DefaultOpenAIModel
	case consts.ProviderDeepSeek:
		return consts.DefaultDeepSeekModel
	default:
		return consts.DefaultGeminiModel
	}
}
