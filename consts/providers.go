package consts

const (
	// LLM providers
	ProviderGemini   = "gemini"
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
)

const (
	DefaultGeminiModel   = "gemini-3-pro-preview"
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultDeepSeekModel = "deepseek-chat"

	DefaultGeminiURL   = "https://generativelanguage.googleapis.com"
	DefaultOpenAIURL   = "https://api.openai.com/v1"
	DefaultDeepSeekURL = "https://api.deepseek.com/v1"

	// DefaultCredentialEnv names the environment variable holding the API key.
	DefaultCredentialEnv = "API_KEY"
)
