package llm

// Provider identifies an LLM vendor.
type Provider string

const (
	ProviderGoogle     Provider = "google"
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
	ProviderPerplexity Provider = "perplexity"
)

// Model identifiers accepted by the generation gateway.
const (
	ModelGemini25Pro          = "gemini-2.5-pro"
	ModelGemini25Flash        = "gemini-2.5-flash"
	ModelGemini20Flash        = "gemini-2.0-flash"
	ModelGPT4o                = "gpt-4o"
	ModelGPT4oMini            = "gpt-4o-mini"
	ModelO4Mini               = "o4-mini"
	ModelO4MiniDeepResearch   = "o4-mini-deep-research"
	ModelClaudeSonnet45       = "claude-sonnet-4-5-20250929"
	ModelClaudeOpus45         = "claude-opus-4-5-20251101"
	ModelSonarPro             = "sonar-pro"
)

// ProviderForModel returns the vendor serving a model id.
func ProviderForModel(model string) Provider {
	switch model {
	case ModelGemini25Pro, ModelGemini25Flash, ModelGemini20Flash:
		return ProviderGoogle
	case ModelGPT4o, ModelGPT4oMini, ModelO4Mini, ModelO4MiniDeepResearch:
		return ProviderOpenAI
	case ModelClaudeSonnet45, ModelClaudeOpus45:
		return ProviderAnthropic
	case ModelSonarPro:
		return ProviderPerplexity
	default:
		return ""
	}
}
