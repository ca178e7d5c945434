package providers

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ChamsBouzaiene/rferag/internal/engine"
)

// compatEndpoint describes a provider served through the OpenAI-compatible API.
type compatEndpoint struct {
	keyEnv       string // empty: local server, key optional
	modelEnv     string
	baseURLEnv   string
	defaultModel string
	defaultURL   string
	defaultKey   string
}

var compatEndpoints = map[string]compatEndpoint{
	"openai": {
		keyEnv: "OPENAI_API_KEY", modelEnv: "OPENAI_MODEL", baseURLEnv: "OPENAI_BASE_URL",
		defaultModel: "gpt-4o-mini",
	},
	"kimi": {
		keyEnv: "KIMI_API_KEY", modelEnv: "KIMI_MODEL", baseURLEnv: "KIMI_BASE_URL",
		defaultModel: "kimi-k2-250711", defaultURL: "https://ark.ap-southeast.bytepluses.com/api/v3",
	},
	"gemini-openai": {
		keyEnv: "GEMINI_API_KEY", modelEnv: "GEMINI_MODEL",
		defaultModel: "gemini-2.0-flash", defaultURL: "https://generativelanguage.googleapis.com/v1beta/openai",
	},
	"lmstudio": {
		modelEnv: "LMSTUDIO_MODEL", baseURLEnv: "LMSTUDIO_BASE_URL",
		defaultModel: "local-model", defaultURL: "http://localhost:1234/v1", defaultKey: "lm-studio",
	},
	"ollama": {
		modelEnv: "OLLAMA_MODEL", baseURLEnv: "OLLAMA_BASE_URL",
		defaultModel: "llama3.1", defaultURL: "http://localhost:11434/v1", defaultKey: "ollama",
	},
	"deepseek": {
		keyEnv: "DEEPSEEK_API_KEY", modelEnv: "DEEPSEEK_MODEL",
		defaultModel: "deepseek-chat", defaultURL: "https://api.deepseek.com/v1",
	},
	"groq": {
		keyEnv: "GROQ_API_KEY", modelEnv: "GROQ_MODEL",
		defaultModel: "llama-3.1-70b-versatile", defaultURL: "https://api.groq.com/openai/v1",
	},
}

// Supported lists the provider names NewLLMClientFromEnv accepts.
func Supported() []string {
	names := []string{"anthropic", "gemini"}
	for name := range compatEndpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewLLMClientFromEnv creates an engine.LLMClient based on environment variables.
// provider overrides LLM_PROVIDER when set. Returns the client and the model
// name it defaults to.
func NewLLMClientFromEnv(ctx context.Context, provider string) (engine.LLMClient, string, error) {
	if provider == "" {
		provider = os.Getenv("LLM_PROVIDER")
	}
	if provider == "" {
		provider = "openai"
	}

	switch provider {
	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, "", fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		modelName := envOr("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest")
		client, err := NewAnthropicClient(apiKey, modelName)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create Anthropic client: %w", err)
		}
		return client, modelName, nil

	case "gemini":
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			return nil, "", fmt.Errorf("GEMINI_API_KEY not set")
		}
		modelName := envOr("GEMINI_MODEL", "gemini-2.0-flash")
		client, err := NewGeminiClient(ctx, apiKey, modelName)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return client, modelName, nil
	}

	ep, ok := compatEndpoints[provider]
	if !ok {
		return nil, "", fmt.Errorf("unknown LLM_PROVIDER: %s (supported: %s)", provider, strings.Join(Supported(), ", "))
	}

	apiKey := ep.defaultKey
	if ep.keyEnv != "" {
		apiKey = os.Getenv(ep.keyEnv)
		if apiKey == "" {
			return nil, "", fmt.Errorf("%s not set", ep.keyEnv)
		}
	} else if v := os.Getenv(strings.ToUpper(provider) + "_API_KEY"); v != "" {
		apiKey = v
	}

	baseURL := ep.defaultURL
	if ep.baseURLEnv != "" {
		baseURL = envOr(ep.baseURLEnv, ep.defaultURL)
	}
	modelName := envOr(ep.modelEnv, ep.defaultModel)

	client, err := NewOpenAIClient(apiKey, modelName, baseURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create %s client: %w", provider, err)
	}
	return client, modelName, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
