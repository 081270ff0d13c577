// Package llm provides generative backend clients and the HR answer generator.
package llm

import (
	"context"
	"fmt"
	"net/http"
)

// Role values used in chat history.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderYandex    Provider = "yandex"
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// ClientConfig holds provider credentials.
type ClientConfig struct {
	Provider        Provider
	YandexAPIKey    string
	YandexFolderID  string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	HTTPClient      *http.Client
}

// NewClient creates a new LLM client based on provider. It returns
// ErrNotConfigured when the provider's credentials are missing.
func NewClient(cfg ClientConfig) (Client, error) {
	var (
		client Client
		err    error
	)
	switch cfg.Provider {
	case ProviderYandex, "":
		client, err = NewYandexClient(YandexConfig{
			APIKey:     cfg.YandexAPIKey,
			FolderID:   cfg.YandexFolderID,
			HTTPClient: cfg.HTTPClient,
		})
	case ProviderAnthropic:
		client, err = NewAnthropicClient(cfg.AnthropicAPIKey)
	case ProviderOpenAI:
		client, err = NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}
