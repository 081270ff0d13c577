package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	yandexCompletionURL = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"
	yandexDefaultModel  = "yandexgpt-lite"
)

// YandexConfig configures the YandexGPT client.
type YandexConfig struct {
	APIKey     string
	FolderID   string
	BaseURL    string
	HTTPClient *http.Client
}

// YandexClient calls the YandexGPT foundation models completion API.
type YandexClient struct {
	apiKey     string
	folderID   string
	url        string
	httpClient *http.Client
}

// NewYandexClient creates a new YandexGPT client.
func NewYandexClient(cfg YandexConfig) (*YandexClient, error) {
	if cfg.APIKey == "" || cfg.FolderID == "" {
		return nil, fmt.Errorf("yandex: %w", ErrNotConfigured)
	}
	url := cfg.BaseURL
	if url == "" {
		url = yandexCompletionURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &YandexClient{
		apiKey:     cfg.APIKey,
		folderID:   cfg.FolderID,
		url:        url,
		httpClient: httpClient,
	}, nil
}

// Name returns the provider name.
func (c *YandexClient) Name() string {
	return string(ProviderYandex)
}

type yandexMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type yandexRequest struct {
	ModelURI          string `json:"modelUri"`
	CompletionOptions struct {
		Stream      bool    `json:"stream"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"maxTokens"`
	} `json:"completionOptions"`
	Messages []yandexMessage `json:"messages"`
}

type yandexResponse struct {
	Result *struct {
		Alternatives []struct {
			Message *yandexMessage `json:"message"`
			Status  string         `json:"status"`
		} `json:"alternatives"`
		Usage struct {
			InputTextTokens  string `json:"inputTextTokens"`
			CompletionTokens string `json:"completionTokens"`
		} `json:"usage"`
		ModelVersion string `json:"modelVersion"`
	} `json:"result"`
}

// Complete sends a completion request.
func (c *YandexClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = yandexDefaultModel
	}

	body := yandexRequest{ModelURI: fmt.Sprintf("gpt://%s/%s", c.folderID, model)}
	body.CompletionOptions.Temperature = req.Temperature
	body.CompletionOptions.MaxTokens = req.MaxTokens
	if req.System != "" {
		body.Messages = append(body.Messages, yandexMessage{Role: RoleSystem, Text: req.System})
	}
	for _, msg := range req.Messages {
		body.Messages = append(body.Messages, yandexMessage{Role: msg.Role, Text: msg.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Api-Key "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, wrapRequestError("yandex", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapRequestError("yandex", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("yandex: %w: status %d: %s", ErrTransport, resp.StatusCode, truncate(string(data), 200))
	}

	var out yandexResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("yandex: %w: %v", ErrMalformedResponse, err)
	}
	if out.Result == nil || len(out.Result.Alternatives) == 0 || out.Result.Alternatives[0].Message == nil {
		return nil, fmt.Errorf("yandex: %w: no alternatives in result", ErrMalformedResponse)
	}

	tokensIn, _ := strconv.Atoi(out.Result.Usage.InputTextTokens)
	tokensOut, _ := strconv.Atoi(out.Result.Usage.CompletionTokens)

	return &CompletionResponse{
		Content:    out.Result.Alternatives[0].Message.Text,
		Model:      model,
		TokensIn:   tokensIn,
		TokensOut:  tokensOut,
		StopReason: out.Result.Alternatives[0].Status,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
