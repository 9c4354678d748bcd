package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"legalis/internal/config"
	"legalis/internal/domain"
	"legalis/internal/llm"
	"legalis/internal/port"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	messagesPath   = "/v1/messages"
	modelsPath     = "/v1/models"
	apiVersion     = "2023-06-01"

	defaultMaxTokens = 4096
)

// Adapter implements port.LLMAdapter using the Anthropic Messages API.
type Adapter struct {
	apiKey       string
	baseURL      string
	defaultModel string
	models       []string
	pricing      map[string]config.ModelPricing
	client       *http.Client
}

// NewAdapter creates an Anthropic-backed adapter from a provider config.
func NewAdapter(cfg *config.ProviderConfig) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	models := cfg.Models
	if len(models) == 0 {
		models = []string{model}
	}
	return &Adapter{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		defaultModel: model,
		models:       models,
		pricing:      cfg.Pricing,
		client:       &http.Client{Timeout: cfg.Timeout()},
	}
}

func (a *Adapter) Execute(ctx context.Context, req *domain.LLMRequest) (*domain.LLMResponse, error) {
	model := req.Model
	if model == "" {
		model = a.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	reqBody := map[string]interface{}{
		"model":      model,
		"max_tokens": maxTokens,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": req.Content,
			},
		},
	}
	if req.SystemPrompt != "" {
		reqBody["system"] = req.SystemPrompt
	}
	if req.Temperature > 0 {
		reqBody["temperature"] = req.Temperature
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, llm.NewError("marshaling request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+messagesPath, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, llm.NewError("creating request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	start := time.Now()
	resp, err := a.client.Do(httpReq)
	if err != nil {
		// Timeouts and transport failures are connection-kind, retryable.
		return nil, llm.NewConnectionError("anthropic", err)
	}
	defer func() { _ = resp.Body.Close() }()
	latency := time.Since(start)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.NewConnectionError("anthropic", fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, a.classifyStatus(resp, respBody)
	}

	return a.parseResponse(respBody, model, latency)
}

// ExecuteBatch executes requests one by one against the provider. Pooling
// and per-item retry policy live in the llm.Service layer.
func (a *Adapter) ExecuteBatch(ctx context.Context, reqs []*domain.LLMRequest) ([]*domain.LLMResponse, error) {
	out := make([]*domain.LLMResponse, 0, len(reqs))
	for i, req := range reqs {
		resp, err := a.Execute(ctx, req)
		if err != nil {
			return out, fmt.Errorf("batch item %d: %w", i, err)
		}
		out = append(out, resp)
	}
	return out, nil
}

// ValidateConnection issues a lightweight models listing to verify the
// endpoint is reachable and the credentials are accepted.
func (a *Adapter) ValidateConnection(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+modelsPath, nil)
	if err != nil {
		return llm.NewError("creating request", err)
	}
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return llm.NewConnectionError("anthropic", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return a.classifyStatus(resp, body)
	}
	return nil
}

func (a *Adapter) SupportedModels() []string {
	return a.models
}

// CalculateCost computes the cost of a call from the configured per-model
// pricing table (prices per million tokens). Unknown models cost zero.
func (a *Adapter) CalculateCost(inputTokens, outputTokens int, model string) float64 {
	p, ok := a.pricing[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1_000_000*p.InputPerMillion +
		float64(outputTokens)/1_000_000*p.OutputPerMillion
}

// CountTokens estimates the token count of text. The provider does not
// expose an offline tokenizer, so this uses the documented ~4 chars per
// token approximation.
func (a *Adapter) CountTokens(text, model string) int {
	if text == "" {
		return 0
	}
	return len(text)/4 + 1
}

func (a *Adapter) classifyStatus(resp *http.Response, body []byte) error {
	baseErr := fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(body))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := llm.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
		return llm.NewRateLimitError("anthropic", baseErr, retryAfter)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return llm.NewConnectionError("anthropic", baseErr)
	case resp.StatusCode >= 500:
		return llm.NewConnectionError("anthropic", baseErr)
	default:
		return llm.NewError("anthropic request rejected", baseErr)
	}
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *Adapter) parseResponse(body []byte, model string, latency time.Duration) (*domain.LLMResponse, error) {
	var mr messagesResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, llm.NewError("decoding anthropic response", err)
	}

	var text string
	for _, block := range mr.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, llm.NewError("anthropic response contained no text content", nil)
	}

	usedModel := mr.Model
	if usedModel == "" {
		usedModel = model
	}

	return &domain.LLMResponse{
		Text:         text,
		InputTokens:  mr.Usage.InputTokens,
		OutputTokens: mr.Usage.OutputTokens,
		Cost:         a.CalculateCost(mr.Usage.InputTokens, mr.Usage.OutputTokens, usedModel),
		Model:        usedModel,
		Latency:      latency,
		Metadata: map[string]string{
			"stop_reason": mr.StopReason,
		},
	}, nil
}

// compile-time interface check
var _ port.LLMAdapter = (*Adapter)(nil)
