package openai

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
	defaultBaseURL  = "https://api.openai.com"
	completionsPath = "/v1/chat/completions"
	modelsPath      = "/v1/models"

	defaultMaxTokens = 4096
)

// Adapter implements port.LLMAdapter using the OpenAI Chat Completions API.
type Adapter struct {
	apiKey       string
	baseURL      string
	defaultModel string
	models       []string
	pricing      map[string]config.ModelPricing
	client       *http.Client
}

// NewAdapter creates an OpenAI-backed adapter from a provider config.
func NewAdapter(cfg *config.ProviderConfig) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "gpt-4o"
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

	messages := make([]map[string]interface{}, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]interface{}{
			"role":    "system",
			"content": req.SystemPrompt,
		})
	}
	messages = append(messages, map[string]interface{}{
		"role":    "user",
		"content": req.Content,
	})

	reqBody := map[string]interface{}{
		"model":                 model,
		"max_completion_tokens": maxTokens,
		"messages":              messages,
	}
	if req.Temperature > 0 {
		reqBody["temperature"] = req.Temperature
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, llm.NewError("marshaling request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+completionsPath, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, llm.NewError("creating request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	start := time.Now()
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, llm.NewConnectionError("openai", err)
	}
	defer func() { _ = resp.Body.Close() }()
	latency := time.Since(start)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.NewConnectionError("openai", fmt.Errorf("reading response: %w", err))
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

// ValidateConnection lists models to verify the endpoint is reachable and
// the credentials are accepted.
func (a *Adapter) ValidateConnection(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+modelsPath, nil)
	if err != nil {
		return llm.NewError("creating request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return llm.NewConnectionError("openai", err)
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

// CountTokens estimates the token count of text via the ~4 chars per
// token approximation.
func (a *Adapter) CountTokens(text, model string) int {
	if text == "" {
		return 0
	}
	return len(text)/4 + 1
}

func (a *Adapter) classifyStatus(resp *http.Response, body []byte) error {
	baseErr := fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, string(body))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := llm.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
		return llm.NewRateLimitError("openai", baseErr, retryAfter)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return llm.NewConnectionError("openai", baseErr)
	case resp.StatusCode >= 500:
		return llm.NewConnectionError("openai", baseErr)
	default:
		return llm.NewError("openai request rejected", baseErr)
	}
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (a *Adapter) parseResponse(body []byte, model string, latency time.Duration) (*domain.LLMResponse, error) {
	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, llm.NewError("decoding openai response", err)
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == "" {
		return nil, llm.NewError("openai response contained no choices", nil)
	}

	usedModel := cr.Model
	if usedModel == "" {
		usedModel = model
	}

	return &domain.LLMResponse{
		Text:         cr.Choices[0].Message.Content,
		InputTokens:  cr.Usage.PromptTokens,
		OutputTokens: cr.Usage.CompletionTokens,
		Cost:         a.CalculateCost(cr.Usage.PromptTokens, cr.Usage.CompletionTokens, usedModel),
		Model:        usedModel,
		Latency:      latency,
		Metadata: map[string]string{
			"finish_reason": cr.Choices[0].FinishReason,
		},
	}, nil
}

var _ port.LLMAdapter = (*Adapter)(nil)
