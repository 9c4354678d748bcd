package port

import (
	"context"

	"legalis/internal/domain"
)

// LLMAdapter abstracts a single LLM provider.
//
// Execute and ExecuteBatch fail with either a connection-kind error or a
// rate-limit-kind error (both retryable) or a fatal provider error; see
// the llm package error types.
type LLMAdapter interface {
	Execute(ctx context.Context, req *domain.LLMRequest) (*domain.LLMResponse, error)
	ExecuteBatch(ctx context.Context, reqs []*domain.LLMRequest) ([]*domain.LLMResponse, error)
	ValidateConnection(ctx context.Context) error
	SupportedModels() []string
	CalculateCost(inputTokens, outputTokens int, model string) float64
	CountTokens(text, model string) int
}
