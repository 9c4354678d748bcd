package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"legalis/internal/config"
	"legalis/internal/domain"
	"legalis/internal/port"
)

// Service is the façade over one provider adapter: it estimates tokens,
// gates execution through the rate limiter, retries transient failures,
// and records usage metrics for every successful call.
type Service struct {
	adapter      port.LLMAdapter
	provider     string
	limiter      *RateLimiter
	retry        *RetryHandler
	usage        port.UsageRecorder
	defaultModel string
	fastModel    string
	selection    config.SelectionConfig
	maxConns     int
	abortOnFatal bool
}

// NewService creates a Service for a single provider.
// usage may be nil, in which case no metrics are recorded.
func NewService(adapter port.LLMAdapter, providerCfg *config.ProviderConfig, llmCfg *config.LLMConfig, usage port.UsageRecorder) *Service {
	maxConns := providerCfg.MaxConnections
	if maxConns < 1 {
		maxConns = 1
	}
	return &Service{
		adapter:      adapter,
		provider:     providerCfg.Provider,
		limiter:      NewRateLimiter(llmCfg.RateLimit),
		retry:        NewRetryHandler(PolicyFromConfig(llmCfg.Retry)),
		usage:        usage,
		defaultModel: providerCfg.DefaultModel,
		fastModel:    providerCfg.FastModel,
		selection:    llmCfg.Selection,
		maxConns:     maxConns,
		abortOnFatal: llmCfg.BatchAbortOnFatal,
	}
}

// Execute runs a single request through the full pipeline.
func (s *Service) Execute(ctx context.Context, req *domain.LLMRequest) (*domain.LLMResponse, error) {
	model, err := s.selectModel(req)
	if err != nil {
		return nil, err
	}

	estimated := s.adapter.CountTokens(req.SystemPrompt+req.Content, model)

	// The gate check lives inside the retried operation so a local denial
	// is re-attempted with backoff, honoring the window's retry-after.
	run := *req
	run.Model = model
	op := func() (*domain.LLMResponse, error) {
		if gateErr := s.limiter.CheckAndConsume(s.provider, estimated); gateErr != nil {
			return nil, gateErr
		}
		return s.adapter.Execute(ctx, &run)
	}

	resp, err := s.retry.Execute(ctx, s.provider+".execute", op)
	if err != nil {
		return nil, err
	}

	s.recordUsage(ctx, req, resp)
	return resp, nil
}

// ExecuteBatch runs requests through a bounded worker pool. Responses are
// returned in input order regardless of completion order. When the
// abort-on-fatal policy is set, the first non-retryable failure cancels
// the remaining items; otherwise the batch continues best-effort and the
// returned error aggregates every per-item failure.
func (s *Service) ExecuteBatch(ctx context.Context, reqs []*domain.LLMRequest) ([]*domain.LLMResponse, error) {
	results := make([]*domain.LLMResponse, len(reqs))
	itemErrs := make([]error, len(reqs))

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, s.maxConns)
	var wg sync.WaitGroup
	for i := range reqs {
		i := i
		wg.Add(1)
		sem <- struct{}{} // acquire
		go func() {
			defer wg.Done()
			defer func() { <-sem }() // release

			if batchCtx.Err() != nil {
				itemErrs[i] = batchCtx.Err()
				return
			}
			run := *reqs[i]
			run.Metadata.BatchIndex = i
			run.Metadata.BatchTotal = len(reqs)
			resp, err := s.Execute(batchCtx, &run)
			if err != nil {
				itemErrs[i] = fmt.Errorf("batch item %d: %w", i, err)
				if s.abortOnFatal && !IsRetryable(err) {
					cancel()
				}
				return
			}
			results[i] = resp
		}()
	}
	wg.Wait()

	return results, errors.Join(itemErrs...)
}

// ValidateConnection checks provider reachability and credentials.
func (s *Service) ValidateConnection(ctx context.Context) error {
	return s.adapter.ValidateConnection(ctx)
}

// Usage returns the current rate limiter snapshot for this provider.
func (s *Service) Usage() RateUsage {
	return s.limiter.Usage(s.provider)
}

// selectModel picks the model for a request: an explicit override wins
// (validated against the adapter's supported set), otherwise low-complexity
// requests get the cheaper fast model and everything else the default.
func (s *Service) selectModel(req *domain.LLMRequest) (string, error) {
	if req.Model != "" {
		for _, m := range s.adapter.SupportedModels() {
			if m == req.Model {
				return req.Model, nil
			}
		}
		return "", NewError(fmt.Sprintf("model %q not supported by provider %s", req.Model, s.provider), domain.ErrUnsupportedModel)
	}

	if s.fastModel != "" && s.isLowComplexity(req) {
		return s.fastModel, nil
	}
	return s.defaultModel, nil
}

func (s *Service) isLowComplexity(req *domain.LLMRequest) bool {
	switch req.Options["complexity"] {
	case "low":
		return true
	case "high":
		return false
	}
	threshold := s.selection.ComplexityThresholdChars
	if threshold <= 0 || len(req.Content) >= threshold {
		return false
	}
	// Short summary/validation tasks are fine on the fast model; full
	// translations always get the strong one.
	return req.Metadata.RequestType != domain.RequestTypeTranslation
}

func (s *Service) recordUsage(ctx context.Context, req *domain.LLMRequest, resp *domain.LLMResponse) {
	if s.usage == nil {
		return
	}
	rec := &domain.UsageRecord{
		ID:           uuid.New(),
		Provider:     s.provider,
		Model:        resp.Model,
		RequestType:  req.Metadata.RequestType,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		Cost:         resp.Cost,
		LatencyMs:    resp.Latency.Milliseconds(),
	}
	if err := s.usage.Record(ctx, rec); err != nil {
		log.Printf("llm.Service.recordUsage: failed to record usage for %s: %v", s.provider, err)
	}
}
