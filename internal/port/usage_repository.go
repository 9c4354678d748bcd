package port

import (
	"context"
	"time"

	"legalis/internal/domain"
)

// UsageRecorder receives LLM consumption records as they happen.
type UsageRecorder interface {
	Record(ctx context.Context, rec *domain.UsageRecord) error
}

// UsageRepository persists and aggregates LLM usage records.
type UsageRepository interface {
	UsageRecorder
	SummarizeByDay(ctx context.Context, from, to time.Time) ([]domain.UsageSummary, error)
}
