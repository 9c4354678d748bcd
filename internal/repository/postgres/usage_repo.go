package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"legalis/internal/domain"
	"legalis/internal/port"
)

type usageRepo struct {
	db *sqlx.DB
}

// NewUsageRepo creates a new PostgreSQL-backed UsageRepository.
func NewUsageRepo(db *sqlx.DB) port.UsageRepository {
	return &usageRepo{db: db}
}

func (r *usageRepo) Record(ctx context.Context, rec *domain.UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO usage_records (
		id, provider, model, request_type,
		input_tokens, output_tokens, cost, latency_ms, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Provider, rec.Model, rec.RequestType,
		rec.InputTokens, rec.OutputTokens, rec.Cost, rec.LatencyMs, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("usageRepo.Record: %w", err)
	}
	return nil
}

func (r *usageRepo) SummarizeByDay(ctx context.Context, from, to time.Time) ([]domain.UsageSummary, error) {
	query := `SELECT
		date_trunc('day', created_at) AS day,
		provider,
		COUNT(*) AS requests,
		COALESCE(SUM(input_tokens), 0) AS input_tokens,
		COALESCE(SUM(output_tokens), 0) AS output_tokens,
		COALESCE(SUM(cost), 0) AS cost
	FROM usage_records
	WHERE created_at >= $1 AND created_at < $2
	GROUP BY day, provider
	ORDER BY day, provider`

	summaries := []domain.UsageSummary{}
	if err := r.db.SelectContext(ctx, &summaries, query, from, to); err != nil {
		return nil, fmt.Errorf("usageRepo.SummarizeByDay: %w", err)
	}
	return summaries, nil
}
