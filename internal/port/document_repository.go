package port

import (
	"context"

	"github.com/google/uuid"

	"legalis/internal/domain"
)

// DocumentRepository defines the contract for document persistence.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, docID uuid.UUID) (*domain.Document, error)
	List(ctx context.Context, offset, limit int) ([]domain.Document, int, error)
	Update(ctx context.Context, doc *domain.Document) error
	// ClaimQueued atomically claims up to limit queued documents whose
	// retry_after is unset or in the past, marking them processing.
	ClaimQueued(ctx context.Context, limit int) ([]domain.Document, error)
	Delete(ctx context.Context, docID uuid.UUID) error
}
