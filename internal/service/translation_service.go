package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"legalis/internal/anchor"
	"legalis/internal/content"
	"legalis/internal/domain"
	"legalis/internal/llm"
	"legalis/internal/port"
	"legalis/internal/prompt"
)

const (
	defaultMaxAttempts = 3
	processTimeout     = 5 * time.Minute

	translationSystem = "legal_translation"
)

// SubmitInput carries a new document submission.
type SubmitInput struct {
	Title          string
	DocumentType   domain.DocumentType
	TargetAudience string
	Content        string
}

// TranslationService orchestrates document translation end to end.
type TranslationService interface {
	Submit(ctx context.Context, input *SubmitInput) (*domain.Document, error)
	GetByID(ctx context.Context, docID uuid.UUID) (*domain.Document, error)
	List(ctx context.Context, offset, limit int) ([]domain.Document, int, error)
	Result(ctx context.Context, docID uuid.UUID) (*domain.TranslationResult, error)
	Delete(ctx context.Context, docID uuid.UUID) error
	// ProcessDocument runs the translation pipeline for a claimed document.
	// The doc must already be in processing status with Attempts incremented.
	ProcessDocument(ctx context.Context, doc *domain.Document, maxAttempts int)
}

type translationService struct {
	docRepo port.DocumentRepository
	prompts *prompt.Manager
}

// NewTranslationService creates a TranslationService.
func NewTranslationService(docRepo port.DocumentRepository, prompts *prompt.Manager) TranslationService {
	return &translationService{docRepo: docRepo, prompts: prompts}
}

func (s *translationService) Submit(ctx context.Context, input *SubmitInput) (*domain.Document, error) {
	if input.Content == "" {
		return nil, domain.ErrEmptyContent
	}
	if !domain.ValidDocumentTypes[input.DocumentType] {
		return nil, domain.ErrUnsupportedDocType
	}

	doc := &domain.Document{
		ID:             uuid.New(),
		Title:          input.Title,
		DocumentType:   input.DocumentType,
		TargetAudience: input.TargetAudience,
		Content:        input.Content,
		Status:         domain.StatusQueued,
	}
	if doc.Title == "" {
		doc.Title = "Untitled document"
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}

	go s.processInBackground(doc.ID)
	return doc, nil
}

func (s *translationService) GetByID(ctx context.Context, docID uuid.UUID) (*domain.Document, error) {
	return s.docRepo.GetByID(ctx, docID)
}

func (s *translationService) List(ctx context.Context, offset, limit int) ([]domain.Document, int, error) {
	return s.docRepo.List(ctx, offset, limit)
}

func (s *translationService) Result(ctx context.Context, docID uuid.UUID) (*domain.TranslationResult, error) {
	doc, err := s.docRepo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.StatusCompleted || len(doc.Result) == 0 {
		return nil, domain.ErrDocumentNotProcessed
	}
	var result domain.TranslationResult
	if err := json.Unmarshal(doc.Result, &result); err != nil {
		return nil, fmt.Errorf("decoding stored result for %s: %w", docID, err)
	}
	return &result, nil
}

func (s *translationService) Delete(ctx context.Context, docID uuid.UUID) error {
	return s.docRepo.Delete(ctx, docID)
}

// processInBackground claims the freshly submitted document and runs the
// pipeline on a context independent of the submitting request.
func (s *translationService) processInBackground(docID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	doc, err := s.docRepo.GetByID(ctx, docID)
	if err != nil {
		log.Printf("translationService.processInBackground: failed to get document %s: %v", docID, err)
		return
	}
	doc.Attempts++
	doc.Status = domain.StatusProcessing
	if err := s.docRepo.Update(ctx, doc); err != nil {
		log.Printf("translationService.processInBackground: failed to set processing status for %s: %v", docID, err)
		return
	}

	s.ProcessDocument(ctx, doc, defaultMaxAttempts)
}

func (s *translationService) ProcessDocument(ctx context.Context, doc *domain.Document, maxAttempts int) {
	gen := anchor.NewGenerator()
	sections := content.AnalyzeStructure(doc.Content, gen)
	if len(sections) == 0 {
		s.failProcessing(ctx, doc, "validation: document contains no usable text")
		return
	}

	execResult, err := s.prompts.ExecutePrompt(ctx, prompt.ExecuteInput{
		System: translationSystem,
		Variables: map[string]interface{}{
			"target_audience": doc.TargetAudience,
		},
		Sections:     sections,
		DocumentType: doc.DocumentType,
	})
	if err != nil {
		s.handleProcessError(ctx, doc, err, maxAttempts)
		return
	}

	parsed := execResult.Parsed
	if !parsed.Valid {
		s.failProcessing(ctx, doc, "model response did not follow the expected format")
		return
	}

	result := content.BuildResult(parsed)
	resultJSON, err := json.Marshal(result)
	if err != nil {
		s.failProcessing(ctx, doc, fmt.Sprintf("encoding result: %v", err))
		return
	}

	now := time.Now().UTC()
	doc.Result = resultJSON
	doc.ModelUsed = execResult.Response.Model
	doc.Status = domain.StatusCompleted
	doc.StatusError = ""
	doc.ProcessedAt = &now
	doc.RetryAfter = nil

	if err := s.docRepo.Update(ctx, doc); err != nil {
		log.Printf("translationService.ProcessDocument: failed to save result for %s: %v", doc.ID, err)
		return
	}

	log.Printf("translationService.ProcessDocument: document %s translated (sections=%d partial=%v attempt=%d)",
		doc.ID, len(result.Sections), result.Partial, doc.Attempts)
}

// handleProcessError queues the document for a later retry when the error
// is a rate limit and attempts remain; everything else fails permanently.
func (s *translationService) handleProcessError(ctx context.Context, doc *domain.Document, procErr error, maxAttempts int) {
	var rlErr *llm.RateLimitError
	if errors.As(procErr, &rlErr) && doc.Attempts < maxAttempts {
		retryAt := time.Now().Add(rlErr.RetryAfter)
		doc.Status = domain.StatusQueued
		doc.StatusError = fmt.Sprintf("rate limited by %s, queued for retry", rlErr.Provider)
		doc.RetryAfter = &retryAt
		if err := s.docRepo.Update(ctx, doc); err != nil {
			log.Printf("translationService.handleProcessError: failed to queue document %s: %v", doc.ID, err)
		} else {
			log.Printf("translationService.handleProcessError: document %s queued for retry after %s",
				doc.ID, retryAt.Format(time.RFC3339))
		}
		return
	}
	s.failProcessing(ctx, doc, categorizeError(procErr))
}

func (s *translationService) failProcessing(ctx context.Context, doc *domain.Document, errMsg string) {
	log.Printf("translationService.failProcessing: document %s failed: %s", doc.ID, errMsg)
	doc.Status = domain.StatusFailed
	doc.StatusError = errMsg
	doc.RetryAfter = nil
	if err := s.docRepo.Update(ctx, doc); err != nil {
		log.Printf("translationService.failProcessing: failed to update status for %s: %v", doc.ID, err)
	}
}

// categorizeError reduces an error to its taxonomy kind plus a short
// message. Raw provider response bodies never reach persisted state.
func categorizeError(err error) string {
	var rlErr *llm.RateLimitError
	var connErr *llm.ConnectionError
	var llmErr *llm.Error
	switch {
	case errors.As(err, &rlErr):
		return fmt.Sprintf("rate_limited: %s still rate limited after all attempts", rlErr.Provider)
	case errors.As(err, &connErr):
		return fmt.Sprintf("connection_failed: could not reach %s", connErr.Provider)
	case errors.As(err, &llmErr):
		return fmt.Sprintf("llm_error: %s", llmErr.Message)
	default:
		return "processing_failed: internal error during translation"
	}
}
