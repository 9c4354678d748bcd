package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalis/internal/config"
	"legalis/internal/domain"
	"legalis/internal/llm"
	"legalis/internal/port"
	"legalis/internal/prompt"
	"legalis/internal/template"
)

// memDocRepo is an in-memory port.DocumentRepository for service tests.
type memDocRepo struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*domain.Document
}

func newMemDocRepo() *memDocRepo {
	return &memDocRepo{docs: make(map[uuid.UUID]*domain.Document)}
}

func (r *memDocRepo) Create(_ context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *doc
	r.docs[doc.ID] = &copied
	return nil
}

func (r *memDocRepo) GetByID(_ context.Context, docID uuid.UUID) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[docID]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (r *memDocRepo) List(_ context.Context, offset, limit int) ([]domain.Document, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Document
	for _, d := range r.docs {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (r *memDocRepo) Update(_ context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; !ok {
		return domain.ErrDocumentNotFound
	}
	copied := *doc
	r.docs[doc.ID] = &copied
	return nil
}

func (r *memDocRepo) ClaimQueued(_ context.Context, limit int) ([]domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var out []domain.Document
	for _, d := range r.docs {
		if len(out) >= limit {
			break
		}
		if d.Status != domain.StatusQueued {
			continue
		}
		if d.RetryAfter != nil && d.RetryAfter.After(now) {
			continue
		}
		d.Status = domain.StatusProcessing
		out = append(out, *d)
	}
	return out, nil
}

func (r *memDocRepo) Delete(_ context.Context, docID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[docID]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(r.docs, docID)
	return nil
}

var _ port.DocumentRepository = (*memDocRepo)(nil)

var testAnchorMarkers = regexp.MustCompile(`<!--\s*(SECTION_ANCHOR_[A-Za-z0-9_]+)\s*-->`)

// scriptedAdapter responds with a valid marker-protocol answer, or with a
// scripted error.
type scriptedAdapter struct {
	err   error
	calls int
}

func (a *scriptedAdapter) Execute(_ context.Context, req *domain.LLMRequest) (*domain.LLMResponse, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}

	var sb strings.Builder
	for _, m := range testAnchorMarkers.FindAllStringSubmatch(req.Content, -1) {
		fmt.Fprintf(&sb, "<!-- %s -->\n", m[1])
		sb.WriteString("<!-- TRANSLATION_BLOCK_START type=\"contract\" -->\n")
		sb.WriteString("**[Переведено]:** Понятный пересказ.\n")
		sb.WriteString("<!-- TRANSLATION_BLOCK_END -->\n\n")
	}
	return &domain.LLMResponse{Text: sb.String(), Model: req.Model, InputTokens: 10, OutputTokens: 10}, nil
}

func (a *scriptedAdapter) ExecuteBatch(ctx context.Context, reqs []*domain.LLMRequest) ([]*domain.LLMResponse, error) {
	out := make([]*domain.LLMResponse, 0, len(reqs))
	for _, r := range reqs {
		resp, err := a.Execute(ctx, r)
		if err != nil {
			return out, err
		}
		out = append(out, resp)
	}
	return out, nil
}

func (a *scriptedAdapter) ValidateConnection(context.Context) error { return nil }
func (a *scriptedAdapter) SupportedModels() []string                { return []string{"test-model"} }
func (a *scriptedAdapter) CalculateCost(int, int, string) float64   { return 0 }
func (a *scriptedAdapter) CountTokens(text, _ string) int           { return len(text) / 4 }

func newTestTranslationService(repo *memDocRepo, adapter *scriptedAdapter) TranslationService {
	providerCfg := &config.ProviderConfig{Provider: "test", DefaultModel: "test-model"}
	llmCfg := &config.LLMConfig{Retry: config.RetryConfig{MaxAttempts: 1}}
	svc := llm.NewService(adapter, providerCfg, llmCfg, nil)
	prompts := prompt.NewManager(prompt.NewRegistry(), template.NewEngine(template.MissingError), svc)
	return NewTranslationService(repo, prompts)
}

func queuedDoc(repo *memDocRepo, content string) *domain.Document {
	doc := &domain.Document{
		ID:           uuid.New(),
		Title:        "Договор аренды",
		DocumentType: domain.DocTypeContract,
		Content:      content,
		Status:       domain.StatusProcessing,
		Attempts:     1,
		CreatedAt:    time.Now(),
	}
	_ = repo.Create(context.Background(), doc)
	return doc
}

func TestSubmitValidation(t *testing.T) {
	repo := newMemDocRepo()
	svc := newTestTranslationService(repo, &scriptedAdapter{})

	_, err := svc.Submit(context.Background(), &SubmitInput{
		DocumentType: domain.DocTypeContract,
	})
	assert.ErrorIs(t, err, domain.ErrEmptyContent)

	_, err = svc.Submit(context.Background(), &SubmitInput{
		DocumentType: "poem",
		Content:      "текст",
	})
	assert.ErrorIs(t, err, domain.ErrUnsupportedDocType)
}

func TestSubmitQueuesDocument(t *testing.T) {
	repo := newMemDocRepo()
	svc := newTestTranslationService(repo, &scriptedAdapter{})

	doc, err := svc.Submit(context.Background(), &SubmitInput{
		DocumentType: domain.DocTypeContract,
		Content:      "# Раздел\nТекст договора.",
	})
	require.NoError(t, err)

	assert.Equal(t, "Untitled document", doc.Title)
	assert.Equal(t, domain.StatusQueued, doc.Status)

	// Background processing picks the document up and completes it.
	require.Eventually(t, func() bool {
		got, err := repo.GetByID(context.Background(), doc.ID)
		return err == nil && got.Status == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProcessDocumentCompletes(t *testing.T) {
	repo := newMemDocRepo()
	adapter := &scriptedAdapter{}
	svc := newTestTranslationService(repo, adapter)

	doc := queuedDoc(repo, "# 1. Предмет\nАрендодатель передаёт помещение.\n\n# 2. Срок\n11 месяцев.")
	svc.ProcessDocument(context.Background(), doc, 3)

	got, err := repo.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, "test-model", got.ModelUsed)
	assert.Empty(t, got.StatusError)
	require.NotNil(t, got.ProcessedAt)

	var result domain.TranslationResult
	require.NoError(t, json.Unmarshal(got.Result, &result))
	assert.Len(t, result.Sections, 2)
	assert.False(t, result.Partial)

	svcResult, err := svc.Result(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Len(t, svcResult.Sections, 2)
}

func TestProcessDocumentEmptyTextFails(t *testing.T) {
	repo := newMemDocRepo()
	svc := newTestTranslationService(repo, &scriptedAdapter{})

	doc := queuedDoc(repo, "   \n ")
	svc.ProcessDocument(context.Background(), doc, 3)

	got, _ := repo.GetByID(context.Background(), doc.ID)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Contains(t, got.StatusError, "no usable text")
}

func TestProcessDocumentRateLimitRequeues(t *testing.T) {
	repo := newMemDocRepo()
	adapter := &scriptedAdapter{
		err: llm.NewRateLimitError("test", errors.New("throttled"), 120),
	}
	svc := newTestTranslationService(repo, adapter)

	doc := queuedDoc(repo, "Текст договора.")
	svc.ProcessDocument(context.Background(), doc, 3)

	got, _ := repo.GetByID(context.Background(), doc.ID)
	assert.Equal(t, domain.StatusQueued, got.Status)
	assert.Contains(t, got.StatusError, "rate limited")
	require.NotNil(t, got.RetryAfter)
	assert.True(t, got.RetryAfter.After(time.Now().Add(time.Minute)))
}

func TestProcessDocumentRateLimitExhaustsAttempts(t *testing.T) {
	repo := newMemDocRepo()
	adapter := &scriptedAdapter{
		err: llm.NewRateLimitError("test", errors.New("throttled"), 120),
	}
	svc := newTestTranslationService(repo, adapter)

	doc := queuedDoc(repo, "Текст договора.")
	doc.Attempts = 3
	require.NoError(t, repo.Update(context.Background(), doc))

	svc.ProcessDocument(context.Background(), doc, 3)

	got, _ := repo.GetByID(context.Background(), doc.ID)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Contains(t, got.StatusError, "rate_limited:")
	assert.Nil(t, got.RetryAfter)
}

func TestProcessDocumentFatalErrorFails(t *testing.T) {
	repo := newMemDocRepo()
	adapter := &scriptedAdapter{err: llm.NewError("provider rejected the request", nil)}
	svc := newTestTranslationService(repo, adapter)

	doc := queuedDoc(repo, "Текст договора.")
	svc.ProcessDocument(context.Background(), doc, 3)

	got, _ := repo.GetByID(context.Background(), doc.ID)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Contains(t, got.StatusError, "llm_error:")
	// Raw provider payloads never land in persisted state.
	assert.NotContains(t, got.StatusError, "provider rejected the request\n")
}

func TestResultBeforeCompletion(t *testing.T) {
	repo := newMemDocRepo()
	svc := newTestTranslationService(repo, &scriptedAdapter{})

	doc := queuedDoc(repo, "Текст.")
	_, err := svc.Result(context.Background(), doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotProcessed)

	_, err = svc.Result(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestCategorizeError(t *testing.T) {
	assert.Contains(t, categorizeError(llm.NewRateLimitError("p", errors.New("x"), 1)), "rate_limited:")
	assert.Contains(t, categorizeError(llm.NewConnectionError("p", errors.New("x"))), "connection_failed:")
	assert.Contains(t, categorizeError(llm.NewError("bad", nil)), "llm_error:")
	assert.Contains(t, categorizeError(errors.New("anything")), "processing_failed:")
}
