package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalis/internal/domain"
)

// recordingService captures ProcessDocument dispatches.
type recordingService struct {
	TranslationService
	mu        sync.Mutex
	processed []uuid.UUID
	block     chan struct{}
}

func (s *recordingService) ProcessDocument(_ context.Context, doc *domain.Document, _ int) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed = append(s.processed, doc.ID)
}

func (s *recordingService) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed)
}

func seedQueued(repo *memDocRepo, n int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		doc := &domain.Document{
			ID:           uuid.New(),
			DocumentType: domain.DocTypeContract,
			Content:      "текст",
			Status:       domain.StatusQueued,
			CreatedAt:    time.Now(),
		}
		_ = repo.Create(context.Background(), doc)
		ids = append(ids, doc.ID)
	}
	return ids
}

func TestQueueWorkerDispatchesQueuedDocuments(t *testing.T) {
	repo := newMemDocRepo()
	seedQueued(repo, 5)
	svc := &recordingService{}

	worker := NewTranslationQueueWorker(repo, svc, TranslationQueueConfig{
		PollInterval: 10 * time.Millisecond,
		MaxAttempts:  3,
		Concurrency:  2,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Start(ctx)
	}()

	require.Eventually(t, func() bool { return svc.count() == 5 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not shut down")
	}
}

func TestQueueWorkerSkipsFutureRetryAfter(t *testing.T) {
	repo := newMemDocRepo()
	future := time.Now().Add(time.Hour)
	doc := &domain.Document{
		ID:           uuid.New(),
		DocumentType: domain.DocTypeContract,
		Content:      "текст",
		Status:       domain.StatusQueued,
		RetryAfter:   &future,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), doc))
	svc := &recordingService{}

	worker := NewTranslationQueueWorker(repo, svc, TranslationQueueConfig{
		PollInterval: 10 * time.Millisecond,
		MaxAttempts:  3,
		Concurrency:  1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 0, svc.count())
}

func TestQueueWorkerDrainsInFlightOnShutdown(t *testing.T) {
	repo := newMemDocRepo()
	ids := seedQueued(repo, 1)
	svc := &recordingService{block: make(chan struct{})}

	worker := NewTranslationQueueWorker(repo, svc, TranslationQueueConfig{
		PollInterval: 10 * time.Millisecond,
		MaxAttempts:  3,
		Concurrency:  1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Start(ctx)
	}()

	// Wait until the document is claimed and the dispatch is blocked.
	require.Eventually(t, func() bool {
		doc, err := repo.GetByID(context.Background(), ids[0])
		return err == nil && doc.Status == domain.StatusProcessing
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case <-done:
		t.Fatal("worker shut down before draining in-flight work")
	case <-time.After(50 * time.Millisecond):
	}

	close(svc.block)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker never finished draining")
	}
	assert.Equal(t, 1, svc.count())
}
