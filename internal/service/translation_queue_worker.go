package service

import (
	"context"
	"log"
	"sync"
	"time"

	"legalis/internal/port"
)

// TranslationQueueConfig holds settings for the translation queue worker.
type TranslationQueueConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
	Concurrency  int
}

// TranslationQueueWorker polls for queued documents and dispatches them
// for translation. Documents land back in the queue when a provider rate
// limit postponed them; the worker respects their retry-after timestamps
// via the repository's claim query.
type TranslationQueueWorker struct {
	docRepo port.DocumentRepository
	svc     TranslationService
	cfg     TranslationQueueConfig
	wg      sync.WaitGroup
}

// NewTranslationQueueWorker creates a new TranslationQueueWorker.
func NewTranslationQueueWorker(docRepo port.DocumentRepository, svc TranslationService, cfg TranslationQueueConfig) *TranslationQueueWorker {
	return &TranslationQueueWorker{
		docRepo: docRepo,
		svc:     svc,
		cfg:     cfg,
	}
}

// Start runs the polling loop until ctx is canceled. It blocks until all
// in-flight translations have finished.
func (w *TranslationQueueWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.cfg.Concurrency)

	log.Printf("translationQueueWorker: started (poll=%s, concurrency=%d, maxAttempts=%d)",
		w.cfg.PollInterval, w.cfg.Concurrency, w.cfg.MaxAttempts)

	for {
		select {
		case <-ctx.Done():
			log.Printf("translationQueueWorker: shutting down, waiting for in-flight translations...")
			w.wg.Wait()
			log.Printf("translationQueueWorker: shutdown complete")
			return
		case <-ticker.C:
			available := w.cfg.Concurrency - len(sem)
			if available <= 0 {
				continue
			}

			docs, err := w.docRepo.ClaimQueued(ctx, available)
			if err != nil {
				if ctx.Err() != nil {
					// Context canceled during poll — exit gracefully
					continue
				}
				log.Printf("translationQueueWorker: ClaimQueued error: %v", err)
				continue
			}

			for i := range docs {
				doc := docs[i] // copy for goroutine
				doc.Attempts++

				sem <- struct{}{} // acquire
				w.wg.Add(1)
				go func() {
					defer w.wg.Done()
					defer func() { <-sem }() // release

					// Use a fresh context independent of the poll context
					// so in-flight translations complete even during shutdown.
					procCtx, cancel := context.WithTimeout(context.Background(), processTimeout)
					defer cancel()

					log.Printf("translationQueueWorker: dispatching document %s (attempt %d)", doc.ID, doc.Attempts)
					w.svc.ProcessDocument(procCtx, &doc, w.cfg.MaxAttempts)
				}()
			}
		}
	}
}
