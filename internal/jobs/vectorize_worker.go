package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3
	// ClaimBatchSize bounds how many jobs one poll picks up
	ClaimBatchSize = 100
)

// VectorizeJobStore defines the interface for vectorize job persistence
type VectorizeJobStore interface {
	// ClaimPending retrieves pending jobs and marks them processing
	ClaimPending(ctx context.Context, limit int) ([]*domain.VectorizeJob, error)

	// UpdateStatus updates the status of a vectorize job
	UpdateStatus(ctx context.Context, jobID string, status domain.VectorizeJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, jobID string) error
}

// Vectorizer defines the interface for embedding a knowledge item
type Vectorizer interface {
	VectorizeItem(ctx context.Context, knowledgeItemID string) error
}

// VectorizeWorker processes knowledge item vectorization jobs
type VectorizeWorker struct {
	store      VectorizeJobStore
	vectorizer Vectorizer
}

// NewVectorizeWorker creates a new VectorizeWorker instance
func NewVectorizeWorker(store VectorizeJobStore, vectorizer Vectorizer) *VectorizeWorker {
	return &VectorizeWorker{
		store:      store,
		vectorizer: vectorizer,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *VectorizeWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.store.ClaimPending(ctx, ClaimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending vectorize jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *VectorizeWorker) processJob(ctx context.Context, job *domain.VectorizeJob) error {
	log.Printf("Processing job %s for knowledge item %s", job.ID, job.KnowledgeItemID)

	if err := w.vectorizer.VectorizeItem(ctx, job.KnowledgeItemID); err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.store.UpdateStatus(ctx, job.ID, domain.VectorizeJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("Job %s completed successfully", job.ID)
	return nil
}

// handleJobFailure handles a failed job with retry logic
func (w *VectorizeWorker) handleJobFailure(ctx context.Context, job *domain.VectorizeJob, jobErr error) error {
	log.Printf("Job %s failed: %v", job.ID, jobErr)

	if err := w.store.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("Job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.store.UpdateStatus(ctx, job.ID, domain.VectorizeJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.store.UpdateStatus(ctx, job.ID, domain.VectorizeJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}
