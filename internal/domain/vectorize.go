package domain

import (
	"fmt"
	"time"
)

// VectorizeJobStatus represents the status of a vectorization job
type VectorizeJobStatus string

const (
	VectorizeJobStatusPending    VectorizeJobStatus = "pending"
	VectorizeJobStatusProcessing VectorizeJobStatus = "processing"
	VectorizeJobStatusCompleted  VectorizeJobStatus = "completed"
	VectorizeJobStatusFailed     VectorizeJobStatus = "failed"
)

// VectorizeJob represents an ingestion-time embedding generation job.
// Knowledge items are normally vectorized here, once, when authored; the
// retriever's lazy per-query self-heal only covers items this path missed.
type VectorizeJob struct {
	ID              string
	KnowledgeItemID string
	Status          VectorizeJobStatus
	Retries         int32
	Error           string
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

// NewVectorizeJob creates a new VectorizeJob instance
func NewVectorizeJob(
	id, knowledgeItemID string,
	status VectorizeJobStatus,
	retries int32,
	errMsg string,
	createdAt time.Time,
	processedAt *time.Time,
) *VectorizeJob {
	return &VectorizeJob{
		ID:              id,
		KnowledgeItemID: knowledgeItemID,
		Status:          status,
		Retries:         retries,
		Error:           errMsg,
		CreatedAt:       createdAt,
		ProcessedAt:     processedAt,
	}
}

// ValidateVectorizeJob validates a VectorizeJob instance
func ValidateVectorizeJob(j *VectorizeJob) error {
	if j == nil {
		return fmt.Errorf("vectorize job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("vectorize job ID is required")
	}

	if j.KnowledgeItemID == "" {
		return fmt.Errorf("vectorize job KnowledgeItemID is required")
	}

	if !isValidVectorizeJobStatus(j.Status) {
		return fmt.Errorf("vectorize job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("vectorize job Retries cannot be negative")
	}

	return nil
}

// isValidVectorizeJobStatus checks if a VectorizeJobStatus is valid
func isValidVectorizeJobStatus(s VectorizeJobStatus) bool {
	switch s {
	case VectorizeJobStatusPending, VectorizeJobStatusProcessing,
		VectorizeJobStatusCompleted, VectorizeJobStatusFailed:
		return true
	}
	return false
}
