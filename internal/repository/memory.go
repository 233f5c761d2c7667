package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
)

// MemoryKnowledgeStore is an in-memory KnowledgeStore used when no database
// is configured. Good enough for demos, widget previews and tests; contents
// are lost on restart.
type MemoryKnowledgeStore struct {
	mu    sync.RWMutex
	items map[string]domain.KnowledgeItem
}

func NewMemoryKnowledgeStore() *MemoryKnowledgeStore {
	return &MemoryKnowledgeStore{items: make(map[string]domain.KnowledgeItem)}
}

func (s *MemoryKnowledgeStore) Create(_ context.Context, item *domain.KnowledgeItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = *item
	return nil
}

func (s *MemoryKnowledgeStore) GetByID(_ context.Context, id string) (*domain.KnowledgeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrKnowledgeItemNotFound
	}
	return &item, nil
}

func (s *MemoryKnowledgeStore) ListByProject(_ context.Context, projectID string) ([]*domain.KnowledgeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []*domain.KnowledgeItem
	for _, item := range s.items {
		if item.ProjectID == projectID {
			copied := item
			items = append(items, &copied)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *MemoryKnowledgeStore) Update(_ context.Context, item *domain.KnowledgeItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[item.ID]
	if !ok {
		return domain.ErrKnowledgeItemNotFound
	}

	existing.Type = item.Type
	existing.Title = item.Title
	existing.Content = item.Content
	existing.Tags = item.Tags
	existing.Embedding = nil
	existing.Version++
	existing.UpdatedAt = time.Now().UTC()
	s.items[item.ID] = existing
	return nil
}

func (s *MemoryKnowledgeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return domain.ErrKnowledgeItemNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryKnowledgeStore) UpdateEmbedding(_ context.Context, id string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return domain.ErrKnowledgeItemNotFound
	}
	item.Embedding = embedding
	item.Version++
	item.UpdatedAt = time.Now().UTC()
	s.items[id] = item
	return nil
}

// MemoryProjectStore is an in-memory ProjectStore
type MemoryProjectStore struct {
	mu       sync.RWMutex
	projects map[string]domain.ProjectConfig
}

func NewMemoryProjectStore() *MemoryProjectStore {
	return &MemoryProjectStore{projects: make(map[string]domain.ProjectConfig)}
}

func (s *MemoryProjectStore) Get(_ context.Context, id string) (*domain.ProjectConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return &cfg, nil
}

func (s *MemoryProjectStore) Upsert(_ context.Context, cfg *domain.ProjectConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[cfg.ID] = *cfg
	return nil
}

// MemoryVectorizeJobStore is an in-memory vectorize job queue
type MemoryVectorizeJobStore struct {
	mu   sync.Mutex
	jobs map[string]domain.VectorizeJob
}

func NewMemoryVectorizeJobStore() *MemoryVectorizeJobStore {
	return &MemoryVectorizeJobStore{jobs: make(map[string]domain.VectorizeJob)}
}

func (s *MemoryVectorizeJobStore) Create(_ context.Context, job *domain.VectorizeJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *MemoryVectorizeJobStore) ClaimPending(_ context.Context, limit int) ([]*domain.VectorizeJob, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []domain.VectorizeJob
	for _, job := range s.jobs {
		if job.Status == domain.VectorizeJobStatusPending {
			pending = append(pending, job)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}

	claimed := make([]*domain.VectorizeJob, 0, len(pending))
	for _, job := range pending {
		job.Status = domain.VectorizeJobStatusProcessing
		job.Error = ""
		job.ProcessedAt = nil
		s.jobs[job.ID] = job
		copied := job
		claimed = append(claimed, &copied)
	}
	return claimed, nil
}

func (s *MemoryVectorizeJobStore) UpdateStatus(_ context.Context, id string, status domain.VectorizeJobStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrVectorizeJobNotFound
	}
	job.Status = status
	job.Error = errMsg
	if status == domain.VectorizeJobStatusCompleted || status == domain.VectorizeJobStatusFailed {
		now := time.Now().UTC()
		job.ProcessedAt = &now
	}
	s.jobs[id] = job
	return nil
}

func (s *MemoryVectorizeJobStore) IncrementRetries(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrVectorizeJobNotFound
	}
	job.Retries++
	s.jobs[id] = job
	return nil
}
