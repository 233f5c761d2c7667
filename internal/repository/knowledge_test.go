//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
	"github.com/hasd52636-a11y/smartservice-sub001/internal/testutil"
)

func TestKnowledgeRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeRepository(pool)

	item := newTestItem("proj-1", "Installation Guide", "How to install the lock", []string{"install", "lock"})
	require.NoError(t, repo.Create(ctx, item))

	got, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, "Installation Guide", got.Title)
	assert.Equal(t, []string{"install", "lock"}, got.Tags)
	assert.Nil(t, got.Embedding)
	assert.Equal(t, int64(1), got.Version)

	got.Content = "How to install the new lock"
	require.NoError(t, repo.Update(ctx, got))

	updated, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "How to install the new lock", updated.Content)
	assert.Equal(t, int64(2), updated.Version)

	require.NoError(t, repo.Delete(ctx, item.ID))
	_, err = repo.GetByID(ctx, item.ID)
	assert.Equal(t, domain.ErrKnowledgeItemNotFound, err)
}

func TestKnowledgeRepository_EmbeddingRoundTrip(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeRepository(pool)

	item := newTestItem("proj-1", "Guide", "Body", nil)
	require.NoError(t, repo.Create(ctx, item))

	embedding := make([]float32, 768)
	embedding[0] = 0.25
	embedding[767] = -0.5
	require.NoError(t, repo.UpdateEmbedding(ctx, item.ID, embedding))

	got, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, embedding, got.Embedding)
	assert.Equal(t, int64(2), got.Version)

	assert.Equal(t, domain.ErrKnowledgeItemNotFound, repo.UpdateEmbedding(ctx, "missing", embedding))
}

func TestKnowledgeRepository_ListByProject(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeRepository(pool)

	first := newTestItem("proj-1", "First", "a", nil)
	second := newTestItem("proj-1", "Second", "b", nil)
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	second.UpdatedAt = second.CreatedAt
	other := newTestItem("proj-2", "Other", "c", nil)

	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, other))

	items, err := repo.ListByProject(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "First", items[0].Title)
	assert.Equal(t, "Second", items[1].Title)
}

func TestVectorizeJobRepository_ClaimPending(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	knowledgeRepo := NewKnowledgeRepository(pool)
	jobRepo := NewVectorizeJobRepository(pool)

	item := newTestItem("proj-1", "Guide", "Body", nil)
	require.NoError(t, knowledgeRepo.Create(ctx, item))

	job := newTestJob(item.ID)
	require.NoError(t, jobRepo.Create(ctx, job))

	claimed, err := jobRepo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, item.ID, claimed[0].KnowledgeItemID)
	assert.Equal(t, domain.VectorizeJobStatusProcessing, claimed[0].Status)

	again, err := jobRepo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, jobRepo.UpdateStatus(ctx, job.ID, domain.VectorizeJobStatusCompleted, ""))
	done, err := jobRepo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VectorizeJobStatusCompleted, done.Status)
	assert.NotNil(t, done.ProcessedAt)
}

func TestProjectRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewProjectRepository(pool)

	_, err := repo.Get(ctx, "proj-1")
	assert.Equal(t, domain.ErrProjectNotFound, err)

	cfg := &domain.ProjectConfig{ID: "proj-1", Provider: "zhipu", SystemInstruction: "be nice"}
	require.NoError(t, repo.Upsert(ctx, cfg))

	cfg.MultimodalEnabled = true
	require.NoError(t, repo.Upsert(ctx, cfg))

	got, err := repo.Get(ctx, "proj-1")
	require.NoError(t, err)
	assert.True(t, got.MultimodalEnabled)
	assert.Equal(t, "be nice", got.SystemInstruction)
}
