package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// KnowledgeStore is the persistence surface for knowledge items. Implemented
// by the Postgres repository and the in-memory store.
type KnowledgeStore interface {
	Create(ctx context.Context, item *domain.KnowledgeItem) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.KnowledgeItem, error)
	Update(ctx context.Context, item *domain.KnowledgeItem) error
	Delete(ctx context.Context, id string) error
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
}

type KnowledgeRepository struct {
	db dbtx
}

func NewKnowledgeRepository(pool *pgxpool.Pool) *KnowledgeRepository {
	return &KnowledgeRepository{db: pool}
}

func NewKnowledgeRepositoryWithTx(tx pgx.Tx) *KnowledgeRepository {
	return &KnowledgeRepository{db: tx}
}

func (r *KnowledgeRepository) Create(ctx context.Context, item *domain.KnowledgeItem) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_items (id, project_id, type, title, content, tags, embedding, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID, item.ProjectID, item.Type, item.Title, item.Content, item.Tags,
		nullableVector(item.Embedding), item.Version, item.CreatedAt, item.UpdatedAt,
	)
	return err
}

func (r *KnowledgeRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, project_id, type, title, content, tags, embedding, version, created_at, updated_at
		 FROM knowledge_items WHERE id = $1`,
		id,
	)
	item, err := scanKnowledgeItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeItemNotFound
		}
		return nil, err
	}
	return item, nil
}

func (r *KnowledgeRepository) ListByProject(ctx context.Context, projectID string) ([]*domain.KnowledgeItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, project_id, type, title, content, tags, embedding, version, created_at, updated_at
		 FROM knowledge_items WHERE project_id = $1 ORDER BY created_at ASC, id ASC`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.KnowledgeItem
	for rows.Next() {
		item, err := scanKnowledgeItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Update rewrites the text fields and clears the embedding: edited content
// must be re-vectorized before it can participate in vector search again.
func (r *KnowledgeRepository) Update(ctx context.Context, item *domain.KnowledgeItem) error {
	item.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items
		 SET type = $1, title = $2, content = $3, tags = $4, embedding = NULL, version = version + 1, updated_at = $5
		 WHERE id = $6`,
		item.Type, item.Title, item.Content, item.Tags, item.UpdatedAt, item.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeItemNotFound
	}
	return nil
}

func (r *KnowledgeRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_items WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeItemNotFound
	}
	return nil
}

// UpdateEmbedding stores a freshly computed vector and bumps the version so
// cached copies of the item are invalidated.
func (r *KnowledgeRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items SET embedding = $1, version = version + 1, updated_at = $2 WHERE id = $3`,
		pgvector.NewVector(embedding), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeItemNotFound
	}
	return nil
}

func scanKnowledgeItem(row pgx.Row) (*domain.KnowledgeItem, error) {
	var item domain.KnowledgeItem
	var embedding *pgvector.Vector
	if err := row.Scan(&item.ID, &item.ProjectID, &item.Type, &item.Title, &item.Content,
		&item.Tags, &embedding, &item.Version, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	if embedding != nil {
		item.Embedding = embedding.Slice()
	}
	return &item, nil
}

func nullableVector(embedding []float32) *pgvector.Vector {
	if len(embedding) == 0 {
		return nil
	}
	v := pgvector.NewVector(embedding)
	return &v
}
