package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
)

// ProjectStore is the persistence surface for per-project chat configuration
type ProjectStore interface {
	Get(ctx context.Context, id string) (*domain.ProjectConfig, error)
	Upsert(ctx context.Context, cfg *domain.ProjectConfig) error
}

type ProjectRepository struct {
	db dbtx
}

func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{db: pool}
}

func (r *ProjectRepository) Get(ctx context.Context, id string) (*domain.ProjectConfig, error) {
	var cfg domain.ProjectConfig
	err := r.db.QueryRow(ctx,
		`SELECT id, provider, system_instruction, multimodal_enabled
		 FROM projects WHERE id = $1`,
		id,
	).Scan(&cfg.ID, &cfg.Provider, &cfg.SystemInstruction, &cfg.MultimodalEnabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *ProjectRepository) Upsert(ctx context.Context, cfg *domain.ProjectConfig) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO projects (id, provider, system_instruction, multimodal_enabled, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET provider = EXCLUDED.provider,
		     system_instruction = EXCLUDED.system_instruction,
		     multimodal_enabled = EXCLUDED.multimodal_enabled,
		     updated_at = EXCLUDED.updated_at`,
		cfg.ID, cfg.Provider, cfg.SystemInstruction, cfg.MultimodalEnabled, time.Now().UTC(),
	)
	return err
}
