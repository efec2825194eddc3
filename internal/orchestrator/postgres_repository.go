package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository backed by PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a PostgreSQL-backed repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateAnalysis(ctx context.Context, a *Analysis) error {
	query := `
		INSERT INTO analyses (id, prompt, granted_models, degraded, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.Prompt, a.GrantedModels, a.Degraded, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create analysis: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetAnalysis(ctx context.Context, id string) (*Analysis, error) {
	query := `
		SELECT id, prompt, granted_models, degraded, status, created_at, updated_at
		FROM analyses
		WHERE id = $1
	`

	var a Analysis
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Prompt, &a.GrantedModels, &a.Degraded, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnalysisNotFound
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	return &a, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status AnalysisStatus) error {
	query := `
		UPDATE analyses
		SET status = $2, updated_at = now()
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update analysis status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAnalysisNotFound
	}

	return nil
}
