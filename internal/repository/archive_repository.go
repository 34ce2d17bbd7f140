// internal/repository/archive_repository.go
package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/unclebandit/campaign-panel/internal/model"
)

type ArchiveRepositoryInterface interface {
	Save(ctx context.Context, run *model.ArchivedCampaign) error
	List(ctx context.Context, offset, limit int, status string) ([]model.ArchivedCampaign, int, error)
}

// ArchiveRepository writes finished campaign runs to postgres.
type ArchiveRepository struct {
	DB *sqlx.DB
}

func (r *ArchiveRepository) Save(ctx context.Context, run *model.ArchivedCampaign) error {
	query := `
        INSERT INTO campaign_runs (campaign_name, status, total, sent, succeeded, failed, not_sent, pending, archived_at)
        VALUES (:campaign_name, :status, :total, :sent, :succeeded, :failed, :not_sent, :pending, :archived_at)
        RETURNING id
    `
	rows, err := r.DB.NamedQueryContext(ctx, query, run)
	if err != nil {
		return fmt.Errorf("insert campaign run: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&run.ID); err != nil {
			return fmt.Errorf("scan campaign run id: %w", err)
		}
	}
	return rows.Err()
}

// List returns archived runs newest first, optionally filtered by status.
func (r *ArchiveRepository) List(ctx context.Context, offset, limit int, status string) ([]model.ArchivedCampaign, int, error) {
	runs := []model.ArchivedCampaign{}
	where := ""
	args := []interface{}{}
	if status != "" {
		where = " WHERE status=$1"
		args = append(args, status)
	}

	query := `SELECT id, campaign_name, status, total, sent, succeeded, failed, not_sent, pending, archived_at FROM campaign_runs` + where
	query += fmt.Sprintf(" ORDER BY archived_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	if err := r.DB.SelectContext(ctx, &runs, query, append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("list campaign runs: %w", err)
	}

	var total int
	if err := r.DB.GetContext(ctx, &total, `SELECT COUNT(*) FROM campaign_runs`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count campaign runs: %w", err)
	}
	return runs, total, nil
}
