package repositories

import (
	"context"
	"fmt"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/database"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/models"
)

// RefreshStateRepository tracks freshness of the derived sets relative to edge
// writes. It backs the staleness flag on lineage stats.
type RefreshStateRepository interface {
	Get(ctx context.Context) (*models.RefreshState, error)
	// TouchEdgeWrite records that the live edge set changed, marking the
	// materialized closure stale until the next refresh.
	TouchEdgeWrite(ctx context.Context) error
}

type refreshStateRepository struct {
	db *database.DB
}

// NewRefreshStateRepository creates a new RefreshStateRepository.
func NewRefreshStateRepository(db *database.DB) RefreshStateRepository {
	return &refreshStateRepository{db: db}
}

var _ RefreshStateRepository = (*refreshStateRepository)(nil)

func (r *refreshStateRepository) Get(ctx context.Context) (*models.RefreshState, error) {
	state := &models.RefreshState{}
	err := r.db.QueryRow(ctx, `
		SELECT paths_refreshed_at, impact_refreshed_at, last_edge_write_at
		FROM lineage_refresh_state`,
	).Scan(&state.PathsRefreshedAt, &state.ImpactRefreshedAt, &state.LastEdgeWriteAt)
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh state: %w", err)
	}
	return state, nil
}

func (r *refreshStateRepository) TouchEdgeWrite(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `UPDATE lineage_refresh_state SET last_edge_write_at = now()`); err != nil {
		return fmt.Errorf("failed to record edge write: %w", err)
	}
	return nil
}
