package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/apperrors"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/database"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/models"
)

// ColumnImpactRepository provides data access for the materialized one-hop impact
// summaries. Like lineage paths, the table is only replaced wholesale.
type ColumnImpactRepository interface {
	// RebuildAll recomputes every summary from active edges inside one
	// transaction and records the refresh timestamp.
	RebuildAll(ctx context.Context) error
	GetByColumn(ctx context.Context, nodeID uuid.UUID, column string) (*models.ColumnImpactSummary, error)
	ListByNode(ctx context.Context, nodeID uuid.UUID) ([]*models.ColumnImpactSummary, error)
}

type columnImpactRepository struct {
	db *database.DB
}

// NewColumnImpactRepository creates a new ColumnImpactRepository.
func NewColumnImpactRepository(db *database.DB) ColumnImpactRepository {
	return &columnImpactRepository{db: db}
}

var _ ColumnImpactRepository = (*columnImpactRepository)(nil)

func (r *columnImpactRepository) RebuildAll(ctx context.Context) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM column_impact_summaries`); err != nil {
			return fmt.Errorf("failed to clear impact summaries: %w", err)
		}

		// One row per source column with at least one active outgoing edge.
		_, err := tx.Exec(ctx, `
			INSERT INTO column_impact_summaries (
				node_id, column_name, downstream_node_count, downstream_column_count,
				edge_count, avg_confidence, min_confidence, transformation_types, last_edge_update
			)
			SELECT
				from_node_id,
				from_column_name,
				COUNT(DISTINCT to_node_id),
				COUNT(DISTINCT (to_node_id, to_column_name)),
				COUNT(*),
				AVG(confidence_score),
				MIN(confidence_score),
				ARRAY(SELECT DISTINCT t FROM unnest(array_agg(transformation_type)) AS t ORDER BY t),
				MAX(updated_at)
			FROM lineage_edges
			WHERE is_active
			GROUP BY from_node_id, from_column_name`)
		if err != nil {
			return fmt.Errorf("failed to rebuild impact summaries: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE lineage_refresh_state SET impact_refreshed_at = now()`); err != nil {
			return fmt.Errorf("failed to record impact refresh: %w", err)
		}
		return nil
	})
}

const impactColumns = `
	node_id, column_name, downstream_node_count, downstream_column_count,
	edge_count, avg_confidence, min_confidence, transformation_types,
	last_edge_update, computed_at`

func (r *columnImpactRepository) GetByColumn(ctx context.Context, nodeID uuid.UUID, column string) (*models.ColumnImpactSummary, error) {
	query := `SELECT` + impactColumns + ` FROM column_impact_summaries
		WHERE node_id = $1 AND column_name = $2`

	summary := &models.ColumnImpactSummary{}
	err := r.db.QueryRow(ctx, query, nodeID, column).Scan(
		&summary.NodeID, &summary.ColumnName, &summary.DownstreamNodeCount,
		&summary.DownstreamColumnCount, &summary.EdgeCount, &summary.AvgConfidence,
		&summary.MinConfidence, &summary.TransformationTypes, &summary.LastEdgeUpdate,
		&summary.ComputedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("impact summary for %s.%s: %w", nodeID, column, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query impact summary: %w", err)
	}
	return summary, nil
}

func (r *columnImpactRepository) ListByNode(ctx context.Context, nodeID uuid.UUID) ([]*models.ColumnImpactSummary, error) {
	query := `SELECT` + impactColumns + ` FROM column_impact_summaries
		WHERE node_id = $1
		ORDER BY column_name`

	rows, err := r.db.Query(ctx, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query impact summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*models.ColumnImpactSummary
	for rows.Next() {
		summary := &models.ColumnImpactSummary{}
		err := rows.Scan(
			&summary.NodeID, &summary.ColumnName, &summary.DownstreamNodeCount,
			&summary.DownstreamColumnCount, &summary.EdgeCount, &summary.AvgConfidence,
			&summary.MinConfidence, &summary.TransformationTypes, &summary.LastEdgeUpdate,
			&summary.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan impact summary: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating impact summaries: %w", err)
	}
	return summaries, nil
}
