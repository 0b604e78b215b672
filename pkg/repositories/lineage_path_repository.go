package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/database"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/models"
)

// LineagePathRepository provides data access for the materialized transitive closure.
// The table is only ever replaced wholesale; there are no row-level mutations.
type LineagePathRepository interface {
	// ReplaceAll swaps the entire materialized path set in one transaction, so
	// concurrent readers observe either the previous or the next complete
	// closure, never a partial rebuild. Also records the refresh timestamp.
	ReplaceAll(ctx context.Context, paths []*models.LineagePath) error
	ListBySource(ctx context.Context, nodeID uuid.UUID, column string) ([]*models.LineagePath, error)
	ListByTarget(ctx context.Context, nodeID uuid.UUID, column string) ([]*models.LineagePath, error)
	Count(ctx context.Context) (int, error)
}

type lineagePathRepository struct {
	db *database.DB
}

// NewLineagePathRepository creates a new LineagePathRepository.
func NewLineagePathRepository(db *database.DB) LineagePathRepository {
	return &lineagePathRepository{db: db}
}

var _ LineagePathRepository = (*lineagePathRepository)(nil)

func (r *lineagePathRepository) ReplaceAll(ctx context.Context, paths []*models.LineagePath) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM lineage_paths`); err != nil {
			return fmt.Errorf("failed to clear lineage paths: %w", err)
		}

		if len(paths) > 0 {
			rows := make([][]any, len(paths))
			for i, p := range paths {
				id := p.ID
				if id == uuid.Nil {
					id = uuid.New()
				}
				rows[i] = []any{
					id, p.SourceNodeID, p.SourceColumn, p.TargetNodeID, p.TargetColumn,
					p.PathLength, p.NodePath, p.ColumnPath, p.PathConfidence, p.PathCount,
				}
			}

			_, err := tx.CopyFrom(ctx,
				pgx.Identifier{"lineage_paths"},
				[]string{
					"id", "source_node_id", "source_column", "target_node_id", "target_column",
					"path_length", "node_path", "column_path", "path_confidence", "path_count",
				},
				pgx.CopyFromRows(rows),
			)
			if err != nil {
				return fmt.Errorf("failed to insert lineage paths: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, `UPDATE lineage_refresh_state SET paths_refreshed_at = now()`); err != nil {
			return fmt.Errorf("failed to record path refresh: %w", err)
		}
		return nil
	})
}

const pathColumns = `
	id, source_node_id, source_column, target_node_id, target_column,
	path_length, node_path, column_path, path_confidence, path_count, computed_at`

func (r *lineagePathRepository) ListBySource(ctx context.Context, nodeID uuid.UUID, column string) ([]*models.LineagePath, error) {
	query := `SELECT` + pathColumns + ` FROM lineage_paths
		WHERE source_node_id = $1 AND source_column = $2
		ORDER BY path_length, target_node_id, target_column`

	rows, err := r.db.Query(ctx, query, nodeID, column)
	if err != nil {
		return nil, fmt.Errorf("failed to query paths by source: %w", err)
	}
	defer rows.Close()

	return collectLineagePaths(rows)
}

func (r *lineagePathRepository) ListByTarget(ctx context.Context, nodeID uuid.UUID, column string) ([]*models.LineagePath, error) {
	query := `SELECT` + pathColumns + ` FROM lineage_paths
		WHERE target_node_id = $1 AND target_column = $2
		ORDER BY path_length, source_node_id, source_column`

	rows, err := r.db.Query(ctx, query, nodeID, column)
	if err != nil {
		return nil, fmt.Errorf("failed to query paths by target: %w", err)
	}
	defer rows.Close()

	return collectLineagePaths(rows)
}

func (r *lineagePathRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM lineage_paths`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count lineage paths: %w", err)
	}
	return count, nil
}

func collectLineagePaths(rows pgx.Rows) ([]*models.LineagePath, error) {
	var paths []*models.LineagePath
	for rows.Next() {
		p := &models.LineagePath{}
		err := rows.Scan(
			&p.ID, &p.SourceNodeID, &p.SourceColumn, &p.TargetNodeID, &p.TargetColumn,
			&p.PathLength, &p.NodePath, &p.ColumnPath, &p.PathConfidence, &p.PathCount, &p.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lineage path: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lineage paths: %w", err)
	}
	return paths, nil
}
