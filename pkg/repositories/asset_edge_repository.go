package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/database"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/models"
)

// AssetEdgeRepository provides data access for asset-level (table-grain) lineage
// edges consumed by the graph composer.
type AssetEdgeRepository interface {
	Upsert(ctx context.Context, edge *models.AssetEdge) error
	ListActive(ctx context.Context) ([]*models.AssetEdge, error)
	ListActiveTouchingNode(ctx context.Context, nodeID uuid.UUID) ([]*models.AssetEdge, error)
}

type assetEdgeRepository struct {
	db *database.DB
}

// NewAssetEdgeRepository creates a new AssetEdgeRepository.
func NewAssetEdgeRepository(db *database.DB) AssetEdgeRepository {
	return &assetEdgeRepository{db: db}
}

var _ AssetEdgeRepository = (*assetEdgeRepository)(nil)

func (r *assetEdgeRepository) Upsert(ctx context.Context, edge *models.AssetEdge) error {
	if edge.ID == uuid.Nil {
		edge.ID = uuid.New()
	}
	if edge.EdgeType == "" {
		edge.EdgeType = models.AssetEdgeTypeDataflow
	}
	if edge.Properties == nil {
		edge.Properties = map[string]any{}
	}
	if edge.CreatedBy == "" {
		edge.CreatedBy = "system"
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO asset_lineage_edges (id, from_node_id, to_node_id, edge_type, properties, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (from_node_id, to_node_id, edge_type)
		DO UPDATE SET properties = EXCLUDED.properties, is_active = true
		RETURNING id, created_at, is_active`,
		edge.ID, edge.FromNodeID, edge.ToNodeID, edge.EdgeType, edge.Properties, edge.CreatedBy,
	).Scan(&edge.ID, &edge.CreatedAt, &edge.IsActive)
	if err != nil {
		return fmt.Errorf("failed to upsert asset edge: %w", err)
	}
	return nil
}

const assetEdgeColumns = `id, from_node_id, to_node_id, edge_type, properties, created_by, created_at, is_active`

func (r *assetEdgeRepository) ListActive(ctx context.Context) ([]*models.AssetEdge, error) {
	rows, err := r.db.Query(ctx, `SELECT `+assetEdgeColumns+` FROM asset_lineage_edges WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("failed to query asset edges: %w", err)
	}
	defer rows.Close()

	return collectAssetEdges(rows)
}

func (r *assetEdgeRepository) ListActiveTouchingNode(ctx context.Context, nodeID uuid.UUID) ([]*models.AssetEdge, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+assetEdgeColumns+` FROM asset_lineage_edges
		WHERE is_active AND (from_node_id = $1 OR to_node_id = $1)`,
		nodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query asset edges for node: %w", err)
	}
	defer rows.Close()

	return collectAssetEdges(rows)
}

func collectAssetEdges(rows pgx.Rows) ([]*models.AssetEdge, error) {
	var edges []*models.AssetEdge
	for rows.Next() {
		edge := &models.AssetEdge{}
		err := rows.Scan(
			&edge.ID, &edge.FromNodeID, &edge.ToNodeID, &edge.EdgeType,
			&edge.Properties, &edge.CreatedBy, &edge.CreatedAt, &edge.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset edge: %w", err)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset edges: %w", err)
	}
	return edges, nil
}
