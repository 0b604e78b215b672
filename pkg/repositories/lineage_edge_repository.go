package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/apperrors"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/database"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/models"
)

// ColumnRef identifies one column endpoint in the lineage graph.
type ColumnRef struct {
	NodeID uuid.UUID
	Column string
}

// LineageEdgeRepository provides data access for column-level lineage edges.
type LineageEdgeRepository interface {
	// Upsert inserts the edge or, on a uniqueness-tuple conflict, updates the
	// mutable fields of the existing row. A soft-deleted row is resurrected.
	Upsert(ctx context.Context, edge *models.LineageEdge) error
	// UpsertBatch performs Upsert for every edge inside a single transaction.
	UpsertBatch(ctx context.Context, edges []*models.LineageEdge) error
	// GetByID retrieves an edge by id, including soft-deleted rows.
	GetByID(ctx context.Context, id uuid.UUID) (*models.LineageEdge, error)
	GetByKey(ctx context.Context, key models.EdgeKey) (*models.LineageEdge, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	SetValidationStatus(ctx context.Context, id uuid.UUID, status, validator string, notes *string) error
	ListActive(ctx context.Context, dataSourceID *uuid.UUID) ([]*models.LineageEdge, error)
	// ListActiveBySources returns active edges whose (from_node, from_column)
	// matches any of the given refs. Used for downstream frontier expansion.
	ListActiveBySources(ctx context.Context, refs []ColumnRef) ([]*models.LineageEdge, error)
	// ListActiveByTargets is the upstream counterpart of ListActiveBySources.
	ListActiveByTargets(ctx context.Context, refs []ColumnRef) ([]*models.LineageEdge, error)
	// ListActiveFromNode returns active edges whose source is any column of the node.
	ListActiveFromNode(ctx context.Context, nodeID uuid.UUID) ([]*models.LineageEdge, error)
	// NodeKnown reports whether the node appears on any edge, active or not.
	NodeKnown(ctx context.Context, nodeID uuid.UUID) (bool, error)
	Stats(ctx context.Context, dataSourceID *uuid.UUID) (*models.LineageStats, error)
}

type lineageEdgeRepository struct {
	db *database.DB
}

// NewLineageEdgeRepository creates a new LineageEdgeRepository.
func NewLineageEdgeRepository(db *database.DB) LineageEdgeRepository {
	return &lineageEdgeRepository{db: db}
}

var _ LineageEdgeRepository = (*lineageEdgeRepository)(nil)

const edgeColumns = `
	id, from_node_id, from_column_name, from_data_type,
	to_node_id, to_column_name, to_data_type,
	transformation_type, transformation_sql, transformation_description,
	confidence_score, data_quality_score, discovered_by, discovered_at,
	last_validated_at, validation_status, validated_by, validation_notes,
	metadata, tags, data_source_id, created_by, created_at, updated_at,
	is_active, deleted_at`

const upsertEdgeQuery = `
	INSERT INTO lineage_edges (
		id, from_node_id, from_column_name, from_data_type,
		to_node_id, to_column_name, to_data_type,
		transformation_type, transformation_sql, transformation_description,
		confidence_score, data_quality_score, discovered_by, discovered_at,
		validation_status, metadata, tags, data_source_id, created_by
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	ON CONFLICT (from_node_id, from_column_name, to_node_id, to_column_name)
	DO UPDATE SET
		from_data_type = EXCLUDED.from_data_type,
		to_data_type = EXCLUDED.to_data_type,
		transformation_type = EXCLUDED.transformation_type,
		transformation_sql = EXCLUDED.transformation_sql,
		transformation_description = EXCLUDED.transformation_description,
		confidence_score = EXCLUDED.confidence_score,
		data_quality_score = EXCLUDED.data_quality_score,
		discovered_by = EXCLUDED.discovered_by,
		metadata = EXCLUDED.metadata,
		tags = EXCLUDED.tags,
		data_source_id = EXCLUDED.data_source_id,
		updated_at = now(),
		is_active = true,
		deleted_at = NULL
	RETURNING id, discovered_at, created_at, updated_at, validation_status, is_active`

func (r *lineageEdgeRepository) Upsert(ctx context.Context, edge *models.LineageEdge) error {
	return r.upsert(ctx, r.db.Pool, edge)
}

func (r *lineageEdgeRepository) UpsertBatch(ctx context.Context, edges []*models.LineageEdge) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		for _, edge := range edges {
			if err := r.upsert(ctx, tx, edge); err != nil {
				return err
			}
		}
		return nil
	})
}

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, letting single and
// batch upserts share one code path.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *lineageEdgeRepository) upsert(ctx context.Context, q rowQuerier, edge *models.LineageEdge) error {
	if edge.ID == uuid.Nil {
		edge.ID = uuid.New()
	}
	if edge.ValidationStatus == "" {
		edge.ValidationStatus = models.ValidationPending
	}
	if edge.Metadata == nil {
		edge.Metadata = map[string]any{}
	}
	if edge.Tags == nil {
		edge.Tags = []string{}
	}
	if edge.DiscoveredAt.IsZero() {
		edge.DiscoveredAt = time.Now()
	}
	if edge.CreatedBy == "" {
		edge.CreatedBy = "system"
	}

	err := q.QueryRow(ctx, upsertEdgeQuery,
		edge.ID, edge.FromNodeID, edge.FromColumnName, edge.FromDataType,
		edge.ToNodeID, edge.ToColumnName, edge.ToDataType,
		edge.TransformationType, edge.TransformationSQL, edge.TransformationDescription,
		edge.ConfidenceScore, edge.DataQualityScore, edge.DiscoveredBy, edge.DiscoveredAt,
		edge.ValidationStatus, edge.Metadata, edge.Tags, edge.DataSourceID, edge.CreatedBy,
	).Scan(&edge.ID, &edge.DiscoveredAt, &edge.CreatedAt, &edge.UpdatedAt, &edge.ValidationStatus, &edge.IsActive)
	if err != nil {
		return fmt.Errorf("failed to upsert lineage edge: %w", err)
	}

	return nil
}

func (r *lineageEdgeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.LineageEdge, error) {
	query := `SELECT` + edgeColumns + ` FROM lineage_edges WHERE id = $1`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineage edge: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query lineage edge: %w", err)
		}
		return nil, fmt.Errorf("lineage edge %s: %w", id, apperrors.ErrNotFound)
	}
	return scanLineageEdge(rows)
}

func (r *lineageEdgeRepository) GetByKey(ctx context.Context, key models.EdgeKey) (*models.LineageEdge, error) {
	query := `SELECT` + edgeColumns + ` FROM lineage_edges
		WHERE from_node_id = $1 AND from_column_name = $2 AND to_node_id = $3 AND to_column_name = $4`

	rows, err := r.db.Query(ctx, query, key.FromNodeID, key.FromColumnName, key.ToNodeID, key.ToColumnName)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineage edge by key: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query lineage edge by key: %w", err)
		}
		return nil, fmt.Errorf("lineage edge for key: %w", apperrors.ErrNotFound)
	}
	return scanLineageEdge(rows)
}

func (r *lineageEdgeRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE lineage_edges
		SET is_active = false, deleted_at = now(), updated_at = now()
		WHERE id = $1 AND is_active`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to soft delete lineage edge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lineage edge %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (r *lineageEdgeRepository) SetValidationStatus(ctx context.Context, id uuid.UUID, status, validator string, notes *string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE lineage_edges
		SET validation_status = $2, validated_by = $3, validation_notes = $4,
		    last_validated_at = now(), updated_at = now()
		WHERE id = $1`,
		id, status, validator, notes,
	)
	if err != nil {
		return fmt.Errorf("failed to set validation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lineage edge %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (r *lineageEdgeRepository) ListActive(ctx context.Context, dataSourceID *uuid.UUID) ([]*models.LineageEdge, error) {
	query := `SELECT` + edgeColumns + ` FROM lineage_edges
		WHERE is_active AND ($1::uuid IS NULL OR data_source_id = $1)
		ORDER BY from_node_id, from_column_name`

	rows, err := r.db.Query(ctx, query, dataSourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active lineage edges: %w", err)
	}
	defer rows.Close()

	return collectLineageEdges(rows)
}

func (r *lineageEdgeRepository) ListActiveBySources(ctx context.Context, refs []ColumnRef) ([]*models.LineageEdge, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	nodes, cols := splitRefs(refs)

	query := `SELECT` + edgeColumns + ` FROM lineage_edges e
		JOIN unnest($1::uuid[], $2::text[]) AS f(node_id, column_name)
		  ON e.from_node_id = f.node_id AND e.from_column_name = f.column_name
		WHERE e.is_active`

	rows, err := r.db.Query(ctx, query, nodes, cols)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges by sources: %w", err)
	}
	defer rows.Close()

	return collectLineageEdges(rows)
}

func (r *lineageEdgeRepository) ListActiveByTargets(ctx context.Context, refs []ColumnRef) ([]*models.LineageEdge, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	nodes, cols := splitRefs(refs)

	query := `SELECT` + edgeColumns + ` FROM lineage_edges e
		JOIN unnest($1::uuid[], $2::text[]) AS t(node_id, column_name)
		  ON e.to_node_id = t.node_id AND e.to_column_name = t.column_name
		WHERE e.is_active`

	rows, err := r.db.Query(ctx, query, nodes, cols)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges by targets: %w", err)
	}
	defer rows.Close()

	return collectLineageEdges(rows)
}

func (r *lineageEdgeRepository) ListActiveFromNode(ctx context.Context, nodeID uuid.UUID) ([]*models.LineageEdge, error) {
	query := `SELECT` + edgeColumns + ` FROM lineage_edges
		WHERE is_active AND from_node_id = $1
		ORDER BY from_column_name`

	rows, err := r.db.Query(ctx, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges from node: %w", err)
	}
	defer rows.Close()

	return collectLineageEdges(rows)
}

func (r *lineageEdgeRepository) NodeKnown(ctx context.Context, nodeID uuid.UUID) (bool, error) {
	var known bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM lineage_edges WHERE from_node_id = $1 OR to_node_id = $1
		)`,
		nodeID,
	).Scan(&known)
	if err != nil {
		return false, fmt.Errorf("failed to check node presence: %w", err)
	}
	return known, nil
}

func (r *lineageEdgeRepository) Stats(ctx context.Context, dataSourceID *uuid.UUID) (*models.LineageStats, error) {
	stats := &models.LineageStats{
		DataSourceID:      dataSourceID,
		ByTransformation:  map[string]int{},
		ByDiscoveryMethod: map[string]int{},
	}

	var avg *float64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT node_id),
		       AVG(confidence_score)
		FROM (
			SELECT from_node_id AS node_id, confidence_score FROM lineage_edges
			WHERE is_active AND ($1::uuid IS NULL OR data_source_id = $1)
			UNION ALL
			SELECT to_node_id, confidence_score FROM lineage_edges
			WHERE is_active AND ($1::uuid IS NULL OR data_source_id = $1)
		) endpoints`,
		dataSourceID,
	).Scan(&stats.EdgeCount, &stats.NodeCount, &avg)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineage stats: %w", err)
	}
	// Each edge contributes two endpoint rows.
	stats.EdgeCount /= 2
	if avg != nil {
		stats.AvgConfidence = *avg
	}

	rows, err := r.db.Query(ctx, `
		SELECT transformation_type, discovered_by, COUNT(*)
		FROM lineage_edges
		WHERE is_active AND ($1::uuid IS NULL OR data_source_id = $1)
		GROUP BY transformation_type, discovered_by`,
		dataSourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineage stat breakdowns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ttype, method string
		var count int
		if err := rows.Scan(&ttype, &method, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stat breakdown: %w", err)
		}
		stats.ByTransformation[ttype] += count
		stats.ByDiscoveryMethod[method] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stat breakdowns: %w", err)
	}

	return stats, nil
}

func splitRefs(refs []ColumnRef) ([]uuid.UUID, []string) {
	nodes := make([]uuid.UUID, len(refs))
	cols := make([]string, len(refs))
	for i, ref := range refs {
		nodes[i] = ref.NodeID
		cols[i] = ref.Column
	}
	return nodes, cols
}

func collectLineageEdges(rows pgx.Rows) ([]*models.LineageEdge, error) {
	var edges []*models.LineageEdge
	for rows.Next() {
		edge, err := scanLineageEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lineage edges: %w", err)
	}
	return edges, nil
}

func scanLineageEdge(rows pgx.Rows) (*models.LineageEdge, error) {
	edge := &models.LineageEdge{}
	err := rows.Scan(
		&edge.ID, &edge.FromNodeID, &edge.FromColumnName, &edge.FromDataType,
		&edge.ToNodeID, &edge.ToColumnName, &edge.ToDataType,
		&edge.TransformationType, &edge.TransformationSQL, &edge.TransformationDescription,
		&edge.ConfidenceScore, &edge.DataQualityScore, &edge.DiscoveredBy, &edge.DiscoveredAt,
		&edge.LastValidatedAt, &edge.ValidationStatus, &edge.ValidatedBy, &edge.ValidationNotes,
		&edge.Metadata, &edge.Tags, &edge.DataSourceID, &edge.CreatedBy, &edge.CreatedAt, &edge.UpdatedAt,
		&edge.IsActive, &edge.DeletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan lineage edge: %w", err)
	}
	return edge, nil
}
