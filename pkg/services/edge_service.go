package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/apperrors"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/models"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/repositories"
)

// EdgeService owns writes to the lineage edge store and direct edge reads.
type EdgeService interface {
	// UpsertEdge validates and writes one edge. On a uniqueness-tuple conflict
	// the existing row's mutable fields are updated; a soft-deleted row is
	// resurrected rather than duplicated.
	UpsertEdge(ctx context.Context, edge *models.LineageEdge) error
	// BulkIngest writes a batch of edges from a single parse or inference pass
	// all-or-nothing, so a source's lineage is never half-recorded.
	BulkIngest(ctx context.Context, edges []*models.LineageEdge) error
	// SoftDeleteEdge deactivates the edge, excluding it from traversal and
	// aggregation while preserving it for direct id lookup.
	SoftDeleteEdge(ctx context.Context, id uuid.UUID) error
	SetValidationStatus(ctx context.Context, id uuid.UUID, status, validator string, notes *string) error
	// GetEdge retrieves an edge by id, including soft-deleted edges.
	GetEdge(ctx context.Context, id uuid.UUID) (*models.LineageEdge, error)
}

type edgeService struct {
	edges        repositories.LineageEdgeRepository
	refreshState repositories.RefreshStateRepository
	logger       *zap.Logger
}

// NewEdgeService creates a new EdgeService.
func NewEdgeService(
	edges repositories.LineageEdgeRepository,
	refreshState repositories.RefreshStateRepository,
	logger *zap.Logger,
) EdgeService {
	return &edgeService{
		edges:        edges,
		refreshState: refreshState,
		logger:       logger.Named("edge-service"),
	}
}

var _ EdgeService = (*edgeService)(nil)

func (s *edgeService) UpsertEdge(ctx context.Context, edge *models.LineageEdge) error {
	if err := edge.Validate(); err != nil {
		return err
	}

	if err := s.edges.Upsert(ctx, edge); err != nil {
		s.logger.Error("Failed to upsert edge",
			zap.String("from_node", edge.FromNodeID.String()),
			zap.String("from_column", edge.FromColumnName),
			zap.String("to_node", edge.ToNodeID.String()),
			zap.String("to_column", edge.ToColumnName),
			zap.Error(err))
		return err
	}

	s.markEdgesDirty(ctx)
	return nil
}

func (s *edgeService) BulkIngest(ctx context.Context, edges []*models.LineageEdge) error {
	if len(edges) == 0 {
		return nil
	}

	for i, edge := range edges {
		if err := edge.Validate(); err != nil {
			return fmt.Errorf("edge %d: %w", i, err)
		}
	}

	if err := s.edges.UpsertBatch(ctx, edges); err != nil {
		s.logger.Error("Failed to bulk ingest edges", zap.Int("count", len(edges)), zap.Error(err))
		return err
	}

	s.logger.Info("Ingested edge batch", zap.Int("count", len(edges)))
	s.markEdgesDirty(ctx)
	return nil
}

func (s *edgeService) SoftDeleteEdge(ctx context.Context, id uuid.UUID) error {
	if err := s.edges.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.markEdgesDirty(ctx)
	return nil
}

func (s *edgeService) SetValidationStatus(ctx context.Context, id uuid.UUID, status, validator string, notes *string) error {
	if !models.ValidValidationStatus(status) {
		return fmt.Errorf("%w: unknown validation_status %q", apperrors.ErrValidation, status)
	}
	if validator == "" {
		return fmt.Errorf("%w: validator identity is required", apperrors.ErrValidation)
	}
	return s.edges.SetValidationStatus(ctx, id, status, validator, notes)
}

func (s *edgeService) GetEdge(ctx context.Context, id uuid.UUID) (*models.LineageEdge, error) {
	return s.edges.GetByID(ctx, id)
}

// markEdgesDirty records the write for staleness tracking. Failures are logged,
// not surfaced; the write itself already succeeded.
func (s *edgeService) markEdgesDirty(ctx context.Context) {
	if err := s.refreshState.TouchEdgeWrite(ctx); err != nil {
		s.logger.Warn("Failed to record edge write time", zap.Error(err))
	}
}
