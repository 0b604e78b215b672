package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/models"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/repositories"
)

// ImpactAggregator maintains the materialized one-hop downstream summaries.
// This is strictly direct (single-edge) impact; multi-hop reachability is
// GraphComposer.AnalyzeImpact.
type ImpactAggregator interface {
	// Rebuild recomputes every summary from active edges, replacing the set
	// atomically.
	Rebuild(ctx context.Context) error
	// GetColumnImpactSummary returns the one-hop summary for a column, or
	// apperrors.ErrNotFound when the column has no active outgoing edges in
	// the current materialization.
	GetColumnImpactSummary(ctx context.Context, nodeID uuid.UUID, column string) (*models.ColumnImpactSummary, error)
	// GetNodeImpactSummaries returns the summaries for every column of a node.
	GetNodeImpactSummaries(ctx context.Context, nodeID uuid.UUID) ([]*models.ColumnImpactSummary, error)
}

type impactAggregator struct {
	impact repositories.ColumnImpactRepository
	logger *zap.Logger
}

// NewImpactAggregator creates a new ImpactAggregator.
func NewImpactAggregator(impact repositories.ColumnImpactRepository, logger *zap.Logger) ImpactAggregator {
	return &impactAggregator{
		impact: impact,
		logger: logger.Named("impact-aggregator"),
	}
}

var _ ImpactAggregator = (*impactAggregator)(nil)

func (s *impactAggregator) Rebuild(ctx context.Context) error {
	if err := s.impact.RebuildAll(ctx); err != nil {
		s.logger.Error("Failed to rebuild column impact summaries", zap.Error(err))
		return err
	}
	s.logger.Info("Rebuilt column impact summaries")
	return nil
}

func (s *impactAggregator) GetColumnImpactSummary(ctx context.Context, nodeID uuid.UUID, column string) (*models.ColumnImpactSummary, error) {
	return s.impact.GetByColumn(ctx, nodeID, column)
}

func (s *impactAggregator) GetNodeImpactSummaries(ctx context.Context, nodeID uuid.UUID) ([]*models.ColumnImpactSummary, error) {
	return s.impact.ListByNode(ctx, nodeID)
}
