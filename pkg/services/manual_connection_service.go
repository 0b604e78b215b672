package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/apperrors"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/logging"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/models"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/repositories"
)

// SampleRequest asks the external sampling service for matched row pairs
// around one lineage edge, over a bounded recent window.
type SampleRequest struct {
	SourceNodeID uuid.UUID
	SourceColumn string
	TargetNodeID uuid.UUID
	TargetColumn string
	SampleSize   int
	WindowDays   int
	MaskPII      bool
}

// SampleProvider is the external data-sampling and PII-masking service.
type SampleProvider interface {
	// SampleColumnPairs returns up to req.SampleSize matched row pairs; an
	// empty slice means no overlapping rows existed in the window.
	SampleColumnPairs(ctx context.Context, req SampleRequest) ([]models.SampleRowPair, error)
	// JoinStatistics measures referential overlap and cardinality for a
	// candidate join key between two tables.
	JoinStatistics(ctx context.Context, sourceTable, targetTable, joinColumn string) (*models.JoinStatistics, error)
}

// Join keys below this overlap ratio are reported invalid.
const joinOverlapThreshold = 0.9

// DefaultManualRelationship is the relationship type applied when a manual
// connection request omits one.
const DefaultManualRelationship = models.AssetEdgeTypeManualReference

// ManualConnectionService handles human-asserted lineage: manual edges between
// URN-identified assets or columns, sample-based evidence for review, and
// join-key pre-flight validation.
type ManualConnectionService interface {
	// CreateManualConnection resolves both URNs and writes a manual edge at
	// the URNs' grain. An unresolvable URN fails with
	// apperrors.ErrUnresolvedURN and writes nothing.
	CreateManualConnection(ctx context.Context, sourceURN, targetURN, relationshipType string, metadata map[string]any) (*models.LineageEdge, *models.AssetEdge, error)
	// GetTraceEvidence fetches sample row pairs for an edge. Empty evidence is
	// success: absence of overlapping in-window rows is a valid state.
	GetTraceEvidence(ctx context.Context, edgeID uuid.UUID, opts models.EvidenceOptions) (*models.TraceEvidence, error)
	// ValidateJoin estimates join-key validity before a manual edge is asserted.
	ValidateJoin(ctx context.Context, sourceTable, targetTable, joinColumn string) (*models.JoinValidation, error)
}

type manualConnectionService struct {
	edges      repositories.LineageEdgeRepository
	assetEdges repositories.AssetEdgeRepository
	registry   NodeRegistry
	samples    SampleProvider
	edgeSvc    EdgeService
	logger     *zap.Logger
}

// NewManualConnectionService creates a new ManualConnectionService.
func NewManualConnectionService(
	edges repositories.LineageEdgeRepository,
	assetEdges repositories.AssetEdgeRepository,
	registry NodeRegistry,
	samples SampleProvider,
	edgeSvc EdgeService,
	logger *zap.Logger,
) ManualConnectionService {
	return &manualConnectionService{
		edges:      edges,
		assetEdges: assetEdges,
		registry:   registry,
		samples:    samples,
		edgeSvc:    edgeSvc,
		logger:     logger.Named("manual-connection"),
	}
}

var _ ManualConnectionService = (*manualConnectionService)(nil)

func (s *manualConnectionService) CreateManualConnection(ctx context.Context, sourceURN, targetURN, relationshipType string, metadata map[string]any) (*models.LineageEdge, *models.AssetEdge, error) {
	if relationshipType == "" {
		relationshipType = DefaultManualRelationship
	}

	source, err := s.registry.ResolveURN(ctx, sourceURN)
	if err != nil {
		return nil, nil, fmt.Errorf("source urn %q: %w", sourceURN, err)
	}
	target, err := s.registry.ResolveURN(ctx, targetURN)
	if err != nil {
		return nil, nil, fmt.Errorf("target urn %q: %w", targetURN, err)
	}

	if source.Grain != target.Grain {
		return nil, nil, fmt.Errorf("%w: cannot connect %s-grain urn to %s-grain urn",
			apperrors.ErrValidation, source.Grain, target.Grain)
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["relationship_type"] = relationshipType
	metadata["source_urn"] = sourceURN
	metadata["target_urn"] = targetURN

	if source.Grain == models.NodeGrainColumn {
		edge := &models.LineageEdge{
			FromNodeID:         source.ID,
			FromColumnName:     source.ColumnName,
			ToNodeID:           target.ID,
			ToColumnName:       target.ColumnName,
			TransformationType: models.TransformationUnknown,
			ConfidenceScore:    1.0,
			DiscoveredBy:       models.DiscoveredByManual,
			Metadata:           metadata,
			DataSourceID:       source.DataSourceID,
			CreatedBy:          models.DiscoveredByManual,
		}
		if err := s.edgeSvc.UpsertEdge(ctx, edge); err != nil {
			return nil, nil, err
		}
		s.logger.Info("Created manual column connection",
			zap.String("source_urn", sourceURN),
			zap.String("target_urn", targetURN))
		return edge, nil, nil
	}

	assetEdge := &models.AssetEdge{
		FromNodeID: source.ID,
		ToNodeID:   target.ID,
		EdgeType:   relationshipType,
		Properties: metadata,
		CreatedBy:  models.DiscoveredByManual,
	}
	if err := s.assetEdges.Upsert(ctx, assetEdge); err != nil {
		return nil, nil, err
	}
	s.logger.Info("Created manual asset connection",
		zap.String("source_urn", sourceURN),
		zap.String("target_urn", targetURN))
	return nil, assetEdge, nil
}

func (s *manualConnectionService) GetTraceEvidence(ctx context.Context, edgeID uuid.UUID, opts models.EvidenceOptions) (*models.TraceEvidence, error) {
	edge, err := s.edges.GetByID(ctx, edgeID)
	if err != nil {
		return nil, err
	}

	if opts.SampleSize <= 0 {
		opts.SampleSize = models.DefaultEvidenceSampleSize
	}
	if opts.SampleSize > models.MaxEvidenceSampleSize {
		opts.SampleSize = models.MaxEvidenceSampleSize
	}
	if opts.TimeWindowDays <= 0 {
		opts.TimeWindowDays = models.DefaultEvidenceWindowDays
	}

	samples, err := s.samples.SampleColumnPairs(ctx, SampleRequest{
		SourceNodeID: edge.FromNodeID,
		SourceColumn: edge.FromColumnName,
		TargetNodeID: edge.ToNodeID,
		TargetColumn: edge.ToColumnName,
		SampleSize:   opts.SampleSize,
		WindowDays:   opts.TimeWindowDays,
		MaskPII:      opts.MaskPII,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sample edge evidence: %w", err)
	}
	if len(samples) > opts.SampleSize {
		samples = samples[:opts.SampleSize]
	}
	if samples == nil {
		samples = []models.SampleRowPair{}
	}

	sql := ""
	if edge.TransformationSQL != nil {
		sql = *edge.TransformationSQL
	}
	s.logger.Debug("Collected trace evidence",
		zap.String("edge_id", edgeID.String()),
		zap.Int("samples", len(samples)),
		zap.Bool("masked", opts.MaskPII),
		zap.String("transformation_sql", logging.SanitizeQuery(sql)))

	return &models.TraceEvidence{
		EdgeID:     edgeID,
		SampleSize: opts.SampleSize,
		Masked:     opts.MaskPII,
		WindowDays: opts.TimeWindowDays,
		Samples:    samples,
	}, nil
}

func (s *manualConnectionService) ValidateJoin(ctx context.Context, sourceTable, targetTable, joinColumn string) (*models.JoinValidation, error) {
	if sourceTable == "" || targetTable == "" || joinColumn == "" {
		return nil, fmt.Errorf("%w: source table, target table and join column are required", apperrors.ErrValidation)
	}

	stats, err := s.samples.JoinStatistics(ctx, sourceTable, targetTable, joinColumn)
	if err != nil {
		return nil, fmt.Errorf("failed to measure join statistics: %w", err)
	}

	return &models.JoinValidation{
		SourceTable: sourceTable,
		TargetTable: targetTable,
		JoinColumn:  joinColumn,
		Valid:       stats.OverlapRatio >= joinOverlapThreshold,
		Cardinality: estimateCardinality(stats),
		Statistics:  stats,
	}, nil
}

// estimateCardinality infers join shape from key uniqueness on each side.
func estimateCardinality(stats *models.JoinStatistics) string {
	sourceUnique := stats.SourceRowCount > 0 && stats.SourceDistinctCount == stats.SourceRowCount
	targetUnique := stats.TargetRowCount > 0 && stats.TargetDistinctCount == stats.TargetRowCount

	switch {
	case sourceUnique && targetUnique:
		return "1:1"
	case sourceUnique:
		return "1:N"
	case targetUnique:
		return "N:1"
	default:
		return "N:M"
	}
}
