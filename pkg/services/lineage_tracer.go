package services

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/models"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/repositories"
)

// LineageTracer answers bounded upstream/downstream traversals against the live
// edge store, without waiting for a materializer refresh. Each call carries its
// own visited set, so concurrent overlapping traces share no mutable state.
type LineageTracer interface {
	// TraceDownstream walks forward from the column. maxDepth <= 0 applies the
	// configured default. An unknown starting column yields an empty result.
	TraceDownstream(ctx context.Context, nodeID uuid.UUID, column string, maxDepth int) (*models.TraceResult, error)
	// TraceUpstream walks backward from the column.
	TraceUpstream(ctx context.Context, nodeID uuid.UUID, column string, maxDepth int) (*models.TraceResult, error)
	// GetColumnLineage returns the upstream and downstream traces together.
	GetColumnLineage(ctx context.Context, nodeID uuid.UUID, column string, maxDepth int) (*models.ColumnLineage, error)
}

// TracerConfig bounds on-demand traversal.
type TracerConfig struct {
	DefaultDepth int
	MaxDepth     int
}

type lineageTracer struct {
	edges  repositories.LineageEdgeRepository
	cfg    TracerConfig
	logger *zap.Logger
}

// NewLineageTracer creates a new LineageTracer.
func NewLineageTracer(edges repositories.LineageEdgeRepository, cfg TracerConfig, logger *zap.Logger) LineageTracer {
	if cfg.DefaultDepth <= 0 {
		cfg.DefaultDepth = models.DefaultTraceDepth
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = models.MaxPathDepth
	}
	return &lineageTracer{
		edges:  edges,
		cfg:    cfg,
		logger: logger.Named("lineage-tracer"),
	}
}

var _ LineageTracer = (*lineageTracer)(nil)

func (s *lineageTracer) TraceDownstream(ctx context.Context, nodeID uuid.UUID, column string, maxDepth int) (*models.TraceResult, error) {
	return s.trace(ctx, nodeID, column, maxDepth, models.TraceDownstream)
}

func (s *lineageTracer) TraceUpstream(ctx context.Context, nodeID uuid.UUID, column string, maxDepth int) (*models.TraceResult, error) {
	return s.trace(ctx, nodeID, column, maxDepth, models.TraceUpstream)
}

func (s *lineageTracer) GetColumnLineage(ctx context.Context, nodeID uuid.UUID, column string, maxDepth int) (*models.ColumnLineage, error) {
	lineage := &models.ColumnLineage{NodeID: nodeID, ColumnName: column}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		up, err := s.TraceUpstream(gctx, nodeID, column, maxDepth)
		if err != nil {
			return err
		}
		lineage.Upstream = up
		return nil
	})
	g.Go(func() error {
		down, err := s.TraceDownstream(gctx, nodeID, column, maxDepth)
		if err != nil {
			return err
		}
		lineage.Downstream = down
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lineage, nil
}

func (s *lineageTracer) trace(ctx context.Context, nodeID uuid.UUID, column string, maxDepth int, direction string) (*models.TraceResult, error) {
	if maxDepth <= 0 {
		maxDepth = s.cfg.DefaultDepth
	}
	if maxDepth > s.cfg.MaxDepth {
		maxDepth = s.cfg.MaxDepth
	}

	result := &models.TraceResult{
		Direction: direction,
		RootNode:  nodeID,
		RootCol:   column,
		MaxDepth:  maxDepth,
		Steps:     []models.TraceStep{},
	}

	root := repositories.ColumnRef{NodeID: nodeID, Column: column}
	visited := map[repositories.ColumnRef]bool{root: true}
	frontier := []repositories.ColumnRef{root}

	for level := 1; len(frontier) > 0; level++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var edges []*models.LineageEdge
		var err error
		if direction == models.TraceDownstream {
			edges, err = s.edges.ListActiveBySources(ctx, frontier)
		} else {
			edges, err = s.edges.ListActiveByTargets(ctx, frontier)
		}
		if err != nil {
			return nil, err
		}

		var steps []models.TraceStep
		var next []repositories.ColumnRef
		for _, e := range edges {
			var reached repositories.ColumnRef
			if direction == models.TraceDownstream {
				reached = repositories.ColumnRef{NodeID: e.ToNodeID, Column: e.ToColumnName}
			} else {
				reached = repositories.ColumnRef{NodeID: e.FromNodeID, Column: e.FromColumnName}
			}
			if visited[reached] {
				continue
			}
			visited[reached] = true
			steps = append(steps, models.TraceStep{
				Level:              level,
				NodeID:             reached.NodeID,
				ColumnName:         reached.Column,
				TransformationType: e.TransformationType,
				TransformationSQL:  e.TransformationSQL,
				Confidence:         e.ConfidenceScore,
			})
			next = append(next, reached)
		}
		if len(steps) == 0 {
			break
		}

		// Depth cap reached with frontier remaining: report truncation, not error.
		if level > maxDepth {
			result.Truncated = true
			break
		}

		sort.Slice(steps, func(i, j int) bool {
			if steps[i].NodeID != steps[j].NodeID {
				return steps[i].NodeID.String() < steps[j].NodeID.String()
			}
			return steps[i].ColumnName < steps[j].ColumnName
		})
		result.Steps = append(result.Steps, steps...)
		frontier = next
	}

	return result, nil
}
