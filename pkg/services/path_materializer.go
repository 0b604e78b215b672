package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/models"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/repositories"
)

// PathMaterializer batch-computes the transitive closure of the active edge set
// into lineage_paths. Refresh is explicit (scheduled or triggered), never
// incremental; between refreshes readers see a stale-but-consistent closure.
type PathMaterializer interface {
	// Refresh rebuilds the whole path set from a single snapshot of active
	// edges and swaps it in atomically. Returns the number of stored paths.
	// Re-running with no intervening writes yields an identical set.
	Refresh(ctx context.Context) (int, error)
	// GetPathsFrom returns materialized paths originating at the column.
	GetPathsFrom(ctx context.Context, nodeID uuid.UUID, column string) ([]*models.LineagePath, error)
	// GetPathsTo returns materialized paths terminating at the column.
	GetPathsTo(ctx context.Context, nodeID uuid.UUID, column string) ([]*models.LineagePath, error)
}

type pathMaterializer struct {
	edges  repositories.LineageEdgeRepository
	paths  repositories.LineagePathRepository
	logger *zap.Logger
}

// NewPathMaterializer creates a new PathMaterializer.
func NewPathMaterializer(
	edges repositories.LineageEdgeRepository,
	paths repositories.LineagePathRepository,
	logger *zap.Logger,
) PathMaterializer {
	return &pathMaterializer{
		edges:  edges,
		paths:  paths,
		logger: logger.Named("path-materializer"),
	}
}

var _ PathMaterializer = (*pathMaterializer)(nil)

// workingPath is an in-flight chain during closure expansion.
type workingPath struct {
	nodePath   []uuid.UUID // all nodes on the chain, source first, current end last
	columnPath []string
	confidence float64
}

func (p *workingPath) visits(node uuid.UUID) bool {
	for _, n := range p.nodePath {
		if n == node {
			return true
		}
	}
	return false
}

func (s *pathMaterializer) Refresh(ctx context.Context) (int, error) {
	start := time.Now()

	edges, err := s.edges.ListActive(ctx, nil)
	if err != nil {
		return 0, err
	}

	paths := computeClosure(edges)

	if err := s.paths.ReplaceAll(ctx, paths); err != nil {
		return 0, err
	}

	s.logger.Info("Materialized lineage paths",
		zap.Int("edges", len(edges)),
		zap.Int("paths", len(paths)),
		zap.Duration("duration", time.Since(start)))
	return len(paths), nil
}

func (s *pathMaterializer) GetPathsFrom(ctx context.Context, nodeID uuid.UUID, column string) ([]*models.LineagePath, error) {
	return s.paths.ListBySource(ctx, nodeID, column)
}

func (s *pathMaterializer) GetPathsTo(ctx context.Context, nodeID uuid.UUID, column string) ([]*models.LineagePath, error) {
	return s.paths.ListByTarget(ctx, nodeID, column)
}

// computeClosure expands every active edge into all chains reachable within
// models.MaxPathDepth hops. A chain never revisits a node it already passed
// through, which bounds expansion on cyclic graphs. Chain confidence is the
// minimum edge confidence along it. Chains sharing a (source, target) column
// pair each carry the pair's route count in path_count.
func computeClosure(edges []*models.LineageEdge) []*models.LineagePath {
	bySource := make(map[repositories.ColumnRef][]*models.LineageEdge, len(edges))
	for _, e := range edges {
		key := repositories.ColumnRef{NodeID: e.FromNodeID, Column: e.FromColumnName}
		bySource[key] = append(bySource[key], e)
	}

	// Seed one chain per edge.
	frontier := make([]*workingPath, 0, len(edges))
	for _, e := range edges {
		frontier = append(frontier, &workingPath{
			nodePath:   []uuid.UUID{e.FromNodeID, e.ToNodeID},
			columnPath: []string{e.FromColumnName, e.ToColumnName},
			confidence: e.ConfidenceScore,
		})
	}

	seen := make(map[string]bool)
	var complete []*workingPath
	for _, p := range frontier {
		if !seen[p.routeKey()] {
			seen[p.routeKey()] = true
			complete = append(complete, p)
		}
	}

	for len(frontier) > 0 {
		var next []*workingPath
		for _, p := range frontier {
			if len(p.nodePath)-1 >= models.MaxPathDepth {
				continue
			}
			end := repositories.ColumnRef{
				NodeID: p.nodePath[len(p.nodePath)-1],
				Column: p.columnPath[len(p.columnPath)-1],
			}
			for _, e := range bySource[end] {
				if p.visits(e.ToNodeID) {
					continue
				}
				extended := p.extend(e)
				if seen[extended.routeKey()] {
					continue
				}
				seen[extended.routeKey()] = true
				complete = append(complete, extended)
				next = append(next, extended)
			}
		}
		frontier = next
	}

	// Count distinct routes per (source, target) column pair.
	pairCounts := make(map[string]int, len(complete))
	for _, p := range complete {
		pairCounts[p.pairKey()]++
	}

	now := time.Now()
	result := make([]*models.LineagePath, 0, len(complete))
	for _, p := range complete {
		result = append(result, &models.LineagePath{
			SourceNodeID:   p.nodePath[0],
			SourceColumn:   p.columnPath[0],
			TargetNodeID:   p.nodePath[len(p.nodePath)-1],
			TargetColumn:   p.columnPath[len(p.columnPath)-1],
			PathLength:     len(p.nodePath) - 1,
			NodePath:       p.nodePath,
			ColumnPath:     p.columnPath,
			PathConfidence: p.confidence,
			PathCount:      pairCounts[p.pairKey()],
			ComputedAt:     now,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].PathLength != result[j].PathLength {
			return result[i].PathLength < result[j].PathLength
		}
		return strings.Compare(routeKeyOf(result[i]), routeKeyOf(result[j])) < 0
	})
	return result
}

func (p *workingPath) extend(e *models.LineageEdge) *workingPath {
	nodes := make([]uuid.UUID, len(p.nodePath), len(p.nodePath)+1)
	copy(nodes, p.nodePath)
	cols := make([]string, len(p.columnPath), len(p.columnPath)+1)
	copy(cols, p.columnPath)

	conf := p.confidence
	if e.ConfidenceScore < conf {
		conf = e.ConfidenceScore
	}
	return &workingPath{
		nodePath:   append(nodes, e.ToNodeID),
		columnPath: append(cols, e.ToColumnName),
		confidence: conf,
	}
}

// routeKey uniquely identifies a chain by its full node and column sequence.
func (p *workingPath) routeKey() string {
	var b strings.Builder
	for i := range p.nodePath {
		b.WriteString(p.nodePath[i].String())
		b.WriteByte('.')
		b.WriteString(p.columnPath[i])
		b.WriteByte('>')
	}
	return b.String()
}

// pairKey identifies the (source, target) column pair of a chain.
func (p *workingPath) pairKey() string {
	return p.nodePath[0].String() + "." + p.columnPath[0] + ">" +
		p.nodePath[len(p.nodePath)-1].String() + "." + p.columnPath[len(p.columnPath)-1]
}

func routeKeyOf(p *models.LineagePath) string {
	var b strings.Builder
	for i := range p.NodePath {
		b.WriteString(p.NodePath[i].String())
		b.WriteByte('.')
		b.WriteString(p.ColumnPath[i])
		b.WriteByte('>')
	}
	return b.String()
}
