package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/apperrors"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/models"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/repositories"
)

// NodeRegistry resolves opaque node identities against the external catalog.
type NodeRegistry interface {
	// ResolveURN resolves a URN to a catalog node. Returns an error wrapping
	// apperrors.ErrUnresolvedURN when the URN is unknown.
	ResolveURN(ctx context.Context, urn string) (*models.CatalogNode, error)
	// GetNode resolves a node id. Returns an error wrapping
	// apperrors.ErrNotFound when the id is unknown.
	GetNode(ctx context.Context, nodeID uuid.UUID) (*models.CatalogNode, error)
}

// GraphComposer unifies asset-level and column-level lineage into one queryable
// graph and answers multi-hop impact and aggregate stat queries over it.
type GraphComposer interface {
	// GetGraph returns a bounded composed graph. A known node with no lineage
	// yields an empty graph, which is success.
	GetGraph(ctx context.Context, filters models.GraphFilters) (*models.LineageGraph, error)
	// AnalyzeImpact returns every column reachable downstream of the node
	// within depth hops, with hop count and weakest-link confidence. Unknown
	// node ids fail with apperrors.ErrNotFound; a known node with no
	// downstream lineage yields an empty result.
	AnalyzeImpact(ctx context.Context, nodeID uuid.UUID, depth int) (*models.ImpactAnalysis, error)
	// GetLineageStats returns aggregate edge/node counts, optionally scoped to
	// a data source, plus freshness of the materialized sets.
	GetLineageStats(ctx context.Context, dataSourceID *uuid.UUID) (*models.LineageStats, error)
}

type graphComposer struct {
	edges        repositories.LineageEdgeRepository
	assetEdges   repositories.AssetEdgeRepository
	refreshState repositories.RefreshStateRepository
	registry     NodeRegistry
	cfg          ComposerConfig
	logger       *zap.Logger
}

// ComposerConfig bounds composed graph responses.
type ComposerConfig struct {
	DefaultDepth int
	MaxDepth     int
	NodeLimit    int
}

// NewGraphComposer creates a new GraphComposer.
func NewGraphComposer(
	edges repositories.LineageEdgeRepository,
	assetEdges repositories.AssetEdgeRepository,
	refreshState repositories.RefreshStateRepository,
	registry NodeRegistry,
	cfg ComposerConfig,
	logger *zap.Logger,
) GraphComposer {
	if cfg.DefaultDepth <= 0 {
		cfg.DefaultDepth = models.DefaultGraphDepth
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = models.MaxPathDepth
	}
	if cfg.NodeLimit <= 0 {
		cfg.NodeLimit = models.DefaultGraphLimit
	}
	return &graphComposer{
		edges:        edges,
		assetEdges:   assetEdges,
		refreshState: refreshState,
		registry:     registry,
		cfg:          cfg,
		logger:       logger.Named("graph-composer"),
	}
}

var _ GraphComposer = (*graphComposer)(nil)

// nodePair keys edges by their asset endpoints.
type nodePair struct {
	from uuid.UUID
	to   uuid.UUID
}

func (s *graphComposer) GetGraph(ctx context.Context, filters models.GraphFilters) (*models.LineageGraph, error) {
	if filters.Limit <= 0 || filters.Limit > s.cfg.NodeLimit {
		filters.Limit = s.cfg.NodeLimit
	}
	if filters.MaxDepth <= 0 {
		filters.MaxDepth = s.cfg.DefaultDepth
	}
	if filters.MaxDepth > s.cfg.MaxDepth {
		filters.MaxDepth = s.cfg.MaxDepth
	}

	columnEdges, err := s.edges.ListActive(ctx, filters.DataSourceID)
	if err != nil {
		return nil, err
	}

	// Asset edges carry no data source; they only participate in unscoped graphs.
	var assetEdges []*models.AssetEdge
	if filters.DataSourceID == nil {
		assetEdges, err = s.assetEdges.ListActive(ctx)
		if err != nil {
			return nil, err
		}
	}

	graph := composeGraph(columnEdges, assetEdges, filters)
	return graph, nil
}

// composeGraph merges both grains, one edge per asset pair. Column detail wins:
// a pair covered by column edges is emitted at column grain, annotated with
// every column pair it summarizes; the coarse asset edge for that pair is
// collapsed into it. Limit caps nodes plus edges.
func composeGraph(columnEdges []*models.LineageEdge, assetEdges []*models.AssetEdge, filters models.GraphFilters) *models.LineageGraph {
	byPair := make(map[nodePair][]*models.LineageEdge)
	for _, e := range columnEdges {
		key := nodePair{from: e.FromNodeID, to: e.ToNodeID}
		byPair[key] = append(byPair[key], e)
	}

	nodeColumns := make(map[uuid.UUID]map[string]bool)
	touch := func(id uuid.UUID, cols ...string) {
		if nodeColumns[id] == nil {
			nodeColumns[id] = make(map[string]bool)
		}
		for _, c := range cols {
			nodeColumns[id][c] = true
		}
	}

	var edges []models.GraphEdge
	pairs := make([]nodePair, 0, len(byPair))
	for pair := range byPair {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].from != pairs[j].from {
			return pairs[i].from.String() < pairs[j].from.String()
		}
		return pairs[i].to.String() < pairs[j].to.String()
	})

	for _, pair := range pairs {
		group := byPair[pair]
		edge := models.GraphEdge{
			FromNodeID: pair.from,
			ToNodeID:   pair.to,
			Grain:      models.GrainColumn,
			Confidence: 1,
		}
		for _, e := range group {
			touch(e.FromNodeID, e.FromColumnName)
			touch(e.ToNodeID, e.ToColumnName)
			if e.ConfidenceScore < edge.Confidence {
				edge.Confidence = e.ConfidenceScore
			}
			edge.ColumnPairs = append(edge.ColumnPairs,
				fmt.Sprintf("%s -> %s", e.FromColumnName, e.ToColumnName))
		}
		sort.Strings(edge.ColumnPairs)
		if len(group) == 1 {
			edge.FromColumnName = group[0].FromColumnName
			edge.ToColumnName = group[0].ToColumnName
			edge.TransformationType = group[0].TransformationType
			if filters.IncludeMetadata {
				edge.Metadata = group[0].Metadata
			}
		}
		edges = append(edges, edge)
	}

	for _, ae := range assetEdges {
		if _, covered := byPair[nodePair{from: ae.FromNodeID, to: ae.ToNodeID}]; covered {
			continue
		}
		touch(ae.FromNodeID)
		touch(ae.ToNodeID)
		edge := models.GraphEdge{
			FromNodeID: ae.FromNodeID,
			ToNodeID:   ae.ToNodeID,
			Grain:      models.GrainAsset,
			Confidence: 1,
		}
		if filters.IncludeMetadata {
			edge.Metadata = ae.Properties
		}
		edges = append(edges, edge)
	}

	nodes := make([]models.GraphNode, 0, len(nodeColumns))
	for id, cols := range nodeColumns {
		node := models.GraphNode{ID: id}
		for c := range cols {
			node.Columns = append(node.Columns, c)
		}
		sort.Strings(node.Columns)
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID.String() < nodes[j].ID.String() })

	graph := &models.LineageGraph{Nodes: nodes, Edges: edges}
	if graph.Edges == nil {
		graph.Edges = []models.GraphEdge{}
	}

	if filters.MaxDepth > 0 {
		boundToDepth(graph, filters.MaxDepth)
	}

	// Cap total response size: nodes first, then edges touching retained nodes.
	if len(graph.Nodes)+len(graph.Edges) > filters.Limit {
		graph.Truncated = true
		keepNodes := filters.Limit
		if keepNodes > len(graph.Nodes) {
			keepNodes = len(graph.Nodes)
		}
		graph.Nodes = graph.Nodes[:keepNodes]
		retained := make(map[uuid.UUID]bool, keepNodes)
		for _, n := range graph.Nodes {
			retained[n.ID] = true
		}
		budget := filters.Limit - keepNodes
		kept := make([]models.GraphEdge, 0, budget)
		for _, e := range graph.Edges {
			if len(kept) >= budget {
				break
			}
			if retained[e.FromNodeID] && retained[e.ToNodeID] {
				kept = append(kept, e)
			}
		}
		graph.Edges = kept
	}

	return graph
}

// boundToDepth prunes nodes further than maxDepth hops from a graph root,
// along with the edges touching them. Roots are nodes with no incoming edge; a
// component with no root (a cycle) is measured from its first node instead.
// Pruning marks the graph truncated.
func boundToDepth(graph *models.LineageGraph, maxDepth int) {
	if len(graph.Nodes) == 0 {
		return
	}

	outgoing := make(map[uuid.UUID][]uuid.UUID, len(graph.Nodes))
	hasIncoming := make(map[uuid.UUID]bool)
	for _, e := range graph.Edges {
		outgoing[e.FromNodeID] = append(outgoing[e.FromNodeID], e.ToNodeID)
		hasIncoming[e.ToNodeID] = true
	}

	level := make(map[uuid.UUID]int, len(graph.Nodes))
	var frontier []uuid.UUID
	expand := func() {
		for len(frontier) > 0 {
			var next []uuid.UUID
			for _, id := range frontier {
				for _, to := range outgoing[id] {
					if _, seen := level[to]; !seen {
						level[to] = level[id] + 1
						next = append(next, to)
					}
				}
			}
			frontier = next
		}
	}

	for _, n := range graph.Nodes {
		if !hasIncoming[n.ID] {
			level[n.ID] = 0
			frontier = append(frontier, n.ID)
		}
	}
	expand()
	for _, n := range graph.Nodes {
		if _, seen := level[n.ID]; !seen {
			level[n.ID] = 0
			frontier = []uuid.UUID{n.ID}
			expand()
		}
	}

	kept := graph.Nodes[:0]
	for _, n := range graph.Nodes {
		if level[n.ID] <= maxDepth {
			kept = append(kept, n)
		}
	}
	if len(kept) == len(graph.Nodes) {
		return
	}
	graph.Truncated = true
	graph.Nodes = kept

	retained := make(map[uuid.UUID]bool, len(kept))
	for _, n := range kept {
		retained[n.ID] = true
	}
	keptEdges := graph.Edges[:0]
	for _, e := range graph.Edges {
		if retained[e.FromNodeID] && retained[e.ToNodeID] {
			keptEdges = append(keptEdges, e)
		}
	}
	graph.Edges = keptEdges
}

func (s *graphComposer) AnalyzeImpact(ctx context.Context, nodeID uuid.UUID, depth int) (*models.ImpactAnalysis, error) {
	if depth <= 0 {
		depth = s.cfg.DefaultDepth
	}
	if depth > s.cfg.MaxDepth {
		depth = s.cfg.MaxDepth
	}

	analysis := &models.ImpactAnalysis{
		NodeID:   nodeID,
		Depth:    depth,
		Impacted: []models.ImpactedColumn{},
	}

	seeds, err := s.edges.ListActiveFromNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		// Distinguish "unknown node" from "known node without lineage".
		if err := s.checkNodeExists(ctx, nodeID); err != nil {
			return nil, err
		}
		return analysis, nil
	}

	type reach struct {
		hop  int
		conf float64
	}
	// The per-call visited map is both the cycle guard and the result set.
	visited := make(map[repositories.ColumnRef]reach)
	var frontier []repositories.ColumnRef

	for _, e := range seeds {
		ref := repositories.ColumnRef{NodeID: e.ToNodeID, Column: e.ToColumnName}
		if prev, ok := visited[ref]; !ok || e.ConfidenceScore > prev.conf {
			if !ok {
				frontier = append(frontier, ref)
			}
			visited[ref] = reach{hop: 1, conf: e.ConfidenceScore}
		}
	}

	for hop := 2; hop <= depth && len(frontier) > 0; hop++ {
		edges, err := s.edges.ListActiveBySources(ctx, frontier)
		if err != nil {
			return nil, err
		}

		var next []repositories.ColumnRef
		for _, e := range edges {
			from := repositories.ColumnRef{NodeID: e.FromNodeID, Column: e.FromColumnName}
			to := repositories.ColumnRef{NodeID: e.ToNodeID, Column: e.ToColumnName}
			if to.NodeID == nodeID {
				continue
			}
			conf := visited[from].conf
			if e.ConfidenceScore < conf {
				conf = e.ConfidenceScore
			}
			if prev, seen := visited[to]; !seen {
				visited[to] = reach{hop: hop, conf: conf}
				next = append(next, to)
			} else if prev.hop == hop && conf > prev.conf {
				visited[to] = reach{hop: hop, conf: conf}
			}
		}
		frontier = next
	}

	if len(frontier) > 0 {
		// More frontier remained at the depth cap.
		remaining, err := s.edges.ListActiveBySources(ctx, frontier)
		if err != nil {
			return nil, err
		}
		for _, e := range remaining {
			to := repositories.ColumnRef{NodeID: e.ToNodeID, Column: e.ToColumnName}
			if _, seen := visited[to]; !seen && to.NodeID != nodeID {
				analysis.Truncated = true
				break
			}
		}
	}

	for ref, r := range visited {
		analysis.Impacted = append(analysis.Impacted, models.ImpactedColumn{
			NodeID:     ref.NodeID,
			ColumnName: ref.Column,
			HopCount:   r.hop,
			Confidence: r.conf,
		})
	}
	sort.Slice(analysis.Impacted, func(i, j int) bool {
		a, b := analysis.Impacted[i], analysis.Impacted[j]
		if a.HopCount != b.HopCount {
			return a.HopCount < b.HopCount
		}
		if a.NodeID != b.NodeID {
			return a.NodeID.String() < b.NodeID.String()
		}
		return a.ColumnName < b.ColumnName
	})

	return analysis, nil
}

func (s *graphComposer) GetLineageStats(ctx context.Context, dataSourceID *uuid.UUID) (*models.LineageStats, error) {
	stats, err := s.edges.Stats(ctx, dataSourceID)
	if err != nil {
		return nil, err
	}

	state, err := s.refreshState.Get(ctx)
	if err != nil {
		return nil, err
	}
	stats.PathsRefreshedAt = state.PathsRefreshedAt
	stats.ImpactRefreshedAt = state.ImpactRefreshedAt
	stats.Stale = state.PathsStale()
	if stats.Stale {
		s.logger.Warn("Materialized closure is stale relative to last edge write",
			zap.Timep("paths_refreshed_at", state.PathsRefreshedAt),
			zap.Timep("last_edge_write_at", state.LastEdgeWriteAt))
	}

	return stats, nil
}

// checkNodeExists distinguishes an unknown node from a known node without
// lineage: the edge store is consulted first, then the catalog registry.
func (s *graphComposer) checkNodeExists(ctx context.Context, nodeID uuid.UUID) error {
	known, err := s.edges.NodeKnown(ctx, nodeID)
	if err != nil {
		return err
	}
	if known {
		return nil
	}
	if s.registry != nil {
		if _, err := s.registry.GetNode(ctx, nodeID); err != nil {
			return err
		}
		return nil
	}
	return fmt.Errorf("node %s: %w", nodeID, apperrors.ErrNotFound)
}
