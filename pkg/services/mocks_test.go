package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/apperrors"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/models"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/repositories"
)

// mockEdgeRepo is an in-memory repositories.LineageEdgeRepository.
type mockEdgeRepo struct {
	edges []*models.LineageEdge

	upsertErr error
	listErr   error
	getErr    error
}

var _ repositories.LineageEdgeRepository = (*mockEdgeRepo)(nil)

func (m *mockEdgeRepo) Upsert(_ context.Context, edge *models.LineageEdge) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, e := range m.edges {
		if e.Key() == edge.Key() {
			edge.ID = e.ID
			*e = *edge
			e.IsActive = true
			e.DeletedAt = nil
			return nil
		}
	}
	if edge.ID == uuid.Nil {
		edge.ID = uuid.New()
	}
	edge.IsActive = true
	stored := *edge
	m.edges = append(m.edges, &stored)
	return nil
}

func (m *mockEdgeRepo) UpsertBatch(ctx context.Context, edges []*models.LineageEdge) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, e := range edges {
		if err := m.Upsert(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockEdgeRepo) GetByID(_ context.Context, id uuid.UUID) (*models.LineageEdge, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, e := range m.edges {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("edge %s: %w", id, apperrors.ErrNotFound)
}

func (m *mockEdgeRepo) GetByKey(_ context.Context, key models.EdgeKey) (*models.LineageEdge, error) {
	for _, e := range m.edges {
		if e.Key() == key {
			return e, nil
		}
	}
	return nil, fmt.Errorf("edge: %w", apperrors.ErrNotFound)
}

func (m *mockEdgeRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	for _, e := range m.edges {
		if e.ID == id && e.IsActive {
			now := time.Now()
			e.IsActive = false
			e.DeletedAt = &now
			return nil
		}
	}
	return fmt.Errorf("edge %s: %w", id, apperrors.ErrNotFound)
}

func (m *mockEdgeRepo) SetValidationStatus(_ context.Context, id uuid.UUID, status, validator string, notes *string) error {
	for _, e := range m.edges {
		if e.ID == id && e.IsActive {
			now := time.Now()
			e.ValidationStatus = status
			e.ValidatedBy = &validator
			e.ValidationNotes = notes
			e.LastValidatedAt = &now
			return nil
		}
	}
	return fmt.Errorf("edge %s: %w", id, apperrors.ErrNotFound)
}

func (m *mockEdgeRepo) ListActive(_ context.Context, dataSourceID *uuid.UUID) ([]*models.LineageEdge, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*models.LineageEdge
	for _, e := range m.edges {
		if !e.IsActive {
			continue
		}
		if dataSourceID != nil && (e.DataSourceID == nil || *e.DataSourceID != *dataSourceID) {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func (m *mockEdgeRepo) ListActiveBySources(_ context.Context, refs []repositories.ColumnRef) ([]*models.LineageEdge, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	want := make(map[repositories.ColumnRef]bool, len(refs))
	for _, r := range refs {
		want[r] = true
	}
	var result []*models.LineageEdge
	for _, e := range m.edges {
		if e.IsActive && want[repositories.ColumnRef{NodeID: e.FromNodeID, Column: e.FromColumnName}] {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEdgeRepo) ListActiveByTargets(_ context.Context, refs []repositories.ColumnRef) ([]*models.LineageEdge, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	want := make(map[repositories.ColumnRef]bool, len(refs))
	for _, r := range refs {
		want[r] = true
	}
	var result []*models.LineageEdge
	for _, e := range m.edges {
		if e.IsActive && want[repositories.ColumnRef{NodeID: e.ToNodeID, Column: e.ToColumnName}] {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEdgeRepo) ListActiveFromNode(_ context.Context, nodeID uuid.UUID) ([]*models.LineageEdge, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*models.LineageEdge
	for _, e := range m.edges {
		if e.IsActive && e.FromNodeID == nodeID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEdgeRepo) NodeKnown(_ context.Context, nodeID uuid.UUID) (bool, error) {
	for _, e := range m.edges {
		if e.FromNodeID == nodeID || e.ToNodeID == nodeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockEdgeRepo) Stats(_ context.Context, dataSourceID *uuid.UUID) (*models.LineageStats, error) {
	stats := &models.LineageStats{
		DataSourceID:      dataSourceID,
		ByTransformation:  map[string]int{},
		ByDiscoveryMethod: map[string]int{},
	}
	nodes := map[uuid.UUID]bool{}
	var confSum float64
	for _, e := range m.edges {
		if !e.IsActive {
			continue
		}
		if dataSourceID != nil && (e.DataSourceID == nil || *e.DataSourceID != *dataSourceID) {
			continue
		}
		stats.EdgeCount++
		confSum += e.ConfidenceScore
		nodes[e.FromNodeID] = true
		nodes[e.ToNodeID] = true
		stats.ByTransformation[e.TransformationType]++
		stats.ByDiscoveryMethod[e.DiscoveredBy]++
	}
	stats.NodeCount = len(nodes)
	if stats.EdgeCount > 0 {
		stats.AvgConfidence = confSum / float64(stats.EdgeCount)
	}
	return stats, nil
}

// mockPathRepo is an in-memory repositories.LineagePathRepository.
type mockPathRepo struct {
	paths        []*models.LineagePath
	replaceCalls int
	replaceErr   error
}

var _ repositories.LineagePathRepository = (*mockPathRepo)(nil)

func (m *mockPathRepo) ReplaceAll(_ context.Context, paths []*models.LineagePath) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.replaceCalls++
	m.paths = paths
	return nil
}

func (m *mockPathRepo) ListBySource(_ context.Context, nodeID uuid.UUID, column string) ([]*models.LineagePath, error) {
	var result []*models.LineagePath
	for _, p := range m.paths {
		if p.SourceNodeID == nodeID && p.SourceColumn == column {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockPathRepo) ListByTarget(_ context.Context, nodeID uuid.UUID, column string) ([]*models.LineagePath, error) {
	var result []*models.LineagePath
	for _, p := range m.paths {
		if p.TargetNodeID == nodeID && p.TargetColumn == column {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockPathRepo) Count(_ context.Context) (int, error) {
	return len(m.paths), nil
}

// mockImpactRepo is an in-memory repositories.ColumnImpactRepository.
type mockImpactRepo struct {
	summaries    []*models.ColumnImpactSummary
	rebuildCalls int
	rebuildErr   error
}

var _ repositories.ColumnImpactRepository = (*mockImpactRepo)(nil)

func (m *mockImpactRepo) RebuildAll(_ context.Context) error {
	if m.rebuildErr != nil {
		return m.rebuildErr
	}
	m.rebuildCalls++
	return nil
}

func (m *mockImpactRepo) GetByColumn(_ context.Context, nodeID uuid.UUID, column string) (*models.ColumnImpactSummary, error) {
	for _, s := range m.summaries {
		if s.NodeID == nodeID && s.ColumnName == column {
			return s, nil
		}
	}
	return nil, fmt.Errorf("impact summary: %w", apperrors.ErrNotFound)
}

func (m *mockImpactRepo) ListByNode(_ context.Context, nodeID uuid.UUID) ([]*models.ColumnImpactSummary, error) {
	var result []*models.ColumnImpactSummary
	for _, s := range m.summaries {
		if s.NodeID == nodeID {
			result = append(result, s)
		}
	}
	return result, nil
}

// mockAssetEdgeRepo is an in-memory repositories.AssetEdgeRepository.
type mockAssetEdgeRepo struct {
	edges     []*models.AssetEdge
	upsertErr error
}

var _ repositories.AssetEdgeRepository = (*mockAssetEdgeRepo)(nil)

func (m *mockAssetEdgeRepo) Upsert(_ context.Context, edge *models.AssetEdge) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, e := range m.edges {
		if e.FromNodeID == edge.FromNodeID && e.ToNodeID == edge.ToNodeID && e.EdgeType == edge.EdgeType {
			edge.ID = e.ID
			*e = *edge
			e.IsActive = true
			return nil
		}
	}
	if edge.ID == uuid.Nil {
		edge.ID = uuid.New()
	}
	edge.IsActive = true
	stored := *edge
	m.edges = append(m.edges, &stored)
	return nil
}

func (m *mockAssetEdgeRepo) ListActive(_ context.Context) ([]*models.AssetEdge, error) {
	var result []*models.AssetEdge
	for _, e := range m.edges {
		if e.IsActive {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockAssetEdgeRepo) ListActiveTouchingNode(_ context.Context, nodeID uuid.UUID) ([]*models.AssetEdge, error) {
	var result []*models.AssetEdge
	for _, e := range m.edges {
		if e.IsActive && (e.FromNodeID == nodeID || e.ToNodeID == nodeID) {
			result = append(result, e)
		}
	}
	return result, nil
}

// mockRefreshStateRepo is an in-memory repositories.RefreshStateRepository.
type mockRefreshStateRepo struct {
	state      models.RefreshState
	touchCalls int
	touchErr   error
}

var _ repositories.RefreshStateRepository = (*mockRefreshStateRepo)(nil)

func (m *mockRefreshStateRepo) Get(_ context.Context) (*models.RefreshState, error) {
	state := m.state
	return &state, nil
}

func (m *mockRefreshStateRepo) TouchEdgeWrite(_ context.Context) error {
	if m.touchErr != nil {
		return m.touchErr
	}
	m.touchCalls++
	now := time.Now()
	m.state.LastEdgeWriteAt = &now
	return nil
}

// mockRegistry is an in-memory NodeRegistry keyed by URN and node id.
type mockRegistry struct {
	nodes []*models.CatalogNode
}

var _ NodeRegistry = (*mockRegistry)(nil)

func (m *mockRegistry) ResolveURN(_ context.Context, urn string) (*models.CatalogNode, error) {
	for _, n := range m.nodes {
		if n.URN == urn {
			return n, nil
		}
	}
	return nil, fmt.Errorf("urn %q: %w", urn, apperrors.ErrUnresolvedURN)
}

func (m *mockRegistry) GetNode(_ context.Context, nodeID uuid.UUID) (*models.CatalogNode, error) {
	for _, n := range m.nodes {
		if n.ID == nodeID {
			return n, nil
		}
	}
	return nil, fmt.Errorf("node %s: %w", nodeID, apperrors.ErrNotFound)
}

// mockSampleProvider is a canned SampleProvider.
type mockSampleProvider struct {
	samples    []models.SampleRowPair
	stats      *models.JoinStatistics
	sampleErr  error
	statsErr   error
	lastSample SampleRequest
}

var _ SampleProvider = (*mockSampleProvider)(nil)

func (m *mockSampleProvider) SampleColumnPairs(_ context.Context, req SampleRequest) ([]models.SampleRowPair, error) {
	if m.sampleErr != nil {
		return nil, m.sampleErr
	}
	m.lastSample = req
	return m.samples, nil
}

func (m *mockSampleProvider) JoinStatistics(_ context.Context, _, _, _ string) (*models.JoinStatistics, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.stats, nil
}
