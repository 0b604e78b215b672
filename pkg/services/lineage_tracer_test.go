package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/models"
)

func newTestTracer(repo *mockEdgeRepo) LineageTracer {
	return NewLineageTracer(repo, TracerConfig{DefaultDepth: 5, MaxDepth: 10}, zap.NewNop())
}

func TestTracer_DownstreamChain(t *testing.T) {
	t1, t2, t3 := uuid.New(), uuid.New(), uuid.New()
	repo := &mockEdgeRepo{edges: []*models.LineageEdge{
		edgeBetween(t1, "email", t2, "user_email", 0.9),
		edgeBetween(t2, "user_email", t3, "customer_email", 0.8),
	}}
	tracer := newTestTracer(repo)

	result, err := tracer.TraceDownstream(context.Background(), t1, "email", 0)
	require.NoError(t, err)

	assert.Equal(t, models.TraceDownstream, result.Direction)
	assert.False(t, result.Truncated)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, 1, result.Steps[0].Level)
	assert.Equal(t, t2, result.Steps[0].NodeID)
	assert.Equal(t, "user_email", result.Steps[0].ColumnName)
	assert.Equal(t, 2, result.Steps[1].Level)
	assert.Equal(t, t3, result.Steps[1].NodeID)
	assert.Equal(t, "customer_email", result.Steps[1].ColumnName)
}

func TestTracer_UpstreamChain(t *testing.T) {
	t1, t2, t3 := uuid.New(), uuid.New(), uuid.New()
	repo := &mockEdgeRepo{edges: []*models.LineageEdge{
		edgeBetween(t1, "email", t2, "user_email", 0.9),
		edgeBetween(t2, "user_email", t3, "customer_email", 0.8),
	}}
	tracer := newTestTracer(repo)

	result, err := tracer.TraceUpstream(context.Background(), t3, "customer_email", 0)
	require.NoError(t, err)

	require.Len(t, result.Steps, 2)
	assert.Equal(t, t2, result.Steps[0].NodeID)
	assert.Equal(t, t1, result.Steps[1].NodeID)
}

func TestTracer_UnknownColumnYieldsEmptyResult(t *testing.T) {
	repo := &mockEdgeRepo{}
	tracer := newTestTracer(repo)

	result, err := tracer.TraceDownstream(context.Background(), uuid.New(), "nope", 0)
	require.NoError(t, err)

	assert.NotNil(t, result.Steps)
	assert.Empty(t, result.Steps)
	assert.False(t, result.Truncated)
}

func TestTracer_DepthCapSetsTruncated(t *testing.T) {
	// A 12-edge chain traced at the hard cap of 10 stops at level 10 with
	// frontier remaining.
	nodes := make([]uuid.UUID, 13)
	for i := range nodes {
		nodes[i] = uuid.New()
	}
	var edges []*models.LineageEdge
	for i := 0; i+1 < len(nodes); i++ {
		edges = append(edges, edgeBetween(nodes[i], "v", nodes[i+1], "v", 1.0))
	}
	repo := &mockEdgeRepo{edges: edges}
	tracer := newTestTracer(repo)

	result, err := tracer.TraceDownstream(context.Background(), nodes[0], "v", 10)
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	assert.Len(t, result.Steps, 10)
	assert.Equal(t, 10, result.Steps[len(result.Steps)-1].Level)
}

func TestTracer_ShortChainNotTruncated(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	repo := &mockEdgeRepo{edges: []*models.LineageEdge{
		edgeBetween(a, "v", b, "v", 1.0),
	}}
	tracer := newTestTracer(repo)

	result, err := tracer.TraceDownstream(context.Background(), a, "v", 10)
	require.NoError(t, err)

	assert.False(t, result.Truncated)
	assert.Len(t, result.Steps, 1)
}

func TestTracer_CycleTerminates(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	repo := &mockEdgeRepo{edges: []*models.LineageEdge{
		edgeBetween(a, "x", b, "x", 1.0),
		edgeBetween(b, "x", c, "x", 1.0),
		edgeBetween(c, "x", a, "x", 1.0),
	}}
	tracer := newTestTracer(repo)

	result, err := tracer.TraceDownstream(context.Background(), a, "x", 10)
	require.NoError(t, err)

	// b and c are each visited once; the cycle back to a is not re-emitted.
	assert.Len(t, result.Steps, 2)
	assert.False(t, result.Truncated)
}

func TestTracer_CallerDepthIsClamped(t *testing.T) {
	nodes := make([]uuid.UUID, 13)
	for i := range nodes {
		nodes[i] = uuid.New()
	}
	var edges []*models.LineageEdge
	for i := 0; i+1 < len(nodes); i++ {
		edges = append(edges, edgeBetween(nodes[i], "v", nodes[i+1], "v", 1.0))
	}
	repo := &mockEdgeRepo{edges: edges}
	tracer := newTestTracer(repo)

	result, err := tracer.TraceDownstream(context.Background(), nodes[0], "v", 50)
	require.NoError(t, err)

	assert.Equal(t, 10, result.MaxDepth)
	assert.Len(t, result.Steps, 10)
	assert.True(t, result.Truncated)
}

func TestTracer_GetColumnLineageCombinesBothDirections(t *testing.T) {
	t1, t2, t3 := uuid.New(), uuid.New(), uuid.New()
	repo := &mockEdgeRepo{edges: []*models.LineageEdge{
		edgeBetween(t1, "email", t2, "user_email", 0.9),
		edgeBetween(t2, "user_email", t3, "customer_email", 0.8),
	}}
	tracer := newTestTracer(repo)

	lineage, err := tracer.GetColumnLineage(context.Background(), t2, "user_email", 0)
	require.NoError(t, err)

	require.NotNil(t, lineage.Upstream)
	require.NotNil(t, lineage.Downstream)
	assert.Len(t, lineage.Upstream.Steps, 1)
	assert.Equal(t, t1, lineage.Upstream.Steps[0].NodeID)
	assert.Len(t, lineage.Downstream.Steps, 1)
	assert.Equal(t, t3, lineage.Downstream.Steps[0].NodeID)
}

func TestTracer_RepositoryErrorPropagates(t *testing.T) {
	repo := &mockEdgeRepo{listErr: fmt.Errorf("connection reset")}
	tracer := newTestTracer(repo)

	_, err := tracer.TraceDownstream(context.Background(), uuid.New(), "v", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
