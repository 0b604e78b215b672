package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/apperrors"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/models"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/services"
)

// mockEdgeService implements services.EdgeService for handler testing.
type mockEdgeService struct {
	edges      map[uuid.UUID]*models.LineageEdge
	upsertErr  error
	ingestErr  error
	deleteErr  error
	statusErr  error
	bulkEdges  int
	lastStatus string
}

var _ services.EdgeService = (*mockEdgeService)(nil)

func newMockEdgeService() *mockEdgeService {
	return &mockEdgeService{edges: map[uuid.UUID]*models.LineageEdge{}}
}

func (m *mockEdgeService) UpsertEdge(_ context.Context, edge *models.LineageEdge) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if edge.ID == uuid.Nil {
		edge.ID = uuid.New()
	}
	edge.IsActive = true
	m.edges[edge.ID] = edge
	return nil
}

func (m *mockEdgeService) BulkIngest(_ context.Context, edges []*models.LineageEdge) error {
	if m.ingestErr != nil {
		return m.ingestErr
	}
	m.bulkEdges = len(edges)
	return nil
}

func (m *mockEdgeService) SoftDeleteEdge(_ context.Context, _ uuid.UUID) error {
	return m.deleteErr
}

func (m *mockEdgeService) SetValidationStatus(_ context.Context, _ uuid.UUID, status, _ string, _ *string) error {
	if m.statusErr != nil {
		return m.statusErr
	}
	m.lastStatus = status
	return nil
}

func (m *mockEdgeService) GetEdge(_ context.Context, id uuid.UUID) (*models.LineageEdge, error) {
	edge, ok := m.edges[id]
	if !ok {
		return nil, fmt.Errorf("lineage edge %s: %w", id, apperrors.ErrNotFound)
	}
	return edge, nil
}

func edgeRequestWithID(method, path string, body []byte, edgeID uuid.UUID) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.SetPathValue("eid", edgeID.String())
	return req
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) ApiResponse {
	t.Helper()
	var resp ApiResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func TestEdgeHandler_UpsertEdge_Success(t *testing.T) {
	svc := newMockEdgeService()
	handler := NewEdgeHandler(svc, zap.NewNop())

	body := fmt.Sprintf(`{
		"from_node_id": %q, "from_column_name": "email",
		"to_node_id": %q, "to_column_name": "user_email",
		"transformation_type": "direct", "confidence_score": 0.9,
		"discovered_by": "parser"
	}`, uuid.New(), uuid.New())

	req := httptest.NewRequest("POST", "/api/lineage/edges", strings.NewReader(body))
	rr := httptest.NewRecorder()

	handler.UpsertEdge(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeResponse(t, rr)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.NotEmpty(t, data["id"], "upsert assigns an id")
	assert.Len(t, svc.edges, 1)
}

func TestEdgeHandler_UpsertEdge_InvalidBody(t *testing.T) {
	handler := NewEdgeHandler(newMockEdgeService(), zap.NewNop())

	req := httptest.NewRequest("POST", "/api/lineage/edges", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()

	handler.UpsertEdge(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "invalid_body", body["error"])
}

func TestEdgeHandler_UpsertEdge_ValidationFailure(t *testing.T) {
	svc := newMockEdgeService()
	svc.upsertErr = fmt.Errorf("%w: confidence_score 1.5 out of range [0,1]", apperrors.ErrValidation)
	handler := NewEdgeHandler(svc, zap.NewNop())

	req := httptest.NewRequest("POST", "/api/lineage/edges", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()

	handler.UpsertEdge(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "validation_failed", body["error"])
}

func TestEdgeHandler_BulkIngest_Success(t *testing.T) {
	svc := newMockEdgeService()
	handler := NewEdgeHandler(svc, zap.NewNop())

	body := fmt.Sprintf(`{"edges": [
		{"from_node_id": %q, "from_column_name": "a", "to_node_id": %q, "to_column_name": "b",
		 "transformation_type": "direct", "confidence_score": 1, "discovered_by": "parser"},
		{"from_node_id": %q, "from_column_name": "c", "to_node_id": %q, "to_column_name": "d",
		 "transformation_type": "direct", "confidence_score": 1, "discovered_by": "parser"}
	]}`, uuid.New(), uuid.New(), uuid.New(), uuid.New())

	req := httptest.NewRequest("POST", "/api/lineage/edges/bulk", strings.NewReader(body))
	rr := httptest.NewRecorder()

	handler.BulkIngest(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeResponse(t, rr)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(2), data["ingested"])
	assert.Equal(t, 2, svc.bulkEdges)
}

func TestEdgeHandler_BulkIngest_RejectedBatch(t *testing.T) {
	svc := newMockEdgeService()
	svc.ingestErr = fmt.Errorf("%w: edge 1: from_column_name and to_column_name are required", apperrors.ErrValidation)
	handler := NewEdgeHandler(svc, zap.NewNop())

	req := httptest.NewRequest("POST", "/api/lineage/edges/bulk", strings.NewReader(`{"edges": [{}]}`))
	rr := httptest.NewRecorder()

	handler.BulkIngest(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Contains(t, body["message"], "edge 1")
}

func TestEdgeHandler_GetEdge_Success(t *testing.T) {
	svc := newMockEdgeService()
	edge := &models.LineageEdge{
		ID:                 uuid.New(),
		FromNodeID:         uuid.New(),
		FromColumnName:     "id",
		ToNodeID:           uuid.New(),
		ToColumnName:       "ref",
		TransformationType: models.TransformationDirect,
		DiscoveredBy:       models.DiscoveredByParser,
	}
	svc.edges[edge.ID] = edge
	handler := NewEdgeHandler(svc, zap.NewNop())

	req := edgeRequestWithID("GET", "/api/lineage/edges/"+edge.ID.String(), nil, edge.ID)
	rr := httptest.NewRecorder()

	handler.GetEdge(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeResponse(t, rr)
	data := resp.Data.(map[string]any)
	assert.Equal(t, edge.ID.String(), data["id"])
}

func TestEdgeHandler_GetEdge_NotFound(t *testing.T) {
	handler := NewEdgeHandler(newMockEdgeService(), zap.NewNop())

	missing := uuid.New()
	req := edgeRequestWithID("GET", "/api/lineage/edges/"+missing.String(), nil, missing)
	rr := httptest.NewRecorder()

	handler.GetEdge(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "not_found", body["error"])
}

func TestEdgeHandler_GetEdge_InvalidID(t *testing.T) {
	handler := NewEdgeHandler(newMockEdgeService(), zap.NewNop())

	req := httptest.NewRequest("GET", "/api/lineage/edges/not-a-uuid", nil)
	req.SetPathValue("eid", "not-a-uuid")
	rr := httptest.NewRecorder()

	handler.GetEdge(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "invalid_edge_id", body["error"])
}

func TestEdgeHandler_SoftDeleteEdge_Success(t *testing.T) {
	handler := NewEdgeHandler(newMockEdgeService(), zap.NewNop())

	edgeID := uuid.New()
	req := edgeRequestWithID("DELETE", "/api/lineage/edges/"+edgeID.String(), nil, edgeID)
	rr := httptest.NewRecorder()

	handler.SoftDeleteEdge(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeResponse(t, rr)
	assert.True(t, resp.Success)
	assert.Equal(t, "edge deactivated", resp.Message)
}

func TestEdgeHandler_SetValidationStatus_Success(t *testing.T) {
	svc := newMockEdgeService()
	handler := NewEdgeHandler(svc, zap.NewNop())

	edgeID := uuid.New()
	body := []byte(`{"status": "validated", "validator": "analyst@example.com"}`)
	req := edgeRequestWithID("PUT", "/api/lineage/edges/"+edgeID.String()+"/validation", body, edgeID)
	rr := httptest.NewRecorder()

	handler.SetValidationStatus(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.ValidationValidated, svc.lastStatus)
}

func TestEdgeHandler_SetValidationStatus_InvalidBody(t *testing.T) {
	handler := NewEdgeHandler(newMockEdgeService(), zap.NewNop())

	edgeID := uuid.New()
	req := edgeRequestWithID("PUT", "/api/lineage/edges/"+edgeID.String()+"/validation", []byte("nope"), edgeID)
	rr := httptest.NewRecorder()

	handler.SetValidationStatus(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
