package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/models"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/services"
)

// ConnectionHandler serves human-asserted lineage: manual connections, edge
// evidence sampling and join-key pre-flight validation.
type ConnectionHandler struct {
	connections services.ManualConnectionService
	logger      *zap.Logger
}

// NewConnectionHandler creates a new connection handler.
func NewConnectionHandler(connections services.ManualConnectionService, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{connections: connections, logger: logger}
}

// RegisterRoutes registers the connection handler's routes on the given mux.
func (h *ConnectionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/lineage/connections", h.CreateManualConnection)
	mux.HandleFunc("GET /api/lineage/edges/{eid}/evidence", h.GetTraceEvidence)
	mux.HandleFunc("POST /api/lineage/join-validation", h.ValidateJoin)
}

// CreateManualConnectionRequest asserts a manual lineage edge between two URNs.
type CreateManualConnectionRequest struct {
	SourceURN        string         `json:"source_urn"`
	TargetURN        string         `json:"target_urn"`
	RelationshipType string         `json:"relationship_type,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// CreateManualConnectionResponse returns the written edge at whichever grain
// the URNs resolved to.
type CreateManualConnectionResponse struct {
	ColumnEdge *models.LineageEdge `json:"column_edge,omitempty"`
	AssetEdge  *models.AssetEdge   `json:"asset_edge,omitempty"`
}

// CreateManualConnection handles POST /api/lineage/connections.
func (h *ConnectionHandler) CreateManualConnection(w http.ResponseWriter, r *http.Request) {
	var req CreateManualConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	columnEdge, assetEdge, err := h.connections.CreateManualConnection(
		r.Context(), req.SourceURN, req.TargetURN, req.RelationshipType, req.Metadata)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	response := CreateManualConnectionResponse{ColumnEdge: columnEdge, AssetEdge: assetEdge}
	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetTraceEvidence handles GET /api/lineage/edges/{eid}/evidence.
// Query parameters: sample_size, mask_pii, time_window_days.
func (h *ConnectionHandler) GetTraceEvidence(w http.ResponseWriter, r *http.Request) {
	edgeID, ok := ParseEdgeID(w, r, h.logger)
	if !ok {
		return
	}

	opts := models.EvidenceOptions{
		SampleSize:     queryInt(r, "sample_size", 0),
		MaskPII:        queryBool(r, "mask_pii", true),
		TimeWindowDays: queryInt(r, "time_window_days", 0),
	}

	evidence, err := h.connections.GetTraceEvidence(r.Context(), edgeID, opts)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: evidence}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ValidateJoinRequest names a candidate join key between two tables.
type ValidateJoinRequest struct {
	SourceTable string `json:"source_table"`
	TargetTable string `json:"target_table"`
	JoinColumn  string `json:"join_column"`
}

// ValidateJoin handles POST /api/lineage/join-validation.
func (h *ConnectionHandler) ValidateJoin(w http.ResponseWriter, r *http.Request) {
	var req ValidateJoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	validation, err := h.connections.ValidateJoin(r.Context(), req.SourceTable, req.TargetTable, req.JoinColumn)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: validation}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
