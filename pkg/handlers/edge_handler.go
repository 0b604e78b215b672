package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/models"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/services"
)

// EdgeHandler serves the write side of the edge store plus direct edge lookup.
type EdgeHandler struct {
	edgeService services.EdgeService
	logger      *zap.Logger
}

// NewEdgeHandler creates a new edge handler.
func NewEdgeHandler(edgeService services.EdgeService, logger *zap.Logger) *EdgeHandler {
	return &EdgeHandler{edgeService: edgeService, logger: logger}
}

// RegisterRoutes registers the edge handler's routes on the given mux.
func (h *EdgeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/lineage/edges", h.UpsertEdge)
	mux.HandleFunc("POST /api/lineage/edges/bulk", h.BulkIngest)
	mux.HandleFunc("GET /api/lineage/edges/{eid}", h.GetEdge)
	mux.HandleFunc("DELETE /api/lineage/edges/{eid}", h.SoftDeleteEdge)
	mux.HandleFunc("PUT /api/lineage/edges/{eid}/validation", h.SetValidationStatus)
}

// UpsertEdge handles POST /api/lineage/edges.
func (h *EdgeHandler) UpsertEdge(w http.ResponseWriter, r *http.Request) {
	var edge models.LineageEdge
	if err := json.NewDecoder(r.Body).Decode(&edge); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.edgeService.UpsertEdge(r.Context(), &edge); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: edge}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// BulkIngestRequest carries one batch of edges from a single parse or
// inference pass.
type BulkIngestRequest struct {
	Edges []*models.LineageEdge `json:"edges"`
}

// BulkIngestResponse reports how many edges were written.
type BulkIngestResponse struct {
	Ingested int `json:"ingested"`
}

// BulkIngest handles POST /api/lineage/edges/bulk. The batch is transactional:
// either every edge is recorded or none are.
func (h *EdgeHandler) BulkIngest(w http.ResponseWriter, r *http.Request) {
	var req BulkIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.edgeService.BulkIngest(r.Context(), req.Edges); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	response := BulkIngestResponse{Ingested: len(req.Edges)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetEdge handles GET /api/lineage/edges/{eid}. Soft-deleted edges remain
// retrievable here even though they are excluded from traversal.
func (h *EdgeHandler) GetEdge(w http.ResponseWriter, r *http.Request) {
	edgeID, ok := ParseEdgeID(w, r, h.logger)
	if !ok {
		return
	}

	edge, err := h.edgeService.GetEdge(r.Context(), edgeID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: edge}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SoftDeleteEdge handles DELETE /api/lineage/edges/{eid}.
func (h *EdgeHandler) SoftDeleteEdge(w http.ResponseWriter, r *http.Request) {
	edgeID, ok := ParseEdgeID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.edgeService.SoftDeleteEdge(r.Context(), edgeID); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "edge deactivated"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SetValidationStatusRequest updates an edge's human-review outcome.
type SetValidationStatusRequest struct {
	Status    string  `json:"status"`
	Validator string  `json:"validator"`
	Notes     *string `json:"notes,omitempty"`
}

// SetValidationStatus handles PUT /api/lineage/edges/{eid}/validation.
func (h *EdgeHandler) SetValidationStatus(w http.ResponseWriter, r *http.Request) {
	edgeID, ok := ParseEdgeID(w, r, h.logger)
	if !ok {
		return
	}

	var req SetValidationStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.edgeService.SetValidationStatus(r.Context(), edgeID, req.Status, req.Validator, req.Notes); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "validation status updated"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
