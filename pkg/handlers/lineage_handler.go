package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/models"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/services"
)

// LineageHandler serves the read side of the lineage graph: traces, the
// composed graph, impact analysis, one-hop summaries and stats, plus the
// explicit refresh trigger.
type LineageHandler struct {
	tracer       services.LineageTracer
	composer     services.GraphComposer
	aggregator   services.ImpactAggregator
	materializer services.PathMaterializer
	scheduler    *services.RefreshScheduler
	logger       *zap.Logger
}

// NewLineageHandler creates a new lineage handler.
func NewLineageHandler(
	tracer services.LineageTracer,
	composer services.GraphComposer,
	aggregator services.ImpactAggregator,
	materializer services.PathMaterializer,
	scheduler *services.RefreshScheduler,
	logger *zap.Logger,
) *LineageHandler {
	return &LineageHandler{
		tracer:       tracer,
		composer:     composer,
		aggregator:   aggregator,
		materializer: materializer,
		scheduler:    scheduler,
		logger:       logger,
	}
}

// RegisterRoutes registers the lineage handler's routes on the given mux.
func (h *LineageHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/lineage/columns/{nid}/{column}", h.GetColumnLineage)
	mux.HandleFunc("GET /api/lineage/columns/{nid}/{column}/impact-summary", h.GetColumnImpactSummary)
	mux.HandleFunc("GET /api/lineage/columns/{nid}/{column}/paths", h.GetColumnPaths)
	mux.HandleFunc("GET /api/lineage/graph", h.GetGraph)
	mux.HandleFunc("GET /api/lineage/impact/{nid}", h.AnalyzeImpact)
	mux.HandleFunc("GET /api/lineage/stats", h.GetStats)
	mux.HandleFunc("POST /api/lineage/refresh", h.Refresh)
}

// GetColumnLineage handles GET /api/lineage/columns/{nid}/{column}.
// Query parameters: direction (upstream|downstream|both, default both), depth.
func (h *LineageHandler) GetColumnLineage(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := ParseNodeID(w, r, h.logger)
	if !ok {
		return
	}
	column := r.PathValue("column")
	depth := queryInt(r, "depth", 0)

	var data any
	var err error
	switch r.URL.Query().Get("direction") {
	case models.TraceUpstream:
		data, err = h.tracer.TraceUpstream(r.Context(), nodeID, column, depth)
	case models.TraceDownstream:
		data, err = h.tracer.TraceDownstream(r.Context(), nodeID, column, depth)
	default:
		data, err = h.tracer.GetColumnLineage(r.Context(), nodeID, column, depth)
	}
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: data}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetColumnImpactSummary handles GET /api/lineage/columns/{nid}/{column}/impact-summary.
// This is the one-hop materialized summary, distinct from multi-hop impact.
func (h *LineageHandler) GetColumnImpactSummary(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := ParseNodeID(w, r, h.logger)
	if !ok {
		return
	}

	summary, err := h.aggregator.GetColumnImpactSummary(r.Context(), nodeID, r.PathValue("column"))
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: summary}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetColumnPaths handles GET /api/lineage/columns/{nid}/{column}/paths.
// Query parameters: direction (from|to, default from).
func (h *LineageHandler) GetColumnPaths(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := ParseNodeID(w, r, h.logger)
	if !ok {
		return
	}
	column := r.PathValue("column")

	var paths []*models.LineagePath
	var err error
	if r.URL.Query().Get("direction") == "to" {
		paths, err = h.materializer.GetPathsTo(r.Context(), nodeID, column)
	} else {
		paths, err = h.materializer.GetPathsFrom(r.Context(), nodeID, column)
	}
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if paths == nil {
		paths = []*models.LineagePath{}
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: paths}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetGraph handles GET /api/lineage/graph.
// Query parameters: data_source_id, max_depth, include_metadata, limit.
func (h *LineageHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	dataSourceID, ok := queryUUID(r, "data_source_id")
	if !ok {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_data_source_id", "Invalid data source ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	filters := models.GraphFilters{
		DataSourceID:    dataSourceID,
		MaxDepth:        queryInt(r, "max_depth", models.DefaultGraphDepth),
		IncludeMetadata: queryBool(r, "include_metadata", false),
		Limit:           queryInt(r, "limit", 0),
	}

	graph, err := h.composer.GetGraph(r.Context(), filters)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: graph}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// AnalyzeImpact handles GET /api/lineage/impact/{nid}.
// Query parameters: depth. This is multi-hop downstream reachability.
func (h *LineageHandler) AnalyzeImpact(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := ParseNodeID(w, r, h.logger)
	if !ok {
		return
	}

	analysis, err := h.composer.AnalyzeImpact(r.Context(), nodeID, queryInt(r, "depth", 0))
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: analysis}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetStats handles GET /api/lineage/stats.
// Query parameters: data_source_id.
func (h *LineageHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	dataSourceID, ok := queryUUID(r, "data_source_id")
	if !ok {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_data_source_id", "Invalid data source ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	stats, err := h.composer.GetLineageStats(r.Context(), dataSourceID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: stats}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Refresh handles POST /api/lineage/refresh, triggering an immediate rebuild
// of the materialized paths and impact summaries.
func (h *LineageHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.RefreshNow(r.Context()); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "lineage refresh completed"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
