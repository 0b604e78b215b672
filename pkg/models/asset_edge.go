package models

import (
	"time"

	"github.com/google/uuid"
)

// Asset edge types. Asset edges are coarse, table-grain lineage written by external
// pipelines or by the manual-connection API for asset-grain URNs.
const (
	AssetEdgeTypeDataflow        = "dataflow"
	AssetEdgeTypeManualReference = "manual_reference"
)

// AssetEdge is a directed asset-level (table-grain) lineage edge. Stored in
// asset_lineage_edges and merged with column edges by the graph composer.
type AssetEdge struct {
	ID         uuid.UUID      `json:"id"`
	FromNodeID uuid.UUID      `json:"from_node_id"`
	ToNodeID   uuid.UUID      `json:"to_node_id"`
	EdgeType   string         `json:"edge_type"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedBy  string         `json:"created_by"`
	CreatedAt  time.Time      `json:"created_at"`
	IsActive   bool           `json:"is_active"`
}
