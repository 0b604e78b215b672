package models

import (
	"time"

	"github.com/google/uuid"
)

// Graph composition defaults and caps.
const (
	DefaultGraphDepth = 5
	DefaultGraphLimit = 1000
)

// GraphFilters scope a composed graph request.
type GraphFilters struct {
	DataSourceID    *uuid.UUID `json:"data_source_id,omitempty"`
	MaxDepth        int        `json:"max_depth"`
	IncludeMetadata bool       `json:"include_metadata"`
	Limit           int        `json:"limit"`
}

// GraphNode is a node in the composed graph. Columns lists the column names that
// appear on column-level edges touching this node.
type GraphNode struct {
	ID      uuid.UUID `json:"id"`
	Columns []string  `json:"columns,omitempty"`
}

// GraphEdge is an edge in the composed graph. Grain is "column" or "asset"; an
// asset-grain edge that summarizes column edges carries the collapsed column pairs
// in ColumnPairs.
type GraphEdge struct {
	FromNodeID         uuid.UUID      `json:"from_node_id"`
	FromColumnName     string         `json:"from_column_name,omitempty"`
	ToNodeID           uuid.UUID      `json:"to_node_id"`
	ToColumnName       string         `json:"to_column_name,omitempty"`
	Grain              string         `json:"grain"`
	TransformationType string         `json:"transformation_type,omitempty"`
	Confidence         float64        `json:"confidence"`
	ColumnPairs        []string       `json:"column_pairs,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// Graph grain values.
const (
	GrainColumn = "column"
	GrainAsset  = "asset"
)

// LineageGraph is a bounded, composed view over asset- and column-level lineage.
type LineageGraph struct {
	Nodes     []GraphNode `json:"nodes"`
	Edges     []GraphEdge `json:"edges"`
	Truncated bool        `json:"truncated"`
}

// ImpactedColumn is one column reached by multi-hop downstream impact analysis.
type ImpactedColumn struct {
	NodeID     uuid.UUID `json:"node_id"`
	ColumnName string    `json:"column_name"`
	HopCount   int       `json:"hop_count"`
	Confidence float64   `json:"confidence"` // weakest link along the discovered path
}

// ImpactAnalysis is the multi-hop downstream reachability result for a node. An
// empty Impacted slice for a known node is a valid result, not an error.
type ImpactAnalysis struct {
	NodeID    uuid.UUID        `json:"node_id"`
	Depth     int              `json:"depth"`
	Impacted  []ImpactedColumn `json:"impacted"`
	Truncated bool             `json:"truncated"`
}

// LineageStats are aggregate counts over the edge store, optionally scoped to a
// data source, plus refresh freshness for the derived sets.
type LineageStats struct {
	DataSourceID      *uuid.UUID     `json:"data_source_id,omitempty"`
	EdgeCount         int            `json:"edge_count"`
	NodeCount         int            `json:"node_count"`
	AvgConfidence     float64        `json:"avg_confidence"`
	ByTransformation  map[string]int `json:"by_transformation"`
	ByDiscoveryMethod map[string]int `json:"by_discovery_method"`
	PathsRefreshedAt  *time.Time     `json:"paths_refreshed_at,omitempty"`
	ImpactRefreshedAt *time.Time     `json:"impact_refreshed_at,omitempty"`
	Stale             bool           `json:"stale"`
}
