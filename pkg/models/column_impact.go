package models

import (
	"time"

	"github.com/google/uuid"
)

// ColumnImpactSummary is the materialized one-hop downstream aggregate for a single
// column. It is strictly direct (single edge) impact; multi-hop reachability is the
// ImpactAnalysis produced by the graph composer.
type ColumnImpactSummary struct {
	NodeID                uuid.UUID `json:"node_id"`
	ColumnName            string    `json:"column_name"`
	DownstreamNodeCount   int       `json:"downstream_node_count"`
	DownstreamColumnCount int       `json:"downstream_column_count"`
	EdgeCount             int       `json:"edge_count"`
	AvgConfidence         float64   `json:"avg_confidence"`
	MinConfidence         float64   `json:"min_confidence"`
	TransformationTypes   []string  `json:"transformation_types"`
	LastEdgeUpdate        time.Time `json:"last_edge_update"`
	ComputedAt            time.Time `json:"computed_at"`
}
