package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxPathDepth bounds materialized path length. Chains longer than this are
// truncated at materialization time.
const MaxPathDepth = 10

// LineagePath is a materialized multi-hop lineage chain from a source column to a
// target column. The whole lineage_paths table is rebuilt on each refresh; rows are
// never patched in place.
type LineagePath struct {
	ID             uuid.UUID   `json:"id"`
	SourceNodeID   uuid.UUID   `json:"source_node_id"`
	SourceColumn   string      `json:"source_column"`
	TargetNodeID   uuid.UUID   `json:"target_node_id"`
	TargetColumn   string      `json:"target_column"`
	PathLength     int         `json:"path_length"`
	NodePath       []uuid.UUID `json:"node_path"`
	ColumnPath     []string    `json:"column_path"`
	PathConfidence float64     `json:"path_confidence"` // min edge confidence along the chain
	PathCount      int         `json:"path_count"`      // distinct routes realizing the same source→target pair
	ComputedAt     time.Time   `json:"computed_at"`
}

// RefreshState records when each derived set was last rebuilt, and the last edge
// write, so readers can reason about staleness of the materialized closure.
type RefreshState struct {
	PathsRefreshedAt  *time.Time `json:"paths_refreshed_at,omitempty"`
	ImpactRefreshedAt *time.Time `json:"impact_refreshed_at,omitempty"`
	LastEdgeWriteAt   *time.Time `json:"last_edge_write_at,omitempty"`
}

// PathsStale reports whether the materialized closure predates the last edge write.
func (s *RefreshState) PathsStale() bool {
	if s.LastEdgeWriteAt == nil {
		return false
	}
	return s.PathsRefreshedAt == nil || s.PathsRefreshedAt.Before(*s.LastEdgeWriteAt)
}
