package models

import "github.com/google/uuid"

// Trace directions.
const (
	TraceUpstream   = "upstream"
	TraceDownstream = "downstream"
)

// DefaultTraceDepth is the default hop bound for on-demand traces.
const DefaultTraceDepth = 5

// TraceStep is one column reached during an on-demand trace. Level counts hops from
// the query root, ascending.
type TraceStep struct {
	Level              int       `json:"level"`
	NodeID             uuid.UUID `json:"node_id"`
	ColumnName         string    `json:"column_name"`
	TransformationType string    `json:"transformation_type"`
	TransformationSQL  *string   `json:"transformation_sql,omitempty"`
	Confidence         float64   `json:"confidence"`
}

// TraceResult is an ordered on-demand traversal result. Truncated is set when the
// depth cap was reached with unexplored frontier remaining; it is metadata on a
// successful response, never an error. An empty Steps slice means the starting
// column has no lineage in the requested direction.
type TraceResult struct {
	Direction string      `json:"direction"`
	RootNode  uuid.UUID   `json:"root_node"`
	RootCol   string      `json:"root_column"`
	MaxDepth  int         `json:"max_depth"`
	Steps     []TraceStep `json:"steps"`
	Truncated bool        `json:"truncated"`
}

// ColumnLineage is the combined read surface for a single column: its upstream and
// downstream traces in one response.
type ColumnLineage struct {
	NodeID     uuid.UUID    `json:"node_id"`
	ColumnName string       `json:"column_name"`
	Upstream   *TraceResult `json:"upstream"`
	Downstream *TraceResult `json:"downstream"`
}
