package models

import (
	"time"

	"github.com/google/uuid"
)

// Evidence sampling defaults.
const (
	DefaultEvidenceSampleSize = 10
	MaxEvidenceSampleSize     = 100
	DefaultEvidenceWindowDays = 30
)

// EvidenceOptions bound a trace-evidence request.
type EvidenceOptions struct {
	SampleSize     int  `json:"sample_size"`
	MaskPII        bool `json:"mask_pii"`
	TimeWindowDays int  `json:"time_window_days"`
}

// SampleRowPair is one matched source/target row pair fetched for human review of a
// lineage edge. Values may already be masked by the sampling service.
type SampleRowPair struct {
	SourceValue string    `json:"source_value"`
	TargetValue string    `json:"target_value"`
	ObservedAt  time.Time `json:"observed_at"`
}

// TraceEvidence is the sample-based verification payload for an edge. Empty Samples
// means no overlapping rows existed in the window, which is success.
type TraceEvidence struct {
	EdgeID     uuid.UUID       `json:"edge_id"`
	SampleSize int             `json:"sample_size"`
	Masked     bool            `json:"masked"`
	WindowDays int             `json:"window_days"`
	Samples    []SampleRowPair `json:"samples"`
}

// JoinStatistics are the raw overlap/cardinality measurements returned by the
// sampling service for a candidate join key.
type JoinStatistics struct {
	SourceRowCount      int64   `json:"source_row_count"`
	TargetRowCount      int64   `json:"target_row_count"`
	SourceDistinctCount int64   `json:"source_distinct_count"`
	TargetDistinctCount int64   `json:"target_distinct_count"`
	OverlapCount        int64   `json:"overlap_count"`
	OverlapRatio        float64 `json:"overlap_ratio"`
}

// JoinValidation is the pre-flight estimate of join-key validity between two tables.
type JoinValidation struct {
	SourceTable string          `json:"source_table"`
	TargetTable string          `json:"target_table"`
	JoinColumn  string          `json:"join_column"`
	Valid       bool            `json:"valid"`
	Cardinality string          `json:"cardinality"` // "1:1", "1:N", "N:1", "N:M"
	Statistics  *JoinStatistics `json:"statistics,omitempty"`
}
