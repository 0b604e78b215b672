package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/apperrors"
)

// Transformation types describe how a source column value becomes a target column value.
const (
	TransformationDirect       = "direct"
	TransformationCalculated   = "calculated"
	TransformationAggregated   = "aggregated"
	TransformationFiltered     = "filtered"
	TransformationJoined       = "joined"
	TransformationConcatenated = "concatenated"
	TransformationCasted       = "casted"
	TransformationDerived      = "derived"
	TransformationUnknown      = "unknown"
)

// Discovery sources for lineage edges.
const (
	DiscoveredByParser           = "parser"
	DiscoveredByManual           = "manual"
	DiscoveredByAIInference      = "ai_inference"
	DiscoveredByExternalPipeline = "external_pipeline"
)

// Validation status values for lineage edges.
const (
	ValidationPending     = "pending"
	ValidationValidated   = "validated"
	ValidationRejected    = "rejected"
	ValidationNeedsReview = "needs_review"
)

var transformationTypes = map[string]bool{
	TransformationDirect:       true,
	TransformationCalculated:   true,
	TransformationAggregated:   true,
	TransformationFiltered:     true,
	TransformationJoined:       true,
	TransformationConcatenated: true,
	TransformationCasted:       true,
	TransformationDerived:      true,
	TransformationUnknown:      true,
}

var discoveryMethods = map[string]bool{
	DiscoveredByParser:           true,
	DiscoveredByManual:           true,
	DiscoveredByAIInference:      true,
	DiscoveredByExternalPipeline: true,
}

var validationStatuses = map[string]bool{
	ValidationPending:     true,
	ValidationValidated:   true,
	ValidationRejected:    true,
	ValidationNeedsReview: true,
}

// ValidTransformationType reports whether t is a known transformation type.
func ValidTransformationType(t string) bool { return transformationTypes[t] }

// ValidDiscoveryMethod reports whether m is a known discovery method.
func ValidDiscoveryMethod(m string) bool { return discoveryMethods[m] }

// ValidValidationStatus reports whether s is a known validation status.
func ValidValidationStatus(s string) bool { return validationStatuses[s] }

// LineageEdge is a directed column-to-column lineage assertion.
// (from_node_id, from_column_name, to_node_id, to_column_name) is unique; re-ingesting
// the same pair updates the existing row. Stored in lineage_edges.
type LineageEdge struct {
	ID                        uuid.UUID      `json:"id"`
	FromNodeID                uuid.UUID      `json:"from_node_id"`
	FromColumnName            string         `json:"from_column_name"`
	FromDataType              *string        `json:"from_data_type,omitempty"`
	ToNodeID                  uuid.UUID      `json:"to_node_id"`
	ToColumnName              string         `json:"to_column_name"`
	ToDataType                *string        `json:"to_data_type,omitempty"`
	TransformationType        string         `json:"transformation_type"`
	TransformationSQL         *string        `json:"transformation_sql,omitempty"`
	TransformationDescription *string        `json:"transformation_description,omitempty"`
	ConfidenceScore           float64        `json:"confidence_score"`
	DataQualityScore          *float64       `json:"data_quality_score,omitempty"`
	DiscoveredBy              string         `json:"discovered_by"`
	DiscoveredAt              time.Time      `json:"discovered_at"`
	LastValidatedAt           *time.Time     `json:"last_validated_at,omitempty"`
	ValidationStatus          string         `json:"validation_status"`
	ValidatedBy               *string        `json:"validated_by,omitempty"`
	ValidationNotes           *string        `json:"validation_notes,omitempty"`
	Metadata                  map[string]any `json:"metadata,omitempty"`
	Tags                      []string       `json:"tags,omitempty"`
	DataSourceID              *uuid.UUID     `json:"data_source_id,omitempty"`
	CreatedBy                 string         `json:"created_by"`
	CreatedAt                 time.Time      `json:"created_at"`
	UpdatedAt                 time.Time      `json:"updated_at"`
	IsActive                  bool           `json:"is_active"`
	DeletedAt                 *time.Time     `json:"deleted_at,omitempty"`
}

// Validate checks the closed enums and score ranges before the edge touches storage.
func (e *LineageEdge) Validate() error {
	if e.FromNodeID == uuid.Nil || e.ToNodeID == uuid.Nil {
		return fmt.Errorf("%w: from_node_id and to_node_id are required", apperrors.ErrValidation)
	}
	if e.FromColumnName == "" || e.ToColumnName == "" {
		return fmt.Errorf("%w: from_column_name and to_column_name are required", apperrors.ErrValidation)
	}
	if e.ConfidenceScore < 0 || e.ConfidenceScore > 1 {
		return fmt.Errorf("%w: confidence_score %v out of range [0,1]", apperrors.ErrValidation, e.ConfidenceScore)
	}
	if e.DataQualityScore != nil && (*e.DataQualityScore < 0 || *e.DataQualityScore > 1) {
		return fmt.Errorf("%w: data_quality_score %v out of range [0,1]", apperrors.ErrValidation, *e.DataQualityScore)
	}
	if !ValidTransformationType(e.TransformationType) {
		return fmt.Errorf("%w: unknown transformation_type %q", apperrors.ErrValidation, e.TransformationType)
	}
	if !ValidDiscoveryMethod(e.DiscoveredBy) {
		return fmt.Errorf("%w: unknown discovered_by %q", apperrors.ErrValidation, e.DiscoveredBy)
	}
	if e.ValidationStatus != "" && !ValidValidationStatus(e.ValidationStatus) {
		return fmt.Errorf("%w: unknown validation_status %q", apperrors.ErrValidation, e.ValidationStatus)
	}
	return nil
}

// EdgeKey identifies an edge by its uniqueness tuple.
type EdgeKey struct {
	FromNodeID     uuid.UUID `json:"from_node_id"`
	FromColumnName string    `json:"from_column_name"`
	ToNodeID       uuid.UUID `json:"to_node_id"`
	ToColumnName   string    `json:"to_column_name"`
}

// Key returns the uniqueness tuple for the edge.
func (e *LineageEdge) Key() EdgeKey {
	return EdgeKey{
		FromNodeID:     e.FromNodeID,
		FromColumnName: e.FromColumnName,
		ToNodeID:       e.ToNodeID,
		ToColumnName:   e.ToColumnName,
	}
}
