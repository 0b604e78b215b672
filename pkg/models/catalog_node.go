package models

import "github.com/google/uuid"

// Catalog node grains as reported by the external registry.
const (
	NodeGrainAsset  = "asset"
	NodeGrainColumn = "column"
)

// CatalogNode is the registry's resolution of a URN or node id. ColumnName is set
// only for column-grain URNs.
type CatalogNode struct {
	ID           uuid.UUID  `json:"id"`
	URN          string     `json:"urn"`
	Grain        string     `json:"grain"`
	ColumnName   string     `json:"column_name,omitempty"`
	DataSourceID *uuid.UUID `json:"data_source_id,omitempty"`
}
