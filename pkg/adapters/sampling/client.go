package sampling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/models"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/services"
)

// Client fetches masked sample rows and join statistics from the data
// access service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a sampling client for the given base URL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.Named("sampling-client"),
	}
}

type samplePairsRequest struct {
	SourceNodeID uuid.UUID `json:"source_node_id"`
	SourceColumn string    `json:"source_column"`
	TargetNodeID uuid.UUID `json:"target_node_id"`
	TargetColumn string    `json:"target_column"`
	SampleSize   int       `json:"sample_size"`
	WindowDays   int       `json:"window_days"`
	MaskPII      bool      `json:"mask_pii"`
}

type samplePairsResponse struct {
	Success bool                   `json:"success"`
	Data    []models.SampleRowPair `json:"data"`
	Error   string                 `json:"error,omitempty"`
}

// SampleColumnPairs returns matched row pairs for a source/target column pair.
func (c *Client) SampleColumnPairs(ctx context.Context, req services.SampleRequest) ([]models.SampleRowPair, error) {
	payload := samplePairsRequest{
		SourceNodeID: req.SourceNodeID,
		SourceColumn: req.SourceColumn,
		TargetNodeID: req.TargetNodeID,
		TargetColumn: req.TargetColumn,
		SampleSize:   req.SampleSize,
		WindowDays:   req.WindowDays,
		MaskPII:      req.MaskPII,
	}

	var body samplePairsResponse
	if err := c.post(ctx, "/api/samples/column-pairs", payload, &body); err != nil {
		return nil, fmt.Errorf("failed to sample column pairs: %w", err)
	}
	if !body.Success {
		return nil, fmt.Errorf("sampling error: %s", body.Error)
	}

	return body.Data, nil
}

type joinStatsRequest struct {
	SourceTable string `json:"source_table"`
	TargetTable string `json:"target_table"`
	JoinColumn  string `json:"join_column"`
}

type joinStatsResponse struct {
	Success bool                   `json:"success"`
	Data    models.JoinStatistics  `json:"data"`
	Error   string                 `json:"error,omitempty"`
}

// JoinStatistics measures referential overlap for a proposed join.
func (c *Client) JoinStatistics(ctx context.Context, sourceTable, targetTable, joinColumn string) (*models.JoinStatistics, error) {
	payload := joinStatsRequest{
		SourceTable: sourceTable,
		TargetTable: targetTable,
		JoinColumn:  joinColumn,
	}

	var body joinStatsResponse
	if err := c.post(ctx, "/api/samples/join-statistics", payload, &body); err != nil {
		return nil, fmt.Errorf("failed to fetch join statistics: %w", err)
	}
	if !body.Success {
		return nil, fmt.Errorf("sampling error: %s", body.Error)
	}

	return &body.Data, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sampling service returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
