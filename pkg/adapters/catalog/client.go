package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sergheiganenco/cwic-platform-sub018/pkg/apperrors"
	"github.com/sergheiganenco/cwic-platform-sub018/pkg/models"
)

// Client resolves node identities against the catalog service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a catalog client for the given base URL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.Named("catalog-client"),
	}
}

// nodeResponse is the catalog service's node envelope.
type nodeResponse struct {
	Success bool               `json:"success"`
	Data    models.CatalogNode `json:"data"`
	Error   string             `json:"error,omitempty"`
}

// ResolveURN resolves a URN to a catalog node. An unknown URN fails with
// apperrors.ErrUnresolvedURN.
func (c *Client) ResolveURN(ctx context.Context, urn string) (*models.CatalogNode, error) {
	endpoint := fmt.Sprintf("%s/api/catalog/resolve?urn=%s", c.baseURL, url.QueryEscape(urn))

	node, err := c.fetchNode(ctx, endpoint, apperrors.ErrUnresolvedURN)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve URN %q: %w", urn, err)
	}
	return node, nil
}

// GetNode resolves a node id to a catalog node. An unknown id fails with
// apperrors.ErrNotFound.
func (c *Client) GetNode(ctx context.Context, nodeID uuid.UUID) (*models.CatalogNode, error) {
	endpoint := fmt.Sprintf("%s/api/catalog/nodes/%s", c.baseURL, nodeID)

	node, err := c.fetchNode(ctx, endpoint, apperrors.ErrNotFound)
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog node %s: %w", nodeID, err)
	}
	return node, nil
}

// notFound is the sentinel returned on a catalog 404, so URN resolution and id
// lookup can fail with distinct error kinds.
func (c *Client) fetchNode(ctx context.Context, endpoint string, notFound error) (*models.CatalogNode, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, notFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var body nodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !body.Success {
		return nil, fmt.Errorf("catalog error: %s", body.Error)
	}

	return &body.Data, nil
}
