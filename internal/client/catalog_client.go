package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/admatrix/api/internal/config"
	"github.com/admatrix/api/internal/model"
)

// AssetFinder is the read-only view of the asset catalog the auto-fill
// engine needs.
type AssetFinder interface {
	FindByType(ctx context.Context, t model.AssetType, tag string) ([]model.AssetReference, error)
}

// CatalogClient queries the asset catalog service.
type CatalogClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewCatalogClient creates a new asset catalog client.
func NewCatalogClient(cfg *config.CatalogConfig) *CatalogClient {
	return &CatalogClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// FindByType lists catalog assets of one type, optionally filtered by tag.
func (c *CatalogClient) FindByType(ctx context.Context, t model.AssetType, tag string) ([]model.AssetReference, error) {
	q := url.Values{}
	q.Set("type", string(t))
	if tag != "" {
		q.Set("tag", tag)
	}

	endpoint := c.baseURL + "/v1/assets?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("catalog API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Assets []model.AssetReference `json:"assets"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return result.Assets, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *CatalogClient) IsConfigured() bool {
	return c.apiKey != "" && c.baseURL != ""
}
