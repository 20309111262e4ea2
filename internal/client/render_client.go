package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/admatrix/api/internal/config"
	"github.com/admatrix/api/internal/model"
)

// RenderProvider defines the operations the engine needs from the external
// rendering service.
type RenderProvider interface {
	GetTemplate(ctx context.Context, templateID string) (*model.RenderTemplate, error)
	Submit(ctx context.Context, templateID string, mods model.Modifications) (*SubmitResponse, error)
	GetStatus(ctx context.Context, providerJobID string) (*ProviderStatus, error)
	Cancel(ctx context.Context, providerJobID string) error
}

// RenderClient talks to the render provider's HTTP API.
type RenderClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// SubmitResponse is the provider's acknowledgement of a render request.
type SubmitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ProviderStatus is the provider's view of a render job.
type ProviderStatus struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	OutputURL string `json:"output_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Provider status values
const (
	ProviderStatusPlanned   = "planned"
	ProviderStatusRendering = "rendering"
	ProviderStatusSucceeded = "succeeded"
	ProviderStatusFailed    = "failed"
)

// MapProviderStatus translates a provider status string into the job
// lifecycle. Unknown strings map to processing so transient garbage never
// terminates a job.
func MapProviderStatus(s string) model.JobStatus {
	switch s {
	case ProviderStatusSucceeded, "completed", "success":
		return model.JobStatusCompleted
	case ProviderStatusFailed, "error":
		return model.JobStatusFailed
	default:
		return model.JobStatusProcessing
	}
}

type submitRequest struct {
	TemplateID    string              `json:"template_id"`
	Modifications model.Modifications `json:"modifications"`
}

// NewRenderClient creates a new render provider client.
func NewRenderClient(cfg *config.ProviderConfig) *RenderClient {
	return &RenderClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// GetTemplate fetches a template's declared slots.
func (c *RenderClient) GetTemplate(ctx context.Context, templateID string) (*model.RenderTemplate, error) {
	var result model.RenderTemplate
	if err := c.get(ctx, fmt.Sprintf("/v1/templates/%s", templateID), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Submit sends one render request and returns the provider's job id.
func (c *RenderClient) Submit(ctx context.Context, templateID string, mods model.Modifications) (*SubmitResponse, error) {
	req := submitRequest{TemplateID: templateID, Modifications: mods}
	var result SubmitResponse
	if err := c.post(ctx, "/v1/renders", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetStatus retrieves the current status of a submitted render.
func (c *RenderClient) GetStatus(ctx context.Context, providerJobID string) (*ProviderStatus, error) {
	var result ProviderStatus
	if err := c.get(ctx, fmt.Sprintf("/v1/renders/%s", providerJobID), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Cancel asks the provider to abort a render. Best effort — callers treat
// failures as non-fatal.
func (c *RenderClient) Cancel(ctx context.Context, providerJobID string) error {
	var result ProviderStatus
	return c.post(ctx, fmt.Sprintf("/v1/renders/%s/cancel", providerJobID), struct{}{}, &result)
}

// post sends a POST request with JSON body
func (c *RenderClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// get sends a GET request and parses JSON response
func (c *RenderClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the response
func (c *RenderClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Render API] %s %s — request failed: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("render API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *RenderClient) IsConfigured() bool {
	return c.apiKey != ""
}
