package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/admatrix/api/internal/auth"
	"github.com/admatrix/api/internal/client"
	"github.com/admatrix/api/internal/handler"
	"github.com/admatrix/api/internal/matrix"
	"github.com/admatrix/api/internal/middleware"
	"github.com/admatrix/api/internal/model"
	"github.com/admatrix/api/internal/service"
	"github.com/admatrix/api/internal/store"
)

const testJWTSecret = "test-secret-for-e2e"

// stubProvider answers like a healthy render provider without any network.
type stubProvider struct {
	mu        sync.Mutex
	submitted int
}

func (p *stubProvider) GetTemplate(_ context.Context, templateID string) (*model.RenderTemplate, error) {
	return &model.RenderTemplate{
		ID: templateID,
		Slots: []model.TemplateSlot{
			{Name: "hero", Type: model.AssetTypeImage, Required: true},
			{Name: "headline", Type: model.AssetTypeText, Required: false},
		},
	}, nil
}

func (p *stubProvider) Submit(_ context.Context, _ string, _ model.Modifications) (*client.SubmitResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitted++
	return &client.SubmitResponse{
		ID:     fmt.Sprintf("prov-%d", p.submitted),
		Status: client.ProviderStatusPlanned,
	}, nil
}

func (p *stubProvider) GetStatus(_ context.Context, providerJobID string) (*client.ProviderStatus, error) {
	return &client.ProviderStatus{ID: providerJobID, Status: client.ProviderStatusRendering}, nil
}

func (p *stubProvider) Cancel(_ context.Context, _ string) error { return nil }

// stubCatalog serves a small fixed pool for auto-fill tests.
type stubCatalog struct{}

func (stubCatalog) FindByType(_ context.Context, t model.AssetType, _ string) ([]model.AssetReference, error) {
	switch t {
	case model.AssetTypeImage:
		return []model.AssetReference{
			{ID: "cat-img-1", Type: model.AssetTypeImage, URL: "https://cdn.example.com/cat-img-1.png", Score: 0.8},
		}, nil
	case model.AssetTypeText:
		return []model.AssetReference{
			{ID: "cat-txt-1", Type: model.AssetTypeText, Name: "Limited offer"},
		}, nil
	default:
		return nil, nil
	}
}

// syncDispatcher submits inline so request handling and job submission finish
// before the response is asserted.
type syncDispatcher struct{ svc *service.ExecutionService }

func (d *syncDispatcher) DispatchSubmit(ctx context.Context, job *model.RenderJob) error {
	return d.svc.SubmitJob(ctx, job.ID)
}

// testApp holds all components needed for testing
type testApp struct {
	app *fiber.App
}

// setupApp wires the same routes as main.go against the in-memory store and
// stubbed externals, so no Redis or provider is needed.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	validate := validator.New()
	st := store.NewMemoryStore()
	provider := &stubProvider{}
	policy := matrix.DefaultPolicy()

	matrixService := service.NewMatrixService(st, stubCatalog{}, policy)
	executionService := service.NewExecutionService(st, provider, nil, nil, policy, 15*time.Minute)
	executionService.SetDispatcher(&syncDispatcher{svc: executionService})

	matrixHandler := handler.NewMatrixHandler(matrixService, validate)
	executionHandler := handler.NewExecutionHandler(executionService, validate)
	webhookHandler := handler.NewWebhookHandler(executionService, validate)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(nil) // nil Redis → limits disabled

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"provider": false,
				"catalog":  false,
				"redis":    false,
				"auth":     true,
			},
		})
	})

	app.Post("/webhooks/render", webhookHandler.Render)

	api := app.Group("/api", authMiddleware.Authenticate())

	matrices := api.Group("/matrices")
	matrices.Post("/", matrixHandler.Create)
	matrices.Get("/:matrixId", matrixHandler.Get)
	matrices.Delete("/:matrixId", matrixHandler.Delete)
	matrices.Post("/:matrixId/rows", matrixHandler.AddRow)
	matrices.Delete("/:matrixId/rows/:rowId", matrixHandler.RemoveRow)
	matrices.Post("/:matrixId/rows/:rowId/duplicate", matrixHandler.DuplicateRow)
	matrices.Put("/:matrixId/rows/:rowId/cells/:assetType", matrixHandler.AssignAsset)
	matrices.Delete("/:matrixId/rows/:rowId/cells/:assetType", matrixHandler.RemoveAsset)
	matrices.Post("/:matrixId/rows/:rowId/cells/:assetType/lock", matrixHandler.Lock)
	matrices.Post("/:matrixId/rows/:rowId/cells/:assetType/unlock", matrixHandler.Unlock)
	matrices.Post("/:matrixId/autofill", rateLimiter.AutoFillLimit(10000), matrixHandler.AutoFill)
	matrices.Get("/:matrixId/combinations", matrixHandler.Combinations)
	matrices.Post("/:matrixId/execute", rateLimiter.ExecuteLimit(10000), executionHandler.Start)

	api.Get("/generations/:generationId", executionHandler.GenerationStatus)
	api.Post("/jobs/:jobId/retry", executionHandler.Retry)
	api.Post("/jobs/:jobId/cancel", executionHandler.Cancel)

	return &testApp{app: app}
}

// generateToken creates an HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	token, err := auth.SignToken("test-user-123", "test@example.com", testJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// createMatrix creates a matrix and returns its id.
func createMatrix(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp, err := doAuthRequest(t, app, http.MethodPost, "/api/matrices/",
		`{"campaignId": "campaign-1", "name": "Summer Sale"}`)
	if err != nil {
		t.Fatalf("create matrix failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)
	return parseJSON(t, resp)["id"].(string)
}

// addRow appends a row and returns its id.
func addRow(t *testing.T, app *fiber.App, matrixID, platform, format string) string {
	t.Helper()
	body := fmt.Sprintf(`{"platform": "%s", "format": "%s"}`, platform, format)
	resp, err := doAuthRequest(t, app, http.MethodPost, "/api/matrices/"+matrixID+"/rows", body)
	if err != nil {
		t.Fatalf("add row failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)
	return parseJSON(t, resp)["id"].(string)
}

// assignImage puts an image asset into a row's image cell.
func assignImage(t *testing.T, app *fiber.App, matrixID, rowID, assetID string) {
	t.Helper()
	body := fmt.Sprintf(`{"asset": {"id": "%s", "type": "image", "url": "https://cdn.example.com/%s.png"}}`, assetID, assetID)
	resp, err := doAuthRequest(t, app, http.MethodPut,
		"/api/matrices/"+matrixID+"/rows/"+rowID+"/cells/image", body)
	if err != nil {
		t.Fatalf("assign asset failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
}
