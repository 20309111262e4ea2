package model

import "time"

// Matrix API

type CreateMatrixRequest struct {
	CampaignID string `json:"campaignId" validate:"required"`
	Name       string `json:"name" validate:"required,max=120"`
}

type AddRowRequest struct {
	Platform Platform `json:"platform" validate:"required,oneof=facebook instagram tiktok youtube display"`
	Format   string   `json:"format" validate:"required,max=40"`
}

type AssignAssetRequest struct {
	Asset AssetReference `json:"asset" validate:"required"`
}

type AutoFillRequest struct {
	Strategy FillStrategy `json:"strategy" validate:"required,oneof=random smart"`
	Tag      string       `json:"tag,omitempty" validate:"max=60"` // optional catalog filter
}

type CombinationsResponse struct {
	MatrixID     string            `json:"matrixId"`
	Combinations []Combination     `json:"combinations"`
	Issues       []ValidationIssue `json:"issues"`
}

// Execution API

type StartExecutionRequest struct {
	TemplateID string `json:"templateId" validate:"required"`
	// Optional client idempotency key. When set it becomes the generation id,
	// so a retried call returns the existing generation instead of creating a
	// second batch. Without it every call starts a fresh generation.
	IdempotencyKey string `json:"idempotencyKey,omitempty" validate:"omitempty,max=80"`
}

type StartExecutionResponse struct {
	GenerationID string    `json:"generationId"`
	MatrixID     string    `json:"matrixId"`
	JobCount     int       `json:"jobCount"`
	Existing     bool      `json:"existing"` // true when the idempotency key matched a prior call
	CreatedAt    time.Time `json:"createdAt"`
}

type GenerationStatusResponse struct {
	GenerationID string      `json:"generationId"`
	Jobs         []RenderJob `json:"jobs"`
	Done         bool        `json:"done"` // every job terminal
}

type RetryJobResponse struct {
	JobID        string    `json:"jobId"`
	GenerationID string    `json:"generationId"`
	Variation    int       `json:"variationIndex"`
	Status       JobStatus `json:"status"`
}

// Webhook

// ProviderWebhookRequest is the callback body the render provider posts when
// a job reaches a terminal state.
type ProviderWebhookRequest struct {
	ProviderJobID string `json:"providerJobId" validate:"required"`
	Status        string `json:"status" validate:"required"`
	OutputURL     string `json:"outputUrl,omitempty"`
	Error         string `json:"error,omitempty"`
}
