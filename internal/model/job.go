package model

import "time"

// RenderJob tracks one render of one combination. (GenerationID,
// VariationIndex) identifies the variation; a retry creates a new job for the
// same slot and keeps the old record for audit.
type RenderJob struct {
	ID             string      `json:"id"`
	MatrixID       string      `json:"matrixId"`
	GenerationID   string      `json:"generationId"`
	VariationIndex int         `json:"variationIndex"` // 1-based row position
	TemplateID     string      `json:"templateId"`
	Combination    Combination `json:"combination"` // immutable snapshot
	Status         JobStatus   `json:"status"`
	ProviderJobID  string      `json:"providerJobId,omitempty"`
	OutputURL      string      `json:"outputUrl,omitempty"`
	ErrorMessage   string      `json:"error,omitempty"`
	Attempt        int         `json:"attempt"` // 1 on first submission
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// StatusUpdate is the unified shape applied to a job by either the webhook
// handler or the reconcile sweep.
type StatusUpdate struct {
	ProviderJobID string
	Status        JobStatus
	OutputURL     string
	ErrorMessage  string
}
