package model

// WebSocket message types
type WSMessageType string

const (
	WSMessageTypeJobUpdate          WSMessageType = "job_update"
	WSMessageTypeGenerationComplete WSMessageType = "generation_complete"
	WSMessageTypeError              WSMessageType = "error"
)

// WSJobUpdateMessage notifies generation subscribers of a job transition.
type WSJobUpdateMessage struct {
	Type           WSMessageType `json:"type"`
	GenerationID   string        `json:"generationId"`
	JobID          string        `json:"jobId"`
	VariationIndex int           `json:"variationIndex"`
	Status         JobStatus     `json:"status"`
	OutputURL      string        `json:"outputUrl,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// WSGenerationCompleteMessage fires once every job of a generation is terminal.
type WSGenerationCompleteMessage struct {
	Type         WSMessageType `json:"type"`
	GenerationID string        `json:"generationId"`
	Completed    int           `json:"completed"`
	Failed       int           `json:"failed"`
}

// WSErrorMessage carries a subscription-level error to the client.
type WSErrorMessage struct {
	Type    WSMessageType `json:"type"`
	Code    string        `json:"code"`
	Message string        `json:"message"`
}
