package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AnalysisJob represents an analysis run for data transfer between layers.
type AnalysisJob struct {
	ID           uuid.UUID       `json:"id"`
	RugID        uuid.UUID       `json:"rug_id"`
	CompanyID    uuid.UUID       `json:"company_id"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	Status       *string         `json:"status,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	Confidence   *float32        `json:"confidence,omitempty"`
	NeedsReview  bool            `json:"needs_review"`
	Result       json.RawMessage `json:"result,omitempty"`
	ModelName    *string         `json:"model_name,omitempty"`
	ModelParams  json.RawMessage `json:"model_params,omitempty"`
}
