package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Rug represents a rug on a job for data transfer between layers.
type Rug struct {
	ID             uuid.UUID       `json:"id"`
	JobID          uuid.UUID       `json:"job_id"`
	CompanyID      uuid.UUID       `json:"company_id"`
	RugNo          int             `json:"rug_no"`
	LengthFt       float64         `json:"length_ft"`
	WidthFt        float64         `json:"width_ft"`
	RugType        string          `json:"rug_type"`
	Notes          *string         `json:"notes,omitempty"`
	SubmissionID   *uuid.UUID      `json:"submission_id,omitempty"`
	Material       *string         `json:"material,omitempty"`
	ConditionGrade *string         `json:"condition_grade,omitempty"`
	AnalyzedAt     *time.Time      `json:"analyzed_at,omitempty"`
	Analysis       json.RawMessage `json:"analysis,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AreaSqFt returns the rug's surface area in square feet.
func (r *Rug) AreaSqFt() float64 {
	return r.LengthFt * r.WidthFt
}
