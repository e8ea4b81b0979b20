package entity

import (
	"time"

	"github.com/google/uuid"
)

// Estimate represents a priced proposal for data transfer between layers.
type Estimate struct {
	ID           uuid.UUID      `json:"id"`
	JobID        uuid.UUID      `json:"job_id"`
	CompanyID    uuid.UUID      `json:"company_id"`
	Status       string         `json:"status"`
	CurrencyCode string         `json:"currency_code"`
	Subtotal     float64        `json:"subtotal"`
	Tax          float64        `json:"tax"`
	Total        float64        `json:"total"`
	FinalizedAt  *time.Time     `json:"finalized_at,omitempty"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	DecidedAt    *time.Time     `json:"decided_at,omitempty"`
	Items        []EstimateItem `json:"items,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// EstimateItem represents one service line on an estimate.
type EstimateItem struct {
	ID            uuid.UUID  `json:"id"`
	EstimateID    uuid.UUID  `json:"estimate_id"`
	RugID         uuid.UUID  `json:"rug_id"`
	ServiceCode   string     `json:"service_code"`
	Description   string     `json:"description"`
	AreaSqFt      float64    `json:"area_sqft"`
	UnitPrice     float64    `json:"unit_price"`
	Amount        float64    `json:"amount"`
	Declined      bool       `json:"declined"`
	ServiceStatus string     `json:"service_status"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
