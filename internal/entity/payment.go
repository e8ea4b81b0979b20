package entity

import (
	"time"

	"github.com/google/uuid"
)

// Payment represents a recorded payment for data transfer between layers.
type Payment struct {
	ID           uuid.UUID `json:"id"`
	JobID        uuid.UUID `json:"job_id"`
	CompanyID    uuid.UUID `json:"company_id"`
	Amount       float64   `json:"amount"`
	CurrencyCode string    `json:"currency_code"`
	Method       string    `json:"method"`
	GatewayRef   *string   `json:"gateway_ref,omitempty"`
	Status       string    `json:"status"`
	ReceivedAt   time.Time `json:"received_at"`
	CreatedAt    time.Time `json:"created_at"`
}
