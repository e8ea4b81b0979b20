package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Company represents a tenant for data transfer between layers.
type Company struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	DefaultCurrency string          `json:"default_currency"`
	TaxRate         float64         `json:"tax_rate"`
	PriceBook       json.RawMessage `json:"price_book,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
