package entity

import (
	"time"

	"github.com/google/uuid"
)

// Job represents a customer job for data transfer between layers.
type Job struct {
	ID                  uuid.UUID  `json:"id"`
	CompanyID           uuid.UUID  `json:"company_id"`
	ClientName          string     `json:"client_name"`
	ClientEmail         *string    `json:"client_email,omitempty"`
	ClientPhone         *string    `json:"client_phone,omitempty"`
	PickupAddress       *string    `json:"pickup_address,omitempty"`
	DeliveryAddress     *string    `json:"delivery_address,omitempty"`
	DeliveryWindowStart *time.Time `json:"delivery_window_start,omitempty"`
	DeliveryWindowEnd   *time.Time `json:"delivery_window_end,omitempty"`
	Status              string     `json:"status"`
	PortalToken         *string    `json:"portal_token,omitempty"`
	ScheduledPickupAt   *time.Time `json:"scheduled_pickup_at,omitempty"`
	Notes               *string    `json:"notes,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
