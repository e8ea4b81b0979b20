package entity

import (
	"time"

	"github.com/google/uuid"
)

// RugPhoto represents a stored rug photo for data transfer between layers.
type RugPhoto struct {
	ID          uuid.UUID `json:"id"`
	RugID       uuid.UUID `json:"rug_id"`
	CompanyID   uuid.UUID `json:"company_id"`
	StoragePath string    `json:"storage_path"`
	ContentType string    `json:"content_type"`
	ByteSize    int       `json:"byte_size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
