// Package fieldsync is the offline-first side of rug intake: pickup
// crews capture rugs and photos on site with no connectivity, and the
// agent drains the local queue to the backend whenever it can reach it.
package fieldsync

import (
	"time"

	"github.com/google/uuid"

	"github.com/rugflowhq/rugflow/constants"
)

// Submission is one rug captured in the field, queued locally until it
// reaches the backend. The ID is generated at capture time and makes
// the eventual push idempotent.
type Submission struct {
	ID         uuid.UUID
	JobID      uuid.UUID
	CompanyID  uuid.UUID
	CreatedBy  string
	RugNo      int // operator's own ordinal; the backend assigns the real one
	LengthFt   float64
	WidthFt    float64
	RugType    string
	Notes      string
	PhotoKeys  []string
	Status     constants.SubmissionStatus
	RetryCount int
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
