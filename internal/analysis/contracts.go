package analysis

import "context"

// JobContext gives the model surrounding job details for better grading.
type JobContext struct {
	ClientName string `json:"client_name,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// RugFindings is the normalized shape we want from the vision model.
type RugFindings struct {
	Material            string   `json:"material"`
	ConditionGrade      string   `json:"condition_grade"`      // excellent|good|fair|poor
	Issues              []string `json:"issues,omitempty"`     // e.g. pet_stains, moth_damage
	RecommendedServices []string `json:"recommended_services"` // service codes
	Summary             string   `json:"summary,omitempty"`
	ModelConfidence     float32  `json:"confidence,omitempty"` // optional (0..1)
}

type AnalyzeRequest struct {
	// PhotoDataURLs are base64 data URLs, newest photo first.
	PhotoDataURLs   []string
	RugType         string
	LengthFt        float64
	WidthFt         float64
	AllowedServices []string
	FieldNotes      string

	Job JobContext
}

// RugAnalyzer is the interface our pipeline depends on.
type RugAnalyzer interface {
	AnalyzeRug(ctx context.Context, req AnalyzeRequest) (RugFindings, []byte /*rawJSON*/, error)
}
