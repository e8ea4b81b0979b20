package analysis

// ConditionGrades is the fixed grading scale for rug condition.
var ConditionGrades = []string{"excellent", "good", "fair", "poor"}

// BuildRugJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We pass this to OpenAI as a structured output constraint and also use it locally to validate.
func BuildRugJSONSchema(allowedServices []string) map[string]any {
	grades := make([]any, 0, len(ConditionGrades))
	for _, g := range ConditionGrades {
		grades = append(grades, g)
	}

	props := map[string]any{
		"material":        map[string]any{"type": "string", "minLength": 1},
		"condition_grade": map[string]any{"type": "string", "enum": grades},
		"issues": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"recommended_services": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items":    map[string]any{"type": "string"},
		},
		"summary":    map[string]any{"type": "string"},
		"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}
	required := []string{"material", "condition_grade", "recommended_services"}

	// Constrain recommendations to the service catalog if one is provided.
	if len(allowedServices) > 0 {
		props["recommended_services"] = map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type": "string",
				"enum": allowedServices,
			},
		}
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}
