package analysis

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rugflowhq/rugflow/constants"
)

// SanitizeFindings removes or normalizes fields that don't meet our stricter
// schema, so the overall document can still validate. Required fields are only
// normalized (casing, synonyms), never invented; optionals may be dropped.
func SanitizeFindings(doc []byte, allowedServices []string) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	allowed := make(map[string]struct{}, len(allowedServices))
	for _, s := range allowedServices {
		allowed[s] = struct{}{}
	}

	var dropped []string

	// condition_grade: normalize casing so "Good" still validates
	if v, ok := m["condition_grade"].(string); ok {
		m["condition_grade"] = strings.ToLower(strings.TrimSpace(v))
	}

	if v, ok := m["material"].(string); ok {
		m["material"] = strings.TrimSpace(v)
	}

	// recommended_services: map synonyms onto catalog codes, keep known ones.
	// If nothing survives we leave the original list so validation reports it.
	if v, ok := m["recommended_services"].([]any); ok {
		kept := make([]any, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				dropped = append(dropped, "recommended_services[]")
				continue
			}
			if code, ok := constants.CanonicalizeService(s); ok {
				if _, inCatalog := allowed[string(code)]; inCatalog || len(allowed) == 0 {
					kept = append(kept, string(code))
					continue
				}
			}
			dropped = append(dropped, "recommended_services:"+s)
		}
		if len(kept) > 0 {
			m["recommended_services"] = kept
		}
	}

	// issues: optional, keep non-empty strings only
	if v, ok := m["issues"]; ok {
		switch t := v.(type) {
		case nil:
			delete(m, "issues")
			dropped = append(dropped, "issues")
		case []any:
			kept := make([]any, 0, len(t))
			for _, e := range t {
				if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
					kept = append(kept, strings.TrimSpace(s))
				}
			}
			if len(kept) == 0 {
				delete(m, "issues")
				dropped = append(dropped, "issues")
			} else {
				m["issues"] = kept
			}
		default:
			delete(m, "issues")
			dropped = append(dropped, "issues")
		}
	}

	// summary: optional, drop empty or literal "null"
	if v, ok := m["summary"].(string); ok {
		s := strings.TrimSpace(v)
		if s == "" || strings.EqualFold(s, "null") {
			delete(m, "summary")
			dropped = append(dropped, "summary")
		} else {
			m["summary"] = s
		}
	}

	// confidence: optional, accept numeric strings, drop out-of-range values
	if v, ok := m["confidence"]; ok {
		switch t := v.(type) {
		case nil:
			delete(m, "confidence")
			dropped = append(dropped, "confidence")
		case float64:
			if t < 0 || t > 1 {
				delete(m, "confidence")
				dropped = append(dropped, "confidence")
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil && f >= 0 && f <= 1 {
				m["confidence"] = f
			} else {
				delete(m, "confidence")
				dropped = append(dropped, "confidence")
			}
		default:
			delete(m, "confidence")
			dropped = append(dropped, "confidence")
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, dropped, nil
}
