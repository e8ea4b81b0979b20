package constants

import (
	"strings"
)

// ServiceCode identifies a cleaning or repair service offered on a rug.
type ServiceCode string

const (
	ServiceWash           ServiceCode = "wash"
	ServiceDeepClean      ServiceCode = "deep_clean"
	ServiceStainTreatment ServiceCode = "stain_treatment"
	ServicePetTreatment   ServiceCode = "pet_treatment"
	ServiceMothTreatment  ServiceCode = "moth_treatment"
	ServiceDeodorize      ServiceCode = "deodorize"
	ServiceFringeRepair   ServiceCode = "fringe_repair"
	ServiceEdgeBinding    ServiceCode = "edge_binding"
	ServiceProtectant     ServiceCode = "protectant"
)

var allServices = []ServiceCode{
	ServiceWash,
	ServiceDeepClean,
	ServiceStainTreatment,
	ServicePetTreatment,
	ServiceMothTreatment,
	ServiceDeodorize,
	ServiceFringeRepair,
	ServiceEdgeBinding,
	ServiceProtectant,
}

var serviceLabels = map[ServiceCode]string{
	ServiceWash:           "Hand Wash",
	ServiceDeepClean:      "Deep Clean",
	ServiceStainTreatment: "Stain Treatment",
	ServicePetTreatment:   "Pet Urine Treatment",
	ServiceMothTreatment:  "Moth Treatment",
	ServiceDeodorize:      "Deodorizing",
	ServiceFringeRepair:   "Fringe Repair",
	ServiceEdgeBinding:    "Edge Binding",
	ServiceProtectant:     "Fiber Protectant",
}

// defaultRates are fallback per-square-foot prices in the company
// currency, used when the company price book has no entry for a code.
var defaultRates = map[ServiceCode]float64{
	ServiceWash:           3.50,
	ServiceDeepClean:      5.00,
	ServiceStainTreatment: 2.00,
	ServicePetTreatment:   2.50,
	ServiceMothTreatment:  2.25,
	ServiceDeodorize:      1.50,
	ServiceFringeRepair:   4.00,
	ServiceEdgeBinding:    3.00,
	ServiceProtectant:     1.75,
}

// ServiceCodeValues returns every known service code.
func ServiceCodeValues() []ServiceCode {
	out := make([]ServiceCode, len(allServices))
	copy(out, allServices)
	return out
}

// ServiceCodeStrings returns the codes as plain strings, for schema
// enums and proto surfaces.
func ServiceCodeStrings() []string {
	out := make([]string, len(allServices))
	for i, s := range allServices {
		out[i] = string(s)
	}
	return out
}

// ServiceLabel returns the display name for an item line.
func ServiceLabel(code ServiceCode) string {
	if label, ok := serviceLabels[code]; ok {
		return label
	}
	return string(code)
}

// DefaultRate returns the fallback per-sqft rate for a code, or 0 when
// the code is unknown.
func DefaultRate(code ServiceCode) float64 {
	return defaultRates[code]
}

// CanonicalizeService maps free-text service names coming out of photo
// analysis onto known codes.
func CanonicalizeService(input string) (ServiceCode, bool) {
	if input == "" {
		return "", false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.ReplaceAll(normalized, "-", " ")

	// synonyms map
	synonyms := map[string]ServiceCode{
		"hand wash":          ServiceWash,
		"full wash":          ServiceWash,
		"cleaning":           ServiceWash,
		"standard clean":     ServiceWash,
		"deep cleaning":      ServiceDeepClean,
		"restoration clean":  ServiceDeepClean,
		"spot treatment":     ServiceStainTreatment,
		"stain removal":      ServiceStainTreatment,
		"pet odor":           ServicePetTreatment,
		"urine treatment":    ServicePetTreatment,
		"enzyme treatment":   ServicePetTreatment,
		"moth proofing":      ServiceMothTreatment,
		"moth damage":        ServiceMothTreatment,
		"odor removal":       ServiceDeodorize,
		"deodorizing":        ServiceDeodorize,
		"fringe cleaning":    ServiceFringeRepair,
		"fringe replacement": ServiceFringeRepair,
		"binding":            ServiceEdgeBinding,
		"serging":            ServiceEdgeBinding,
		"overcasting":        ServiceEdgeBinding,
		"scotchgard":         ServiceProtectant,
		"fiber protection":   ServiceProtectant,
		"stain guard":        ServiceProtectant,
	}

	if code, ok := synonyms[normalized]; ok {
		return code, true
	}

	underscored := strings.ReplaceAll(normalized, " ", "_")
	for _, code := range allServices {
		if underscored == string(code) {
			return code, true
		}
	}
	for code, label := range serviceLabels {
		if normalized == strings.ToLower(label) {
			return code, true
		}
	}

	return "", false
}
