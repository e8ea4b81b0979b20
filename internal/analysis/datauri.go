package analysis

import (
	"encoding/base64"
	"strings"

	"github.com/rugflowhq/rugflow/constants"
)

// ToDataURL encodes photo bytes as a data URL the vision API accepts.
// Oversized or unsupported photos are skipped; callers drop empty results.
func ToDataURL(data []byte, contentType string) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	if len(data) > constants.MaxVisionMBDefault*1024*1024 {
		return "", false
	}
	mt := strings.ToLower(strings.TrimSpace(contentType))
	switch mt {
	case "image/jpeg", "image/png", "image/webp":
	case "image/heic", "image/heif":
		// OpenAI can't process HEIC; the sync agent converts before upload,
		// anything still HEIC here is skipped.
		return "", false
	default:
		return "", false
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data), true
}
