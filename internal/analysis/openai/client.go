package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rugflowhq/rugflow/internal/analysis"
)

// AnalyzeRug implements analysis.RugAnalyzer using chat/completions with
// image parts. Photos arrive as data URLs so the model never needs access
// to our storage bucket.
func (c *Client) AnalyzeRug(ctx context.Context, req analysis.AnalyzeRequest) (analysis.RugFindings, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("analysis.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"photos", len(req.PhotoDataURLs),
		"rug_type", req.RugType,
		"allowed_services", len(req.AllowedServices),
	)

	if len(req.PhotoDataURLs) == 0 {
		return analysis.RugFindings{}, nil, fmt.Errorf("no usable photos to analyze")
	}

	schema := analysis.BuildRugJSONSchema(req.AllowedServices)
	sys := buildSystemPrompt(req)

	content := []map[string]any{
		{"type": "text", "text": buildUserPrompt(req)},
	}
	for _, u := range req.PhotoDataURLs {
		content = append(content, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": u},
		})
	}

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": sys},
			{"role": "user", "content": content},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, _, httpErr := analysis.SendJSON(ctx, c.http, endpoint, body, map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	}, c.log)
	if httpErr != nil {
		c.log.Error("analysis.extract.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return analysis.RugFindings{}, nil, httpErr
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("analysis.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return analysis.RugFindings{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("analysis.extract.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return analysis.RugFindings{}, raw, fmt.Errorf("no choices in openai response")
	}
	rawContent := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	// Validate strictly first.
	if err := analysis.ValidateJSONAgainstSchema(schema, rawContent); err != nil {
		if !c.cfg.LenientOptional {
			c.log.Error("analysis.extract.schema_validation_failed",
				"req_id", rid, "error", err, "content", string(rawContent),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return analysis.RugFindings{}, rawContent, fmt.Errorf("schema validation failed: %w", err)
		}

		// Try a lenient sanitize: drop/normalize offenders and re-validate.
		cleaned, dropped, sErr := analysis.SanitizeFindings(rawContent, req.AllowedServices)
		if sErr != nil {
			c.log.Error("analysis.extract.sanitize_failed",
				"req_id", rid, "error", sErr,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return analysis.RugFindings{}, rawContent, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := analysis.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.log.Error("analysis.extract.schema_validation_failed",
				"req_id", rid, "error", vErr, "content", string(rawContent),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return analysis.RugFindings{}, rawContent, fmt.Errorf("schema validation failed: %w", vErr)
		}
		c.log.Warn("analysis.extract.lenient_sanitize_applied",
			"req_id", rid, "dropped", dropped,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		rawContent = cleaned
	}

	var out analysis.RugFindings
	if err := json.Unmarshal(rawContent, &out); err != nil {
		c.log.Error("analysis.extract.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return analysis.RugFindings{}, rawContent, fmt.Errorf("unmarshal findings: %w", err)
	}

	c.log.Info("analysis.extract.ok",
		"req_id", rid,
		"material", out.Material,
		"condition", out.ConditionGrade,
		"services", len(out.RecommendedServices),
		"confidence", out.ModelConfidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, rawContent, nil
}

func buildSystemPrompt(req analysis.AnalyzeRequest) string {
	var svcLine string
	if len(req.AllowedServices) > 0 {
		svcLine = "Allowed service codes (enum): " + strings.Join(req.AllowedServices, ", ") + ". "
	} else {
		svcLine = "Recommend services as short snake_case codes. "
	}

	parts := []string{
		"You are a rug inspection expert at a professional rug cleaning workshop. Return ONLY JSON that matches the JSON Schema provided.",
		"Examine the photos and identify the rug's material (wool, silk, cotton, synthetic, jute, blends).",
		"Grade the condition as one of: " + strings.Join(analysis.ConditionGrades, ", ") + ".",
		svcLine,
		"List visible issues as short snake_case labels (e.g. pet_stains, moth_damage, fringe_wear, color_bleeding, dry_rot).",
		"Recommend every service the rug genuinely needs, and nothing it does not.",
		"For 'summary', write one or two sentences a customer would understand. Avoid prices.",
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

func buildUserPrompt(req analysis.AnalyzeRequest) string {
	var b strings.Builder
	b.WriteString("Rug type hint: ")
	b.WriteString(req.RugType)
	fmt.Fprintf(&b, "\nMeasured size: %.1f ft x %.1f ft", req.LengthFt, req.WidthFt)
	if req.Job.ClientName != "" {
		b.WriteString("\nClient: ")
		b.WriteString(req.Job.ClientName)
	}
	if req.FieldNotes != "" {
		b.WriteString("\nField notes from pickup:\n")
		if len(req.FieldNotes) > 2000 {
			b.WriteString(req.FieldNotes[:2000])
		} else {
			b.WriteString(req.FieldNotes)
		}
	}
	b.WriteString("\n\nAnalyze the attached photos of this rug.")
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
