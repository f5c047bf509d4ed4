package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/buywithme/assistant/internal/domain"
)

// StripCodeFence removes a markdown code fence wrapped around a model reply.
// The opening fence line may carry a language tag. Unfenced text only loses
// surrounding whitespace, so stripping twice gives the same result.
func StripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}

	if newline := strings.Index(cleaned, "\n"); newline >= 0 {
		cleaned = cleaned[newline+1:]
	}

	trimmed := strings.TrimRight(cleaned, " \t\r\n")
	if strings.HasSuffix(trimmed, "```") {
		if last := strings.LastIndex(trimmed, "\n"); last >= 0 {
			cleaned = trimmed[:last]
		}
	}
	return strings.TrimSpace(cleaned)
}

// Schemas for the JSON objects each operation asks the model for.
// Optional keys may be missing; present keys must have the right type.
var (
	clarificationSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"question":        {"type": ["string", "null"]},
			"should_continue": {"type": ["boolean", "null"]},
			"updated_summary": {"type": ["string", "null"]},
			"rationale":       {"type": ["string", "null"]}
		}
	}`)

	queriesSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"queries": {"type": ["array", "null"], "items": {"type": ["string", "null"]}}
		}
	}`)

	recommendationsSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"recommendations": {
				"type": ["array", "null"],
				"items": {
					"type": "object",
					"properties": {
						"name":        {"type": ["string", "null"]},
						"why_it_fits": {"type": ["string", "null"]},
						"highlights":  {"type": ["array", "null"], "items": {"type": "string"}},
						"watchouts":   {"type": ["array", "null"], "items": {"type": "string"}},
						"best_for":    {"type": ["string", "null"]}
					}
				}
			},
			"comparison_insight": {"type": ["string", "null"]}
		}
	}`)

	rankingSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"ranked_products": {
				"type": ["array", "null"],
				"items": {
					"type": "object",
					"required": ["product_id"],
					"properties": {
						"product_id": {"type": ["string", "number"]},
						"score":      {"type": ["number", "null"]},
						"rank":       {"type": ["number", "null"]},
						"rationale":  {"type": ["string", "null"]},
						"price_chf":  {"type": ["number", "null"]},
						"link":       {"type": ["string", "null"]},
						"key_specs":  {"type": ["string", "null"]}
					}
				}
			}
		}
	}`)
)

func mustSchema(source string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(fmt.Sprintf("compile model response schema: %v", err))
	}
	return schema
}

// decodeModelJSON strips fences from raw, validates it against schema and
// unmarshals it into dst. Every failure is a *domain.MalformedResponseError
// carrying the raw reply.
func decodeModelJSON(operation, raw string, schema *gojsonschema.Schema, dst any) error {
	payload := StripCodeFence(raw)
	malformed := func(err error) error {
		return &domain.MalformedResponseError{Operation: operation, Raw: raw, Err: err}
	}

	if !json.Valid([]byte(payload)) {
		return malformed(fmt.Errorf("reply is not valid JSON"))
	}

	result, err := schema.Validate(gojsonschema.NewStringLoader(payload))
	if err != nil {
		return malformed(fmt.Errorf("validation error: %w", err))
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return malformed(fmt.Errorf("schema validation failed: %s", strings.Join(errs, "; ")))
	}

	if err := json.Unmarshal([]byte(payload), dst); err != nil {
		return malformed(err)
	}
	return nil
}
