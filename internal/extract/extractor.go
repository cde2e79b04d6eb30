// Package extract asks a language-model service to pull structured fields
// out of raw page content.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"pulsedash.app/harvester/internal/model"
)

// Pass selects how much content is submitted: a full article pass or the
// smaller degraded/summary pass used when the main page is reused per item.
type Pass int

const (
	PassArticle Pass = iota
	PassSummary
)

const (
	articleContentLimit = 15000
	summaryContentLimit = 8000
)

// FieldExtractor returns a best-effort record of extracted values. An empty
// record means "no fields extracted" — callers must not treat it as a hard
// failure of the pipeline.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, content string, fields []model.FieldDescriptor, intent string, pass Pass) (model.ResultRecord, error)
}

type Extractor struct {
	llm ChatClient
}

func NewExtractor(llm ChatClient) *Extractor {
	return &Extractor{llm: llm}
}

func (e *Extractor) ExtractFields(ctx context.Context, content string, fields []model.FieldDescriptor, intent string, pass Pass) (model.ResultRecord, error) {
	if e.llm == nil {
		slog.WarnContext(ctx, "no extraction service configured, returning empty record")
		return model.ResultRecord{}, nil
	}

	limit := articleContentLimit
	if pass == PassSummary {
		limit = summaryContentLimit
	}
	content = truncate(CleanContent(content), limit)

	req := Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(content, fields, intent),
		SchemaName:   "field_extraction",
		Schema:       buildSchema(fields),
	}

	reply, err := e.llm.Chat(ctx, req)
	if err != nil {
		slog.WarnContext(ctx, "extraction call failed, returning empty record", "error", err)
		return model.ResultRecord{}, nil
	}

	record, err := parseRecord(reply)
	if err != nil {
		slog.WarnContext(ctx, "extraction reply not parseable, returning empty record", "error", err)
		return model.ResultRecord{}, nil
	}
	return record, nil
}

const systemPrompt = `You are a data extraction assistant. Rules:
- Respond with JSON only, no prose and no markdown fences.
- Use null for missing or unreadable values; never omit a requested field.
- When a numeric confidence applies, express it as a number from 0 to 100.
- If the content contains several distinct entities, return an array of
  objects, each with the full requested field set.`

func buildUserPrompt(content string, fields []model.FieldDescriptor, intent string) string {
	var b strings.Builder

	if intent != "" {
		fmt.Fprintf(&b, "Extraction goal: %s\n\n", intent)
	}

	b.WriteString("Extract the following fields:\n")
	for _, f := range fields {
		fmt.Fprintf(&b, "- %s (%s): %s", f.Name, f.Type, f.Description)
		if f.Required {
			b.WriteString(" [required]")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nContent:\n%s\n", content)
	return b.String()
}

// buildSchema assembles the response schema at runtime from the requested
// field descriptors. Every field is present and nullable so missing data
// comes back as explicit nulls.
func buildSchema(fields []model.FieldDescriptor) map[string]any {
	properties := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))

	for _, f := range fields {
		properties[f.Name] = schemaType(f.Type)
		required = append(required, f.Name)
	}

	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func schemaType(t model.FieldType) map[string]any {
	switch t {
	case model.FieldNumber:
		return map[string]any{"type": []string{"number", "null"}}
	case model.FieldArray:
		return map[string]any{
			"type":  []string{"array", "null"},
			"items": map[string]any{"type": "string"},
		}
	default:
		return map[string]any{"type": []string{"string", "null"}}
	}
}

// parseRecord accepts either a single JSON object or an array of objects,
// in which case the first element wins.
func parseRecord(reply string) (model.ResultRecord, error) {
	reply = strings.TrimSpace(reply)

	var record model.ResultRecord
	if err := json.Unmarshal([]byte(reply), &record); err == nil {
		return record, nil
	}

	var records []model.ResultRecord
	if err := json.Unmarshal([]byte(reply), &records); err == nil && len(records) > 0 {
		return records[0], nil
	}

	return nil, fmt.Errorf("reply is neither a JSON object nor a non-empty array")
}
