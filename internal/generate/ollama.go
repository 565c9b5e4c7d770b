// Package generate holds the default AI content generator, backed by a local
// or remote Ollama instance. Provider output is untrusted: everything is
// schema-validated before it is allowed near the result tables.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/qri-io/jsonschema"

	"coursejobs/internal/models"
)

// Ollama implements the worker's Generator port.
type Ollama struct {
	api     *api.Client
	model   string
	schemas map[string]*jsonschema.Schema
}

func NewOllama(baseURL, model string, httpClient *http.Client) (*Ollama, error) {
	u, err := url.ParseRequestURI(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}

	schemas := make(map[string]*jsonschema.Schema, len(outputSchemas))
	for kind, raw := range outputSchemas {
		rs := &jsonschema.Schema{}
		if err := json.Unmarshal([]byte(raw), rs); err != nil {
			return nil, fmt.Errorf("parse %s schema: %w", kind, err)
		}
		schemas[kind] = rs
	}

	return &Ollama{
		api:     api.NewClient(u, httpClient),
		model:   model,
		schemas: schemas,
	}, nil
}

// Generate prompts the model for the requested content type and validates the
// structured result. Any provider or validation error propagates so the job
// store's retry path applies.
func (o *Ollama) Generate(ctx context.Context, contentType, language, text string) (json.RawMessage, error) {
	prompt, ok := prompts[contentType]
	if !ok {
		return nil, fmt.Errorf("no prompt for content type %q", contentType)
	}

	stream := false
	req := &api.GenerateRequest{
		Model:  o.model,
		Prompt: fmt.Sprintf(prompt, language, text),
		Stream: &stream,
		Format: json.RawMessage(`"json"`),
	}

	var out strings.Builder
	err := o.api.Generate(ctx, req, func(r api.GenerateResponse) error {
		out.WriteString(r.Response)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}

	body := json.RawMessage(out.String())
	if schema, ok := o.schemas[contentType]; ok {
		verrs, err := schema.ValidateBytes(ctx, body)
		if err != nil {
			return nil, fmt.Errorf("validate %s output: %w", contentType, err)
		}
		if len(verrs) > 0 {
			return nil, fmt.Errorf("model returned invalid %s: %s", contentType, verrs[0].Error())
		}
	}
	return body, nil
}

var prompts = map[string]string{
	models.ContentQuiz: `Create a multiple-choice quiz in %s for the lesson below.
Respond with JSON only: {"questions":[{"question":"...","options":["..."],"answer":0}]}.
Four options per question, "answer" is the zero-based index of the correct option.

Lesson:
%s`,
	models.ContentFlashcards: `Create study flashcards in %s for the lesson below.
Respond with JSON only: {"cards":[{"front":"...","back":"..."}]}.

Lesson:
%s`,
	models.ContentSummary: `Summarize the lesson below in %s.
Respond with JSON only: {"summary":"...","key_points":["..."]}.

Lesson:
%s`,
}

var outputSchemas = map[string]string{
	models.ContentQuiz: `{
		"type": "object",
		"required": ["questions"],
		"properties": {
			"questions": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["question", "options", "answer"],
					"properties": {
						"question": {"type": "string", "minLength": 1},
						"options":  {"type": "array", "minItems": 2, "items": {"type": "string"}},
						"answer":   {"type": "integer", "minimum": 0}
					}
				}
			}
		}
	}`,
	models.ContentFlashcards: `{
		"type": "object",
		"required": ["cards"],
		"properties": {
			"cards": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["front", "back"],
					"properties": {
						"front": {"type": "string", "minLength": 1},
						"back":  {"type": "string", "minLength": 1}
					}
				}
			}
		}
	}`,
	models.ContentSummary: `{
		"type": "object",
		"required": ["summary"],
		"properties": {
			"summary":    {"type": "string", "minLength": 1},
			"key_points": {"type": "array", "items": {"type": "string"}}
		}
	}`,
}
