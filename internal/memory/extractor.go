package memory

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/morispolanco/criba/internal/prompts"
)

// Generator is the structured-output half of llm.Provider.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, out any) error
}

var extractionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"facts": {
			Type:        genai.TypeArray,
			Description: "Hechos duraderos sobre el usuario",
			Items:       &genai.Schema{Type: genai.TypeString},
		},
		"preferences": {
			Type:        genai.TypeArray,
			Description: "Preferencias del usuario",
			Items:       &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"facts", "preferences"},
}

type extraction struct {
	Facts       []string `json:"facts"`
	Preferences []string `json:"preferences"`
}

type Extractor struct {
	gen   Generator
	store *Store
	log   *slog.Logger
}

func NewExtractor(gen Generator, store *Store, log *slog.Logger) *Extractor {
	return &Extractor{gen: gen, store: store, log: log}
}

// Extract asks the model for new facts and preferences in one exchange and
// merges them into profile's memory.
func (e *Extractor) Extract(ctx context.Context, profile, userText, assistantText string) (UserMemory, error) {
	current := e.store.Get(profile)
	prompt := prompts.Extraction(current.Prompt(), userText, assistantText)

	var out extraction
	if err := e.gen.GenerateJSON(ctx, prompt, extractionSchema, &out); err != nil {
		return current, fmt.Errorf("extracting memory: %w", err)
	}
	if len(out.Facts) == 0 && len(out.Preferences) == 0 {
		e.log.Debug("nothing new to remember", "profile", profile)
		return current, nil
	}
	return e.store.Merge(profile, out.Facts, out.Preferences)
}
