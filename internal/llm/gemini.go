package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

type GeminiConfig struct {
	APIKey          string
	ModelName       string
	ExtractionModel string
	// BaseURL overrides the API endpoint, used against local fakes.
	BaseURL string
}

type GeminiProvider struct {
	client          *genai.Client
	modelName       string
	extractionModel string
	log             *slog.Logger
}

func NewGeminiProvider(ctx context.Context, cfg GeminiConfig, log *slog.Logger) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key must be provided")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("gemini model must be provided")
	}
	if cfg.ExtractionModel == "" {
		cfg.ExtractionModel = cfg.ModelName
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	return &GeminiProvider{
		client:          client,
		modelName:       cfg.ModelName,
		extractionModel: cfg.ExtractionModel,
		log:             log,
	}, nil
}

func (gp *GeminiProvider) ModelName() string {
	return gp.modelName
}

// Stream replays req.History into a fresh chat handle and streams the reply
// to req.Message. The system prompt is rebuilt by the caller on every turn,
// so the handle is never reused.
func (gp *GeminiProvider) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		parts, err := messageParts(req)
		if err != nil {
			yield("", err)
			return
		}

		var config *genai.GenerateContentConfig
		if req.SystemPrompt != "" {
			config = &genai.GenerateContentConfig{
				SystemInstruction: &genai.Content{
					Parts: []*genai.Part{{Text: req.SystemPrompt}},
				},
			}
		}

		chat, err := gp.client.Chats.Create(ctx, gp.modelName, config, historyContents(req.History))
		if err != nil {
			yield("", fmt.Errorf("error creating chat session: %w", err))
			return
		}

		gp.log.Debug("streaming reply", "model", gp.modelName, "history", len(req.History), "attachment", req.Attachment != nil)

		for resp, err := range chat.SendMessageStream(ctx, parts...) {
			if err != nil {
				yield("", fmt.Errorf("Gemini API SendMessageStream error: %w", err))
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

func (gp *GeminiProvider) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, out any) error {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
		Temperature:      genai.Ptr[float32](0),
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := gp.client.Models.GenerateContent(ctx, gp.extractionModel, contents, config)
	if err != nil {
		return fmt.Errorf("Gemini API GenerateContent error: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return fmt.Errorf("Gemini API returned no valid candidates")
	}

	text := stripCodeFence(resp.Text())
	if text == "" {
		return fmt.Errorf("Gemini API returned an empty JSON response")
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decoding Gemini JSON response: %w", err)
	}
	return nil
}

func historyContents(history []Turn) []*genai.Content {
	if len(history) == 0 {
		return nil
	}
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		var parts []*genai.Part
		if turn.Attachment != nil {
			part := attachmentPart(turn.Attachment)
			parts = append(parts, &part)
		}
		if strings.TrimSpace(turn.Text) != "" {
			parts = append(parts, &genai.Part{Text: turn.Text})
		}
		if len(parts) == 0 {
			continue
		}
		role := genai.RoleUser
		if turn.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{Role: string(role), Parts: parts})
	}
	return contents
}

func messageParts(req Request) ([]genai.Part, error) {
	var parts []genai.Part
	if a := req.Attachment; a != nil {
		parts = append(parts, attachmentPart(a))
	}
	if msg := strings.TrimSpace(req.Message); msg != "" {
		parts = append(parts, genai.Part{Text: msg})
	}
	if len(parts) == 0 {
		return nil, ErrEmptyRequest
	}
	return parts, nil
}

// attachmentPart sends text files as a labelled text part and PDFs inline.
func attachmentPart(a *Attachment) genai.Part {
	if a.IsText() {
		return genai.Part{Text: a.TextBlock()}
	}
	return genai.Part{InlineData: &genai.Blob{MIMEType: a.MIMEType, Data: a.Data}}
}

// stripCodeFence tolerates models that wrap JSON in ```json fences despite
// the response MIME type.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

var _ Provider = (*GeminiProvider)(nil)
