package llm

import (
	"context"
	"errors"
	"iter"

	"google.golang.org/genai"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

var ErrEmptyRequest = errors.New("request has neither text nor attachment")

// Turn is one entry of the rolling history replayed to the model.
type Turn struct {
	Role Role
	Text string
	// Attachment is replayed with the user turn that first carried it, so
	// follow-up questions still see the document.
	Attachment *Attachment
}

type Request struct {
	SystemPrompt string
	History      []Turn
	Message      string
	Attachment   *Attachment
}

// Provider streams chat completions and runs structured JSON calls.
type Provider interface {
	// Stream yields reply fragments in order. A non-nil error ends the
	// sequence.
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]
	// GenerateJSON asks for a response constrained by schema and decodes it
	// into out.
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, out any) error
	ModelName() string
}
