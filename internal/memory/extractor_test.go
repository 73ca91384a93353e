package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/morispolanco/criba/internal/logging"
)

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
	schema   *genai.Schema
}

func (f *fakeGenerator) GenerateJSON(_ context.Context, prompt string, schema *genai.Schema, out any) error {
	f.prompts = append(f.prompts, prompt)
	f.schema = schema
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.response), out)
}

func TestExtractor_MergesExtraction(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Merge("local", []string{"Es chef"}, nil)
	require.NoError(t, err)

	gen := &fakeGenerator{response: `{"facts":["es chef","Abrirá un restaurante"],"preferences":["Le gustan las listas"]}`}
	mem, err := NewExtractor(gen, s, logging.Nop()).Extract(context.Background(), "local", "Voy a abrir un restaurante", "¡Qué bien!")
	require.NoError(t, err)

	assert.Equal(t, []string{"Es chef", "Abrirá un restaurante"}, mem.Facts)
	assert.Equal(t, []string{"Le gustan las listas"}, mem.Preferences)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "- Es chef")
	assert.Contains(t, gen.prompts[0], "Voy a abrir un restaurante")
	assert.Equal(t, extractionSchema, gen.schema)
}

func TestExtractor_NothingNew(t *testing.T) {
	s := newTestStore(t)
	gen := &fakeGenerator{response: `{"facts":[],"preferences":[]}`}
	e := NewExtractor(gen, s, logging.Nop())

	mem, err := e.Extract(context.Background(), "local", "hola", "hola")
	require.NoError(t, err)
	assert.True(t, mem.IsEmpty())
}

func TestExtractor_GeneratorError(t *testing.T) {
	s := newTestStore(t)
	gen := &fakeGenerator{err: errors.New("quota")}

	_, err := NewExtractor(gen, s, logging.Nop()).Extract(context.Background(), "local", "a", "b")
	assert.Error(t, err)
	assert.True(t, s.Get("local").IsEmpty())
}
