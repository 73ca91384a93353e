package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_EveryModeHasPersonaAndInstruction(t *testing.T) {
	for _, tpl := range All() {
		t.Run(string(tpl.Mode), func(t *testing.T) {
			got, err := Build(tpl.Mode, Memory{}, false)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(got, persona))
			assert.Contains(t, got, tpl.Label)
			assert.Contains(t, got, tpl.Instruction)
			assert.NotContains(t, got, "Lo que sabes del usuario")
			assert.NotContains(t, got, "Archivo adjunto")
		})
	}
}

func TestBuild_IncludesMemoryAndAttachment(t *testing.T) {
	got, err := Build(ModeConsejero, Memory{
		Facts:       []string{"Trabaja como arquitecta"},
		Preferences: []string{"Prefiere respuestas cortas"},
	}, true)
	require.NoError(t, err)

	assert.Contains(t, got, "## Lo que sabes del usuario")
	assert.Contains(t, got, "Hechos:\n- Trabaja como arquitecta\n")
	assert.Contains(t, got, "Preferencias:\n- Prefiere respuestas cortas\n")
	assert.Contains(t, got, "## Archivo adjunto")
}

func TestBuild_OnlyPreferences(t *testing.T) {
	got, err := Build(ModeIdeas, Memory{Preferences: []string{"Le gusta el humor"}}, false)
	require.NoError(t, err)
	assert.NotContains(t, got, "Hechos:")
	assert.Contains(t, got, "- Le gusta el humor")
}

func TestBuild_UnknownMode(t *testing.T) {
	_, err := Build(Mode("poeta"), Memory{}, false)
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestParse(t *testing.T) {
	cases := map[string]Mode{
		"consejero":          ModeConsejero,
		"  IDEAS ":           ModeIdeas,
		"Lluvia de ideas":    ModeIdeas,
		"abogado del diablo": ModeCritico,
		"crítico":            ModeCritico,
		"Socrático":          ModeSocratico,
		"analista":           ModeAnalista,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := Parse("")
	assert.ErrorIs(t, err, ErrUnknownMode)
	_, err = Parse("poeta")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestNext_Cycles(t *testing.T) {
	all := All()
	mode := all[0].Mode
	seen := map[Mode]bool{}
	for range all {
		seen[mode] = true
		mode = Next(mode)
	}
	assert.Len(t, seen, len(all))
	assert.Equal(t, all[0].Mode, mode)
	assert.Equal(t, all[0].Mode, Next(Mode("desconocido")))
}

func TestModeLabel(t *testing.T) {
	assert.Equal(t, "Abogado del diablo", ModeCritico.Label())
	assert.Equal(t, "otro", Mode("otro").Label())
}

func TestAll_ReturnsCopy(t *testing.T) {
	a := All()
	a[0].Label = "cambiado"
	assert.NotEqual(t, "cambiado", All()[0].Label)
}

func TestExtraction(t *testing.T) {
	empty := Extraction(Memory{}, " Soy chef ", "¡Genial!")
	assert.Contains(t, empty, "(vacía)")
	assert.Contains(t, empty, "Usuario: Soy chef\n")
	assert.Contains(t, empty, "Asistente: ¡Genial!")

	withMem := Extraction(Memory{Facts: []string{"Es chef"}}, "hola", "hola")
	assert.NotContains(t, withMem, "(vacía)")
	assert.Contains(t, withMem, "- Es chef")
}
