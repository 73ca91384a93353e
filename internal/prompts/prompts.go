// Package prompts holds the static system-prompt templates for each
// conversational mode and assembles the final system instruction.
package prompts

import (
	"errors"
	"fmt"
	"strings"
)

type Mode string

const (
	ModeConsejero Mode = "consejero"
	ModeIdeas     Mode = "ideas"
	ModeCritico   Mode = "critico"
	ModeSocratico Mode = "socratico"
	ModeAnalista  Mode = "analista"

	// ModeNormal is the mode whose exchanges feed the user memory.
	ModeNormal = ModeConsejero
)

var ErrUnknownMode = errors.New("unknown mode")

type Template struct {
	Mode        Mode
	Label       string
	Description string
	Instruction string
}

const persona = `Eres "El Consejero del Ingenio", un asesor creativo y práctico que responde siempre en español.
Hablas con calidez y precisión, evitas el relleno y usas Markdown cuando ayuda a la lectura.`

var templates = []Template{
	{
		Mode:        ModeConsejero,
		Label:       "Consejero",
		Description: "Conversación general y consejo práctico",
		Instruction: `Escucha lo que el usuario plantea, aclara el problema real y ofrece consejos concretos y accionables.
Cuando convenga, propone uno o dos siguientes pasos. Usa lo que sabes del usuario para personalizar la respuesta sin mencionarlo de forma explícita.`,
	},
	{
		Mode:        ModeIdeas,
		Label:       "Lluvia de ideas",
		Description: "Genera muchas ideas variadas y originales",
		Instruction: `Actúa como facilitador de una lluvia de ideas. Propón al menos ocho ideas numeradas, desde las más seguras hasta las más audaces.
Cada idea lleva un título corto y una frase que explique por qué podría funcionar. No critiques las ideas en esta fase.`,
	},
	{
		Mode:        ModeCritico,
		Label:       "Abogado del diablo",
		Description: "Cuestiona el plan y busca sus puntos débiles",
		Instruction: `Haz de abogado del diablo. Identifica supuestos ocultos, riesgos y objeciones fuertes al planteamiento del usuario.
Ordena los riesgos de mayor a menor gravedad y, para cada uno, sugiere cómo mitigarlo. Sé firme pero respetuoso.`,
	},
	{
		Mode:        ModeSocratico,
		Label:       "Socrático",
		Description: "Guía con preguntas en lugar de respuestas",
		Instruction: `Sigue el método socrático. No des la respuesta directamente: formula entre una y tres preguntas que ayuden al usuario a razonar por sí mismo.
Si el usuario está atascado, ofrece una pista breve antes de la siguiente pregunta.`,
	},
	{
		Mode:        ModeAnalista,
		Label:       "Analista",
		Description: "Analiza documentos y extrae lo esencial",
		Instruction: `Analiza con rigor el texto o documento que comparte el usuario. Empieza con un resumen de cinco líneas como máximo,
después lista las ideas clave, los datos relevantes y las preguntas abiertas. Cita fragmentos cortos cuando sustenten una conclusión.`,
	},
}

// All returns the templates in display order.
func All() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

func Lookup(mode Mode) (Template, error) {
	for _, t := range templates {
		if t.Mode == mode {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

// Parse resolves a mode from its key or its label, ignoring case and accents
// in the common spellings users type.
func Parse(name string) (Mode, error) {
	needle := normalize(name)
	if needle == "" {
		return "", fmt.Errorf("%w: empty name", ErrUnknownMode)
	}
	for _, t := range templates {
		if needle == normalize(string(t.Mode)) || needle == normalize(t.Label) {
			return t.Mode, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, name)
}

// Next cycles through modes in display order.
func Next(mode Mode) Mode {
	for i, t := range templates {
		if t.Mode == mode {
			return templates[(i+1)%len(templates)].Mode
		}
	}
	return templates[0].Mode
}

func (m Mode) Label() string {
	if t, err := Lookup(m); err == nil {
		return t.Label
	}
	return string(m)
}

// Memory is the slice of user memory rendered into the system prompt.
type Memory struct {
	Facts       []string
	Preferences []string
}

func (m Memory) empty() bool {
	return len(m.Facts) == 0 && len(m.Preferences) == 0
}

// Build assembles the system instruction for mode.
func Build(mode Mode, mem Memory, hasAttachment bool) (string, error) {
	t, err := Lookup(mode)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n## Modo: ")
	b.WriteString(t.Label)
	b.WriteString("\n")
	b.WriteString(t.Instruction)

	if !mem.empty() {
		b.WriteString("\n\n## Lo que sabes del usuario\n")
		writeList(&b, "Hechos", mem.Facts)
		writeList(&b, "Preferencias", mem.Preferences)
	}

	if hasAttachment {
		b.WriteString("\n\n## Archivo adjunto\n")
		b.WriteString("El usuario adjuntó un archivo a su mensaje. Básate en su contenido y dilo cuando algo no aparezca en él.")
	}

	return b.String(), nil
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title)
	b.WriteString(":\n")
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}

var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

func normalize(s string) string {
	return accentReplacer.Replace(strings.ToLower(strings.TrimSpace(s)))
}
