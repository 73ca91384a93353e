package prompts

import (
	"fmt"
	"strings"
)

const extractionInstruction = `Eres un módulo de memoria. Lee el intercambio entre el usuario y el asistente
y extrae únicamente información duradera sobre el usuario que sea útil en conversaciones futuras.

- "facts": hechos sobre el usuario (profesión, proyectos, contexto, metas).
- "preferences": preferencias sobre cómo quiere que se le responda o sobre sus gustos.

Reglas:
- Cada elemento es una frase breve en español, en tercera persona ("Trabaja como diseñadora").
- No repitas lo que ya está en la memoria actual.
- No incluyas información sobre el asistente ni detalles pasajeros de la conversación.
- Si no hay nada nuevo, devuelve listas vacías.

Responde solo con JSON con la forma {"facts": [], "preferences": []}.`

// Extraction renders the prompt for the memory extraction call.
func Extraction(current Memory, userText, assistantText string) string {
	var b strings.Builder
	b.WriteString(extractionInstruction)
	b.WriteString("\n\n## Memoria actual\n")
	if current.empty() {
		b.WriteString("(vacía)\n")
	} else {
		writeList(&b, "Hechos", current.Facts)
		writeList(&b, "Preferencias", current.Preferences)
	}
	fmt.Fprintf(&b, "\n## Intercambio\nUsuario: %s\n\nAsistente: %s\n", strings.TrimSpace(userText), strings.TrimSpace(assistantText))
	return b.String()
}
