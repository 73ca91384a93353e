package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/morispolanco/criba/internal/chat"
	"github.com/morispolanco/criba/internal/prompts"
)

func (m Model) View() string {
	if !m.ready {
		return "\n  Preparando el consejero…"
	}

	header := titleStyle.Render("El Consejero del Ingenio") + " " +
		headerStyle.Render(fmt.Sprintf("· %s · %s · perfil %s", m.session.Mode().Label(), m.opts.ModelName, m.session.Profile()))

	status := statusStyle.Render(m.status)
	if m.isError {
		status = errorStyle.Render(m.status)
	}

	main := lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		inputStyle.Width(m.viewport.Width-2).Render(m.input.View()),
		status,
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, main, m.renderSidebar())
}

func (m Model) renderTranscript() string {
	messages := m.session.Messages()
	if len(messages) == 0 && !m.streaming {
		return headerStyle.Render("\n  Cuéntame en qué estás pensando. Tab cambia de modo.\n")
	}

	var b strings.Builder
	for _, msg := range messages {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}

	if m.streaming {
		b.WriteString(assistantStyle.Render("Consejero") + " " + m.spinner.View() + "\n")
		if m.partial != "" {
			b.WriteString(m.markdown(m.partial))
		}
	}
	return b.String()
}

func (m Model) renderMessage(msg chat.Message) string {
	var b strings.Builder
	stamp := timeStyle.Render(msg.Timestamp.Format("15:04"))

	switch msg.Role {
	case chat.RoleUser:
		b.WriteString(userStyle.Render("Tú") + " " + stamp)
		if msg.Mode != prompts.ModeNormal {
			b.WriteString(" " + timeStyle.Render("["+msg.Mode.Label()+"]"))
		}
		b.WriteString("\n")
		if msg.Attachment != "" {
			b.WriteString("📎 " + msg.Attachment + "\n")
		}
		if msg.Content != "" {
			b.WriteString(lipgloss.NewStyle().Width(m.viewport.Width - 2).Render(msg.Content))
			b.WriteString("\n")
		}
	default:
		b.WriteString(assistantStyle.Render("Consejero") + " " + stamp + "\n")
		if msg.Content != "" {
			b.WriteString(m.markdown(msg.Content))
		}
		if msg.Failed() {
			b.WriteString(errorStyle.Render("⚠ " + msg.Error))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) markdown(s string) string {
	if m.renderer == nil {
		return s + "\n"
	}
	out, err := m.renderer.Render(s)
	if err != nil {
		return s + "\n"
	}
	return out
}

func (m Model) renderSidebar() string {
	inner := sidebarWidth - 2
	var b strings.Builder

	b.WriteString(sectionStyle.Render("Modos"))
	b.WriteString("\n")
	current := m.session.Mode()
	for _, t := range prompts.All() {
		if t.Mode == current {
			b.WriteString(activeMode.Render("▸ " + t.Label))
		} else {
			b.WriteString(inactiveMode.Render("  " + t.Label))
		}
		b.WriteString("\n")
	}

	b.WriteString(sectionStyle.Render("Memoria"))
	b.WriteString("\n")
	if m.memory.IsEmpty() {
		b.WriteString(headerStyle.Render("Aún no recuerdo nada."))
		b.WriteString("\n")
	} else {
		writeItems(&b, "Hechos", m.memory.Facts, inner)
		writeItems(&b, "Preferencias", m.memory.Preferences, inner)
		if !m.memory.LastUpdated.IsZero() {
			b.WriteString(timeStyle.Render("Actualizada " + m.memory.LastUpdated.Local().Format("02/01 15:04")))
			b.WriteString("\n")
		}
	}

	if m.pending != nil {
		b.WriteString(sectionStyle.Render("Adjunto"))
		b.WriteString("\n📎 " + truncate(m.pending.Name, inner-3) + "\n")
	}

	b.WriteString(sectionStyle.Render("Teclas"))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("tab modo · ctrl+n nueva\nctrl+k olvidar · esc cancelar\nctrl+c salir"))

	height := m.height - 2
	if height < 1 {
		height = 1
	}
	return sidebarStyle.Height(height).Render(b.String())
}

func writeItems(b *strings.Builder, title string, items []string, width int) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title + ":\n")
	for _, item := range items {
		b.WriteString("• " + truncate(item, width-2) + "\n")
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 1 || len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
