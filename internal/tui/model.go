// Package tui is the terminal front-end: a scrolling transcript, an input
// line and a sidebar with the modes and the remembered facts.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/morispolanco/criba/internal/chat"
	"github.com/morispolanco/criba/internal/llm"
	"github.com/morispolanco/criba/internal/memory"
	"github.com/morispolanco/criba/internal/prompts"
)

// MemoryChangedMsg tells the model to re-read the session memory. It is sent
// from outside the program after a background extraction or a file reload.
type MemoryChangedMsg struct{}

type (
	chunkMsg     string
	replyDoneMsg struct{ err error }
	streamClosed struct{}
)

type Options struct {
	ModelName string
	// MarkdownStyle is a glamour standard style; empty means auto-detect.
	MarkdownStyle string
}

type Model struct {
	ctx     context.Context
	session *chat.Session
	log     *slog.Logger
	opts    Options

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	width  int
	height int
	ready  bool

	streaming bool
	partial   string
	cancel    context.CancelFunc
	events    <-chan tea.Msg

	pending *llm.Attachment
	status  string
	isError bool
	memory  memory.UserMemory
}

func New(ctx context.Context, session *chat.Session, log *slog.Logger, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "Escribe tu mensaje… (Enter envía, /ayuda para comandos)"
	ti.Prompt = "› "
	ti.CharLimit = 8000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = assistantStyle

	m := Model{
		ctx:      ctx,
		session:  session,
		log:      log,
		opts:     opts,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		memory:   session.Memory(),
		status:   helpText,
	}
	m.renderer = m.newRenderer(78)
	return m
}

func (m Model) newRenderer(width int) *glamour.TermRenderer {
	if width < 20 {
		width = 20
	}
	styleOpt := glamour.WithAutoStyle()
	if m.opts.MarkdownStyle != "" {
		styleOpt = glamour.WithStandardStyle(m.opts.MarkdownStyle)
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		m.log.Warn("markdown renderer unavailable", "err", err)
		return nil
	}
	return r
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.stop()
			return m, tea.Quit
		case "esc":
			if m.streaming {
				m.stop()
				m.setStatus("Respuesta cancelada.", false)
			}
			return m, nil
		case "tab":
			mode := prompts.Next(m.session.Mode())
			if err := m.session.SetMode(mode); err == nil {
				m.setStatus("Modo: "+mode.Label(), false)
			}
			return m, nil
		case "ctrl+n":
			m.resetConversation()
			return m, nil
		case "ctrl+k":
			m.forget()
			return m, nil
		case "enter":
			return m.submit()
		}

	case chunkMsg:
		m.partial += string(msg)
		m.refresh()
		return m, waitForEvent(m.events)

	case replyDoneMsg:
		m.streaming = false
		m.partial = ""
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.setStatus("Error: "+msg.err.Error(), true)
		} else if msg.err == nil {
			m.setStatus(helpText, false)
		}
		m.events = nil
		m.refresh()
		return m, nil

	case streamClosed:
		return m, nil

	case MemoryChangedMsg:
		m.memory = m.session.Memory()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.streaming {
			m.refresh()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if cmd, ok := parseCommand(text); ok {
		m.input.Reset()
		return m.runCommand(cmd)
	}
	if m.streaming {
		m.setStatus("Espera a que termine la respuesta (Esc cancela).", true)
		return m, nil
	}
	if text == "" && m.pending == nil {
		return m, nil
	}

	m.input.Reset()
	ctx, cancel := context.WithCancel(m.ctx)
	events := make(chan tea.Msg, 64)
	m.cancel = cancel
	m.events = events
	m.streaming = true
	m.partial = ""
	attachment := m.pending
	m.pending = nil
	m.setStatus("Pensando… (Esc cancela)", false)

	session, program := m.session, m.ctx
	go func() {
		defer close(events)
		_, err := session.Send(ctx, text, attachment, func(chunk string) {
			select {
			case events <- chunkMsg(chunk):
			case <-ctx.Done():
			}
		})
		// after esc the model is still reading; after quit only the
		// program context tells us nobody is
		select {
		case events <- replyDoneMsg{err: err}:
		case <-program.Done():
		}
	}()

	m.refresh()
	return m, waitForEvent(events)
}

func (m Model) runCommand(c command) (tea.Model, tea.Cmd) {
	switch c.name {
	case "modo":
		mode, err := prompts.Parse(c.arg)
		if err != nil {
			m.setStatus(fmt.Sprintf("Modo desconocido %q.", c.arg), true)
			return m, nil
		}
		_ = m.session.SetMode(mode)
		m.setStatus("Modo: "+mode.Label(), false)
	case "adjuntar":
		path, err := expandPath(c.arg)
		if err == nil && path == "" {
			err = errors.New("indica la ruta del archivo")
		}
		var att *llm.Attachment
		if err == nil {
			att, err = llm.LoadAttachment(path)
		}
		if err != nil {
			m.setStatus("No se pudo adjuntar: "+err.Error(), true)
			return m, nil
		}
		m.pending = att
		m.setStatus("Adjunto listo: "+att.Name, false)
	case "olvidar":
		m.forget()
	case "nueva":
		m.resetConversation()
	case "salir":
		m.stop()
		return m, tea.Quit
	case "ayuda":
		m.setStatus(helpText, false)
	default:
		m.setStatus(fmt.Sprintf("Comando desconocido /%s. %s", c.name, helpText), true)
	}
	return m, nil
}

func (m *Model) resetConversation() {
	if err := m.session.Reset(); err != nil {
		m.setStatus("No se puede empezar de nuevo mientras responde.", true)
		return
	}
	m.pending = nil
	m.setStatus("Nueva conversación.", false)
	m.refresh()
}

func (m *Model) forget() {
	if err := m.session.ClearMemory(); err != nil {
		m.log.Error("clearing memory", "err", err)
		m.setStatus("No se pudo borrar la memoria: "+err.Error(), true)
		return
	}
	m.memory = m.session.Memory()
	m.setStatus("Memoria borrada.", false)
}

// stop cancels the running reply, if any.
func (m *Model) stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Model) setStatus(s string, isError bool) {
	m.status = s
	m.isError = isError
}

func (m *Model) layout() {
	mainWidth := m.width - sidebarWidth - 4
	if mainWidth < 20 {
		mainWidth = 20
	}
	// header, input box (3) and status line
	vpHeight := m.height - 6
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = mainWidth
	m.viewport.Height = vpHeight
	m.input.Width = mainWidth - 4
	m.renderer = m.newRenderer(mainWidth - 2)
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return streamClosed{}
		}
		return msg
	}
}
