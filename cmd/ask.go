package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/morispolanco/criba/internal/chat"
	"github.com/morispolanco/criba/internal/llm"
	"github.com/morispolanco/criba/internal/memory"
	"github.com/morispolanco/criba/internal/prompts"
)

var (
	successMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	failMark        = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	keyStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	assistantPrompt = dimStyle.Render("consejero> ")
)

const askLongDesc string = `Ask the consejero a single question and stream the answer to stdout.

The question uses the same modes, memory and attachments as the terminal
chat. In the default mode the exchange also updates the memory; the command
waits for that to finish before exiting.

Examples:
  consejero ask "Dame tres nombres para una panadería"
  consejero ask --mode critico "Quiero dejar mi trabajo para abrir un café"
  consejero ask --file contrato.pdf "¿Qué cláusulas debería revisar?"`

func newAskCmd(a *app) *cobra.Command {
	var modeName, file string

	cmd := &cobra.Command{
		Use:   "ask [flags] <texto>",
		Short: "Ask a single question",
		Long:  askLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" && file == "" {
				return errors.New("nothing to ask: pass a question or --file")
			}

			mode, err := prompts.Parse(modeName)
			if err != nil {
				return err
			}

			var attachment *llm.Attachment
			if file != "" {
				attachment, err = llm.LoadAttachment(file)
				if err != nil {
					return err
				}
			}

			if err := a.cfg.RequireGemini(); err != nil {
				return err
			}
			provider, err := a.newProvider(cmd.Context(), a.cfg, a.log)
			if err != nil {
				return fmt.Errorf("creating Gemini provider: %w", err)
			}
			store, err := a.openStore(a.log)
			if err != nil {
				return err
			}

			session, err := chat.NewSession(provider, store, a.log, chat.Options{
				Profile:       a.cfg.Profile,
				Mode:          mode,
				HistoryLimit:  a.cfg.HistoryLimit,
				MemoryEnabled: a.cfg.MemoryEnabled,
			})
			if err != nil {
				return err
			}

			errOut := cmd.ErrOrStderr()
			session.OnMemoryUpdate(func(mem memory.UserMemory) {
				fmt.Fprintf(errOut, "  %s %s\n", successMark, dimStyle.Render(
					fmt.Sprintf("memoria actualizada (%d hechos, %d preferencias)", len(mem.Facts), len(mem.Preferences))))
			})

			out := cmd.OutOrStdout()
			fmt.Fprint(out, assistantPrompt)
			_, err = session.Send(cmd.Context(), text, attachment, func(chunk string) {
				fmt.Fprint(out, chunk)
			})
			fmt.Fprintln(out)
			if err != nil {
				fmt.Fprintf(errOut, "  %s %v\n", failMark, err)
				return err
			}

			session.Wait()
			return nil
		},
	}

	cmd.Flags().StringVarP(&modeName, "mode", "m", string(prompts.ModeNormal), "Conversation mode (see \"consejero modes\")")
	cmd.Flags().StringVarP(&file, "file", "f", "", "PDF or text file to attach")
	return cmd
}
