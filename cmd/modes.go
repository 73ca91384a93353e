package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/morispolanco/criba/internal/prompts"
)

func newModesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List the conversation modes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out)
			for _, t := range prompts.All() {
				name := keyStyle.Render(fmt.Sprintf("%-10s", t.Mode))
				fmt.Fprintf(out, "  %s %s\n", name, t.Label)
				fmt.Fprintf(out, "  %-10s %s\n", "", dimStyle.Render(t.Description))
			}
			fmt.Fprintf(out, "\n  %s\n", dimStyle.Render("Only the "+prompts.ModeNormal.Label()+" mode updates the memory."))
			return nil
		},
	}
}
