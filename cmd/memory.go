package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/morispolanco/criba/internal/memory"
)

func newMemoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect or clear what the consejero remembers",
	}

	var asJSON bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the remembered facts and preferences of the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore(a.log)
			if err != nil {
				return err
			}
			mem := store.Get(a.cfg.Profile)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(mem)
			}
			printMemory(cmd.OutOrStdout(), a.cfg.Profile, mem)
			return nil
		},
	}
	showCmd.Flags().BoolVar(&asJSON, "json", false, "Print the memory as JSON")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget everything remembered for the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore(a.log)
			if err != nil {
				return err
			}
			if err := store.Clear(a.cfg.Profile); err != nil {
				return fmt.Errorf("clearing memory: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s Memory cleared for profile %s\n", successMark, keyStyle.Render(a.cfg.Profile))
			return nil
		},
	}

	cmd.AddCommand(showCmd, clearCmd)
	return cmd
}

func printMemory(w io.Writer, profile string, mem memory.UserMemory) {
	fmt.Fprintf(w, "\n  %s %s\n", keyStyle.Render("Profile:"), profile)
	if mem.IsEmpty() {
		fmt.Fprintf(w, "  %s\n", dimStyle.Render("Nothing remembered yet."))
		return
	}

	for _, section := range []struct {
		title string
		items []string
	}{
		{"Facts", mem.Facts},
		{"Preferences", mem.Preferences},
	} {
		if len(section.items) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n  %s\n", keyStyle.Render(section.title))
		for _, item := range section.items {
			fmt.Fprintf(w, "    • %s\n", item)
		}
	}
	if !mem.LastUpdated.IsZero() {
		fmt.Fprintf(w, "\n  %s\n", dimStyle.Render("Last updated "+mem.LastUpdated.Local().Format("2006-01-02 15:04")))
	}
}
