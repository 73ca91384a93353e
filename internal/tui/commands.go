package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type command struct {
	name string
	arg  string
}

// parseCommand splits "/modo ideas" into its name and argument. ok is false
// for ordinary messages.
func parseCommand(input string) (command, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return command{}, false
	}
	name, arg, _ := strings.Cut(input[1:], " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, true
}

const helpText = "/modo <nombre> · /adjuntar <ruta> · /olvidar · /nueva · /salir"

// expandPath resolves a leading ~ against the home directory.
func expandPath(path string) (string, error) {
	path = strings.Trim(path, `"'`)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
