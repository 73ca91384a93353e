// Package cmd wires the consejero command line: the terminal chat, one-shot
// questions, memory housekeeping and the Discord bot.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/morispolanco/criba/internal/config"
	"github.com/morispolanco/criba/internal/llm"
	"github.com/morispolanco/criba/internal/logging"
	"github.com/morispolanco/criba/internal/memory"
)

const rootLongDesc string = `El Consejero del Ingenio is a conversational advisor backed by Gemini.

It streams answers into a terminal chat, switches between conversation modes,
reads attached PDF and text files, and remembers durable facts and
preferences about you across sessions.

Examples:
  consejero                          Open the terminal chat
  consejero ask "¿Cómo empiezo?"     Ask a single question
  consejero ask -f informe.pdf -m analista "Resume esto"
  consejero memory show              Print what the consejero remembers
  consejero discord                  Serve the consejero as a Discord bot`

const rootShortDesc string = "El Consejero del Ingenio - a Gemini-backed advisor"

// app carries the state the persistent pre-run resolves for every command.
type app struct {
	cfg *config.Config
	log *slog.Logger

	// newProvider is swapped out in tests.
	newProvider func(ctx context.Context, cfg *config.Config, log *slog.Logger) (llm.Provider, error)
}

func newApp() *app {
	return &app{newProvider: geminiProvider}
}

func geminiProvider(ctx context.Context, cfg *config.Config, log *slog.Logger) (llm.Provider, error) {
	return llm.NewGeminiProvider(ctx, llm.GeminiConfig{
		APIKey:          cfg.GeminiAPIKey,
		ModelName:       cfg.GeminiModelName,
		ExtractionModel: cfg.ExtractionModelName,
		BaseURL:         cfg.GeminiBaseURL,
	}, log)
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(newApp())
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "consejero",
		Short:         rootShortDesc,
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd.Context())
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.String("data-dir", "", "Directory for config.toml, memory and logs (default $XDG_CONFIG_HOME/consejero)")
	pf.String("model", "", "Gemini model name (default "+config.DefaultModelName+")")
	pf.StringP("profile", "p", "", "Memory profile (default "+config.DefaultProfile+")")
	pf.Bool("no-memory", false, "Disable memory extraction for this run")
	pf.BoolP("debug", "d", false, "Enable debug logging")
	pf.Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(
		newAskCmd(a),
		newModesCmd(),
		newMemoryCmd(a),
		newDiscordCmd(a),
	)
	return cmd
}

// load resolves configuration from flags, environment and config.toml and
// builds the default stderr logger.
func (a *app) load(cmd *cobra.Command) error {
	flags := cmd.Flags()
	dataDir, err := flags.GetString("data-dir")
	if err != nil {
		return err
	}

	v, err := config.NewViper(dataDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	bindings := map[string]string{
		"gemini.model": "model",
		"profile":      "profile",
		"log.debug":    "debug",
		"log.json":     "log-json",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	if noMemory, _ := flags.GetBool("no-memory"); noMemory {
		v.Set("memory.enabled", false)
	}

	a.cfg, err = config.Load(v)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a.log = logging.New(
		logging.WithWriter(cmd.ErrOrStderr()),
		logging.WithDebug(a.cfg.Log.Debug),
		logging.WithJSON(a.cfg.Log.JSON),
		logging.WithPretty(true),
	)
	a.log.Debug("config loaded", "data_dir", a.cfg.DataDir, "model", a.cfg.GeminiModelName, "profile", a.cfg.Profile)
	return nil
}

func (a *app) openStore(log *slog.Logger) (*memory.Store, error) {
	store, err := memory.NewStore(a.cfg.MemoryPath(), log)
	if err != nil {
		return nil, fmt.Errorf("opening memory: %w", err)
	}
	return store, nil
}

// Execute runs the root command until it returns or the process is asked to
// stop.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	return NewRootCmd().ExecuteContext(ctx)
}
