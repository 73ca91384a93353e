package cmd

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/morispolanco/criba/internal/chat"
	"github.com/morispolanco/criba/internal/logging"
	"github.com/morispolanco/criba/internal/memory"
	"github.com/morispolanco/criba/internal/tui"
)

// runTUI opens the terminal chat. Logs go to a file so they do not tear the
// screen.
func (a *app) runTUI(ctx context.Context) error {
	if err := a.cfg.RequireGemini(); err != nil {
		return err
	}

	f, err := logging.OpenFile(a.cfg.LogFilePath())
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()
	log := logging.New(
		logging.WithWriter(f),
		logging.WithDebug(a.cfg.Log.Debug),
		logging.WithJSON(a.cfg.Log.JSON),
	)

	provider, err := a.newProvider(ctx, a.cfg, log)
	if err != nil {
		return fmt.Errorf("creating Gemini provider: %w", err)
	}
	store, err := a.openStore(log)
	if err != nil {
		return err
	}

	session, err := chat.NewSession(provider, store, log, chat.Options{
		Profile:       a.cfg.Profile,
		HistoryLimit:  a.cfg.HistoryLimit,
		MemoryEnabled: a.cfg.MemoryEnabled,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.New(ctx, session, log, tui.Options{ModelName: provider.ModelName()})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	notify := func() { p.Send(tui.MemoryChangedMsg{}) }
	session.OnMemoryUpdate(func(memory.UserMemory) { notify() })

	log.Info("starting terminal chat", "model", provider.ModelName(), "profile", a.cfg.Profile)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	})
	g.Go(func() error {
		// a broken watcher only costs live reloads
		if err := store.Watch(gctx, notify); err != nil {
			log.Warn("memory watcher stopped", "err", err)
		}
		return nil
	})

	err = g.Wait()
	session.Wait()
	log.Info("terminal chat closed")
	return err
}
