package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/morispolanco/criba/internal/bot"
	"github.com/morispolanco/criba/internal/guildconfig"
)

const discordLongDesc string = `Serve the consejero as a Discord bot.

An administrator picks the channel with /set-llm-channel; every member then
gets their own conversation and memory profile. Requires DISCORD_BOT_TOKEN
and a Gemini API key.`

func newDiscordCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "discord",
		Short: "Run the Discord bot",
		Long:  discordLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.RequireDiscord(); err != nil {
				return err
			}
			ctx := cmd.Context()

			guildMgr, err := guildconfig.NewManager(a.cfg.DataDir, a.log)
			if err != nil {
				return fmt.Errorf("creating guild config manager: %w", err)
			}
			provider, err := a.newProvider(ctx, a.cfg, a.log)
			if err != nil {
				return fmt.Errorf("creating Gemini provider: %w", err)
			}
			store, err := a.openStore(a.log)
			if err != nil {
				return err
			}

			discordBot, err := bot.NewBot(a.cfg, provider, store, guildMgr, a.log)
			if err != nil {
				return fmt.Errorf("creating bot: %w", err)
			}
			if err := discordBot.Start(); err != nil {
				return fmt.Errorf("starting bot: %w", err)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return store.Watch(gctx, nil)
			})
			g.Go(func() error {
				<-gctx.Done()
				if err := discordBot.Stop(); err != nil {
					a.log.Error("stopping Discord bot", "err", err)
				}
				return nil
			})

			err = g.Wait()
			a.log.Info("bot shutdown complete")
			return err
		},
	}
}
