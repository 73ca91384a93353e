// Package bot serves the consejero in Discord: one configured channel per
// server, one conversation and one memory profile per member.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/morispolanco/criba/internal/chat"
	"github.com/morispolanco/criba/internal/config"
	"github.com/morispolanco/criba/internal/guildconfig"
	"github.com/morispolanco/criba/internal/llm"
	"github.com/morispolanco/criba/internal/memory"
)

type Bot struct {
	discord            *discordgo.Session
	provider           llm.Provider
	store              *memory.Store
	cfg                *config.Config
	guildConfigMgr     *guildconfig.Manager
	log                *slog.Logger
	registeredCommands []*discordgo.ApplicationCommand

	ctx     context.Context
	cancel  context.CancelFunc
	replies sync.WaitGroup

	mu       sync.RWMutex
	sessions map[string]*chat.Session // Key: GuildID/UserID
}

func NewBot(cfg *config.Config, provider llm.Provider, store *memory.Store, guildMgr *guildconfig.Manager, log *slog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		return nil, fmt.Errorf("creating Discord session: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	botInstance := &Bot{
		discord:        dg,
		provider:       provider,
		store:          store,
		cfg:            cfg,
		guildConfigMgr: guildMgr,
		log:            log,
		ctx:            ctx,
		cancel:         cancel,
		sessions:       make(map[string]*chat.Session),
	}

	dg.AddHandler(botInstance.readyHandler)
	dg.AddHandler(botInstance.llmMessageCreateHandler)
	dg.AddHandler(botInstance.interactionCreateHandler)

	dg.Identify.Intents = discordgo.IntentGuilds | discordgo.IntentGuildMessages | discordgo.IntentMessageContent
	return botInstance, nil
}

func (b *Bot) Start() error {
	b.log.Info("bot is starting")
	if err := b.discord.Open(); err != nil {
		return fmt.Errorf("opening connection: %w", err)
	}
	b.log.Info("bot is running", "model", b.provider.ModelName())
	return nil
}

// Stop cancels in-flight replies, waits for them and for pending memory
// extractions, then closes the gateway connection.
func (b *Bot) Stop() error {
	b.log.Info("bot is shutting down")
	b.cancel()
	b.replies.Wait()

	b.mu.RLock()
	for _, s := range b.sessions {
		s.Wait()
	}
	b.mu.RUnlock()

	if b.discord != nil {
		return b.discord.Close()
	}
	return nil
}

// profileFor is the memory profile of a Discord member. It is shared by every
// server the member talks to the bot in.
func profileFor(userID string) string {
	return "discord-" + userID
}

func sessionKey(guildID, userID string) string {
	return guildID + "/" + userID
}

func (b *Bot) sessionFor(guildID, userID string) (*chat.Session, error) {
	key := sessionKey(guildID, userID)

	b.mu.RLock()
	s, found := b.sessions[key]
	b.mu.RUnlock()
	if found {
		return s, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if s, found := b.sessions[key]; found {
		return s, nil
	}

	s, err := chat.NewSession(b.provider, b.store, b.log.With("guild", guildID), chat.Options{
		Profile:       profileFor(userID),
		Mode:          b.guildConfigMgr.DefaultMode(guildID),
		HistoryLimit:  b.cfg.HistoryLimit,
		MemoryEnabled: b.cfg.MemoryEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("creating session for user %s: %w", userID, err)
	}
	b.sessions[key] = s
	b.log.Debug("created chat session", "guild", guildID, "user", userID)
	return s, nil
}
