package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/morispolanco/criba/internal/chat"
	"github.com/morispolanco/criba/internal/memory"
	"github.com/morispolanco/criba/internal/prompts"
)

func (b *Bot) readyHandler(s *discordgo.Session, event *discordgo.Ready) {
	b.log.Info("bot is ready", "user", event.User.Username)

	registeredCommands, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, "", slashCommands())
	if err != nil {
		b.log.Error("registering slash commands", "err", err)
		return
	}
	b.registeredCommands = registeredCommands
	b.log.Info("registered slash commands", "count", len(registeredCommands))
}

func slashCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "set-llm-channel",
			Description: "Elige el canal donde responde el consejero en este servidor.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Canal de texto para el consejero.",
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText}, // Only text channels
					Required:     true,
				},
			},
		},
		{
			Name:        "remove-llm-channel",
			Description: "Quita el canal configurado del consejero en este servidor.",
		},
		{
			Name:        "modo",
			Description: "Cambia el modo de conversación del consejero.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "modo",
					Description: "Modo a usar.",
					Required:    true,
					Choices:     modeChoices(),
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "servidor",
					Description: "Usarlo también como modo inicial de todo el servidor.",
				},
			},
		},
		{
			Name:        "memoria",
			Description: "Muestra lo que el consejero recuerda de ti.",
		},
		{
			Name:        "olvidar",
			Description: "Borra todo lo que el consejero recuerda de ti.",
		},
		{
			Name:        "nueva",
			Description: "Empieza una conversación nueva.",
		},
	}
}

func modeChoices() []*discordgo.ApplicationCommandOptionChoice {
	templates := prompts.All()
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(templates))
	for _, t := range templates {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  t.Label,
			Value: string(t.Mode),
		})
	}
	return choices
}

// slash command handler
func (b *Bot) interactionCreateHandler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		b.respond(s, i, "Este comando solo funciona dentro de un servidor.", true)
		return
	}

	switch i.ApplicationCommandData().Name {
	case "set-llm-channel":
		if !canManageChannels(i.Member.Permissions) {
			b.respond(s, i, permissionDenied, true)
			return
		}
		b.handleSetLLMChannel(s, i)
	case "remove-llm-channel":
		if !canManageChannels(i.Member.Permissions) {
			b.respond(s, i, permissionDenied, true)
			return
		}
		b.handleRemoveLLMChannel(s, i)
	case "modo":
		b.handleMode(s, i)
	case "memoria":
		b.handleShowMemory(s, i)
	case "olvidar":
		b.handleForget(s, i)
	case "nueva":
		b.handleNewConversation(s, i)
	}
}

const permissionDenied = "Necesitas el permiso 'Gestionar canales' o 'Administrador' para usar este comando."

// need "Manage Channel" or "Administrator" permissions.
func canManageChannels(perms int64) bool {
	isAdmin := perms&discordgo.PermissionAdministrator == discordgo.PermissionAdministrator
	canManage := perms&discordgo.PermissionManageChannels == discordgo.PermissionManageChannels
	return isAdmin || canManage
}

func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: truncateForDiscord(content)}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.log.Warn("responding to interaction", "guild", i.GuildID, "interaction", i.ID, "err", err)
	}
}

func (b *Bot) handleSetLLMChannel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var channelID string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "channel" {
			channelID = opt.ChannelValue(s).ID
			break
		}
	}
	if channelID == "" {
		b.respond(s, i, "Error: falta el canal.", true)
		return
	}

	if err := b.guildConfigMgr.SetLLMChannel(i.GuildID, channelID); err != nil {
		b.log.Error("setting LLM channel", "guild", i.GuildID, "err", err)
		b.respond(s, i, fmt.Sprintf("No pude guardar el canal: %v", err), true)
		return
	}
	b.respond(s, i, fmt.Sprintf("El consejero responderá en <#%s>.", channelID), false)
}

func (b *Bot) handleRemoveLLMChannel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := b.guildConfigMgr.RemoveLLMChannel(i.GuildID); err != nil {
		b.log.Error("removing LLM channel", "guild", i.GuildID, "err", err)
		b.respond(s, i, fmt.Sprintf("No pude quitar el canal: %v", err), true)
		return
	}
	b.respond(s, i, "Canal eliminado. El consejero no responderá hasta que se configure otro.", false)
}

func (b *Bot) handleMode(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var name string
	var serverWide bool
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "modo":
			name = opt.StringValue()
		case "servidor":
			serverWide = opt.BoolValue()
		}
	}

	mode, err := prompts.Parse(name)
	if err != nil {
		b.respond(s, i, fmt.Sprintf("No conozco el modo %q.", name), true)
		return
	}

	if serverWide {
		if !canManageChannels(i.Member.Permissions) {
			b.respond(s, i, permissionDenied, true)
			return
		}
		if err := b.guildConfigMgr.SetDefaultMode(i.GuildID, mode); err != nil {
			b.log.Error("setting default mode", "guild", i.GuildID, "err", err)
			b.respond(s, i, fmt.Sprintf("No pude guardar el modo del servidor: %v", err), true)
			return
		}
	}

	session, err := b.sessionFor(i.GuildID, i.Member.User.ID)
	if err != nil {
		b.log.Error("getting chat session", "guild", i.GuildID, "err", err)
		b.respond(s, i, "No pude abrir tu conversación.", true)
		return
	}
	if err := session.SetMode(mode); err != nil {
		b.respond(s, i, fmt.Sprintf("No pude cambiar el modo: %v", err), true)
		return
	}

	msg := "Modo cambiado a **" + mode.Label() + "**."
	if serverWide {
		msg += " Las conversaciones nuevas del servidor empezarán en este modo."
	}
	b.respond(s, i, msg, !serverWide)
}

func (b *Bot) handleShowMemory(s *discordgo.Session, i *discordgo.InteractionCreate) {
	mem := b.store.Get(profileFor(i.Member.User.ID))
	b.respond(s, i, formatMemory(mem), true)
}

func (b *Bot) handleForget(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := b.store.Clear(profileFor(i.Member.User.ID)); err != nil {
		b.log.Error("clearing memory", "user", i.Member.User.ID, "err", err)
		b.respond(s, i, "No pude borrar tu memoria. Inténtalo más tarde.", true)
		return
	}
	b.respond(s, i, "🧹 Listo, he olvidado todo lo que sabía de ti.", true)
}

func (b *Bot) handleNewConversation(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session, err := b.sessionFor(i.GuildID, i.Member.User.ID)
	if err != nil {
		b.log.Error("getting chat session", "guild", i.GuildID, "err", err)
		b.respond(s, i, "No pude abrir tu conversación.", true)
		return
	}
	if err := session.Reset(); err != nil {
		if errors.Is(err, chat.ErrBusy) {
			b.respond(s, i, "Espera a que termine la respuesta en curso.", true)
			return
		}
		b.respond(s, i, fmt.Sprintf("No pude reiniciar la conversación: %v", err), true)
		return
	}
	b.respond(s, i, "✨ Conversación nueva. Tu memoria se conserva.", true)
}

func formatMemory(mem memory.UserMemory) string {
	if mem.IsEmpty() {
		return "Aún no recuerdo nada de ti."
	}

	var b strings.Builder
	b.WriteString("**Lo que recuerdo de ti**\n")
	writeSection(&b, "Hechos", mem.Facts)
	writeSection(&b, "Preferencias", mem.Preferences)
	if !mem.LastUpdated.IsZero() {
		fmt.Fprintf(&b, "\n_Actualizada <t:%d:R>_", mem.LastUpdated.Unix())
	}
	return b.String()
}

func writeSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n__" + title + "__\n")
	for _, item := range items {
		b.WriteString("• " + item + "\n")
	}
}
