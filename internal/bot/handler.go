package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/morispolanco/criba/internal/chat"
	"github.com/morispolanco/criba/internal/llm"
)

const (
	discordMessageLimit = 2000 // discord hard limit
	truncatedSuffix     = "… (respuesta truncada)"
	editInterval        = time.Second
	replyTimeout        = 3 * time.Minute

	thinkingText = "🤔 Pensando…"
	cursor       = " ▌"
)

func (b *Bot) llmMessageCreateHandler(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == s.State.User.ID {
		return
	}
	if m.GuildID == "" {
		return
	}

	configuredLLMChannelID, found := b.guildConfigMgr.GetLLMChannel(m.GuildID)
	if !found || m.ChannelID != configuredLLMChannelID {
		return
	}

	ref := m.Reference()
	userMessage := strings.TrimSpace(m.Content)
	userID := m.Author.ID
	log := b.log.With("guild", m.GuildID, "user", userID)

	attachment, err := firstAttachment(b.ctx, s.Client, m.Attachments)
	if err != nil {
		log.Warn("rejecting attachment", "err", err)
		b.sendReply(s, m.ChannelID, "📎 No pude leer el archivo: "+attachmentProblem(err), ref)
		return
	}
	if userMessage == "" && attachment == nil {
		return
	}

	session, err := b.sessionFor(m.GuildID, userID)
	if err != nil {
		log.Error("getting chat session", "err", err)
		b.sendReply(s, m.ChannelID, "😭 Lo siento, ahora mismo no puedo abrir una conversación contigo.", ref)
		return
	}

	if err := s.ChannelTyping(m.ChannelID); err != nil {
		log.Debug("starting typing indicator", "err", err)
	}

	thinkingMsg, err := s.ChannelMessageSendReply(m.ChannelID, thinkingText, ref)
	if err != nil {
		log.Error("sending thinking message", "err", err)
		return
	}

	b.replies.Add(1)
	go func() {
		defer b.replies.Done()
		b.streamReply(s, session, m.Message, thinkingMsg.ID, userMessage, attachment)
	}()
}

// streamReply sends the message to the session and mirrors the growing reply
// into the placeholder message, editing it at most once per editInterval.
func (b *Bot) streamReply(s *discordgo.Session, session *chat.Session, original *discordgo.Message, thinkingID, text string, attachment *llm.Attachment) {
	ctx, cancel := context.WithTimeout(b.ctx, replyTimeout)
	defer cancel()

	log := b.log.With("guild", original.GuildID, "user", original.Author.ID)
	throttle := newEditThrottle(editInterval, time.Now)
	var partial strings.Builder

	msg, err := session.Send(ctx, text, attachment, func(chunk string) {
		partial.WriteString(chunk)
		if !throttle.ready() {
			return
		}
		if _, err := s.ChannelMessageEdit(original.ChannelID, thinkingID, truncateForDiscord(partial.String()+cursor)); err != nil {
			log.Debug("editing partial reply", "err", err)
		}
	})

	content := msg.Content
	switch {
	case errors.Is(err, chat.ErrBusy):
		content = "⏳ Todavía estoy respondiendo a tu mensaje anterior."
	case err != nil:
		log.Error("reply failed", "err", err)
		content = failureText(partial.String(), err)
	}

	content = truncateForDiscord(content)
	if _, err := s.ChannelMessageEdit(original.ChannelID, thinkingID, content); err != nil {
		log.Error("editing reply", "thinking_msg", thinkingID, "err", err)
		b.sendReply(s, original.ChannelID, content, original.Reference())
	}
}

func (b *Bot) sendReply(s *discordgo.Session, channelID, content string, ref *discordgo.MessageReference) {
	if _, err := s.ChannelMessageSendReply(channelID, content, ref); err != nil {
		b.log.Error("sending reply", "channel", channelID, "err", err)
	}
}

func failureText(partial string, err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if strings.TrimSpace(partial) != "" {
			return partial + "\n\n⚠️ La respuesta se interrumpió."
		}
		return "⌛ Tardé demasiado en responder. Inténtalo de nuevo."
	}
	if strings.TrimSpace(partial) != "" {
		return partial + "\n\n⚠️ Hubo un error y la respuesta quedó incompleta."
	}
	return "😭 Lo siento, hubo un error al procesar tu mensaje. Inténtalo de nuevo."
}

func attachmentProblem(err error) string {
	switch {
	case errors.Is(err, llm.ErrAttachmentTooLarge):
		return fmt.Sprintf("supera el límite de %d MiB.", llm.MaxAttachmentBytes>>20)
	case errors.Is(err, llm.ErrUnsupportedAttachment):
		return "solo acepto archivos PDF o de texto (.txt, .md)."
	default:
		return "la descarga falló."
	}
}

// truncateForDiscord keeps s within the message limit, counted in characters.
func truncateForDiscord(s string) string {
	if strings.TrimSpace(s) == "" {
		return "…"
	}
	r := []rune(s)
	if len(r) <= discordMessageLimit {
		return s
	}
	suffix := []rune(truncatedSuffix)
	return string(r[:discordMessageLimit-len(suffix)]) + truncatedSuffix
}

// firstAttachment downloads the first file of the message. A message without
// files yields nil.
func firstAttachment(ctx context.Context, client *http.Client, files []*discordgo.MessageAttachment) (*llm.Attachment, error) {
	if len(files) == 0 {
		return nil, nil
	}
	return download(ctx, client, files[0])
}

func download(ctx context.Context, client *http.Client, file *discordgo.MessageAttachment) (*llm.Attachment, error) {
	if !llm.SupportedName(file.Filename) {
		return nil, fmt.Errorf("%w: %s", llm.ErrUnsupportedAttachment, file.Filename)
	}
	if file.Size > llm.MaxAttachmentBytes {
		return nil, llm.ErrAttachmentTooLarge
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", file.Filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading %s: unexpected status %s", file.Filename, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, llm.MaxAttachmentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file.Filename, err)
	}
	return llm.NewAttachment(file.Filename, data)
}

type editThrottle struct {
	interval time.Duration
	now      func() time.Time
	last     time.Time
}

func newEditThrottle(interval time.Duration, now func() time.Time) *editThrottle {
	return &editThrottle{interval: interval, now: now}
}

// ready reports whether an edit may go out now, and if so records it.
func (t *editThrottle) ready() bool {
	now := t.now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}
