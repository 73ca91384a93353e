package bot

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/morispolanco/criba/internal/chat"
	"github.com/morispolanco/criba/internal/config"
	"github.com/morispolanco/criba/internal/guildconfig"
	"github.com/morispolanco/criba/internal/llm"
	"github.com/morispolanco/criba/internal/logging"
	"github.com/morispolanco/criba/internal/memory"
	"github.com/morispolanco/criba/internal/prompts"
)

type nopProvider struct{}

func (nopProvider) Stream(context.Context, llm.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) { yield("ok", nil) }
}

func (nopProvider) GenerateJSON(context.Context, string, *genai.Schema, any) error { return nil }

func (nopProvider) ModelName() string { return "fake" }

func TestTruncateForDiscord(t *testing.T) {
	assert.Equal(t, "hola", truncateForDiscord("hola"))
	assert.Equal(t, "…", truncateForDiscord("  "))

	long := strings.Repeat("ñ", discordMessageLimit+50)
	got := truncateForDiscord(long)
	assert.Len(t, []rune(got), discordMessageLimit)
	assert.True(t, strings.HasSuffix(got, truncatedSuffix))

	exact := strings.Repeat("a", discordMessageLimit)
	assert.Equal(t, exact, truncateForDiscord(exact))
}

func TestEditThrottle(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	th := newEditThrottle(time.Second, func() time.Time { return now })

	assert.True(t, th.ready(), "first edit goes out immediately")
	assert.False(t, th.ready())

	now = now.Add(999 * time.Millisecond)
	assert.False(t, th.ready())

	now = now.Add(time.Millisecond)
	assert.True(t, th.ready())
	assert.False(t, th.ready())
}

func TestFailureText(t *testing.T) {
	assert.Contains(t, failureText("", errors.New("boom")), "hubo un error")
	assert.True(t, strings.HasPrefix(failureText("medio", errors.New("boom")), "medio"))
	assert.Contains(t, failureText("", context.DeadlineExceeded), "Tardé demasiado")
	assert.Contains(t, failureText("algo", context.Canceled), "se interrumpió")
}

func TestAttachmentProblem(t *testing.T) {
	assert.Contains(t, attachmentProblem(llm.ErrAttachmentTooLarge), "20 MiB")
	assert.Contains(t, attachmentProblem(llm.ErrUnsupportedAttachment), "PDF")
	assert.Equal(t, "la descarga falló.", attachmentProblem(errors.New("x")))
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/notas.txt":
			_, _ = w.Write([]byte("mis notas"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	att, err := firstAttachment(ctx, srv.Client(), nil)
	require.NoError(t, err)
	assert.Nil(t, att)

	att, err = firstAttachment(ctx, srv.Client(), []*discordgo.MessageAttachment{
		{Filename: "notas.txt", URL: srv.URL + "/notas.txt", Size: 9},
	})
	require.NoError(t, err)
	assert.Equal(t, "notas.txt", att.Name)
	assert.Equal(t, []byte("mis notas"), att.Data)

	_, err = download(ctx, srv.Client(), &discordgo.MessageAttachment{Filename: "foto.png", URL: srv.URL + "/foto.png"})
	assert.ErrorIs(t, err, llm.ErrUnsupportedAttachment)

	_, err = download(ctx, srv.Client(), &discordgo.MessageAttachment{Filename: "big.pdf", URL: srv.URL, Size: llm.MaxAttachmentBytes + 1})
	assert.ErrorIs(t, err, llm.ErrAttachmentTooLarge)

	_, err = download(ctx, srv.Client(), &discordgo.MessageAttachment{Filename: "falta.txt", URL: srv.URL + "/falta.txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFormatMemory(t *testing.T) {
	assert.Equal(t, "Aún no recuerdo nada de ti.", formatMemory(memory.UserMemory{}))

	out := formatMemory(memory.UserMemory{
		Facts:       []string{"Vive en Quito"},
		Preferences: []string{"Respuestas breves"},
		LastUpdated: time.Unix(1700000000, 0),
	})
	assert.Contains(t, out, "__Hechos__\n• Vive en Quito")
	assert.Contains(t, out, "__Preferencias__\n• Respuestas breves")
	assert.Contains(t, out, "<t:1700000000:R>")
}

func TestSlashCommands(t *testing.T) {
	var names []string
	for _, c := range slashCommands() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"set-llm-channel", "remove-llm-channel", "modo", "memoria", "olvidar", "nueva"}, names)

	choices := modeChoices()
	require.Len(t, choices, len(prompts.All()))
	for _, c := range choices {
		_, err := prompts.Parse(c.Value.(string))
		assert.NoError(t, err)
	}
}

func TestCanManageChannels(t *testing.T) {
	assert.True(t, canManageChannels(discordgo.PermissionAdministrator))
	assert.True(t, canManageChannels(discordgo.PermissionManageChannels))
	assert.False(t, canManageChannels(discordgo.PermissionSendMessages))
}

func TestSessionFor(t *testing.T) {
	dir := t.TempDir()
	guilds, err := guildconfig.NewManager(dir, logging.Nop())
	require.NoError(t, err)
	require.NoError(t, guilds.SetDefaultMode("g1", prompts.ModeAnalista))
	store, err := memory.NewStore(filepath.Join(dir, "memory.json"), logging.Nop())
	require.NoError(t, err)

	b := &Bot{
		provider:       nopProvider{},
		store:          store,
		cfg:            &config.Config{HistoryLimit: 4},
		guildConfigMgr: guilds,
		log:            logging.Nop(),
		sessions:       make(map[string]*chat.Session),
	}

	s1, err := b.sessionFor("g1", "u1")
	require.NoError(t, err)
	again, err := b.sessionFor("g1", "u1")
	require.NoError(t, err)
	assert.Same(t, s1, again)
	assert.Equal(t, prompts.ModeAnalista, s1.Mode())
	assert.Equal(t, "discord-u1", s1.Profile())

	other, err := b.sessionFor("g2", "u1")
	require.NoError(t, err)
	assert.NotSame(t, s1, other)
	assert.Equal(t, prompts.ModeNormal, other.Mode())
	assert.Equal(t, s1.Profile(), other.Profile())
}
