// Package chat owns one conversation: the ordered transcript, the active
// mode, and the hand-off of each exchange to the model and to memory.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/morispolanco/criba/internal/llm"
	"github.com/morispolanco/criba/internal/memory"
	"github.com/morispolanco/criba/internal/prompts"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	defaultExtractTimeout = 45 * time.Second
	attachmentOnlyPrompt  = "Analiza el archivo adjunto."
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a reply is still streaming")
	ErrEmptyReply   = errors.New("the model returned an empty reply")
)

type Message struct {
	ID         string
	Role       Role
	Content    string
	Timestamp  time.Time
	Mode       prompts.Mode
	Attachment string
	// Error is set on assistant entries whose call failed; Content then
	// holds whatever arrived before the failure.
	Error string

	file *llm.Attachment
}

func (m Message) Failed() bool {
	return m.Error != ""
}

type Options struct {
	Profile       string
	Mode          prompts.Mode
	HistoryLimit  int
	MemoryEnabled bool
	// ExtractTimeout bounds each background memory extraction.
	ExtractTimeout time.Duration
}

type Session struct {
	provider  llm.Provider
	store     *memory.Store
	extractor *memory.Extractor
	log       *slog.Logger
	opts      Options
	now       func() time.Time

	mu       sync.Mutex
	mode     prompts.Mode
	messages []Message
	busy     bool
	onMemory func(memory.UserMemory)

	extracting sync.WaitGroup
}

// NewSession builds a session. store may be nil, in which case memory is
// neither injected nor extracted.
func NewSession(provider llm.Provider, store *memory.Store, log *slog.Logger, opts Options) (*Session, error) {
	if provider == nil {
		return nil, errors.New("provider must be provided")
	}
	if opts.Mode == "" {
		opts.Mode = prompts.ModeNormal
	}
	if _, err := prompts.Lookup(opts.Mode); err != nil {
		return nil, err
	}
	if opts.Profile == "" {
		return nil, errors.New("profile must be provided")
	}
	if opts.ExtractTimeout <= 0 {
		opts.ExtractTimeout = defaultExtractTimeout
	}

	s := &Session{
		provider: provider,
		store:    store,
		log:      log.With("profile", opts.Profile),
		opts:     opts,
		now:      time.Now,
		mode:     opts.Mode,
	}
	if store != nil {
		s.extractor = memory.NewExtractor(provider, store, s.log)
	}
	return s, nil
}

func (s *Session) Profile() string {
	return s.opts.Profile
}

func (s *Session) Mode() prompts.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) SetMode(mode prompts.Mode) error {
	if _, err := prompts.Lookup(mode); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	return nil
}

// Messages returns a snapshot of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Reset starts a new conversation. Memory is untouched.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.messages = nil
	return nil
}

func (s *Session) Memory() memory.UserMemory {
	if s.store == nil {
		return memory.UserMemory{}
	}
	return s.store.Get(s.opts.Profile)
}

func (s *Session) ClearMemory() error {
	if s.store == nil {
		return nil
	}
	return s.store.Clear(s.opts.Profile)
}

// OnMemoryUpdate registers fn to run after a background extraction changes
// this profile's memory. fn runs on the extraction goroutine.
func (s *Session) OnMemoryUpdate(fn func(memory.UserMemory)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMemory = fn
}

// Wait blocks until pending memory extractions finish.
func (s *Session) Wait() {
	s.extracting.Wait()
}

// Send appends the user turn, streams the reply through onChunk and appends
// the assistant turn. A failed call still appends an assistant entry, marked
// with the error, and returns the error.
func (s *Session) Send(ctx context.Context, text string, attachment *llm.Attachment, onChunk func(string)) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && attachment == nil {
		return Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return Message{}, ErrBusy
	}
	s.busy = true
	mode := s.mode
	history := s.historyLocked()
	user := Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   text,
		Timestamp: s.now(),
		Mode:      mode,
	}
	if attachment != nil {
		user.Attachment = attachment.Name
		user.file = attachment
	}
	s.messages = append(s.messages, user)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	mem := s.Memory()
	system, err := prompts.Build(mode, mem.Prompt(), attachment != nil)
	if err != nil {
		return s.fail(mode, "", err)
	}

	message := text
	if message == "" {
		message = attachmentOnlyPrompt
	}

	s.log.Debug("sending message", "mode", mode, "history", len(history), "attachment", user.Attachment)

	var reply strings.Builder
	var streamErr error
	for chunk, err := range s.provider.Stream(ctx, llm.Request{
		SystemPrompt: system,
		History:      history,
		Message:      message,
		Attachment:   attachment,
	}) {
		if err != nil {
			streamErr = err
			break
		}
		reply.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	if streamErr == nil && ctx.Err() != nil {
		streamErr = ctx.Err()
	}
	if streamErr == nil && strings.TrimSpace(reply.String()) == "" {
		streamErr = ErrEmptyReply
	}
	if streamErr != nil {
		s.log.Warn("reply failed", "mode", mode, "err", streamErr)
		return s.fail(mode, reply.String(), streamErr)
	}

	assistant := s.appendAssistant(Message{Content: reply.String(), Mode: mode})

	if mode == prompts.ModeNormal && s.opts.MemoryEnabled && s.extractor != nil {
		s.extract(ctx, user.Content, assistant.Content)
	}
	return assistant, nil
}

func (s *Session) fail(mode prompts.Mode, partial string, err error) (Message, error) {
	msg := s.appendAssistant(Message{Content: partial, Mode: mode, Error: err.Error()})
	return msg, fmt.Errorf("sending message: %w", err)
}

func (s *Session) appendAssistant(msg Message) Message {
	msg.ID = uuid.NewString()
	msg.Role = RoleAssistant
	msg.Timestamp = s.now()

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	return msg
}

// extract runs memory extraction in the background. It outlives ctx's
// cancellation but not its values.
func (s *Session) extract(ctx context.Context, userText, assistantText string) {
	if userText == "" {
		return
	}
	s.extracting.Add(1)
	go func() {
		defer s.extracting.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ExtractTimeout)
		defer cancel()

		mem, err := s.extractor.Extract(ctx, s.opts.Profile, userText, assistantText)
		if err != nil {
			s.log.Warn("memory extraction failed", "err", err)
			return
		}

		s.mu.Lock()
		fn := s.onMemory
		s.mu.Unlock()
		if fn != nil {
			fn(mem)
		}
	}()
}

// historyLocked returns the turns replayed to the model: failed exchanges are
// skipped, only the newest HistoryLimit turns are kept, and the window never
// opens on a model turn.
func (s *Session) historyLocked() []llm.Turn {
	turns := make([]llm.Turn, 0, len(s.messages))
	for i, m := range s.messages {
		if m.Failed() {
			continue
		}
		if m.Role == RoleUser {
			if i+1 < len(s.messages) && s.messages[i+1].Failed() {
				continue
			}
			text := m.Content
			if text == "" && m.file != nil {
				text = attachmentOnlyPrompt
			}
			turns = append(turns, llm.Turn{Role: llm.RoleUser, Text: text, Attachment: m.file})
			continue
		}
		turns = append(turns, llm.Turn{Role: llm.RoleModel, Text: m.Content})
	}

	limit := s.opts.HistoryLimit
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	for len(turns) > 0 && turns[0].Role == llm.RoleModel {
		turns = turns[1:]
	}
	return turns
}
