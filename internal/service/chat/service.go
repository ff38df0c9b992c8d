package chat

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-chat/backend/internal/apperr"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/history"
	"github.com/zhouzirui/z-chat/backend/internal/store"
)

const (
	DefaultSystemPrompt = "Eres un asistente amigable y servicial. Cuando necesites mostrar código, usa bloques de código con el lenguaje apropiado."
	DefaultTemperature  = float32(0.7)
	DefaultMaxTokens    = 2000
	DefaultTimeout      = 60 * time.Second
)

// Completer is the model boundary used by SendMessage.
type Completer interface {
	Complete(ctx context.Context, messages []*schema.Message, temperature float32, maxTokens int) (string, error)
}

// Options holds the fixed generation parameters. Zero values take the
// defaults above, so a temperature of exactly 0 cannot be requested.
type Options struct {
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
	Timeout      time.Duration
}

func (o Options) withDefaults() Options {
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Service combines the session store with the model client.
type Service struct {
	store  *store.Store
	client Completer
	opts   Options
}

// NewService wires the store and the model client. client may be nil, in
// which case SendMessage fails with an upstream error.
func NewService(sessions *store.Store, client Completer, opts Options) *Service {
	return &Service{
		store:  sessions,
		client: client,
		opts:   opts.withDefaults(),
	}
}

// CreateSession starts a conversation titled from its first message.
func (s *Service) CreateSession(ctx context.Context, titleSource string) (chat.Session, error) {
	session, err := s.store.Create(ctx, titleSource)
	if err != nil {
		return chat.Session{}, err
	}
	log.Printf("[chat] created session=%s title=%q", session.ID, session.Title)
	return session, nil
}

// ListSessions returns summaries, newest first.
func (s *Service) ListSessions(ctx context.Context) ([]chat.Summary, error) {
	return s.store.List(ctx)
}

// GetSession loads a full session.
func (s *Service) GetSession(ctx context.Context, id string) (chat.Session, error) {
	return s.store.Get(ctx, id)
}

// UpdateTitle renames a session.
func (s *Service) UpdateTitle(ctx context.Context, id, title string) (chat.Session, error) {
	return s.store.UpdateTitle(ctx, id, title)
}

// DeleteSession removes a session.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	log.Printf("[chat] deleted session=%s", id)
	return nil
}

// SendMessage appends the user's text, asks the model for a reply and
// persists both turns in one rewrite. If the model call fails nothing is
// written, so a retry sends the same text again.
func (s *Service) SendMessage(ctx context.Context, id, text string) (string, error) {
	const op = "chat.SendMessage"

	if id == "" || text == "" {
		return "", apperr.InvalidArgument(op, "Missing chatId or message")
	}

	session, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if s.client == nil {
		return "", apperr.New(apperr.KindUpstream, op, "model client unavailable")
	}

	session.Messages = append(session.Messages, chat.UserTurn(text))
	messages := history.BuildAPIMessages(s.opts.SystemPrompt, session.Messages)

	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	reply, err := s.client.Complete(callCtx, messages, s.opts.Temperature, s.opts.MaxTokens)
	if err != nil {
		log.Printf("[chat] model call failed for session=%s: %v", id, err)
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &apperr.Error{Kind: apperr.KindUpstream, Op: op, Msg: "model call timed out", Err: err}
		}
		return "", apperr.Wrap(apperr.KindUpstream, op, err)
	}

	session.Messages = append(session.Messages, chat.AITurn(reply))
	if err := s.store.Save(ctx, session); err != nil {
		return "", err
	}

	log.Printf("[chat] session=%s now has %d turns", id, len(session.Messages))
	return reply, nil
}
