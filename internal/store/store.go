// Package store persists chat sessions. Store holds the session rules (title
// derivation, ordering, error kinds); a Backend only moves whole records.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-chat/backend/internal/apperr"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

const (
	// DefaultTitle is used when a session is created without a title source.
	DefaultTitle = "Nuevo Chat"

	maxTitleLen   = 30
	titleKeepLen  = 27
	titleEllipsis = "..."
)

// ErrNotFound is returned by backends when no record exists for an id.
var ErrNotFound = errors.New("session not found")

// Backend is a key-value medium addressed by session id.
// Save overwrites the whole record; List order is unspecified.
type Backend interface {
	Load(ctx context.Context, id string) (*chat.Session, error)
	Save(ctx context.Context, session *chat.Session) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]chat.Summary, error)
	Close() error
}

// Options tunes a Store.
type Options struct {
	DefaultTitle string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Store implements session create/get/list/update/append/delete over a Backend.
// Writers are not coordinated: concurrent mutations of the same session race
// and the last rewrite wins.
type Store struct {
	backend      Backend
	defaultTitle string
	now          func() time.Time
}

// New wraps backend.
func New(backend Backend, opts Options) *Store {
	s := &Store{
		backend:      backend,
		defaultTitle: opts.DefaultTitle,
		now:          opts.Now,
	}
	if s.defaultTitle == "" {
		s.defaultTitle = DefaultTitle
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// DeriveTitle turns the first user message into a display title.
// Lengths are counted in characters, not bytes.
func DeriveTitle(source, fallback string) string {
	if source == "" {
		return fallback
	}
	if utf8.RuneCountInString(source) <= maxTitleLen {
		return source
	}
	runes := []rune(source)
	return string(runes[:titleKeepLen]) + titleEllipsis
}

// Create stores a new empty session titled from titleSource.
func (s *Store) Create(ctx context.Context, titleSource string) (chat.Session, error) {
	session := chat.Session{
		ID:        uuid.NewString(),
		Title:     DeriveTitle(titleSource, s.defaultTitle),
		Messages:  []chat.Turn{},
		CreatedAt: chat.NewTimestamp(s.now()),
	}
	if err := s.backend.Save(ctx, &session); err != nil {
		return chat.Session{}, apperr.Wrap(apperr.KindStorage, "store.Create", err)
	}
	return session, nil
}

// Get loads a session by id.
func (s *Store) Get(ctx context.Context, id string) (chat.Session, error) {
	if strings.TrimSpace(id) == "" {
		return chat.Session{}, apperr.NotFound("store.Get", ErrNotFound.Error())
	}
	session, err := s.backend.Load(ctx, id)
	if err != nil {
		return chat.Session{}, s.classify("store.Get", err)
	}
	if session.Messages == nil {
		session.Messages = []chat.Turn{}
	}
	return *session, nil
}

// List returns every session, newest first; equal timestamps are ordered by id.
func (s *Store) List(ctx context.Context) ([]chat.Summary, error) {
	summaries, err := s.backend.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "store.List", err)
	}
	SortSummaries(summaries)
	return summaries, nil
}

// SortSummaries orders by created_at descending, then id ascending.
func SortSummaries(summaries []chat.Summary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if !a.CreatedAt.Equal(b.CreatedAt.Time) {
			return a.CreatedAt.After(b.CreatedAt.Time)
		}
		return a.ID < b.ID
	})
}

// UpdateTitle replaces a session's title.
func (s *Store) UpdateTitle(ctx context.Context, id, title string) (chat.Session, error) {
	if title == "" {
		return chat.Session{}, apperr.InvalidArgument("store.UpdateTitle", "No title provided")
	}
	session, err := s.Get(ctx, id)
	if err != nil {
		return chat.Session{}, err
	}
	session.Title = title
	if err := s.Save(ctx, session); err != nil {
		return chat.Session{}, err
	}
	return session, nil
}

// AppendTurn adds turn to the end of a session and rewrites it.
func (s *Store) AppendTurn(ctx context.Context, id string, turn chat.Turn) (chat.Session, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return chat.Session{}, err
	}
	session.Messages = append(session.Messages, turn)
	if err := s.Save(ctx, session); err != nil {
		return chat.Session{}, err
	}
	return session, nil
}

// Save rewrites the full record of session.
func (s *Store) Save(ctx context.Context, session chat.Session) error {
	record := session.Clone()
	if err := s.backend.Save(ctx, &record); err != nil {
		return apperr.Wrap(apperr.KindStorage, "store.Save", err)
	}
	return nil
}

// Delete removes a session permanently.
func (s *Store) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.NotFound("store.Delete", ErrNotFound.Error())
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		return s.classify("store.Delete", err)
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) classify(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, op, err)
	}
	return apperr.Wrap(apperr.KindStorage, op, err)
}
