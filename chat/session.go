package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/assistants"
	"github.com/effective-security/seoagent/chatmodel"
	"github.com/effective-security/seoagent/pkg/metricskey"
	"github.com/effective-security/seoagent/store"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/seoagent", "chat")

var (
	// ErrSessionBusy is returned when a query is submitted while the previous one is running
	ErrSessionBusy = errors.New("session is busy")
	// ErrSessionNotFound is returned for an unknown session ID
	ErrSessionNotFound = errors.New("session not found")
	// ErrEmptyQuery is returned when the submitted query is blank
	ErrEmptyQuery = errors.New("query is empty")
)

// Surfaces reported in metrics
const (
	SurfaceTerminal = "terminal"
	SurfaceWeb      = "web"
	SurfaceAPI      = "api"
)

// ErrorPrefix starts the text of an assistant entry describing a failure
const ErrorPrefix = "Error: "

// Session is a conversation between a user and the agent.
// Queries of a session are processed one at a time.
type Session struct {
	id      string
	agent   assistants.IAgent
	store   store.MessageStore
	surface string
	conv    chatmodel.Conversation
	busy    sync.Mutex
	created time.Time
}

// SessionOption configures Session
type SessionOption func(*Session)

// WithStore sets the model history store to clear on Reset.
// It must be the store the agent was configured with.
func WithStore(s store.MessageStore) SessionOption {
	return func(c *Session) {
		c.store = s
	}
}

// WithSurface sets the surface reported in metrics
func WithSurface(surface string) SessionOption {
	return func(c *Session) {
		c.surface = surface
	}
}

// NewSession returns Session with the agent.
// A new ID is generated if id is empty.
func NewSession(id string, agent assistants.IAgent, opts ...SessionOption) *Session {
	if id == "" {
		id = chatmodel.NewChatID()
	}
	s := &Session{
		id:      id,
		agent:   agent,
		surface: SurfaceAPI,
		created: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session ID
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns the time the session was created
func (s *Session) CreatedAt() time.Time {
	return s.created
}

// context returns ctx with the chat context of the session
func (s *Session) context(ctx context.Context) context.Context {
	if chatmodel.GetChatID(ctx) == s.id {
		return ctx
	}
	return chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(s.id, s))
}

// Submit appends the user entry, runs the agent and appends the assistant entry.
// An agent error is returned as the assistant entry with Error set,
// so exactly one entry of each role is added per accepted query.
// ErrSessionBusy is returned, without entries, while a query is running.
func (s *Session) Submit(ctx context.Context, query string) (chatmodel.Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return chatmodel.Entry{}, errors.WithStack(ErrEmptyQuery)
	}
	if !s.busy.TryLock() {
		return chatmodel.Entry{}, errors.WithStack(ErrSessionBusy)
	}
	defer s.busy.Unlock()

	started := time.Now()
	defer metricskey.PerfChatSubmit.MeasureSince(started, s.surface)
	metricskey.StatsChatSubmissions.IncrCounter(1, s.surface)

	ctx = s.context(ctx)
	s.conv.Append(chatmodel.Entry{
		Role: chatmodel.RoleUser,
		Text: query,
	})

	answer, err := s.agent.Run(ctx, query)
	entry := chatmodel.Entry{
		Role: chatmodel.RoleAssistant,
		Text: answer,
	}
	if err != nil {
		metricskey.StatsChatErrors.IncrCounter(1, s.surface)
		logger.ContextKV(ctx, xlog.ERROR,
			"session", s.id,
			"query", slices.StringUpto(query, 64),
			"err", err.Error())

		entry.Text = ErrorPrefix + err.Error()
		entry.Error = true
	}
	entry.At = time.Now().UTC()
	s.conv.Append(entry)
	return entry, nil
}

// Render returns the conversation entries in order
func (s *Session) Render() []chatmodel.Entry {
	return s.conv.Entries()
}

// String returns the conversation as text
func (s *Session) String() string {
	return s.conv.String()
}

// Len returns the number of entries
func (s *Session) Len() int {
	return s.conv.Len()
}

// Reset clears the conversation and the model history of the session
func (s *Session) Reset(ctx context.Context) error {
	if !s.busy.TryLock() {
		return errors.WithStack(ErrSessionBusy)
	}
	defer s.busy.Unlock()
	return s.clear(ctx)
}

// clear must be called with busy held
func (s *Session) clear(ctx context.Context) error {
	s.conv.Clear()
	if s.store != nil {
		if err := s.store.Reset(s.context(ctx)); err != nil {
			return errors.WithMessage(err, "failed to reset history")
		}
	}
	logger.ContextKV(ctx, xlog.DEBUG,
		"session", s.id,
		"status", "reset")
	return nil
}

// resetWhenIdle waits for the running query and clears the session
func (s *Session) resetWhenIdle(ctx context.Context) {
	s.busy.Lock()
	defer s.busy.Unlock()
	if err := s.clear(ctx); err != nil {
		logger.ContextKV(ctx, xlog.WARNING,
			"session", s.id,
			"status", "evict_reset_failed",
			"err", err.Error())
	}
}
