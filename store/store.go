package store

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/pkg/llms"
)

// ErrInvalidChatContext is returned when the context has no chat ID
var ErrInvalidChatContext = errors.New("invalid chat context")

// MessageStore keeps the model-facing history of chats,
// the chat is identified by the ChatContext in ctx.
type MessageStore interface {
	// Messages returns the history of the chat
	Messages(ctx context.Context) []llms.Message
	// Add appends messages to the history of the chat
	Add(ctx context.Context, msgs ...llms.Message) error
	// Reset removes the history of the chat
	Reset(ctx context.Context) error
}
