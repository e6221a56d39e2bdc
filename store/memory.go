package store

import (
	"context"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/chatmodel"
	"github.com/effective-security/seoagent/pkg/llms"
)

// DefaultMaxMessages is the number of messages kept per chat
const DefaultMaxMessages = 40

type inMemory struct {
	mu      sync.RWMutex
	storage map[string][]llms.Message
	limit   int
}

// NewMemoryStore returns MessageStore that keeps up to limit messages per chat.
// DefaultMaxMessages is used when limit is not positive.
func NewMemoryStore(limit int) MessageStore {
	if limit <= 0 {
		limit = DefaultMaxMessages
	}
	return &inMemory{
		storage: make(map[string][]llms.Message),
		limit:   limit,
	}
}

func chatID(ctx context.Context) (string, error) {
	id := chatmodel.GetChatID(ctx)
	if id == "" {
		return "", errors.WithStack(ErrInvalidChatContext)
	}
	return id, nil
}

func (m *inMemory) Messages(ctx context.Context) []llms.Message {
	id, err := chatID(ctx)
	if err != nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.storage[id])
}

func (m *inMemory) Add(ctx context.Context, msgs ...llms.Message) error {
	id, err := chatID(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append(m.storage[id], msgs...)
	if over := len(list) - m.limit; over > 0 {
		list = slices.Clone(list[over:])
	}
	m.storage[id] = list
	return nil
}

func (m *inMemory) Reset(ctx context.Context) error {
	id, err := chatID(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.storage, id)
	return nil
}
