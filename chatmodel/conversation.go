package chatmodel

import (
	"strings"
	"sync"
	"time"
)

// Role of a conversation entry
type Role string

const (
	// RoleUser is the entry submitted by a user
	RoleUser Role = "user"
	// RoleAssistant is the entry produced by the agent
	RoleAssistant Role = "assistant"
)

// Entry is one (role, text) pair of a Conversation.
type Entry struct {
	Role Role      `json:"role" yaml:"role" toml:"role"`
	Text string    `json:"text" yaml:"text" toml:"text"`
	At   time.Time `json:"at" yaml:"at" toml:"at"`
	// Error is set when the assistant entry describes a failure
	Error bool `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
}

// GetContent returns the entry text
func (e Entry) GetContent() string {
	return e.Text
}

// Conversation is an append-only list of entries.
// It is safe for concurrent use.
type Conversation struct {
	lock    sync.RWMutex
	entries []Entry
}

// Append adds entries to the end of the conversation.
func (c *Conversation) Append(entries ...Entry) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, e := range entries {
		if e.At.IsZero() {
			e.At = time.Now().UTC()
		}
		c.entries = append(c.entries, e)
	}
}

// Entries returns a copy of the entries.
func (c *Conversation) Entries() []Entry {
	c.lock.RLock()
	defer c.lock.RUnlock()
	res := make([]Entry, len(c.entries))
	copy(res, c.entries)
	return res
}

// Len returns the number of entries.
func (c *Conversation) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *Conversation) Clear() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.entries = nil
}

// String renders the conversation as text, one entry per paragraph.
func (c *Conversation) String() string {
	var b strings.Builder
	for i, e := range c.Entries() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(string(e.Role))
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(e.Text))
		b.WriteString("\n")
	}
	return b.String()
}
