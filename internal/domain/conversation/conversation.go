// Package conversation holds per-session dialogue state.
package conversation

import (
	"time"
)

// MaxHistory caps the number of messages kept per session.
const MaxHistory = 20

// WelcomeMessage opens every fresh session.
const WelcomeMessage = "Welcome! Describe the material you are looking for, or upload an image to search by example."

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
)

// IsValid checks if the role is one of the supported values.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleSystem || r == RoleAssistant
}

// Message is one dialogue turn. Immutable once appended.
type Message struct {
	ID        string            `json:"id"`
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// RecentItem is a material the user recently viewed, kept for personalization.
type RecentItem struct {
	ID        string    `json:"id"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Preferences carries user signals used to personalize query expansion.
type Preferences struct {
	Terms       []string     `json:"terms,omitempty"`
	RecentItems []RecentItem `json:"recent_items,omitempty"`
}

// Context is the durable state of one conversation.
type Context struct {
	SessionID   string            `json:"session_id"`
	UserID      string            `json:"user_id,omitempty"`
	History     []Message         `json:"history"`
	Entities    map[string]string `json:"entities"`
	Preferences Preferences       `json:"preferences"`
	LastQuery   string            `json:"last_query,omitempty"`
	LastResults []string          `json:"last_results,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// New creates an empty context for sessionID.
func New(sessionID string, now time.Time) *Context {
	return &Context{
		SessionID: sessionID,
		History:   make([]Message, 0, MaxHistory),
		Entities:  make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append pushes msg and evicts from the front once the history exceeds MaxHistory.
func (c *Context) Append(msg Message) {
	c.History = append(c.History, msg)
	if over := len(c.History) - MaxHistory; over > 0 {
		kept := make([]Message, MaxHistory, MaxHistory)
		copy(kept, c.History[over:])
		c.History = kept
	}
	if msg.Timestamp.After(c.UpdatedAt) {
		c.UpdatedAt = msg.Timestamp
	}
}

// MergeEntities overwrites known entities with newer values.
func (c *Context) MergeEntities(entities map[string]string) {
	if c.Entities == nil {
		c.Entities = make(map[string]string, len(entities))
	}
	for k, v := range entities {
		c.Entities[k] = v
	}
}

// UserTurns counts messages authored by the user.
func (c *Context) UserTurns() int {
	n := 0
	for i := range c.History {
		if c.History[i].Role == RoleUser {
			n++
		}
	}
	return n
}

// Clone returns a deep copy safe to mutate independently.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	out := *c
	out.History = make([]Message, len(c.History), max(len(c.History), MaxHistory))
	copy(out.History, c.History)
	out.Entities = make(map[string]string, len(c.Entities))
	for k, v := range c.Entities {
		out.Entities[k] = v
	}
	out.Preferences.Terms = append([]string(nil), c.Preferences.Terms...)
	out.Preferences.RecentItems = append([]RecentItem(nil), c.Preferences.RecentItems...)
	out.LastResults = append([]string(nil), c.LastResults...)
	return &out
}
