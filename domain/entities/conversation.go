package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ConversationStatus represents the status of a conversation
type ConversationStatus string

const (
	ConversationStatusActive     ConversationStatus = "active"
	ConversationStatusExpired    ConversationStatus = "expired"
	ConversationStatusTerminated ConversationStatus = "terminated"
)

const (
	// GreetingMessageID is the id of the opening coach message
	GreetingMessageID = "1"
	// GreetingText opens every conversation
	GreetingText = "Hi! I'm Echo. Ready to practice? Tell me about your day or ask about a pronunciation problem."

	conversationTTL       = 24 * time.Hour
	conversationIdleLimit = 30 * time.Minute
)

// Conversation is the ordered, append-only chat history between a learner and the coach
type Conversation struct {
	ID            string             `json:"id" bson:"_id"`
	LearnerID     string             `json:"learner_id" bson:"learner_id"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	LastActiveAt  time.Time          `json:"last_active_at" bson:"last_active_at"`
	LastMessageAt *time.Time         `json:"last_message_at" bson:"last_message_at"`
	ExpiresAt     time.Time          `json:"expires_at" bson:"expires_at"`
	Status        ConversationStatus `json:"status" bson:"status"`
	Messages      []ChatMessage      `json:"messages" bson:"messages"`
}

// NewConversation creates a conversation opened by the coach greeting
func NewConversation(learnerID string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:           uuid.NewString(),
		LearnerID:    learnerID,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(conversationTTL),
		Status:       ConversationStatusActive,
		Messages: []ChatMessage{{
			ID:        GreetingMessageID,
			Role:      RoleModel,
			Text:      GreetingText,
			CreatedAt: now,
		}},
	}
}

// Append adds a message at the end of the history.
// Messages are never edited or removed once appended.
func (c *Conversation) Append(msg ChatMessage) {
	now := time.Now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	c.Messages = append(c.Messages, msg)
	c.LastMessageAt = &now
	c.UpdateLastActive()
}

// History returns a copy of the messages in insertion order
func (c *Conversation) History() []ChatMessage {
	history := make([]ChatMessage, len(c.Messages))
	copy(history, c.Messages)
	return history
}

// UpdateLastActive updates the last active timestamp and extends expiration
func (c *Conversation) UpdateLastActive() {
	c.LastActiveAt = time.Now()
	c.ExpiresAt = c.LastActiveAt.Add(conversationTTL)
}

// IsExpired checks if the conversation can no longer receive messages
func (c *Conversation) IsExpired() bool {
	return time.Now().After(c.ExpiresAt) || c.Status != ConversationStatusActive
}

// CanContinue reports whether a reconnecting learner should resume this conversation
func (c *Conversation) CanContinue() bool {
	if c.IsExpired() {
		return false
	}
	if c.LastMessageAt == nil {
		return true
	}
	return time.Since(*c.LastMessageAt) <= conversationIdleLimit
}

// Terminate marks the conversation as terminated
func (c *Conversation) Terminate() {
	c.Status = ConversationStatusTerminated
	c.UpdateLastActive()
}

// Expire marks the conversation as expired
func (c *Conversation) Expire() {
	c.Status = ConversationStatusExpired
}

// Validate validates the conversation data
func (c *Conversation) Validate() error {
	if c.ID == "" {
		return errors.New("id is required")
	}

	if c.LearnerID == "" {
		return errors.New("learner_id is required")
	}

	switch c.Status {
	case ConversationStatusActive, ConversationStatusExpired, ConversationStatusTerminated:
	default:
		return errors.New("invalid conversation status")
	}

	return nil
}
