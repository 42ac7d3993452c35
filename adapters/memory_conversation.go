package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/echocoach/domain/entities"
	"github.com/satriahrh/echocoach/domain/repositories"
)

// MemoryConversationRepository is an in-memory implementation of ConversationRepository.
// Conversations do not survive a restart.
type MemoryConversationRepository struct {
	mu            sync.RWMutex
	conversations map[string]*entities.Conversation // id -> conversation
	learners      map[string][]string               // learner_id -> conversation ids, oldest first
}

var _ repositories.ConversationRepository = (*MemoryConversationRepository)(nil)

// NewMemoryConversationRepository creates a new in-memory conversation repository
func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{
		conversations: make(map[string]*entities.Conversation),
		learners:      make(map[string][]string),
	}
}

// Create implements ConversationRepository interface
func (m *MemoryConversationRepository) Create(ctx context.Context, conversation *entities.Conversation) error {
	if conversation == nil {
		return errors.New("conversation cannot be nil")
	}

	if conversation.ID == "" {
		conversation.ID = uuid.NewString()
	}

	if err := conversation.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[conversation.ID]; exists {
		return errors.New("conversation with this ID already exists")
	}

	m.conversations[conversation.ID] = cloneConversation(conversation)
	m.learners[conversation.LearnerID] = append(m.learners[conversation.LearnerID], conversation.ID)

	return nil
}

// GetByID implements ConversationRepository interface
func (m *MemoryConversationRepository) GetByID(ctx context.Context, id string) (*entities.Conversation, error) {
	if id == "" {
		return nil, errors.New("conversation ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	conversation, exists := m.conversations[id]
	if !exists {
		return nil, repositories.ErrConversationNotFound
	}

	// Return a copy to prevent external modifications
	return cloneConversation(conversation), nil
}

// GetLastByLearnerID implements ConversationRepository interface
func (m *MemoryConversationRepository) GetLastByLearnerID(ctx context.Context, learnerID string) (*entities.Conversation, error) {
	if learnerID == "" {
		return nil, errors.New("learner ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var last *entities.Conversation
	for _, id := range m.learners[learnerID] {
		c := m.conversations[id]
		if last == nil || lastActivity(c).After(lastActivity(last)) {
			last = c
		}
	}

	if last == nil {
		return nil, nil
	}
	return cloneConversation(last), nil
}

// Update implements ConversationRepository interface
func (m *MemoryConversationRepository) Update(ctx context.Context, conversation *entities.Conversation) error {
	if conversation == nil {
		return errors.New("conversation cannot be nil")
	}

	if err := conversation.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.conversations[conversation.ID]
	if !exists {
		return repositories.ErrConversationNotFound
	}
	if existing.LearnerID != conversation.LearnerID {
		return errors.New("conversation learner cannot change")
	}

	m.conversations[conversation.ID] = cloneConversation(conversation)
	return nil
}

// ExpireConversations implements ConversationRepository interface
func (m *MemoryConversationRepository) ExpireConversations(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, c := range m.conversations {
		if c.Status == entities.ConversationStatusActive && c.ExpiresAt.Before(now) {
			c.Expire()
			count++
		}
	}
	return count, nil
}

func lastActivity(c *entities.Conversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

func cloneConversation(c *entities.Conversation) *entities.Conversation {
	clone := *c
	clone.Messages = c.History()
	if c.LastMessageAt != nil {
		t := *c.LastMessageAt
		clone.LastMessageAt = &t
	}
	for i, msg := range clone.Messages {
		if msg.Feedback != nil {
			fb := *msg.Feedback
			clone.Messages[i].Feedback = &fb
		}
	}
	return &clone
}
