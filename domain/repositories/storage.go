package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/satriahrh/echocoach/domain/entities"
)

// ErrConversationNotFound is returned when no conversation matches the lookup
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository defines data access methods for conversations
type ConversationRepository interface {
	Create(ctx context.Context, conversation *entities.Conversation) error
	GetByID(ctx context.Context, id string) (*entities.Conversation, error)
	// GetLastByLearnerID returns the most recent conversation, or nil when there is none
	GetLastByLearnerID(ctx context.Context, learnerID string) (*entities.Conversation, error)
	Update(ctx context.Context, conversation *entities.Conversation) error
	// ExpireConversations marks every active conversation past its expiry and returns how many changed
	ExpireConversations(ctx context.Context, now time.Time) (int64, error)
}
