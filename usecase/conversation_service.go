package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/echocoach/domain/entities"
	"github.com/satriahrh/echocoach/domain/repositories"
	"github.com/satriahrh/echocoach/internal/metrics"
)

const (
	// VoiceMessageText is shown in the history for a recorded turn
	VoiceMessageText = "(Voice Message)"
	// VoiceMessagePrompt accompanies the recording sent to the coach
	VoiceMessagePrompt = "Please analyze my audio message."
)

var (
	ErrEmptyMessage       = errors.New("message text is empty")
	ErrEmptyAudio         = errors.New("voice message has no audio")
	ErrConversationClosed = errors.New("conversation is no longer active")
	ErrNotOwner           = errors.New("conversation belongs to another learner")
	ErrCoachFailed        = errors.New("coach failed to reply")
)

// Turn is the outcome of one learner message. Reply is nil when the coach failed;
// the learner message stays in the history either way.
type Turn struct {
	User  entities.ChatMessage  `json:"user"`
	Reply *entities.ChatMessage `json:"reply,omitempty"`
}

// ConversationService owns the append-only chat history between learners and the coach
type ConversationService struct {
	repo    repositories.ConversationRepository
	coach   repositories.Coach
	metrics *metrics.Metrics
	logger  *zap.Logger
	locks   *keyedMutex
}

// NewConversationService creates a new conversation service
func NewConversationService(
	repo repositories.ConversationRepository,
	coach repositories.Coach,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		repo:    repo,
		coach:   coach,
		metrics: m,
		logger:  logger,
		locks:   newKeyedMutex(),
	}
}

// Start opens a new conversation seeded with the coach greeting
func (s *ConversationService) Start(ctx context.Context, learnerID string) (*entities.Conversation, error) {
	if strings.TrimSpace(learnerID) == "" {
		return nil, errors.New("learner ID is required")
	}

	conversation := entities.NewConversation(learnerID)
	if err := s.repo.Create(ctx, conversation); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	s.logger.Info("Conversation started",
		zap.String("conversation_id", conversation.ID),
		zap.String("learner_id", learnerID))

	return conversation, nil
}

// Resume returns the learner's latest conversation when it can continue, or starts a new one
func (s *ConversationService) Resume(ctx context.Context, learnerID string) (*entities.Conversation, error) {
	last, err := s.repo.GetLastByLearnerID(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up last conversation: %w", err)
	}

	if last != nil && last.CanContinue() {
		s.logger.Info("Resuming conversation",
			zap.String("conversation_id", last.ID),
			zap.String("learner_id", learnerID),
			zap.Int("message_count", len(last.Messages)))
		return last, nil
	}

	return s.Start(ctx, learnerID)
}

// Get loads a conversation owned by learnerID
func (s *ConversationService) Get(ctx context.Context, id, learnerID string) (*entities.Conversation, error) {
	conversation, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conversation.LearnerID != learnerID {
		return nil, ErrNotOwner
	}
	return conversation, nil
}

// History returns the ordered messages of a conversation
func (s *ConversationService) History(ctx context.Context, id, learnerID string) ([]entities.ChatMessage, error) {
	conversation, err := s.Get(ctx, id, learnerID)
	if err != nil {
		return nil, err
	}
	return conversation.History(), nil
}

// End terminates a conversation; further messages are rejected
func (s *ConversationService) End(ctx context.Context, id, learnerID string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	conversation, err := s.Get(ctx, id, learnerID)
	if err != nil {
		return err
	}
	if conversation.Status != entities.ConversationStatusActive {
		return nil
	}

	conversation.Terminate()
	if err := s.repo.Update(ctx, conversation); err != nil {
		return fmt.Errorf("failed to end conversation: %w", err)
	}

	s.logger.Info("Conversation ended", zap.String("conversation_id", id))
	return nil
}

// SendMessage appends the learner's text turn and asks the coach for a reply
func (s *ConversationService) SendMessage(ctx context.Context, id, learnerID, text string, audio *entities.AudioCapture) (Turn, error) {
	if strings.TrimSpace(text) == "" {
		return Turn{}, ErrEmptyMessage
	}
	return s.sendTurn(ctx, id, learnerID, text, text, audio)
}

// SendVoiceMessage appends a recorded turn and asks the coach to respond to the audio
func (s *ConversationService) SendVoiceMessage(ctx context.Context, id, learnerID string, audio entities.AudioCapture) (Turn, error) {
	if audio.Empty() {
		return Turn{}, ErrEmptyAudio
	}
	return s.sendTurn(ctx, id, learnerID, VoiceMessageText, VoiceMessagePrompt, &audio)
}

// sendTurn records the learner message before calling the coach. A failed
// coach call leaves the learner message in place.
func (s *ConversationService) sendTurn(ctx context.Context, id, learnerID, displayText, coachText string, audio *entities.AudioCapture) (Turn, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	conversation, err := s.Get(ctx, id, learnerID)
	if err != nil {
		return Turn{}, err
	}
	if conversation.IsExpired() {
		return Turn{}, ErrConversationClosed
	}

	prior := conversation.History()

	user := entities.NewUserMessage(displayText, audio)
	conversation.Append(user)
	if err := s.repo.Update(ctx, conversation); err != nil {
		return Turn{}, fmt.Errorf("failed to save message: %w", err)
	}

	turn := Turn{User: user}
	start := time.Now()

	reply, err := s.coach.Converse(ctx, prior, coachText, audio)
	if err != nil {
		s.metrics.ObserveChatTurn(metrics.OutcomeError, time.Since(start))
		s.logger.Error("Chat error",
			zap.String("conversation_id", id),
			zap.Error(err))
		return turn, fmt.Errorf("%w: %w", ErrCoachFailed, err)
	}
	s.metrics.ObserveChatTurn(metrics.OutcomeOK, time.Since(start))

	if reply.ID == "" {
		reply = entities.NewModelMessage(reply.Text)
	}
	reply.Role = entities.RoleModel

	conversation.Append(reply)
	if err := s.repo.Update(ctx, conversation); err != nil {
		return turn, fmt.Errorf("failed to save reply: %w", err)
	}

	turn.Reply = &reply
	return turn, nil
}
