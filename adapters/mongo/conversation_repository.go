package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/echocoach/domain/entities"
	"github.com/satriahrh/echocoach/domain/repositories"
)

const conversationsCollection = "conversations"

// ConversationRepository stores one document per conversation, messages embedded
type ConversationRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.ConversationRepository = (*ConversationRepository)(nil)

// NewConversationRepository creates a new MongoDB conversation repository
func NewConversationRepository(db *mongo.Database, logger *zap.Logger) *ConversationRepository {
	collection := db.Collection(conversationsCollection)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
			{Keys: bson.D{{Key: "learner_id", Value: 1}, {Key: "last_active_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}}},
		})
		if err != nil {
			logger.Error("Failed to create conversation indexes", zap.Error(err))
		} else {
			logger.Info("Conversation indexes created successfully")
		}
	}()

	return &ConversationRepository{
		collection: collection,
		logger:     logger,
	}
}

// Create implements repositories.ConversationRepository
func (r *ConversationRepository) Create(ctx context.Context, conversation *entities.Conversation) error {
	if conversation == nil {
		return errors.New("conversation cannot be nil")
	}
	if err := conversation.Validate(); err != nil {
		return err
	}

	if _, err := r.collection.InsertOne(ctx, conversation); err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	r.logger.Info("Conversation created",
		zap.String("conversation_id", conversation.ID),
		zap.String("learner_id", conversation.LearnerID))
	return nil
}

// GetByID implements repositories.ConversationRepository
func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*entities.Conversation, error) {
	if id == "" {
		return nil, errors.New("conversation ID cannot be empty")
	}

	var conversation entities.Conversation
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&conversation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}

	return &conversation, nil
}

// GetLastByLearnerID implements repositories.ConversationRepository
func (r *ConversationRepository) GetLastByLearnerID(ctx context.Context, learnerID string) (*entities.Conversation, error) {
	if learnerID == "" {
		return nil, errors.New("learner ID cannot be empty")
	}

	filter := bson.M{"learner_id": learnerID}
	opts := options.FindOne().SetSort(bson.D{{Key: "last_active_at", Value: -1}})

	var conversation entities.Conversation
	err := r.collection.FindOne(ctx, filter, opts).Decode(&conversation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last conversation for learner %s: %w", learnerID, err)
	}

	return &conversation, nil
}

// Update implements repositories.ConversationRepository
func (r *ConversationRepository) Update(ctx context.Context, conversation *entities.Conversation) error {
	if conversation == nil {
		return errors.New("conversation cannot be nil")
	}
	if err := conversation.Validate(); err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"last_active_at":  conversation.LastActiveAt,
			"last_message_at": conversation.LastMessageAt,
			"expires_at":      conversation.ExpiresAt,
			"status":          conversation.Status,
			"messages":        conversation.Messages,
		},
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": conversation.ID, "learner_id": conversation.LearnerID},
		update,
	)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrConversationNotFound
	}

	return nil
}

// ExpireConversations implements repositories.ConversationRepository
func (r *ConversationRepository) ExpireConversations(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.M{
		"status":     entities.ConversationStatusActive,
		"expires_at": bson.M{"$lt": now},
	}
	update := bson.M{
		"$set": bson.M{"status": entities.ConversationStatusExpired},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to expire conversations", zap.Error(err))
		return 0, fmt.Errorf("failed to expire conversations: %w", err)
	}

	return result.ModifiedCount, nil
}
