package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/satriahrh/echocoach/domain/entities"
	"github.com/satriahrh/echocoach/domain/repositories"
)

// ConversationRepository persists conversations in PostgreSQL.
// Messages live in their own table keyed by position and are only ever inserted.
type ConversationRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ repositories.ConversationRepository = (*ConversationRepository)(nil)

func NewConversationRepository(ctx context.Context, databaseURL string, logger *zap.Logger) (*ConversationRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("Connected to PostgreSQL")
	return &ConversationRepository{pool: pool, logger: logger}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			learner_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			last_active_at TIMESTAMPTZ NOT NULL,
			last_message_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS conversation_messages (
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			audio_url TEXT NOT NULL DEFAULT '',
			feedback JSONB,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (conversation_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_learner_active ON conversations (learner_id, last_active_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_status_expires ON conversations (status, expires_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (r *ConversationRepository) Create(ctx context.Context, conversation *entities.Conversation) error {
	if conversation == nil {
		return errors.New("conversation cannot be nil")
	}
	if err := conversation.Validate(); err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO conversations (id, learner_id, status, created_at, last_active_at, last_message_at, expires_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			conversation.ID,
			conversation.LearnerID,
			string(conversation.Status),
			conversation.CreatedAt,
			conversation.LastActiveAt,
			conversation.LastMessageAt,
			conversation.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		return insertMessages(ctx, tx, conversation.ID, 0, conversation.Messages)
	})
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*entities.Conversation, error) {
	if id == "" {
		return nil, errors.New("conversation ID cannot be empty")
	}

	conversation, err := r.scanConversation(ctx,
		`SELECT id, learner_id, status, created_at, last_active_at, last_message_at, expires_at
		 FROM conversations WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, repositories.ErrConversationNotFound
	}
	return conversation, nil
}

func (r *ConversationRepository) GetLastByLearnerID(ctx context.Context, learnerID string) (*entities.Conversation, error) {
	if learnerID == "" {
		return nil, errors.New("learner ID cannot be empty")
	}

	return r.scanConversation(ctx,
		`SELECT id, learner_id, status, created_at, last_active_at, last_message_at, expires_at
		 FROM conversations WHERE learner_id=$1 ORDER BY last_active_at DESC LIMIT 1`, learnerID)
}

// Update writes the conversation row and inserts messages not yet stored
func (r *ConversationRepository) Update(ctx context.Context, conversation *entities.Conversation) error {
	if conversation == nil {
		return errors.New("conversation cannot be nil")
	}
	if err := conversation.Validate(); err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE conversations
			 SET status=$3, last_active_at=$4, last_message_at=$5, expires_at=$6
			 WHERE id=$1 AND learner_id=$2`,
			conversation.ID,
			conversation.LearnerID,
			string(conversation.Status),
			conversation.LastActiveAt,
			conversation.LastMessageAt,
			conversation.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("update conversation: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repositories.ErrConversationNotFound
		}

		var stored int
		if err := tx.QueryRow(ctx,
			`SELECT count(*) FROM conversation_messages WHERE conversation_id=$1`,
			conversation.ID,
		).Scan(&stored); err != nil {
			return fmt.Errorf("count messages: %w", err)
		}

		if stored > len(conversation.Messages) {
			return fmt.Errorf("conversation %s has %d stored messages but only %d given", conversation.ID, stored, len(conversation.Messages))
		}
		return insertMessages(ctx, tx, conversation.ID, stored, conversation.Messages[stored:])
	})
}

func (r *ConversationRepository) ExpireConversations(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE conversations SET status=$1 WHERE status=$2 AND expires_at < $3`,
		string(entities.ConversationStatusExpired),
		string(entities.ConversationStatusActive),
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("expire conversations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *ConversationRepository) Close() error {
	r.pool.Close()
	return nil
}

// scanConversation loads one conversation row and its messages; nil when no row matches
func (r *ConversationRepository) scanConversation(ctx context.Context, query string, arg string) (*entities.Conversation, error) {
	var c entities.Conversation
	var status string
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&c.ID, &c.LearnerID, &status, &c.CreatedAt, &c.LastActiveAt, &c.LastMessageAt, &c.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	c.Status = entities.ConversationStatus(status)

	rows, err := r.pool.Query(ctx,
		`SELECT id, role, text, audio_url, feedback, created_at
		 FROM conversation_messages WHERE conversation_id=$1 ORDER BY seq`,
		c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	c.Messages = []entities.ChatMessage{}
	for rows.Next() {
		var msg entities.ChatMessage
		var role string
		var feedback []byte
		if err := rows.Scan(&msg.ID, &role, &msg.Text, &msg.AudioURL, &feedback, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.Role = entities.Role(role)
		if len(feedback) > 0 {
			var fb entities.FeedbackRecord
			if err := json.Unmarshal(feedback, &fb); err != nil {
				return nil, fmt.Errorf("decode feedback: %w", err)
			}
			msg.Feedback = &fb
		}
		c.Messages = append(c.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	return &c, nil
}

func insertMessages(ctx context.Context, tx pgx.Tx, conversationID string, offset int, messages []entities.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, msg := range messages {
		var feedback []byte
		if msg.Feedback != nil {
			encoded, err := json.Marshal(msg.Feedback)
			if err != nil {
				return fmt.Errorf("encode feedback: %w", err)
			}
			feedback = encoded
		}

		batch.Queue(
			`INSERT INTO conversation_messages (conversation_id, seq, id, role, text, audio_url, feedback, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			conversationID,
			offset+i,
			msg.ID,
			string(msg.Role),
			msg.Text,
			msg.AudioURL,
			feedback,
			msg.CreatedAt,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert messages: %w", err)
	}
	return nil
}
