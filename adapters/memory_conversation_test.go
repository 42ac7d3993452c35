package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/satriahrh/echocoach/domain/entities"
	"github.com/satriahrh/echocoach/domain/repositories"
)

func TestMemoryConversationRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryConversationRepository()
	ctx := context.Background()

	conversation := entities.NewConversation("learner-1")
	if err := repo.Create(ctx, conversation); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Create(ctx, conversation); err == nil {
		t.Error("Create() with duplicate ID should fail")
	}

	got, err := repo.GetByID(ctx, conversation.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.LearnerID != "learner-1" || len(got.Messages) != 1 {
		t.Errorf("unexpected conversation %+v", got)
	}

	// Mutating the returned copy must not leak into the store
	got.Append(entities.NewUserMessage("hello", nil))
	again, _ := repo.GetByID(ctx, conversation.ID)
	if len(again.Messages) != 1 {
		t.Errorf("stored conversation was mutated through a returned copy")
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, repositories.ErrConversationNotFound) {
		t.Errorf("GetByID() error = %v, want ErrConversationNotFound", err)
	}
}

func TestMemoryConversationRepository_CreateValidates(t *testing.T) {
	repo := NewMemoryConversationRepository()

	if err := repo.Create(context.Background(), nil); err == nil {
		t.Error("Create(nil) should fail")
	}
	if err := repo.Create(context.Background(), &entities.Conversation{Status: entities.ConversationStatusActive}); err == nil {
		t.Error("Create() without learner should fail")
	}
}

func TestMemoryConversationRepository_Update(t *testing.T) {
	repo := NewMemoryConversationRepository()
	ctx := context.Background()

	conversation := entities.NewConversation("learner-1")
	_ = repo.Create(ctx, conversation)

	conversation.Append(entities.NewUserMessage("I like tea", nil))
	conversation.Append(entities.NewModelMessage("Me too!"))
	if err := repo.Update(ctx, conversation); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := repo.GetByID(ctx, conversation.ID)
	if len(got.Messages) != 3 || got.Messages[2].Text != "Me too!" {
		t.Errorf("messages not persisted in order: %+v", got.Messages)
	}

	unknown := entities.NewConversation("learner-1")
	if err := repo.Update(ctx, unknown); !errors.Is(err, repositories.ErrConversationNotFound) {
		t.Errorf("Update() of unknown conversation error = %v", err)
	}

	conversation.LearnerID = "someone-else"
	if err := repo.Update(ctx, conversation); err == nil {
		t.Error("Update() changing learner should fail")
	}
}

func TestMemoryConversationRepository_GetLastByLearnerID(t *testing.T) {
	repo := NewMemoryConversationRepository()
	ctx := context.Background()

	none, err := repo.GetLastByLearnerID(ctx, "learner-1")
	if err != nil || none != nil {
		t.Fatalf("GetLastByLearnerID() = %v, %v, want nil, nil", none, err)
	}

	older := entities.NewConversation("learner-1")
	older.CreatedAt = time.Now().Add(-time.Hour)
	_ = repo.Create(ctx, older)

	newer := entities.NewConversation("learner-1")
	_ = repo.Create(ctx, newer)

	_ = repo.Create(ctx, entities.NewConversation("learner-2"))

	got, err := repo.GetLastByLearnerID(ctx, "learner-1")
	if err != nil {
		t.Fatalf("GetLastByLearnerID() error = %v", err)
	}
	if got.ID != newer.ID {
		t.Errorf("got conversation %s, want the newest %s", got.ID, newer.ID)
	}
}

func TestMemoryConversationRepository_ExpireConversations(t *testing.T) {
	repo := NewMemoryConversationRepository()
	ctx := context.Background()

	stale := entities.NewConversation("learner-1")
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	_ = repo.Create(ctx, stale)

	fresh := entities.NewConversation("learner-2")
	_ = repo.Create(ctx, fresh)

	ended := entities.NewConversation("learner-3")
	ended.ExpiresAt = time.Now().Add(-time.Minute)
	ended.Terminate()
	ended.ExpiresAt = time.Now().Add(-time.Minute)
	_ = repo.Create(ctx, ended)

	count, err := repo.ExpireConversations(ctx, time.Now())
	if err != nil {
		t.Fatalf("ExpireConversations() error = %v", err)
	}
	if count != 1 {
		t.Errorf("expired %d conversations, want 1", count)
	}

	got, _ := repo.GetByID(ctx, stale.ID)
	if got.Status != entities.ConversationStatusExpired {
		t.Errorf("stale status = %s, want expired", got.Status)
	}
	got, _ = repo.GetByID(ctx, fresh.ID)
	if got.Status != entities.ConversationStatusActive {
		t.Errorf("fresh status = %s, want active", got.Status)
	}
}
