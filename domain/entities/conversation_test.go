package entities

import (
	"testing"
	"time"
)

func TestConversationCreation(t *testing.T) {
	learnerID := "learner-123"
	conversation := NewConversation(learnerID)

	if conversation.LearnerID != learnerID {
		t.Errorf("Expected learner ID %s, got %s", learnerID, conversation.LearnerID)
	}

	if conversation.Status != ConversationStatusActive {
		t.Errorf("Expected status %s, got %s", ConversationStatusActive, conversation.Status)
	}

	if len(conversation.Messages) != 1 {
		t.Fatalf("Expected only the greeting, got %d messages", len(conversation.Messages))
	}

	greeting := conversation.Messages[0]
	if greeting.ID != GreetingMessageID || greeting.Role != RoleModel || greeting.Text != GreetingText {
		t.Errorf("Unexpected greeting %+v", greeting)
	}

	if conversation.LastMessageAt != nil {
		t.Error("Expected LastMessageAt to be unset before the first turn")
	}
}

func TestAppendKeepsInsertionOrder(t *testing.T) {
	conversation := NewConversation("learner")

	user := NewUserMessage("I go to school yesterday", nil)
	conversation.Append(user)

	if len(conversation.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(conversation.Messages))
	}

	if conversation.LastMessageAt == nil {
		t.Error("Expected LastMessageAt to be set")
	}

	model := NewModelMessage("You went to school yesterday! What did you learn?")
	conversation.Append(model)

	if len(conversation.Messages) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(conversation.Messages))
	}

	if conversation.Messages[1].ID != user.ID || conversation.Messages[2].ID != model.ID {
		t.Error("Messages should stay in insertion order")
	}

	if conversation.Messages[1].Role != RoleUser || conversation.Messages[2].Role != RoleModel {
		t.Error("Expected user turn followed by model turn")
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	conversation := NewConversation("learner")
	conversation.Append(NewUserMessage("hello", nil))

	history := conversation.History()
	history[0].Text = "changed"
	history = append(history, NewModelMessage("extra"))

	if conversation.Messages[0].Text != GreetingText {
		t.Error("Editing the returned history must not touch the conversation")
	}

	if len(conversation.Messages) != 2 {
		t.Errorf("Expected 2 messages, got %d", len(conversation.Messages))
	}
}

func TestConversationExpiration(t *testing.T) {
	conversation := NewConversation("learner")

	if conversation.IsExpired() {
		t.Error("Conversation should not be expired initially")
	}

	conversation.ExpiresAt = time.Now().Add(-1 * time.Hour)
	if !conversation.IsExpired() {
		t.Error("Conversation should be expired when ExpiresAt is in the past")
	}

	conversation.ExpiresAt = time.Now().Add(1 * time.Hour)
	conversation.Terminate()
	if !conversation.IsExpired() {
		t.Error("Conversation should be expired when status is terminated")
	}
}

func TestCanContinue(t *testing.T) {
	conversation := NewConversation("learner")

	if !conversation.CanContinue() {
		t.Error("Fresh conversation should be resumable")
	}

	conversation.Append(NewUserMessage("Hello", nil))
	if !conversation.CanContinue() {
		t.Error("Should continue when last message is recent")
	}

	oldTime := time.Now().Add(-31 * time.Minute)
	conversation.LastMessageAt = &oldTime
	if conversation.CanContinue() {
		t.Error("Should not continue when last message is old")
	}
}

func TestConversationValidation(t *testing.T) {
	conversation := NewConversation("learner")
	if err := conversation.Validate(); err != nil {
		t.Errorf("Valid conversation should not have validation errors, got: %v", err)
	}

	conversation.LearnerID = ""
	if err := conversation.Validate(); err == nil {
		t.Error("Conversation with empty learner ID should have validation error")
	}

	conversation.LearnerID = "learner"
	conversation.Status = ConversationStatus("invalid")
	if err := conversation.Validate(); err == nil {
		t.Error("Conversation with invalid status should have validation error")
	}
}

func TestUpdateLastActive(t *testing.T) {
	conversation := NewConversation("learner")
	originalLastActive := conversation.LastActiveAt

	time.Sleep(10 * time.Millisecond)

	conversation.UpdateLastActive()

	if !conversation.LastActiveAt.After(originalLastActive) {
		t.Error("LastActiveAt should be updated to a later time")
	}

	expectedExpiration := conversation.LastActiveAt.Add(24 * time.Hour)
	if conversation.ExpiresAt.Sub(expectedExpiration).Abs() > time.Second {
		t.Error("ExpiresAt should be 24 hours from LastActiveAt")
	}
}
