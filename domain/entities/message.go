package entities

import (
	"time"

	"github.com/google/uuid"
)

// Role defines who authored a chat message
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// TempMessageID marks a transient scratch entry that is never sent as context
const TempMessageID = "temp"

// ChatMessage represents a single turn in a coaching conversation
type ChatMessage struct {
	ID        string          `json:"id" bson:"id"`
	Role      Role            `json:"role" bson:"role"`
	Text      string          `json:"text" bson:"text"`
	AudioURL  string          `json:"audio_url,omitempty" bson:"audio_url,omitempty"`
	Feedback  *FeedbackRecord `json:"feedback,omitempty" bson:"feedback,omitempty"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
}

// NewUserMessage creates a learner turn, attaching the recording when present
func NewUserMessage(text string, audio *AudioCapture) ChatMessage {
	msg := ChatMessage{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if audio != nil && !audio.Empty() {
		msg.AudioURL = audio.DataURL()
	}
	return msg
}

// NewModelMessage creates a coach turn
func NewModelMessage(text string) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Role:      RoleModel,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// IsTemp reports whether the message is a scratch entry
func (m ChatMessage) IsTemp() bool {
	return m.ID == TempMessageID
}
