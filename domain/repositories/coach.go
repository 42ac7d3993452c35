package repositories

import (
	"context"

	"github.com/satriahrh/echocoach/domain/entities"
)

// Coach abstracts the generative model that scores pronunciation and chats with learners
type Coach interface {
	// Analyze scores a recording, optionally against the text the learner meant to say
	Analyze(ctx context.Context, audio entities.AudioCapture, referenceText string) (entities.FeedbackRecord, error)
	// Converse produces the coach reply to a new turn given the prior history
	Converse(ctx context.Context, history []entities.ChatMessage, text string, audio *entities.AudioCapture) (entities.ChatMessage, error)
}
