package usecase

import (
	"context"
	"sync"

	"github.com/satriahrh/echocoach/domain/entities"
)

type fakeCoach struct {
	mu sync.Mutex

	feedback    entities.FeedbackRecord
	analyzeErr  error
	panicOnCall bool
	reply       string
	converseErr error

	analyzeCalls  int
	converseCalls int
	lastHistory   []entities.ChatMessage
	lastText      string
	lastAudio     *entities.AudioCapture
	lastReference string
}

func (f *fakeCoach) Analyze(ctx context.Context, audio entities.AudioCapture, referenceText string) (entities.FeedbackRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzeCalls++
	f.lastReference = referenceText
	if f.panicOnCall {
		panic("coach exploded")
	}
	return f.feedback, f.analyzeErr
}

func (f *fakeCoach) Converse(ctx context.Context, history []entities.ChatMessage, text string, audio *entities.AudioCapture) (entities.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.converseCalls++
	f.lastHistory = history
	f.lastText = text
	f.lastAudio = audio
	if f.converseErr != nil {
		return entities.ChatMessage{}, f.converseErr
	}
	return entities.NewModelMessage(f.reply), nil
}
