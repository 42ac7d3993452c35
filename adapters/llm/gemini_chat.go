package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/echocoach/domain/entities"
)

// Converse replays the history under the Echo persona and returns the coach reply.
// Scratch entries are never sent as context.
func (g *GeminiCoach) Converse(ctx context.Context, history []entities.ChatMessage, text string, audio *entities.AudioCapture) (entities.ChatMessage, error) {
	contents := convertHistoryToGeminiFormat(history)

	var parts []*genai.Part
	if audio != nil && !audio.Empty() {
		parts = append(parts, genai.NewPartFromBytes(audio.Data, audio.MIME()))
	}
	parts = append(parts, genai.NewPartFromText(text))
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(coachSystemInstruction, genai.RoleUser),
	}

	response, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return entities.ChatMessage{}, fmt.Errorf("failed to generate reply: %w", err)
	}

	reply := responseText(response)
	if reply == "" {
		g.logger.Warn("Empty reply from coach")
		reply = EmptyReplyText
	}

	g.logger.Info("Coach replied",
		zap.String("user_message", preview(text)),
		zap.String("response_preview", preview(reply)),
		zap.Int("history_length", len(contents)-1),
		zap.Bool("with_audio", audio != nil && !audio.Empty()))

	return entities.NewModelMessage(reply), nil
}

// convertHistoryToGeminiFormat maps chat turns to Gemini contents, dropping scratch entries
func convertHistoryToGeminiFormat(history []entities.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)

	for _, msg := range history {
		if msg.IsTemp() {
			continue
		}

		role := genai.RoleUser
		if msg.Role == entities.RoleModel {
			role = genai.RoleModel
		}

		contents = append(contents, genai.NewContentFromText(msg.Text, role))
	}

	return contents
}

func preview(s string) string {
	const limit = 50
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
