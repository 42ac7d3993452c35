package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/echocoach/domain/entities"
	"github.com/satriahrh/echocoach/domain/repositories"
)

const (
	defaultModel       = "gemini-2.5-flash"
	defaultTemperature = 0.2
)

var (
	ErrMissingAPIKey   = errors.New("gemini API key is required")
	ErrEmptyResponse   = errors.New("no response from model")
	ErrInvalidFeedback = errors.New("invalid feedback response")
)

// GeminiConfig holds the settings for the Gemini coach
type GeminiConfig struct {
	APIKey string
	Model  string
	// Temperature applies to pronunciation analysis only; nil means 0.2
	Temperature *float32
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return ErrMissingAPIKey
	}
	if t := config.Temperature; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", *t)
	}
	return nil
}

// contentGenerator is the slice of the genai client the coach needs
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiCoach implements repositories.Coach on top of Gemini
type GeminiCoach struct {
	models      contentGenerator
	logger      *zap.Logger
	model       string
	temperature float32
}

var _ repositories.Coach = (*GeminiCoach)(nil)

// NewGeminiCoach creates a Gemini client and wraps it in a coach
func NewGeminiCoach(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiCoach, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGeminiCoach(client.Models, config, logger), nil
}

func newGeminiCoach(models contentGenerator, config GeminiConfig, logger *zap.Logger) *GeminiCoach {
	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := float32(defaultTemperature)
	if config.Temperature != nil {
		temperature = *config.Temperature
	}

	return &GeminiCoach{
		models:      models,
		logger:      logger,
		model:       model,
		temperature: temperature,
	}
}

// Analyze sends the recording with the phonetics prompt and parses the JSON verdict
func (g *GeminiCoach) Analyze(ctx context.Context, audio entities.AudioCapture, referenceText string) (entities.FeedbackRecord, error) {
	if audio.Empty() {
		return entities.FeedbackRecord{}, errors.New("audio recording is empty")
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(audio.Data, audio.MIME()),
			genai.NewPartFromText(analysisPrompt(referenceText)),
		}, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   feedbackSchema,
		Temperature:      genai.Ptr(g.temperature),
	}

	response, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return entities.FeedbackRecord{}, fmt.Errorf("failed to generate analysis: %w", err)
	}

	text := responseText(response)
	if text == "" {
		return entities.FeedbackRecord{}, ErrEmptyResponse
	}

	feedback, err := parseFeedback(text)
	if err != nil {
		return entities.FeedbackRecord{}, err
	}

	g.logger.Info("Pronunciation analyzed",
		zap.Int("score", feedback.Score),
		zap.Int("issues", len(feedback.Issues)),
		zap.Bool("has_reference", referenceText != ""))

	return feedback, nil
}

var feedbackSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"score": {
			Type:        genai.TypeInteger,
			Description: "Overall pronunciation score 0-100",
		},
		"transcription": {
			Type:        genai.TypeString,
			Description: "What you heard",
		},
		"issues": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "List of specific issues found",
		},
		"suggestions": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "Actionable advice for improvement",
		},
	},
	Required: []string{"score", "transcription", "issues", "suggestions"},
}

// parseFeedback decodes the model JSON; a missing or out of range score is rejected
func parseFeedback(text string) (entities.FeedbackRecord, error) {
	var raw struct {
		Score         *int     `json:"score"`
		Transcription string   `json:"transcription"`
		Issues        []string `json:"issues"`
		Suggestions   []string `json:"suggestions"`
	}

	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return entities.FeedbackRecord{}, fmt.Errorf("%w: %w", ErrInvalidFeedback, err)
	}
	if raw.Score == nil {
		return entities.FeedbackRecord{}, fmt.Errorf("%w: missing score", ErrInvalidFeedback)
	}

	feedback := entities.FeedbackRecord{
		Score:         *raw.Score,
		Transcription: raw.Transcription,
		Issues:        raw.Issues,
		Suggestions:   raw.Suggestions,
	}
	if err := feedback.Validate(); err != nil {
		return entities.FeedbackRecord{}, fmt.Errorf("%w: %w", ErrInvalidFeedback, err)
	}

	return feedback.Normalize(), nil
}

// responseText joins the text parts of the first candidate, skipping thoughts
func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 {
		return ""
	}
	content := response.Candidates[0].Content
	if content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}
