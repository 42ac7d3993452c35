package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/echocoach/domain/entities"
	"github.com/satriahrh/echocoach/domain/repositories"
	"github.com/satriahrh/echocoach/internal/auth"
	"github.com/satriahrh/echocoach/internal/phonetics"
	"github.com/satriahrh/echocoach/usecase"
)

// Analyzer scores a recording and always produces a record
type Analyzer interface {
	Analyze(ctx context.Context, audio entities.AudioCapture, referenceText string) entities.FeedbackRecord
}

// Conversations is the subset of the conversation service the REST API exposes
type Conversations interface {
	Start(ctx context.Context, learnerID string) (*entities.Conversation, error)
	Get(ctx context.Context, id, learnerID string) (*entities.Conversation, error)
	History(ctx context.Context, id, learnerID string) ([]entities.ChatMessage, error)
	End(ctx context.Context, id, learnerID string) error
	SendMessage(ctx context.Context, id, learnerID, text string, audio *entities.AudioCapture) (usecase.Turn, error)
}

// Synthesizer renders text to a playable clip
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	ContentType() string
}

type handler struct {
	issuer        *auth.Issuer
	analyzer      Analyzer
	conversations Conversations
	catalog       *phonetics.Catalog
	speech        Synthesizer
	logger        *zap.Logger
}

func errorJSON(c echo.Context, status int, code, message string) error {
	return c.JSON(status, ErrorResponse{Error: code, Message: message})
}

func (h *handler) issueToken(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Warn("Failed to bind token request", zap.Error(err))
		return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
	}

	learnerID := strings.TrimSpace(req.LearnerID)
	if learnerID == "" {
		return errorJSON(c, http.StatusBadRequest, "missing_fields", "learner_id is required")
	}

	token, expiresAt, err := h.issuer.GenerateLearnerToken(learnerID)
	if err != nil {
		h.logger.Error("Failed to generate learner token",
			zap.String("learner_id", learnerID),
			zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "token_generation_failed", "Failed to generate authentication token")
	}

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		LearnerID: learnerID,
	})
}

func (h *handler) listSymbols(c echo.Context) error {
	category := entities.SymbolCategory(strings.ToLower(c.QueryParam("category")))
	switch category {
	case "", entities.CategoryMonophthong, entities.CategoryDiphthong, entities.CategoryConsonant:
	default:
		return errorJSON(c, http.StatusBadRequest, "invalid_category", "category must be monophthong, diphthong or consonant")
	}

	symbols := h.catalog.Symbols(category)
	out := make([]SymbolResponse, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, SymbolResponse{IPASymbol: s, MouthHint: s.MouthHint()})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handler) getSymbol(c echo.Context) error {
	symbol, err := h.catalog.Symbol(c.Param("symbol"))
	if err != nil {
		return errorJSON(c, http.StatusNotFound, "symbol_not_found", err.Error())
	}
	return c.JSON(http.StatusOK, SymbolResponse{IPASymbol: symbol, MouthHint: symbol.MouthHint()})
}

// symbolSample speaks the symbol's example word
func (h *handler) symbolSample(c echo.Context) error {
	symbol, err := h.catalog.Symbol(c.Param("symbol"))
	if err != nil {
		return errorJSON(c, http.StatusNotFound, "symbol_not_found", err.Error())
	}
	if h.speech == nil {
		return errorJSON(c, http.StatusNotImplemented, "tts_unavailable", "Speech synthesis is not configured")
	}

	audio, err := h.speech.Synthesize(c.Request().Context(), symbol.Example)
	if err != nil {
		h.logger.Error("Failed to synthesize sample",
			zap.String("symbol", symbol.Symbol),
			zap.Error(err))
		return errorJSON(c, http.StatusBadGateway, "tts_failed", "Could not synthesize the example word")
	}
	return c.Blob(http.StatusOK, h.speech.ContentType(), audio)
}

func (h *handler) listDrills(c echo.Context) error {
	return c.JSON(http.StatusOK, h.catalog.Drills())
}

func (h *handler) getRhythm(c echo.Context) error {
	return c.JSON(http.StatusOK, h.catalog.Rhythm())
}

// analyze answers 200 with a feedback record for any well formed request;
// coach failures surface as the fallback record.
func (h *handler) analyze(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
	}

	audio := entities.AudioCapture{MIMEType: req.MIMEType}
	if req.AudioData != "" {
		decoded, err := entities.DecodeAudioCapture(req.AudioData, req.MIMEType)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_audio", err.Error())
		}
		audio = decoded
	}

	feedback := h.analyzer.Analyze(c.Request().Context(), audio, strings.TrimSpace(req.ReferenceText))
	return c.JSON(http.StatusOK, feedback)
}

func (h *handler) startConversation(c echo.Context) error {
	conversation, err := h.conversations.Start(c.Request().Context(), auth.LearnerID(c))
	if err != nil {
		return h.conversationError(c, err)
	}
	return c.JSON(http.StatusCreated, conversation)
}

func (h *handler) getConversation(c echo.Context) error {
	conversation, err := h.conversations.Get(c.Request().Context(), c.Param("id"), auth.LearnerID(c))
	if err != nil {
		return h.conversationError(c, err)
	}
	return c.JSON(http.StatusOK, conversation)
}

func (h *handler) listMessages(c echo.Context) error {
	messages, err := h.conversations.History(c.Request().Context(), c.Param("id"), auth.LearnerID(c))
	if err != nil {
		return h.conversationError(c, err)
	}
	return c.JSON(http.StatusOK, messages)
}

func (h *handler) endConversation(c echo.Context) error {
	if err := h.conversations.End(c.Request().Context(), c.Param("id"), auth.LearnerID(c)); err != nil {
		return h.conversationError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handler) sendMessage(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
	}

	var audio *entities.AudioCapture
	if req.AudioData != "" {
		decoded, err := entities.DecodeAudioCapture(req.AudioData, req.MIMEType)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_audio", err.Error())
		}
		audio = &decoded
	}

	turn, err := h.conversations.SendMessage(c.Request().Context(), c.Param("id"), auth.LearnerID(c), req.Text, audio)
	if err != nil {
		if errors.Is(err, usecase.ErrCoachFailed) {
			return c.JSON(http.StatusBadGateway, struct {
				ErrorResponse
				usecase.Turn
			}{
				ErrorResponse: ErrorResponse{Error: "coach_unavailable", Message: "The coach could not reply. Please try again."},
				Turn:          turn,
			})
		}
		return h.conversationError(c, err)
	}
	return c.JSON(http.StatusOK, turn)
}

// conversationError maps service errors to HTTP responses
func (h *handler) conversationError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrEmptyMessage), errors.Is(err, usecase.ErrEmptyAudio):
		return errorJSON(c, http.StatusBadRequest, "empty_message", err.Error())
	case errors.Is(err, repositories.ErrConversationNotFound), errors.Is(err, usecase.ErrNotOwner):
		return errorJSON(c, http.StatusNotFound, "conversation_not_found", "Conversation not found")
	case errors.Is(err, usecase.ErrConversationClosed):
		return errorJSON(c, http.StatusConflict, "conversation_closed", err.Error())
	default:
		h.logger.Error("Conversation request failed",
			zap.String("path", c.Path()),
			zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "internal_error", "Something went wrong")
	}
}
