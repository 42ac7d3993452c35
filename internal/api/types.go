package api

import (
	"time"

	"github.com/satriahrh/echocoach/domain/entities"
)

// TokenRequest represents the request payload for learner authentication
type TokenRequest struct {
	LearnerID string `json:"learner_id"`
}

// TokenResponse represents the response payload for learner authentication
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	LearnerID string    `json:"learner_id"`
}

// AnalyzeRequest carries one base64 recording to score
type AnalyzeRequest struct {
	AudioData     string `json:"audio_data"`
	MIMEType      string `json:"mime_type,omitempty"`
	ReferenceText string `json:"reference_text,omitempty"`
}

// SendMessageRequest is a chat turn, optionally with the recording it was spoken in
type SendMessageRequest struct {
	Text      string `json:"text"`
	AudioData string `json:"audio_data,omitempty"`
	MIMEType  string `json:"mime_type,omitempty"`
}

// SymbolResponse is a chart entry with its display hint
type SymbolResponse struct {
	entities.IPASymbol
	MouthHint string `json:"mouth_hint"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
