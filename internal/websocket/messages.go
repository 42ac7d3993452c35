package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/satriahrh/echocoach/domain/entities"
	"github.com/satriahrh/echocoach/internal/capture"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Client to server message types
const (
	MessageTypeRecordingStart   MessageType = "recording_start"
	MessageTypeRecordingStop    MessageType = "recording_stop"
	MessageTypeRecordingCancel  MessageType = "recording_cancel"
	MessageTypeChatText         MessageType = "chat_text"
	MessageTypeConversationOpen MessageType = "conversation_open"
	MessageTypePing             MessageType = "ping"
)

// Server to client message types
const (
	MessageTypeState         MessageType = "state"
	MessageTypeRecordingTick MessageType = "recording_tick"
	MessageTypeAlert         MessageType = "alert"
	MessageTypeTranscript    MessageType = "transcript"
	MessageTypeFeedback      MessageType = "feedback"
	MessageTypeChatMessage   MessageType = "chat_message"
	MessageTypeConversation  MessageType = "conversation"
	MessageTypeError         MessageType = "error"
	MessageTypePong          MessageType = "pong"
)

// RecordingMode selects what happens with a finished recording
type RecordingMode string

const (
	RecordingModeAnalyze RecordingMode = "analyze"
	RecordingModeChat    RecordingMode = "chat"
)

// Error codes sent in ErrorMessage
const (
	ErrorCodeInvalidMessage   = "invalid_message"
	ErrorCodeInvalidState     = "invalid_state"
	ErrorCodeEmptyMessage     = "empty_message"
	ErrorCodeNoConversation   = "conversation_unavailable"
	ErrorCodeCoachUnavailable = "coach_unavailable"
	ErrorCodeInternal         = "internal_error"
)

const microphoneAlert = "Could not access microphone. Please check permissions."

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
	MessageID string      `json:"message_id,omitempty"`
}

// RecordingStartMessage asks the server to open the microphone
type RecordingStartMessage struct {
	BaseMessage
	Mode           RecordingMode `json:"mode"`
	ReferenceText  string        `json:"reference_text,omitempty"`
	Text           string        `json:"text,omitempty"`
	ConversationID string        `json:"conversation_id,omitempty"`
	MIMEType       string        `json:"mime_type,omitempty"`
}

// RecordingStopMessage finalizes the current recording
type RecordingStopMessage struct {
	BaseMessage
}

// RecordingCancelMessage drops the current recording
type RecordingCancelMessage struct {
	BaseMessage
}

// ChatTextMessage is a typed chat turn
type ChatTextMessage struct {
	BaseMessage
	ConversationID string `json:"conversation_id,omitempty"`
	Text           string `json:"text"`
}

// ConversationOpenMessage resumes a conversation, or the latest one when no id is given
type ConversationOpenMessage struct {
	BaseMessage
	ConversationID string `json:"conversation_id,omitempty"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// StateMessage reports the recorder display state
type StateMessage struct {
	BaseMessage
	State capture.State `json:"state"`
}

// RecordingTickMessage carries the elapsed recording time
type RecordingTickMessage struct {
	BaseMessage
	ElapsedMs int64 `json:"elapsed_ms"`
}

// AlertMessage is a user-facing notice
type AlertMessage struct {
	BaseMessage
	Message string `json:"message"`
}

// TranscriptMessage is the live caption of the last recording
type TranscriptMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// FeedbackMessage carries a pronunciation analysis
type FeedbackMessage struct {
	BaseMessage
	ReferenceText string                  `json:"reference_text,omitempty"`
	Feedback      entities.FeedbackRecord `json:"feedback"`
}

// ChatMessageEvent carries one appended chat turn
type ChatMessageEvent struct {
	BaseMessage
	ConversationID string               `json:"conversation_id"`
	Message        entities.ChatMessage `json:"message"`
}

// ConversationMessage carries a whole conversation
type ConversationMessage struct {
	BaseMessage
	Conversation *entities.Conversation `json:"conversation"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses an incoming text frame into its typed message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeRecordingStart:
		var msg RecordingStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid recording start message: %w", err)
		}
		if err := v.validateRecordingStart(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeRecordingStop:
		return &RecordingStopMessage{BaseMessage: base}, nil

	case MessageTypeRecordingCancel:
		return &RecordingCancelMessage{BaseMessage: base}, nil

	case MessageTypeChatText:
		var msg ChatTextMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid chat text message: %w", err)
		}
		return &msg, nil

	case MessageTypeConversationOpen:
		var msg ConversationOpenMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid conversation open message: %w", err)
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case "":
		return nil, fmt.Errorf("message type is required")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func (v *MessageValidator) validateRecordingStart(msg *RecordingStartMessage) error {
	switch msg.Mode {
	case RecordingModeAnalyze, RecordingModeChat:
	case "":
		msg.Mode = RecordingModeAnalyze
	default:
		return fmt.Errorf("mode must be one of: analyze, chat")
	}

	if msg.MIMEType != "" && !strings.HasPrefix(strings.ToLower(msg.MIMEType), "audio/") {
		return fmt.Errorf("mime_type must be an audio type")
	}

	return nil
}

func (b BaseMessage) messageType() MessageType { return b.Type }

func newBase(t MessageType) BaseMessage {
	return BaseMessage{
		Type:      t,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{BaseMessage: newBase(MessageTypePong), Data: data}
}

func CreateStateMessage(state capture.State) *StateMessage {
	return &StateMessage{BaseMessage: newBase(MessageTypeState), State: state}
}

func CreateRecordingTickMessage(elapsed time.Duration) *RecordingTickMessage {
	return &RecordingTickMessage{BaseMessage: newBase(MessageTypeRecordingTick), ElapsedMs: elapsed.Milliseconds()}
}

func CreateAlertMessage(message string) *AlertMessage {
	return &AlertMessage{BaseMessage: newBase(MessageTypeAlert), Message: message}
}

func CreateTranscriptMessage(text string) *TranscriptMessage {
	return &TranscriptMessage{BaseMessage: newBase(MessageTypeTranscript), Text: text}
}

func CreateFeedbackMessage(referenceText string, feedback entities.FeedbackRecord) *FeedbackMessage {
	return &FeedbackMessage{
		BaseMessage:   newBase(MessageTypeFeedback),
		ReferenceText: referenceText,
		Feedback:      feedback,
	}
}

func CreateChatMessageEvent(conversationID string, msg entities.ChatMessage) *ChatMessageEvent {
	return &ChatMessageEvent{
		BaseMessage:    newBase(MessageTypeChatMessage),
		ConversationID: conversationID,
		Message:        msg,
	}
}

func CreateConversationMessage(conversation *entities.Conversation) *ConversationMessage {
	return &ConversationMessage{BaseMessage: newBase(MessageTypeConversation), Conversation: conversation}
}
