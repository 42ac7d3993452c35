package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/echocoach/adapters/stt"
	"github.com/satriahrh/echocoach/domain/entities"
	"github.com/satriahrh/echocoach/domain/repositories"
	"github.com/satriahrh/echocoach/internal/auth"
	"github.com/satriahrh/echocoach/internal/capture"
	"github.com/satriahrh/echocoach/internal/metrics"
	"github.com/satriahrh/echocoach/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	defaultCoachTimeout = 60 * time.Second
	defaultTickInterval = 100 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Analyzer scores a finished recording and never fails
type Analyzer interface {
	Analyze(ctx context.Context, audio entities.AudioCapture, referenceText string) entities.FeedbackRecord
}

// Conversations is the chat side of the coach
type Conversations interface {
	Resume(ctx context.Context, learnerID string) (*entities.Conversation, error)
	Get(ctx context.Context, id, learnerID string) (*entities.Conversation, error)
	SendMessage(ctx context.Context, id, learnerID, text string, audio *entities.AudioCapture) (usecase.Turn, error)
	SendVoiceMessage(ctx context.Context, id, learnerID string, audio entities.AudioCapture) (usecase.Turn, error)
}

// HubConfig tunes the hub. Zero values fall back to defaults.
type HubConfig struct {
	// CoachTimeout bounds every analysis and chat turn
	CoachTimeout time.Duration
	// SpeechToText enables live captions when set
	SpeechToText repositories.SpeechToText
	// TranscriptLanguage is the caption language, e.g. en-US
	TranscriptLanguage string
	// TickInterval is how often recording_tick is sent
	TickInterval time.Duration
}

// Hub maintains the set of active clients and the microphones they share
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	analyzer      Analyzer
	conversations Conversations
	issuer        *auth.Issuer
	microphones   *capture.MicrophonePool
	validator     *MessageValidator
	metrics       *metrics.Metrics
	config        HubConfig

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(
	analyzer Analyzer,
	conversations Conversations,
	issuer *auth.Issuer,
	m *metrics.Metrics,
	config HubConfig,
	logger *zap.Logger,
) *Hub {
	if config.CoachTimeout <= 0 {
		config.CoachTimeout = defaultCoachTimeout
	}
	if config.TranscriptLanguage == "" {
		config.TranscriptLanguage = "en-US"
	}
	if config.TickInterval <= 0 {
		config.TickInterval = defaultTickInterval
	}

	return &Hub{
		clients:       make(map[*Client]struct{}),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		done:          make(chan struct{}),
		analyzer:      analyzer,
		conversations: conversations,
		issuer:        issuer,
		microphones:   capture.NewMicrophonePool(),
		validator:     NewMessageValidator(),
		metrics:       m,
		config:        config,
		logger:        logger,
	}
}

// Run starts the hub's main loop until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.metrics.ConnectionOpened()
			h.logger.Info("Client registered",
				zap.String("learnerID", client.learnerID),
				zap.String("clientID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
				h.metrics.ConnectionClosed()
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered",
				zap.String("learnerID", client.learnerID),
				zap.String("clientID", client.id))

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.closeSend()
				h.metrics.ConnectionClosed()
			}
			h.mu.Unlock()
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket authenticates the learner and upgrades the connection
func (h *Hub) HandleWebSocket(c echo.Context) error {
	token, err := auth.TokenFromRequest(c.Request())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	claims, err := h.issuer.ValidateToken(token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, auth.ErrInvalidToken.Error())
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return nil
	}

	client := h.newClient(conn, claims.LearnerID)
	select {
	case h.register <- client:
	case <-h.done:
		client.cancel()
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// recordingRequest remembers what to do with the recording once it stops
type recordingRequest struct {
	mode           RecordingMode
	referenceText  string
	text           string
	conversationID string
	mimeType       string
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send     chan WriteData
	sendMu   sync.Mutex
	sendDone bool

	id        string
	learnerID string
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	recorder *capture.Recorder

	mu             sync.Mutex
	request        recordingRequest
	conversationID string
	transcriber    repositories.SpeechToTextStreaming
	processing     sync.WaitGroup
}

func (h *Hub) newClient(conn *websocket.Conn, learnerID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()

	c := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan WriteData, 256),
		id:        id,
		learnerID: learnerID,
		logger:    h.logger.With(zap.String("learnerID", learnerID), zap.String("clientID", id)),
		ctx:       ctx,
		cancel:    cancel,
	}

	c.recorder = capture.NewRecorder(
		h.microphones.Device(learnerID),
		c.onRecordingComplete,
		capture.Options{
			TickInterval: h.config.TickInterval,
			OnTick: func(elapsed time.Duration) {
				c.sendJSON(CreateRecordingTickMessage(elapsed))
			},
		},
		c.logger,
	)

	return c
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		if c.recorder.Cancel() {
			c.hub.metrics.RecordingEnded()
		}
		c.endTranscriber()
		c.cancel()
		c.processing.Wait()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processBinaryAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendJSON queues a message; it is dropped once the client is gone or too slow
func (c *Client) sendJSON(msg interface{}) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to encode message", zap.Error(err))
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendDone {
		return
	}

	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
		if typed, ok := msg.(interface{ messageType() MessageType }); ok {
			c.hub.metrics.CountWSMessage("out", string(typed.messageType()))
		}
	default:
		c.logger.Warn("Send buffer full, dropping message")
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendDone {
		c.sendDone = true
		close(c.send)
	}
}

func (c *Client) sendError(code, message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	c.sendJSON(CreateErrorMessage(code, message, details))
}

// processMessage processes incoming control messages from the learner
func (c *Client) processMessage(message []byte) {
	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid message", zap.Error(err))
		c.sendError(ErrorCodeInvalidMessage, "Invalid message", err)
		return
	}

	switch m := msg.(type) {
	case *RecordingStartMessage:
		c.hub.metrics.CountWSMessage("in", string(m.Type))
		c.handleRecordingStart(m)
	case *RecordingStopMessage:
		c.hub.metrics.CountWSMessage("in", string(m.Type))
		c.handleRecordingStop()
	case *RecordingCancelMessage:
		c.hub.metrics.CountWSMessage("in", string(m.Type))
		c.handleRecordingCancel()
	case *ChatTextMessage:
		c.hub.metrics.CountWSMessage("in", string(m.Type))
		c.handleChatText(m)
	case *ConversationOpenMessage:
		c.hub.metrics.CountWSMessage("in", string(m.Type))
		c.handleConversationOpen(m)
	case *PingMessage:
		c.hub.metrics.CountWSMessage("in", string(m.Type))
		c.sendJSON(CreatePongMessage(m.Data))
	}
}

// processBinaryAudioChunk appends recorded audio and feeds the live caption
func (c *Client) processBinaryAudioChunk(data []byte) {
	if err := c.recorder.Write(data); err != nil {
		c.logger.Debug("Dropping audio chunk", zap.Int("size", len(data)), zap.Error(err))
		return
	}

	c.mu.Lock()
	transcriber := c.transcriber
	c.mu.Unlock()

	if transcriber != nil {
		if err := transcriber.Stream(data); err != nil {
			c.logger.Warn("Live transcription failed, disabling captions", zap.Error(err))
			c.endTranscriber()
		}
	}
}

func (c *Client) handleRecordingStart(msg *RecordingStartMessage) {
	if err := c.recorder.SetMIMEType(msg.MIMEType); err != nil {
		c.sendError(ErrorCodeInvalidState, "Recording is not possible right now", err)
		return
	}

	c.mu.Lock()
	c.request = recordingRequest{
		mode:           msg.Mode,
		referenceText:  msg.ReferenceText,
		text:           msg.Text,
		conversationID: msg.ConversationID,
		mimeType:       msg.MIMEType,
	}
	c.mu.Unlock()

	if err := c.recorder.Start(c.ctx); err != nil {
		switch {
		case errors.Is(err, capture.ErrDeviceBusy):
			c.sendJSON(CreateAlertMessage("Your microphone is already in use in another session."))
		case errors.Is(err, capture.ErrDeviceUnavailable):
			c.sendJSON(CreateAlertMessage(microphoneAlert))
		default:
			c.sendError(ErrorCodeInvalidState, "Recording is not possible right now", err)
		}
		return
	}

	c.hub.metrics.RecordingStarted()
	c.sendJSON(CreateStateMessage(capture.StateRecording))
	c.startTranscriber(msg.MIMEType)

	c.logger.Info("Recording started", zap.String("mode", string(msg.Mode)))
}

func (c *Client) handleRecordingStop() {
	if err := c.recorder.Stop(); err != nil {
		if errors.Is(err, capture.ErrInvalidState) {
			c.sendError(ErrorCodeInvalidState, "No recording in progress", err)
			return
		}
		c.logger.Error("Recording completion failed", zap.Error(err))
		if errors.Is(err, capture.ErrCallbackPanicked) {
			c.sendError(ErrorCodeInternal, "Could not process the recording", nil)
			if c.recorder.FinishProcessing() == nil {
				c.sendJSON(CreateStateMessage(capture.StateIdle))
			}
		}
	}
}

func (c *Client) handleRecordingCancel() {
	if !c.recorder.Cancel() {
		return
	}
	c.endTranscriber()
	c.hub.metrics.RecordingEnded()
	c.sendJSON(CreateStateMessage(capture.StateIdle))
}

// onRecordingComplete runs inside Recorder.Stop with the finalized capture.
// It enters PROCESSING and hands the work to a goroutine.
func (c *Client) onRecordingComplete(audio entities.AudioCapture) error {
	c.hub.metrics.RecordingEnded()
	c.hub.metrics.ObserveRecording(audio.Duration)

	if err := c.recorder.BeginProcessing(); err != nil {
		return err
	}
	c.sendJSON(CreateStateMessage(capture.StateProcessing))

	c.mu.Lock()
	request := c.request
	transcriber := c.transcriber
	c.transcriber = nil
	c.mu.Unlock()

	c.logger.Info("Recording finished",
		zap.String("mode", string(request.mode)),
		zap.Int("bytes", len(audio.Data)),
		zap.Duration("duration", audio.Duration))

	c.processing.Add(1)
	go func() {
		defer c.processing.Done()
		defer c.finishProcessing()

		ctx, cancel := context.WithTimeout(c.ctx, c.hub.config.CoachTimeout)
		defer cancel()

		if transcriber != nil {
			c.deliverTranscript(transcriber)
		}

		switch request.mode {
		case RecordingModeChat:
			c.sendVoiceTurn(ctx, request, audio)
		default:
			feedback := c.hub.analyzer.Analyze(ctx, audio, request.referenceText)
			c.sendJSON(CreateFeedbackMessage(request.referenceText, feedback))
		}
	}()

	return nil
}

func (c *Client) finishProcessing() {
	if p := recover(); p != nil {
		c.logger.Error("Processing panicked", zap.Any("panic", p))
		c.sendError(ErrorCodeInternal, "Something went wrong", nil)
	}
	if err := c.recorder.FinishProcessing(); err != nil {
		c.logger.Warn("Unexpected recorder state after processing", zap.Error(err))
	}
	c.sendJSON(CreateStateMessage(capture.StateIdle))
}

func (c *Client) sendVoiceTurn(ctx context.Context, request recordingRequest, audio entities.AudioCapture) {
	conversationID, err := c.resolveConversation(ctx, request.conversationID)
	if err != nil {
		c.sendError(ErrorCodeNoConversation, "Could not open the conversation", err)
		return
	}

	var turn usecase.Turn
	if strings.TrimSpace(request.text) != "" {
		turn, err = c.hub.conversations.SendMessage(ctx, conversationID, c.learnerID, request.text, &audio)
	} else {
		turn, err = c.hub.conversations.SendVoiceMessage(ctx, conversationID, c.learnerID, audio)
	}
	c.deliverTurn(conversationID, turn, err)
}

func (c *Client) handleChatText(msg *ChatTextMessage) {
	if strings.TrimSpace(msg.Text) == "" {
		c.sendError(ErrorCodeEmptyMessage, "Message is empty", nil)
		return
	}

	if err := c.recorder.BeginProcessing(); err != nil {
		c.sendError(ErrorCodeInvalidState, "Please wait for the current turn to finish", err)
		return
	}
	c.sendJSON(CreateStateMessage(capture.StateProcessing))

	c.processing.Add(1)
	go func() {
		defer c.processing.Done()
		defer c.finishProcessing()

		ctx, cancel := context.WithTimeout(c.ctx, c.hub.config.CoachTimeout)
		defer cancel()

		conversationID, err := c.resolveConversation(ctx, msg.ConversationID)
		if err != nil {
			c.sendError(ErrorCodeNoConversation, "Could not open the conversation", err)
			return
		}

		turn, err := c.hub.conversations.SendMessage(ctx, conversationID, c.learnerID, msg.Text, nil)
		c.deliverTurn(conversationID, turn, err)
	}()
}

// deliverTurn sends what was appended. The learner message is sent even when the coach failed.
func (c *Client) deliverTurn(conversationID string, turn usecase.Turn, err error) {
	if turn.User.ID != "" {
		c.sendJSON(CreateChatMessageEvent(conversationID, turn.User))
	}
	if turn.Reply != nil {
		c.sendJSON(CreateChatMessageEvent(conversationID, *turn.Reply))
	}

	switch {
	case err == nil:
	case errors.Is(err, usecase.ErrEmptyMessage), errors.Is(err, usecase.ErrEmptyAudio):
		c.sendError(ErrorCodeEmptyMessage, "Message is empty", err)
	case errors.Is(err, usecase.ErrCoachFailed):
		c.sendError(ErrorCodeCoachUnavailable, "The coach could not reply. Please try again.", err)
	default:
		c.logger.Error("Chat turn failed", zap.String("conversationID", conversationID), zap.Error(err))
		c.sendError(ErrorCodeNoConversation, "Could not send the message", err)
	}
}

func (c *Client) handleConversationOpen(msg *ConversationOpenMessage) {
	ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()

	var (
		conversation *entities.Conversation
		err          error
	)
	if msg.ConversationID != "" {
		conversation, err = c.hub.conversations.Get(ctx, msg.ConversationID, c.learnerID)
	} else {
		conversation, err = c.hub.conversations.Resume(ctx, c.learnerID)
	}
	if err != nil {
		c.sendError(ErrorCodeNoConversation, "Could not open the conversation", err)
		return
	}

	c.mu.Lock()
	c.conversationID = conversation.ID
	c.mu.Unlock()

	c.sendJSON(CreateConversationMessage(conversation))
}

// resolveConversation picks the requested conversation, the one already open, or resumes the latest
func (c *Client) resolveConversation(ctx context.Context, requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}

	c.mu.Lock()
	current := c.conversationID
	c.mu.Unlock()
	if current != "" {
		return current, nil
	}

	conversation, err := c.hub.conversations.Resume(ctx, c.learnerID)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.conversationID = conversation.ID
	c.mu.Unlock()

	c.sendJSON(CreateConversationMessage(conversation))
	return conversation.ID, nil
}

func (c *Client) startTranscriber(mimeType string) {
	speech := c.hub.config.SpeechToText
	if speech == nil {
		return
	}

	if mimeType == "" {
		mimeType = entities.DefaultAudioMIMEType
	}
	encoding := stt.EncodingForMIME(mimeType)
	if encoding == "" {
		c.logger.Debug("No live captions for this format", zap.String("mimeType", mimeType))
		return
	}

	transcriber, err := speech.InitTranscribeStreaming(c.ctx, repositories.AudioConfig{
		Encoding: encoding,
		Language: c.hub.config.TranscriptLanguage,
	})
	if err != nil {
		c.logger.Warn("Failed to start live transcription", zap.Error(err))
		return
	}

	c.mu.Lock()
	c.transcriber = transcriber
	c.mu.Unlock()
}

func (c *Client) deliverTranscript(transcriber repositories.SpeechToTextStreaming) {
	text, err := transcriber.End()
	if err != nil {
		c.logger.Debug("No live transcript", zap.Error(err))
		return
	}
	c.sendJSON(CreateTranscriptMessage(text))
}

func (c *Client) endTranscriber() {
	c.mu.Lock()
	transcriber := c.transcriber
	c.transcriber = nil
	c.mu.Unlock()

	if transcriber != nil {
		_, _ = transcriber.End()
	}
}
