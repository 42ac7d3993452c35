// Command coachclient records nothing itself: it streams an audio file to the
// coach server over the websocket protocol, the way the browser widget does,
// and prints what comes back.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type tokenRequest struct {
	LearnerID string `json:"learner_id"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func main() {
	server := flag.String("server", "localhost:8080", "coach server host:port")
	learnerID := flag.String("learner", "cli-learner", "learner id to authenticate as")
	audioPath := flag.String("file", "sample_audio.wav", "audio file to stream")
	mode := flag.String("mode", "analyze", "analyze or chat")
	reference := flag.String("reference", "", "sentence the learner is trying to say (analyze mode)")
	text := flag.String("text", "", "typed text sent alongside the recording (chat mode)")
	chunkSize := flag.Int("chunk", 1024, "bytes per audio chunk")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	token, err := authenticate(*server, *learnerID)
	if err != nil {
		logger.Fatal("Failed to authenticate", zap.Error(err))
	}
	logger.Info("Authenticated", zap.String("learner_id", *learnerID))

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *server, Path: "/ws"}
	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+token)

	c, _, err := websocket.DefaultDialer.Dial(u.String(), headers)
	if err != nil {
		logger.Fatal("dial", zap.Error(err))
	}
	defer c.Close()

	done := make(chan struct{})
	go handleIncomingMessages(c, done, logger)

	if err := streamRecording(c, *audioPath, *mode, *reference, *text, *chunkSize, logger); err != nil {
		logger.Error("Failed to stream recording", zap.Error(err))
	}

	select {
	case <-done:
	case <-interrupt:
		logger.Info("interrupt")
		// Cleanly close the connection by sending a close message and then
		// waiting (with timeout) for the server to close the connection.
		err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			logger.Error("write close", zap.Error(err))
			return
		}
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func authenticate(server, learnerID string) (string, error) {
	body, err := json.Marshal(tokenRequest{LearnerID: learnerID})
	if err != nil {
		return "", err
	}

	resp, err := http.Post("http://"+server+"/api/v1/auth/token", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("authentication failed: %s", string(data))
	}

	var out tokenResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func streamRecording(c *websocket.Conn, path, mode, reference, text string, chunkSize int, logger *zap.Logger) error {
	audio, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read audio file: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	start := map[string]interface{}{
		"type":           "recording_start",
		"mode":           mode,
		"reference_text": reference,
		"text":           text,
		"mime_type":      mimeType,
	}
	if err := c.WriteJSON(start); err != nil {
		return fmt.Errorf("send recording_start: %w", err)
	}

	logger.Info("Streaming audio",
		zap.String("file", path),
		zap.String("mime_type", mimeType),
		zap.Int("bytes", len(audio)))

	if chunkSize <= 0 {
		chunkSize = 1024
	}
	for offset := 0; offset < len(audio); offset += chunkSize {
		end := offset + chunkSize
		if end > len(audio) {
			end = len(audio)
		}
		if err := c.WriteMessage(websocket.BinaryMessage, audio[offset:end]); err != nil {
			return fmt.Errorf("send chunk at %d: %w", offset, err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if err := c.WriteJSON(map[string]interface{}{"type": "recording_stop"}); err != nil {
		return fmt.Errorf("send recording_stop: %w", err)
	}
	return nil
}

// handleIncomingMessages prints server events and returns once the coach is idle again
func handleIncomingMessages(c *websocket.Conn, done chan struct{}, logger *zap.Logger) {
	defer close(done)

	sawProcessing := false
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			logger.Info("read", zap.Error(err))
			return
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("unmarshal error", zap.Error(err))
			continue
		}

		switch msg["type"] {
		case "state":
			logger.Info("State", zap.Any("state", msg["state"]))
			if msg["state"] == "PROCESSING" {
				sawProcessing = true
			}
			if msg["state"] == "IDLE" && sawProcessing {
				return
			}
		case "recording_tick":
			logger.Debug("Recording", zap.Any("elapsed_ms", msg["elapsed_ms"]))
		case "feedback":
			pretty, _ := json.MarshalIndent(msg["feedback"], "", "  ")
			fmt.Println(string(pretty))
		case "chat_message":
			if m, ok := msg["message"].(map[string]interface{}); ok {
				fmt.Printf("%v: %v\n", m["role"], m["text"])
			}
		case "transcript":
			logger.Info("Transcript", zap.Any("text", msg["text"]))
		case "alert", "error":
			logger.Warn("Server reported a problem", zap.ByteString("message", message))
		default:
			logger.Debug("Received message", zap.ByteString("message", message))
		}
	}
}
