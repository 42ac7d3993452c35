package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestNewElevenLabsTTS(t *testing.T) {
	logger := zaptest.NewLogger(t)

	if _, err := NewElevenLabsTTS(ElevenLabsConfig{}, logger); err == nil {
		t.Error("Expected error when API key is not set")
	}

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key"}, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	if tts.voiceID != defaultVoiceID {
		t.Errorf("Expected default voice ID '%s', got '%s'", defaultVoiceID, tts.voiceID)
	}
	if tts.ContentType() != "audio/mpeg" {
		t.Errorf("Expected audio/mpeg, got %s", tts.ContentType())
	}
}

func TestValidateElevenLabsConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  ElevenLabsConfig
		wantErr bool
	}{
		{name: "valid", config: ElevenLabsConfig{APIKey: "k"}},
		{name: "missing key", config: ElevenLabsConfig{}, wantErr: true},
		{name: "stability out of range", config: ElevenLabsConfig{APIKey: "k", Stability: 2}, wantErr: true},
		{name: "clarity out of range", config: ElevenLabsConfig{APIKey: "k", Clarity: -1}, wantErr: true},
		{name: "negative chunk size", config: ElevenLabsConfig{APIKey: "k", ChunkSize: -5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateElevenLabsConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateElevenLabsConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestElevenLabsTTS_Synthesize(t *testing.T) {
	var got ElevenLabsRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "test-api-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/text-to-speech/voice-1/stream" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-fake-mp3-bytes"))
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
		VoiceID:    "voice-1",
		ChunkSize:  4,
		HTTPClient: server.Client(),
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	audio, err := tts.Synthesize(context.Background(), "think")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audio) != "ID3-fake-mp3-bytes" {
		t.Errorf("Synthesize() = %q", audio)
	}
	if got.Text != "think" || got.ModelID != defaultModelID {
		t.Errorf("unexpected request payload %+v", got)
	}
}

func TestElevenLabsTTS_SynthesizeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	tts, _ := NewElevenLabsTTS(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
		HTTPClient: server.Client(),
	}, zaptest.NewLogger(t))

	if _, err := tts.Synthesize(context.Background(), "think"); err == nil {
		t.Error("Expected error when the API fails")
	}
	if _, err := tts.Synthesize(context.Background(), "   "); err == nil {
		t.Error("Expected error for empty text")
	}
}
