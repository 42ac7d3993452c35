package entities

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// DefaultAudioMIMEType is the container browsers produce with MediaRecorder
const DefaultAudioMIMEType = "audio/webm"

// AudioCapture is one finalized recording handed off by the recorder
type AudioCapture struct {
	Data     []byte        `json:"-"`
	MIMEType string        `json:"mime_type"`
	Duration time.Duration `json:"duration"`
}

// NewAudioCapture joins recorded chunks into a single capture
func NewAudioCapture(chunks [][]byte, mimeType string, duration time.Duration) AudioCapture {
	size := 0
	for _, chunk := range chunks {
		size += len(chunk)
	}

	data := make([]byte, 0, size)
	for _, chunk := range chunks {
		data = append(data, chunk...)
	}

	return AudioCapture{
		Data:     data,
		MIMEType: mimeType,
		Duration: duration,
	}
}

// DecodeAudioCapture builds a capture from its base64 form
func DecodeAudioCapture(encoded, mimeType string) (AudioCapture, error) {
	if encoded == "" {
		return AudioCapture{}, errors.New("audio data is required")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return AudioCapture{}, fmt.Errorf("failed to decode audio data: %w", err)
	}

	return AudioCapture{Data: data, MIMEType: mimeType}, nil
}

// Empty reports whether the capture carries no audio
func (a AudioCapture) Empty() bool {
	return len(a.Data) == 0
}

// MIME returns the capture MIME type, falling back to webm
func (a AudioCapture) MIME() string {
	if a.MIMEType == "" {
		return DefaultAudioMIMEType
	}
	return a.MIMEType
}

// Base64 returns the transferable textual form of the audio
func (a AudioCapture) Base64() string {
	return base64.StdEncoding.EncodeToString(a.Data)
}

// DataURL returns the capture as a data URL the browser can play back
func (a AudioCapture) DataURL() string {
	return "data:" + a.MIME() + ";base64," + a.Base64()
}
