// Package capture implements the recording widget state machine:
// IDLE -> RECORDING -> (IDLE | PROCESSING -> IDLE), with exclusive microphone
// access scoped to the RECORDING interval.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/echocoach/domain/entities"
)

// State is the recorder display state
type State string

const (
	StateIdle       State = "IDLE"
	StateRecording  State = "RECORDING"
	StateProcessing State = "PROCESSING"
)

const defaultTickInterval = 100 * time.Millisecond

var (
	ErrInvalidState      = errors.New("invalid recorder state")
	ErrDeviceUnavailable = errors.New("could not access microphone")
	ErrCallbackPanicked  = errors.New("recording completion callback panicked")
)

// Track is a live microphone stream. Release must be safe to call more than once.
type Track interface {
	Release() error
}

// Device grants exclusive microphone tracks
type Device interface {
	Acquire(ctx context.Context) (Track, error)
}

// CompletionFunc receives the finalized recording after Stop
type CompletionFunc func(audio entities.AudioCapture) error

// Options tune a Recorder
type Options struct {
	// MIMEType labels the finalized capture, defaults to audio/webm
	MIMEType string
	// TickInterval is how often OnTick fires while recording, defaults to 100ms
	TickInterval time.Duration
	// OnTick receives the elapsed recording time
	OnTick func(elapsed time.Duration)
}

// Recorder accumulates audio chunks between Start and Stop
type Recorder struct {
	device       Device
	onStop       CompletionFunc
	mimeType     string
	tickInterval time.Duration
	onTick       func(time.Duration)
	logger       *zap.Logger

	mu         sync.Mutex
	state      State
	track      Track
	chunks     [][]byte
	startedAt  time.Time
	stopTicker chan struct{}
	tickerDone chan struct{}
}

// NewRecorder creates an idle recorder
func NewRecorder(device Device, onStop CompletionFunc, opts Options, logger *zap.Logger) *Recorder {
	if opts.MIMEType == "" {
		opts.MIMEType = entities.DefaultAudioMIMEType
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Recorder{
		device:       device,
		onStop:       onStop,
		mimeType:     opts.MIMEType,
		tickInterval: opts.TickInterval,
		onTick:       opts.OnTick,
		logger:       logger,
		state:        StateIdle,
	}
}

// State returns the current state
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed returns how long the current recording has been running
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return 0
	}
	return time.Since(r.startedAt)
}

// SetMIMEType changes the label of the next capture. Only valid while idle.
func (r *Recorder) SetMIMEType(mimeType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateIdle {
		return fmt.Errorf("%w: cannot change format while %s", ErrInvalidState, r.state)
	}
	if mimeType != "" {
		r.mimeType = mimeType
	}
	return nil
}

// Start acquires the microphone and begins recording.
// On device failure the recorder stays idle.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidState, r.state)
	}

	track, err := r.device.Acquire(ctx)
	if err != nil {
		r.logger.Warn("Error accessing microphone", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	r.track = track
	r.chunks = nil
	r.startedAt = time.Now()
	r.state = StateRecording
	r.stopTicker = make(chan struct{})
	r.tickerDone = make(chan struct{})

	go r.runTicker(r.startedAt, r.stopTicker, r.tickerDone)

	return nil
}

// Write appends one audio chunk to the current recording. Empty chunks are dropped.
func (r *Recorder) Write(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return fmt.Errorf("%w: not recording", ErrInvalidState)
	}
	if len(chunk) == 0 {
		return nil
	}

	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	r.chunks = append(r.chunks, buf)
	return nil
}

// Stop finalizes the recording, returns to idle, hands the capture to the
// completion callback and releases the microphone. The microphone is released
// even when the callback fails or panics.
func (r *Recorder) Stop() (err error) {
	r.mu.Lock()
	if r.state != StateRecording {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("%w: cannot stop while %s", ErrInvalidState, state)
	}

	audio := entities.NewAudioCapture(r.chunks, r.mimeType, time.Since(r.startedAt))
	track, stop, done := r.detachLocked()
	r.mu.Unlock()

	close(stop)
	<-done

	defer func() {
		if releaseErr := track.Release(); releaseErr != nil {
			r.logger.Warn("Failed to release microphone", zap.Error(releaseErr))
			if err == nil {
				err = fmt.Errorf("failed to release microphone: %w", releaseErr)
			}
		}
	}()

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Recording callback panicked", zap.Any("panic", p))
			err = fmt.Errorf("%w: %v", ErrCallbackPanicked, p)
		}
	}()

	if r.onStop == nil {
		return nil
	}
	if cbErr := r.onStop(audio); cbErr != nil {
		return fmt.Errorf("recording completion failed: %w", cbErr)
	}
	return nil
}

// Cancel drops an in-progress recording without invoking the callback and
// reports whether there was one. It is a no-op unless recording.
func (r *Recorder) Cancel() bool {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return false
	}
	track, stop, done := r.detachLocked()
	r.mu.Unlock()

	close(stop)
	<-done

	if err := track.Release(); err != nil {
		r.logger.Warn("Failed to release microphone", zap.Error(err))
	}
	return true
}

// BeginProcessing enters the externally driven PROCESSING state
func (r *Recorder) BeginProcessing() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateIdle {
		return fmt.Errorf("%w: cannot process while %s", ErrInvalidState, r.state)
	}
	r.state = StateProcessing
	return nil
}

// FinishProcessing returns from PROCESSING to IDLE
func (r *Recorder) FinishProcessing() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateProcessing {
		return fmt.Errorf("%w: not processing", ErrInvalidState)
	}
	r.state = StateIdle
	return nil
}

// detachLocked resets recording fields and returns what the caller must tear down
func (r *Recorder) detachLocked() (Track, chan struct{}, chan struct{}) {
	track, stop, done := r.track, r.stopTicker, r.tickerDone
	r.track = nil
	r.chunks = nil
	r.stopTicker = nil
	r.tickerDone = nil
	r.state = StateIdle
	return track, stop, done
}

func (r *Recorder) runTicker(startedAt time.Time, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if r.onTick != nil {
				r.onTick(now.Sub(startedAt))
			}
		}
	}
}
