package capture

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrDeviceBusy is returned when the learner's microphone is already held
var ErrDeviceBusy = errors.New("microphone already in use")

// MicrophonePool hands out at most one live track per owner
type MicrophonePool struct {
	mu      sync.Mutex
	holders map[string]string // owner -> track id
}

func NewMicrophonePool() *MicrophonePool {
	return &MicrophonePool{holders: make(map[string]string)}
}

// Device returns the microphone belonging to owner
func (p *MicrophonePool) Device(owner string) Device {
	return &ownerDevice{pool: p, owner: owner}
}

// InUse reports whether owner currently holds a track
func (p *MicrophonePool) InUse(owner string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.holders[owner]
	return ok
}

// Active returns the number of live tracks
func (p *MicrophonePool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.holders)
}

type ownerDevice struct {
	pool  *MicrophonePool
	owner string
}

func (d *ownerDevice) Acquire(ctx context.Context) (Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.pool.mu.Lock()
	defer d.pool.mu.Unlock()

	if _, held := d.pool.holders[d.owner]; held {
		return nil, ErrDeviceBusy
	}

	id := uuid.NewString()
	d.pool.holders[d.owner] = id
	return &poolTrack{pool: d.pool, owner: d.owner, id: id}, nil
}

type poolTrack struct {
	pool  *MicrophonePool
	owner string
	id    string
	once  sync.Once
}

func (t *poolTrack) Release() error {
	t.once.Do(func() {
		t.pool.mu.Lock()
		defer t.pool.mu.Unlock()
		if t.pool.holders[t.owner] == t.id {
			delete(t.pool.holders, t.owner)
		}
	})
	return nil
}
