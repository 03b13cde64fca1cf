package audio

import (
	"encoding/base64"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/somiapp/somi-core/domain/entities"
)

// MemoryDevice is an in-memory Device implementation. It buffers written
// chunks, encodes them to base64 on stop, and lets tests (and the local demo
// wiring) drive playback completion explicitly or on a timer.
type MemoryDevice struct {
	logger *zap.Logger

	mu                sync.Mutex
	permissionGranted bool
	capture           *memoryCapture
	playback          *memoryPlayback
	playbackDelay     time.Duration
	autoComplete      bool
}

var _ Device = (*MemoryDevice)(nil)

// NewMemoryDevice creates a memory device with microphone permission granted.
func NewMemoryDevice(logger *zap.Logger) *MemoryDevice {
	return &MemoryDevice{
		logger:            logger,
		permissionGranted: true,
	}
}

// SetPermissionGranted toggles simulated microphone permission.
func (d *MemoryDevice) SetPermissionGranted(granted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.permissionGranted = granted
}

// AutoCompletePlayback makes every playback complete on its own after delay.
func (d *MemoryDevice) AutoCompletePlayback(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.autoComplete = true
	d.playbackDelay = delay
}

// CompleteActivePlayback signals completion of the active playback, if any.
func (d *MemoryDevice) CompleteActivePlayback() {
	d.mu.Lock()
	playback := d.playback
	d.playback = nil
	d.mu.Unlock()

	if playback != nil {
		playback.finish()
	}
}

// StartCapture implements Device
func (d *MemoryDevice) StartCapture(cfg CaptureConfig) (Capture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.permissionGranted {
		return nil, ErrPermissionDenied
	}
	if d.capture != nil {
		return nil, ErrAlreadyCapturing
	}

	capture := &memoryCapture{
		id:  uuid.NewString(),
		cfg: cfg,
	}
	d.capture = capture

	d.logger.Debug("Capture started",
		zap.String("captureID", capture.id),
		zap.Int("sampleRate", cfg.SampleRate))

	return capture, nil
}

// StopCapture implements Device
func (d *MemoryDevice) StopCapture(capture Capture) (entities.EncodedAudio, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture == nil || capture == nil || d.capture.id != capture.ID() {
		return entities.EncodedAudio{}, ErrNoActiveCapture
	}

	active := d.capture
	d.capture = nil

	data := active.bytes()
	if len(data) == 0 {
		return entities.EncodedAudio{}, ErrEmptyCapture
	}

	encoded := entities.EncodedAudio{
		Data:       base64.StdEncoding.EncodeToString(data),
		Format:     active.cfg.Format,
		SampleRate: active.cfg.SampleRate,
		DurationMs: pcmDurationMs(len(data), active.cfg.SampleRate),
	}

	d.logger.Debug("Capture finalized",
		zap.String("captureID", active.id),
		zap.Int("bytes", len(data)),
		zap.Int64("durationMs", encoded.DurationMs))

	return encoded, nil
}

// Play implements Device
func (d *MemoryDevice) Play(audio entities.EncodedAudio) (Playback, error) {
	d.mu.Lock()
	prior := d.playback
	playback := &memoryPlayback{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
	d.playback = playback
	autoComplete := d.autoComplete
	delay := d.playbackDelay
	d.mu.Unlock()

	if prior != nil {
		prior.finish()
	}

	if autoComplete {
		go func() {
			if delay > 0 {
				time.Sleep(delay)
			}
			playback.finish()
		}()
	}

	return playback, nil
}

// Stop implements Device
func (d *MemoryDevice) Stop(playback Playback) error {
	if playback == nil {
		return nil
	}

	d.mu.Lock()
	active := d.playback
	if active != nil && active.id == playback.ID() {
		d.playback = nil
	} else {
		active = nil
	}
	d.mu.Unlock()

	if active != nil {
		active.finish()
	}
	return nil
}

// pcmDurationMs derives the duration of 16-bit mono PCM audio.
func pcmDurationMs(byteLen, sampleRate int) int64 {
	if sampleRate <= 0 {
		return 0
	}
	return int64(byteLen) * 1000 / int64(sampleRate*2)
}

type memoryCapture struct {
	id  string
	cfg CaptureConfig

	mu  sync.Mutex
	buf []byte
}

func (c *memoryCapture) ID() string {
	return c.id
}

func (c *memoryCapture) Write(chunk []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = append(c.buf, chunk...)
	return nil
}

func (c *memoryCapture) bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf
}

type memoryPlayback struct {
	id   string
	once sync.Once
	done chan struct{}
}

func (p *memoryPlayback) ID() string {
	return p.id
}

func (p *memoryPlayback) Done() <-chan struct{} {
	return p.done
}

func (p *memoryPlayback) finish() {
	p.once.Do(func() { close(p.done) })
}
