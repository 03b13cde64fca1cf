// Package audio abstracts microphone capture and speaker playback so the
// turn controller can be exercised without real hardware. The microphone and
// speaker are exclusive singleton resources: implementations refuse
// overlapping captures and stop prior playback before starting new playback.
package audio

import (
	"errors"

	"github.com/somiapp/somi-core/domain/entities"
)

var (
	// ErrPermissionDenied - microphone access is not granted.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrAlreadyCapturing - a capture session is already active.
	ErrAlreadyCapturing = errors.New("capture already in progress")

	// ErrEmptyCapture - the finalized recording contains no audio.
	ErrEmptyCapture = errors.New("capture contains no audio")

	// ErrNoActiveCapture - the handle does not match the active capture.
	ErrNoActiveCapture = errors.New("no matching active capture")
)

// CaptureConfig describes the recording profile for one capture session.
type CaptureConfig struct {
	SampleRate int
	Format     string
}

// DefaultCaptureConfig returns the single capture profile used for answers.
// 16 kHz LINEAR16; the source application's second low-rate profile had no
// documented rationale and is not carried.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate: 16000,
		Format:     "LINEAR16",
	}
}

// Capture is an active recording session.
type Capture interface {
	ID() string
	// Write appends raw audio from the capture source.
	Write(chunk []byte) error
}

// Playback is an active playback session. Done is closed when playback
// completes or the session is stopped.
type Playback interface {
	ID() string
	Done() <-chan struct{}
}

// Device is the capture/playback boundary consumed by the turn controller.
type Device interface {
	// StartCapture opens the microphone. Fails with ErrPermissionDenied or
	// ErrAlreadyCapturing.
	StartCapture(cfg CaptureConfig) (Capture, error)
	// StopCapture finalizes the recording and encodes it for transport.
	// Fails with ErrEmptyCapture when effectively nothing was recorded.
	StopCapture(capture Capture) (entities.EncodedAudio, error)
	// Play starts playback of encoded audio, stopping any prior playback
	// first (last-write-wins, no queueing).
	Play(audio entities.EncodedAudio) (Playback, error)
	// Stop ends a playback session. Stopping an inactive session is a no-op.
	Stop(playback Playback) error
}
