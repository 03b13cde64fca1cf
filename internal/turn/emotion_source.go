package turn

import (
	"sync"

	"github.com/somiapp/somi-core/domain/entities"
)

// EmotionSource delivers periodic facial-emotion samples. The controller
// subscribes on entry to the listening state and cancels the subscription on
// any transition out of it, so sample delivery is tied to the state-machine
// lifecycle rather than a freestanding timer.
type EmotionSource interface {
	Subscribe(fn func(entities.EmotionSample)) (cancel func())
}

// ManualEmotionSource is a push-driven EmotionSource. The WebSocket layer
// pushes samples reported by the device camera; tests push scripted samples.
type ManualEmotionSource struct {
	mu   sync.Mutex
	next int
	subs map[int]func(entities.EmotionSample)
}

var _ EmotionSource = (*ManualEmotionSource)(nil)

// NewManualEmotionSource creates an empty source.
func NewManualEmotionSource() *ManualEmotionSource {
	return &ManualEmotionSource{
		subs: make(map[int]func(entities.EmotionSample)),
	}
}

// Subscribe implements EmotionSource
func (s *ManualEmotionSource) Subscribe(fn func(entities.EmotionSample)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Push delivers a sample to all active subscribers.
func (s *ManualEmotionSource) Push(sample entities.EmotionSample) {
	s.mu.Lock()
	fns := make([]func(entities.EmotionSample), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(sample)
	}
}
