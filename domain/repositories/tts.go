package repositories

import (
	"context"

	"github.com/somiapp/somi-core/domain/entities"
)

// SynthesisRequest describes one speech-synthesis call.
type SynthesisRequest struct {
	Text   string  `json:"text"`
	Voice  string  `json:"voice"`
	Speed  float64 `json:"speed"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
	Format string  `json:"format"`
}

// Synthesizer abstracts text-to-speech services
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (entities.EncodedAudio, error)
}
