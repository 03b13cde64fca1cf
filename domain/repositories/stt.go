package repositories

import (
	"context"

	"github.com/somiapp/somi-core/domain/entities"
)

// Transcription is the result of speech recognition on one finalized
// utterance. Validity (empty text, low confidence, no-speech artifacts) is
// judged by the caller, not here.
type Transcription struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Transcriber abstracts speech recognition services
type Transcriber interface {
	// Transcribe converts one encoded utterance to text
	Transcribe(ctx context.Context, audio entities.EncodedAudio, language string) (Transcription, error)
}
