// Package stt adapts Google Cloud Speech-to-Text to the Transcriber
// interface.
package stt

import (
	"context"
	"encoding/base64"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/somiapp/somi-core/domain/entities"
	"github.com/somiapp/somi-core/domain/repositories"
)

// GoogleTranscriber implements Transcriber using the synchronous Recognize
// API. Recordings are bounded by the capture duration cap, well under the
// one-minute limit of synchronous recognition.
type GoogleTranscriber struct {
	client *speech.Client
	logger *zap.Logger
}

var _ repositories.Transcriber = (*GoogleTranscriber)(nil)

// NewGoogleTranscriber creates a transcriber backed by a shared speech
// client. Credentials come from the ambient Google Cloud environment.
func NewGoogleTranscriber(ctx context.Context, logger *zap.Logger) (*GoogleTranscriber, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleTranscriber{client: client, logger: logger}, nil
}

// Close releases the underlying client.
func (g *GoogleTranscriber) Close() error {
	return g.client.Close()
}

// Transcribe implements repositories.Transcriber
func (g *GoogleTranscriber) Transcribe(ctx context.Context, audio entities.EncodedAudio, language string) (repositories.Transcription, error) {
	if audio.Empty() {
		return repositories.Transcription{}, fmt.Errorf("no audio data received")
	}

	data, err := base64.StdEncoding.DecodeString(audio.Data)
	if err != nil {
		return repositories.Transcription{}, fmt.Errorf("failed to decode audio: %w", err)
	}

	encoding, err := audioEncoding(audio.Format)
	if err != nil {
		return repositories.Transcription{}, err
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        encoding,
			SampleRateHertz: int32(audio.SampleRate),
			LanguageCode:    language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: data},
		},
	})
	if err != nil {
		return repositories.Transcription{}, fmt.Errorf("failed to recognize audio: %w", err)
	}

	// Take the best alternative of the first result; silence yields no
	// results at all, which the caller treats like an empty transcript.
	var transcription repositories.Transcription
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		best := result.Alternatives[0]
		transcription.Text += best.Transcript
		if float64(best.Confidence) > transcription.Confidence {
			transcription.Confidence = float64(best.Confidence)
		}
	}

	g.logger.Debug("Audio transcribed",
		zap.String("language", language),
		zap.Int("chars", len(transcription.Text)),
		zap.Float64("confidence", transcription.Confidence))

	return transcription, nil
}

// audioEncoding converts a format string to the Speech API enum.
func audioEncoding(format string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch format {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported audio encoding: %s", format)
	}
}
