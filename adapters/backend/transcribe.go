package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/somiapp/somi-core/domain/entities"
	"github.com/somiapp/somi-core/domain/repositories"
)

var _ repositories.Transcriber = (*Client)(nil)

type transcribeRequest struct {
	Audio      string `json:"audio"`
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
	Language   string `json:"language"`
}

// Transcribe implements repositories.Transcriber by forwarding the base64
// recording to the backend's speech-to-text proxy.
func (c *Client) Transcribe(ctx context.Context, audio entities.EncodedAudio, language string) (repositories.Transcription, error) {
	if audio.Empty() {
		return repositories.Transcription{}, fmt.Errorf("transcribe: no audio to transcribe")
	}

	var transcription repositories.Transcription
	err := c.postJSON(ctx, "/api/v1/transcriptions", transcribeRequest{
		Audio:      audio.Data,
		Format:     audio.Format,
		SampleRate: audio.SampleRate,
		Language:   language,
	}, &transcription)
	if err != nil {
		return repositories.Transcription{}, fmt.Errorf("transcribe: %w", err)
	}

	c.logger.Debug("Audio transcribed",
		zap.Int("chars", len(transcription.Text)),
		zap.Float64("confidence", transcription.Confidence))
	return transcription, nil
}
