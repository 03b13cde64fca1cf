package backend

import (
	"context"
	"fmt"

	"github.com/somiapp/somi-core/domain/entities"
	"github.com/somiapp/somi-core/domain/repositories"
)

var _ repositories.Synthesizer = (*Client)(nil)

// Synthesize implements repositories.Synthesizer via the backend's
// text-to-speech proxy. The response carries the audio base64-encoded.
func (c *Client) Synthesize(ctx context.Context, req repositories.SynthesisRequest) (entities.EncodedAudio, error) {
	if req.Text == "" {
		return entities.EncodedAudio{}, fmt.Errorf("synthesize: no text to synthesize")
	}

	var audio entities.EncodedAudio
	if err := c.postJSON(ctx, "/api/v1/synthesis", req, &audio); err != nil {
		return entities.EncodedAudio{}, fmt.Errorf("synthesize: %w", err)
	}
	if audio.Empty() {
		return entities.EncodedAudio{}, fmt.Errorf("synthesize: backend returned no audio")
	}
	return audio, nil
}
