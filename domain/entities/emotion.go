package entities

import "time"

// EmotionSample is one facial-emotion reading taken while the user is
// answering. Samples outside the listening window are meaningless and are
// dropped by the turn controller before they reach the buffer.
type EmotionSample struct {
	Timestamp  time.Time `json:"timestamp"`
	Emotion    string    `json:"emotion"`
	Confidence float64   `json:"confidence"` // in [0,1]
}

// DominantEmotion is the reduction of a listening window's samples: the most
// frequent label, with the mean confidence of the samples carrying it.
type DominantEmotion struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// EmotionBuffer accumulates the facial-emotion samples of one listening
// window. It is append-only and owned by a single turn; the turn controller
// serializes access, so the buffer itself holds no lock.
type EmotionBuffer struct {
	samples []EmotionSample
}

// NewEmotionBuffer creates an empty buffer.
func NewEmotionBuffer() *EmotionBuffer {
	return &EmotionBuffer{}
}

// Append adds a sample to the buffer.
func (b *EmotionBuffer) Append(sample EmotionSample) {
	b.samples = append(b.samples, sample)
}

// Len returns the number of buffered samples.
func (b *EmotionBuffer) Len() int {
	return len(b.samples)
}

// Samples returns a copy of the buffered samples in arrival order.
func (b *EmotionBuffer) Samples() []EmotionSample {
	out := make([]EmotionSample, len(b.samples))
	copy(out, b.samples)
	return out
}

// LabelCounts returns how many samples carry each label.
func (b *EmotionBuffer) LabelCounts() map[string]int {
	counts := make(map[string]int, len(b.samples))
	for _, s := range b.samples {
		counts[s.Emotion]++
	}
	return counts
}

// Reduce computes the dominant emotion of the buffered samples. Ties on the
// maximum count are broken by the label observed first; the confidence is the
// arithmetic mean of the winning label's samples only. Returns nil when the
// buffer is empty - callers skip emotion submission for the turn rather than
// inventing a default.
func (b *EmotionBuffer) Reduce() *DominantEmotion {
	if len(b.samples) == 0 {
		return nil
	}

	counts := make(map[string]int, len(b.samples))
	firstSeen := make(map[string]int, len(b.samples))
	for i, s := range b.samples {
		if _, ok := firstSeen[s.Emotion]; !ok {
			firstSeen[s.Emotion] = i
		}
		counts[s.Emotion]++
	}

	winner := ""
	for label, count := range counts {
		if winner == "" {
			winner = label
			continue
		}
		if count > counts[winner] || (count == counts[winner] && firstSeen[label] < firstSeen[winner]) {
			winner = label
		}
	}

	var sum float64
	for _, s := range b.samples {
		if s.Emotion == winner {
			sum += s.Confidence
		}
	}

	return &DominantEmotion{
		Emotion:    winner,
		Confidence: sum / float64(counts[winner]),
	}
}

// Clear discards all buffered samples. Invoked once at the start of each
// listening window.
func (b *EmotionBuffer) Clear() {
	b.samples = nil
}
