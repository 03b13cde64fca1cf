package entities

import (
	"testing"
	"time"
)

func sample(emotion string, confidence float64) EmotionSample {
	return EmotionSample{
		Timestamp:  time.Now(),
		Emotion:    emotion,
		Confidence: confidence,
	}
}

func TestReduceEmptyBuffer(t *testing.T) {
	buffer := NewEmotionBuffer()

	if dominant := buffer.Reduce(); dominant != nil {
		t.Errorf("Expected nil for empty buffer, got %+v", dominant)
	}
}

func TestReduceMostFrequentLabel(t *testing.T) {
	buffer := NewEmotionBuffer()
	buffer.Append(sample("happy", 0.9))
	buffer.Append(sample("happy", 0.7))
	buffer.Append(sample("neutral", 0.6))

	dominant := buffer.Reduce()
	if dominant == nil {
		t.Fatal("Expected dominant emotion, got nil")
	}
	if dominant.Emotion != "happy" {
		t.Errorf("Expected happy, got %s", dominant.Emotion)
	}
	if dominant.Confidence != 0.8 {
		t.Errorf("Expected mean confidence 0.8, got %f", dominant.Confidence)
	}
}

func TestReduceTieBrokenByFirstSeen(t *testing.T) {
	buffer := NewEmotionBuffer()
	buffer.Append(sample("sad", 0.5))
	buffer.Append(sample("happy", 0.9))
	buffer.Append(sample("happy", 0.9))
	buffer.Append(sample("sad", 0.7))

	dominant := buffer.Reduce()
	if dominant == nil {
		t.Fatal("Expected dominant emotion, got nil")
	}
	if dominant.Emotion != "sad" {
		t.Errorf("Expected tie to break to first-seen label sad, got %s", dominant.Emotion)
	}
	if dominant.Confidence != 0.6 {
		t.Errorf("Expected mean of sad samples 0.6, got %f", dominant.Confidence)
	}
}

func TestReduceConfidenceIgnoresOtherLabels(t *testing.T) {
	buffer := NewEmotionBuffer()
	buffer.Append(sample("happy", 1.0))
	buffer.Append(sample("happy", 0.5))
	buffer.Append(sample("angry", 0.1))

	dominant := buffer.Reduce()
	if dominant == nil {
		t.Fatal("Expected dominant emotion, got nil")
	}
	if dominant.Confidence != 0.75 {
		t.Errorf("Expected 0.75, got %f", dominant.Confidence)
	}
}

func TestClearDiscardsSamples(t *testing.T) {
	buffer := NewEmotionBuffer()
	buffer.Append(sample("happy", 0.9))
	buffer.Clear()

	if buffer.Len() != 0 {
		t.Errorf("Expected empty buffer after clear, got %d samples", buffer.Len())
	}
	if dominant := buffer.Reduce(); dominant != nil {
		t.Errorf("Expected nil after clear, got %+v", dominant)
	}
}

func TestLabelCounts(t *testing.T) {
	buffer := NewEmotionBuffer()
	buffer.Append(sample("happy", 0.9))
	buffer.Append(sample("happy", 0.7))
	buffer.Append(sample("neutral", 0.6))

	counts := buffer.LabelCounts()
	if counts["happy"] != 2 {
		t.Errorf("Expected 2 happy samples, got %d", counts["happy"])
	}
	if counts["neutral"] != 1 {
		t.Errorf("Expected 1 neutral sample, got %d", counts["neutral"])
	}
}

func TestSamplesReturnsCopy(t *testing.T) {
	buffer := NewEmotionBuffer()
	buffer.Append(sample("happy", 0.9))

	samples := buffer.Samples()
	samples[0].Emotion = "angry"

	if buffer.Samples()[0].Emotion != "happy" {
		t.Error("Expected Samples to return a copy, buffer was mutated")
	}
}
