package websocket

import (
	"encoding/json"
	"testing"

	"github.com/somiapp/somi-core/domain/entities"
	"github.com/somiapp/somi-core/internal/turn"
)

func TestMessageType(t *testing.T) {
	msgType, err := messageType([]byte(`{"type":"capture_stop","timestamp":1725072000000}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if msgType != MessageTypeCaptureStop {
		t.Errorf("Expected capture_stop, got %s", msgType)
	}
}

func TestMessageTypeMissing(t *testing.T) {
	if _, err := messageType([]byte(`{"timestamp":1}`)); err == nil {
		t.Error("Expected error for missing type")
	}
}

func TestMessageTypeInvalidJSON(t *testing.T) {
	if _, err := messageType([]byte(`{not json`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestEmotionSampleMessageDecoding(t *testing.T) {
	raw := []byte(`{"type":"emotion_sample","emotion":"happy","confidence":0.87,"timestamp":1725072000000}`)

	var msg EmotionSampleMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if msg.Emotion != "happy" {
		t.Errorf("Expected happy, got %s", msg.Emotion)
	}
	if msg.Confidence != 0.87 {
		t.Errorf("Expected 0.87, got %f", msg.Confidence)
	}
	if msg.Timestamp != 1725072000000 {
		t.Errorf("Unexpected timestamp %d", msg.Timestamp)
	}
}

func TestStateMessageCarriesProjectedFlags(t *testing.T) {
	msg := StateMessage{
		BaseMessage: baseMessage(MessageTypeState),
		Snapshot: turn.Snapshot{
			State:       entities.TurnListening,
			IsCapturing: true,
		},
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	snapshot, ok := decoded["snapshot"].(map[string]interface{})
	if !ok {
		t.Fatal("Missing snapshot field")
	}
	if snapshot["is_capturing"] != true {
		t.Error("Expected is_capturing true")
	}
}
