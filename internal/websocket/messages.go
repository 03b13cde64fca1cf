package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/somiapp/somi-core/internal/turn"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Device to server message types. Microphone audio itself travels as binary
// frames, not JSON.
const (
	MessageTypeConversationStart MessageType = "conversation_start"
	MessageTypeCaptureStop       MessageType = "capture_stop"
	MessageTypeEmotionSample     MessageType = "emotion_sample"
	MessageTypePlaybackComplete  MessageType = "playback_complete"
	MessageTypeConversationEnd   MessageType = "conversation_end"
)

// Server to device message types
const (
	MessageTypeConversationStarted MessageType = "conversation_started"
	MessageTypeState               MessageType = "state"
	MessageTypeQuestion            MessageType = "question"
	MessageTypeResponse            MessageType = "response"
	MessageTypeCaptureStart        MessageType = "capture_start"
	MessageTypeCaptureEnd          MessageType = "capture_end"
	MessageTypeCaptureProgress     MessageType = "capture_progress"
	MessageTypeSpeakingStart       MessageType = "speaking_start"
	MessageTypeSpeakingEnd         MessageType = "speaking_end"
	MessageTypePlaybackCancel      MessageType = "playback_cancel"
	MessageTypeError               MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp,omitempty"`
}

// EmotionSampleMessage carries one facial-emotion observation from the
// device camera.
type EmotionSampleMessage struct {
	BaseMessage
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// PlaybackCompleteMessage acknowledges that the device finished playing a
// playback.
type PlaybackCompleteMessage struct {
	BaseMessage
	PlaybackID string `json:"playback_id"`
}

// ConversationStartedMessage confirms a new conversation and carries its
// opening question.
type ConversationStartedMessage struct {
	BaseMessage
	ConversationID string `json:"conversation_id"`
	Question       string `json:"question"`
}

// StateMessage broadcasts the turn state with its derived UI flags.
type StateMessage struct {
	BaseMessage
	Snapshot turn.Snapshot `json:"snapshot"`
}

// QuestionMessage carries the question text currently shown to the user.
type QuestionMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// ResponseMessage carries AI response text, ahead of its audio.
type ResponseMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// CaptureStartMessage tells the device to open its microphone and stream
// binary audio frames.
type CaptureStartMessage struct {
	BaseMessage
	CaptureID  string `json:"capture_id"`
	SampleRate int    `json:"sample_rate"`
	Format     string `json:"format"`
}

// CaptureEndMessage tells the device to stop streaming microphone audio.
type CaptureEndMessage struct {
	BaseMessage
	CaptureID string `json:"capture_id"`
}

// CaptureProgressMessage reports elapsed capture seconds.
type CaptureProgressMessage struct {
	BaseMessage
	Seconds int `json:"seconds"`
}

// SpeakingStartMessage delivers synthesized audio for the device to play.
// The device reports completion with a playback_complete message carrying
// the same playback ID.
type SpeakingStartMessage struct {
	BaseMessage
	PlaybackID string `json:"playback_id"`
	Format     string `json:"format"`
	Audio      string `json:"audio"` // base64 encoded
}

// SpeakingEndMessage marks the end of a playback's audio.
type SpeakingEndMessage struct {
	BaseMessage
	PlaybackID string `json:"playback_id"`
}

// PlaybackCancelMessage tells the device to abort a playback.
type PlaybackCancelMessage struct {
	BaseMessage
	PlaybackID string `json:"playback_id"`
}

// ErrorMessage surfaces a failure to the device.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

func baseMessage(messageType MessageType) BaseMessage {
	return BaseMessage{
		Type:      messageType,
		Timestamp: time.Now().UnixMilli(),
	}
}

// messageType peeks at the type field of an incoming JSON message.
func messageType(raw []byte) (MessageType, error) {
	var base BaseMessage
	if err := json.Unmarshal(raw, &base); err != nil {
		return "", fmt.Errorf("failed to parse message: %w", err)
	}
	if base.Type == "" {
		return "", fmt.Errorf("message missing type field")
	}
	return base.Type, nil
}
