package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/somiapp/somi-core/adapters/audio"
	"github.com/somiapp/somi-core/domain/entities"
	"github.com/somiapp/somi-core/internal/turn"
)

// WriteData is one outbound websocket frame.
type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// Client is the server-side half of one connected phone. It implements the
// audio device of its turn controller (the real microphone and speaker live
// on the phone, reached through this connection) and the controller's event
// sink.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	userID string

	controller *turn.Controller
	source     *turn.ManualEmotionSource

	logger *zap.Logger

	mu           sync.Mutex
	closed       bool
	capture      *remoteCapture
	playbacks    map[string]*remotePlayback
	lastActivity time.Time
}

var (
	_ audio.Device   = (*Client)(nil)
	_ turn.EventSink = (*Client)(nil)
)

func newClient(hub *Hub, conn *websocket.Conn, userID string, logger *zap.Logger) (*Client, error) {
	client := &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan WriteData, 256),
		userID:       userID,
		source:       turn.NewManualEmotionSource(),
		logger:       logger,
		playbacks:    make(map[string]*remotePlayback),
		lastActivity: time.Now(),
	}

	controller, err := turn.NewController(client, client.source, hub.services, hub.turnConfig, client, logger)
	if err != nil {
		return nil, err
	}
	client.controller = controller

	return client, nil
}

// readPump pumps messages from the websocket connection to the turn
// controller.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		frameType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		c.touch()

		switch frameType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			if err := c.controller.WriteAudio(message); err != nil {
				c.logger.Warn("Failed to buffer audio chunk", zap.Error(err))
			}
		default:
			c.logger.Warn("Received unknown frame type", zap.Int("type", frameType))
		}
	}
}

// writePump pumps outbound messages to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage dispatches one JSON control message from the device.
func (c *Client) processMessage(message []byte) {
	msgType, err := messageType(message)
	if err != nil {
		c.logger.Error("Failed to parse message", zap.Error(err))
		return
	}

	switch msgType {
	case MessageTypeConversationStart:
		go c.handleConversationStart()

	case MessageTypeCaptureStop:
		c.controller.StopCapture()

	case MessageTypeEmotionSample:
		var msg EmotionSampleMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Error("Failed to parse emotion sample", zap.Error(err))
			return
		}
		c.handleEmotionSample(msg)

	case MessageTypePlaybackComplete:
		var msg PlaybackCompleteMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Error("Failed to parse playback complete", zap.Error(err))
			return
		}
		c.completePlayback(msg.PlaybackID)

	case MessageTypeConversationEnd:
		go c.handleConversationEnd()

	default:
		c.logger.Warn("Unknown message type", zap.String("type", string(msgType)))
	}
}

func (c *Client) handleConversationStart() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conversation, err := c.hub.conversations.Start(ctx, c.userID, c.controller)
	if err != nil {
		c.logger.Error("Failed to start conversation",
			zap.String("userID", c.userID),
			zap.Error(err))
		code := "conversation_start_failed"
		if err == turn.ErrTurnInFlight {
			code = "turn_in_flight"
		}
		c.sendError(code, "failed to start conversation")
		return
	}

	c.queueJSON(ConversationStartedMessage{
		BaseMessage:    baseMessage(MessageTypeConversationStarted),
		ConversationID: conversation.ID,
		Question:       conversation.OpeningQuestion,
	})
}

func (c *Client) handleConversationEnd() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conversationID := c.controller.Context().ConversationID
	if conversationID == "" {
		return
	}

	if err := c.hub.conversations.End(ctx, conversationID); err != nil {
		c.logger.Error("Failed to end conversation",
			zap.String("conversationID", conversationID),
			zap.Error(err))
		c.sendError("conversation_end_failed", "failed to end conversation")
	}
}

func (c *Client) handleEmotionSample(msg EmotionSampleMessage) {
	timestamp := time.Now()
	if msg.Timestamp > 0 {
		timestamp = time.UnixMilli(msg.Timestamp)
	}
	c.source.Push(entities.EmotionSample{
		Timestamp:  timestamp,
		Emotion:    msg.Emotion,
		Confidence: msg.Confidence,
	})
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

func (c *Client) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// --- audio.Device ---

// StartCapture implements audio.Device by telling the phone to open its
// microphone and stream binary frames.
func (c *Client) StartCapture(cfg audio.CaptureConfig) (audio.Capture, error) {
	c.mu.Lock()
	if c.capture != nil {
		c.mu.Unlock()
		return nil, audio.ErrAlreadyCapturing
	}
	capture := &remoteCapture{id: uuid.NewString(), cfg: cfg}
	c.capture = capture
	c.mu.Unlock()

	c.queueJSON(CaptureStartMessage{
		BaseMessage: baseMessage(MessageTypeCaptureStart),
		CaptureID:   capture.id,
		SampleRate:  cfg.SampleRate,
		Format:      cfg.Format,
	})
	return capture, nil
}

// StopCapture implements audio.Device by closing the buffer and telling the
// phone to stop streaming.
func (c *Client) StopCapture(capture audio.Capture) (entities.EncodedAudio, error) {
	c.mu.Lock()
	if c.capture == nil || capture == nil || c.capture.id != capture.ID() {
		c.mu.Unlock()
		return entities.EncodedAudio{}, audio.ErrNoActiveCapture
	}
	active := c.capture
	c.capture = nil
	c.mu.Unlock()

	c.queueJSON(CaptureEndMessage{
		BaseMessage: baseMessage(MessageTypeCaptureEnd),
		CaptureID:   active.id,
	})

	data := active.bytes()
	if len(data) == 0 {
		return entities.EncodedAudio{}, audio.ErrEmptyCapture
	}

	return entities.EncodedAudio{
		Data:       base64.StdEncoding.EncodeToString(data),
		Format:     active.cfg.Format,
		SampleRate: active.cfg.SampleRate,
		DurationMs: int64(len(data)) * 1000 / int64(active.cfg.SampleRate*2),
	}, nil
}

// Play implements audio.Device by shipping the synthesized audio to the
// phone. Done is closed when the phone reports playback_complete. Any
// playback still pending is cancelled first; the newest clip always wins.
func (c *Client) Play(encoded entities.EncodedAudio) (audio.Playback, error) {
	playback := &remotePlayback{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}

	c.mu.Lock()
	prior := make([]*remotePlayback, 0, len(c.playbacks))
	for id, p := range c.playbacks {
		prior = append(prior, p)
		delete(c.playbacks, id)
	}
	c.playbacks[playback.id] = playback
	c.mu.Unlock()

	for _, p := range prior {
		c.queueJSON(PlaybackCancelMessage{
			BaseMessage: baseMessage(MessageTypePlaybackCancel),
			PlaybackID:  p.id,
		})
		p.finish()
	}

	c.queueJSON(SpeakingStartMessage{
		BaseMessage: baseMessage(MessageTypeSpeakingStart),
		PlaybackID:  playback.id,
		Format:      encoded.Format,
		Audio:       encoded.Data,
	})
	c.queueJSON(SpeakingEndMessage{
		BaseMessage: baseMessage(MessageTypeSpeakingEnd),
		PlaybackID:  playback.id,
	})
	return playback, nil
}

// Stop implements audio.Device by aborting a playback on the phone.
func (c *Client) Stop(playback audio.Playback) error {
	if playback == nil {
		return nil
	}

	c.mu.Lock()
	active, ok := c.playbacks[playback.ID()]
	delete(c.playbacks, playback.ID())
	c.mu.Unlock()

	if !ok {
		return nil
	}

	c.queueJSON(PlaybackCancelMessage{
		BaseMessage: baseMessage(MessageTypePlaybackCancel),
		PlaybackID:  active.id,
	})
	active.finish()
	return nil
}

func (c *Client) completePlayback(playbackID string) {
	c.mu.Lock()
	playback, ok := c.playbacks[playbackID]
	delete(c.playbacks, playbackID)
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("Playback complete for unknown playback",
			zap.String("playbackID", playbackID))
		return
	}
	playback.finish()
}

// --- turn.EventSink ---

// TurnStateChanged implements turn.EventSink
func (c *Client) TurnStateChanged(snapshot turn.Snapshot) {
	c.queueJSON(StateMessage{
		BaseMessage: baseMessage(MessageTypeState),
		Snapshot:    snapshot,
	})
}

// QuestionChanged implements turn.EventSink
func (c *Client) QuestionChanged(text string) {
	c.queueJSON(QuestionMessage{
		BaseMessage: baseMessage(MessageTypeQuestion),
		Text:        text,
	})
}

// ResponseReady implements turn.EventSink
func (c *Client) ResponseReady(text string) {
	c.queueJSON(ResponseMessage{
		BaseMessage: baseMessage(MessageTypeResponse),
		Text:        text,
	})
}

// CaptureProgress implements turn.EventSink
func (c *Client) CaptureProgress(seconds int) {
	c.queueJSON(CaptureProgressMessage{
		BaseMessage: baseMessage(MessageTypeCaptureProgress),
		Seconds:     seconds,
	})
}

// CaptureFailed implements turn.EventSink
func (c *Client) CaptureFailed(err error) {
	c.sendError("capture_failed", err.Error())
}

func (c *Client) sendError(code, message string) {
	c.queueJSON(ErrorMessage{
		BaseMessage: baseMessage(MessageTypeError),
		Code:        code,
		Message:     message,
	})
}

// queueJSON marshals and queues one outbound message. A full send buffer
// drops the message rather than blocking the turn machine; messages arriving
// after the client shut down are dropped the same way.
func (c *Client) queueJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Send buffer full, dropping message")
	}
}

// closeSend closes the outbound channel exactly once. Only the hub calls
// this, after the client's conversation has been released.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// remoteCapture buffers binary microphone frames relayed from the phone.
type remoteCapture struct {
	id  string
	cfg audio.CaptureConfig

	mu  sync.Mutex
	buf []byte
}

func (r *remoteCapture) ID() string {
	return r.id
}

func (r *remoteCapture) Write(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, chunk...)
	return nil
}

func (r *remoteCapture) bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf
}

// remotePlayback tracks one playback happening on the phone's speaker.
type remotePlayback struct {
	id   string
	once sync.Once
	done chan struct{}
}

func (r *remotePlayback) ID() string {
	return r.id
}

func (r *remotePlayback) Done() <-chan struct{} {
	return r.done
}

func (r *remotePlayback) finish() {
	r.once.Do(func() { close(r.done) })
}
