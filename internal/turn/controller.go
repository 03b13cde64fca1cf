// Package turn owns the question -> listen -> transcribe -> analyze ->
// respond -> speak cycle of one conversation. A single Controller instance
// coordinates the capture device, the emotion buffer, and the remote service
// facade; all UI-visible flags derive from its one authoritative state value.
package turn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/somiapp/somi-core/adapters/audio"
	"github.com/somiapp/somi-core/domain/entities"
	"github.com/somiapp/somi-core/domain/repositories"
)

// Services bundles the remote capabilities the controller consumes.
type Services struct {
	Transcriber   repositories.Transcriber
	Emotions      repositories.EmotionService
	Responder     repositories.ResponseGenerator
	Synthesizer   repositories.Synthesizer
	Conversations repositories.ConversationRepository
}

func (s Services) validate() error {
	if s.Transcriber == nil {
		return fmt.Errorf("transcriber is required")
	}
	if s.Emotions == nil {
		return fmt.Errorf("emotion service is required")
	}
	if s.Responder == nil {
		return fmt.Errorf("response generator is required")
	}
	if s.Synthesizer == nil {
		return fmt.Errorf("synthesizer is required")
	}
	if s.Conversations == nil {
		return fmt.Errorf("conversation repository is required")
	}
	return nil
}

// Config holds the tunables of the turn cycle.
type Config struct {
	// MaxCaptureSeconds caps one listening window; reaching it stops capture
	// exactly like a manual toggle. Default 120.
	MaxCaptureSeconds int
	// CaptureTick is the resolution of the capture duration counter.
	// Default one second.
	CaptureTick time.Duration
	// ResponseDisplayDelay lets response text render before audio starts.
	// Default 500ms.
	ResponseDisplayDelay time.Duration
	// RemoteTimeout bounds every remote call. Default 20s.
	RemoteTimeout time.Duration
	// MinTranscriptConfidence below which a transcript is treated as failed.
	// Default 0.3.
	MinTranscriptConfidence float64
	// NoSpeechArtifacts are STT outputs emitted when no speech was detected;
	// they are treated exactly like an empty transcript.
	NoSpeechArtifacts []string
	// Language hint for transcription. Default "ko-KR".
	Language string
	// RepromptText replaces the question after a failed transcription.
	RepromptText string
	// Capture is the recording profile for answers.
	Capture audio.CaptureConfig
	// Voice is the synthesis template; Text is filled per call.
	Voice repositories.SynthesisRequest
}

// DefaultNoSpeechArtifacts are the known stock phrases the STT engine emits
// for silent audio.
func DefaultNoSpeechArtifacts() []string {
	return []string{
		"시청해주셔서 감사합니다",
		"시청해 주셔서 감사합니다",
		"Thanks for watching",
		"Thank you for watching",
	}
}

func (c Config) withDefaults() Config {
	if c.MaxCaptureSeconds <= 0 {
		c.MaxCaptureSeconds = 120
	}
	if c.CaptureTick <= 0 {
		c.CaptureTick = time.Second
	}
	if c.ResponseDisplayDelay <= 0 {
		c.ResponseDisplayDelay = 500 * time.Millisecond
	}
	if c.RemoteTimeout <= 0 {
		c.RemoteTimeout = 20 * time.Second
	}
	if c.MinTranscriptConfidence <= 0 {
		c.MinTranscriptConfidence = 0.3
	}
	if c.NoSpeechArtifacts == nil {
		c.NoSpeechArtifacts = DefaultNoSpeechArtifacts()
	}
	if c.Language == "" {
		c.Language = "ko-KR"
	}
	if c.RepromptText == "" {
		c.RepromptText = "잘 못 들었어요. 다시 한번 말해 줄래요?"
	}
	if c.Capture.SampleRate == 0 {
		c.Capture = audio.DefaultCaptureConfig()
	}
	if c.Voice.Format == "" {
		c.Voice.Format = "mp3"
	}
	if c.Voice.Speed == 0 {
		c.Voice.Speed = 1.0
	}
	if c.Voice.Volume == 0 {
		c.Voice.Volume = 1.0
	}
	return c
}

// Controller sequences the turns of one conversation. At most one turn is in
// flight at a time; transitions are serialized by a mutex, and every
// asynchronous continuation carries the generation token of the turn that
// spawned it so results arriving after cancellation are discarded.
type Controller struct {
	device audio.Device
	source EmotionSource
	svc    Services
	cfg    Config
	sink   EventSink
	logger *zap.Logger

	generation atomic.Uint64

	mu             sync.Mutex
	state          entities.TurnState
	turnCtx        entities.TurnContext
	buffer         *entities.EmotionBuffer
	question       string
	capture        audio.Capture
	playback       audio.Playback
	captureSeconds int
	stopTicker     chan struct{}
	unsubscribe    func()
}

// NewController creates a controller in the idle state. source and sink may
// be nil.
func NewController(
	device audio.Device,
	source EmotionSource,
	svc Services,
	cfg Config,
	sink EventSink,
	logger *zap.Logger,
) (*Controller, error) {
	if device == nil {
		return nil, fmt.Errorf("audio device is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := svc.validate(); err != nil {
		return nil, err
	}

	return &Controller{
		device: device,
		source: source,
		svc:    svc,
		cfg:    cfg.withDefaults(),
		sink:   sink,
		logger: logger,
		state:  entities.TurnIdle,
		buffer: entities.NewEmotionBuffer(),
	}, nil
}

// State returns the current turn state.
func (c *Controller) State() entities.TurnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the current state with its derived UI flags.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshotOf(c.state, c.captureSeconds)
}

// Question returns the question text currently shown to the user.
func (c *Controller) Question() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.question
}

// Context returns the identifiers of the turn in flight.
func (c *Controller) Context() entities.TurnContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turnCtx
}

// BeginTurn starts the first turn of a conversation with its opening
// question. Subsequent turns chain automatically from response playback.
func (c *Controller) BeginTurn(conversationID, userID, question string) error {
	c.mu.Lock()
	if c.state != entities.TurnIdle {
		c.mu.Unlock()
		return ErrTurnInFlight
	}

	gen := c.generation.Add(1)
	c.turnCtx = entities.TurnContext{
		ConversationID:      conversationID,
		UserID:              userID,
		QuestionID:          uuid.NewString(),
		CameraSessionID:     uuid.NewString(),
		MicrophoneSessionID: uuid.NewString(),
	}
	c.buffer.Clear()
	c.question = question
	c.setStateLocked(entities.TurnAwaitingQuestionPlayback)
	snap := snapshotOf(c.state, c.captureSeconds)
	c.mu.Unlock()

	c.emitState(snap)
	c.emitQuestion(question)

	c.logger.Info("Turn started",
		zap.String("conversationID", conversationID),
		zap.Uint64("generation", gen))

	go c.playPrompt(gen, question)
	return nil
}

// StopCapture ends the listening window, finalizes the recording, and starts
// the response pipeline. Safe against duplicate triggers: a stop signal while
// not listening is a no-op, so concurrent hardware callbacks cannot issue a
// second transcription.
func (c *Controller) StopCapture() {
	c.mu.Lock()
	if c.state != entities.TurnListening {
		c.mu.Unlock()
		return
	}

	gen := c.generation.Load()
	capture := c.capture
	c.capture = nil
	c.teardownListeningLocked()
	c.setStateLocked(entities.TurnStoppingCapture)
	snap := snapshotOf(c.state, c.captureSeconds)
	c.mu.Unlock()

	c.emitState(snap)
	go c.finalizeCapture(gen, capture)
}

// EndConversation cancels the turn in flight, releases the hardware, and
// terminates the conversation with the backend. Results of in-flight remote
// calls arriving afterwards are discarded. Idempotent.
func (c *Controller) EndConversation(ctx context.Context) error {
	c.mu.Lock()
	if c.state == entities.TurnIdle {
		c.mu.Unlock()
		return nil
	}

	c.generation.Add(1)
	capture := c.capture
	playback := c.playback
	c.capture = nil
	c.playback = nil
	c.teardownListeningLocked()
	c.setStateLocked(entities.TurnIdle)
	snap := snapshotOf(c.state, c.captureSeconds)
	conversationID := c.turnCtx.ConversationID
	c.mu.Unlock()

	c.emitState(snap)

	if capture != nil {
		if _, err := c.device.StopCapture(capture); err != nil && !errors.Is(err, audio.ErrEmptyCapture) {
			c.logger.Warn("Failed to release capture on conversation end", zap.Error(err))
		}
	}
	if playback != nil {
		_ = c.device.Stop(playback)
	}

	c.logger.Info("Conversation ended", zap.String("conversationID", conversationID))

	if err := c.svc.Conversations.End(ctx, conversationID); err != nil {
		return fmt.Errorf("end conversation: %w", err)
	}
	return nil
}

// AppendEmotionSample records a facial-emotion sample for the turn in
// flight. Samples outside the listening window are dropped.
func (c *Controller) AppendEmotionSample(sample entities.EmotionSample) {
	c.appendEmotionSample(c.generation.Load(), sample)
}

// WriteAudio feeds raw capture audio into the active recording. Chunks
// arriving outside the listening window are dropped.
func (c *Controller) WriteAudio(chunk []byte) error {
	c.mu.Lock()
	capture := c.capture
	state := c.state
	c.mu.Unlock()

	if state != entities.TurnListening || capture == nil {
		c.logger.Debug("Dropping audio chunk outside listening window",
			zap.String("state", state.String()),
			zap.Int("size", len(chunk)))
		return nil
	}
	return capture.Write(chunk)
}

// playPrompt synthesizes and plays the given text, then re-arms the
// microphone. Synthesis or playback failure skips straight to listening so
// the user is never stranded.
func (c *Controller) playPrompt(gen uint64, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RemoteTimeout)
	req := c.cfg.Voice
	req.Text = text
	synthesized, err := c.svc.Synthesizer.Synthesize(ctx, req)
	cancel()

	if c.stale(gen) {
		return
	}
	if err != nil || synthesized.Empty() {
		c.logger.Warn("Speech synthesis failed, arming microphone without playback", zap.Error(err))
		c.enterListening(gen)
		return
	}

	playback, err := c.device.Play(synthesized)
	if err != nil {
		c.logger.Warn("Playback failed, arming microphone", zap.Error(err))
		c.enterListening(gen)
		return
	}

	c.mu.Lock()
	if c.stale(gen) {
		c.mu.Unlock()
		_ = c.device.Stop(playback)
		return
	}
	c.playback = playback
	c.mu.Unlock()

	<-playback.Done()

	c.mu.Lock()
	c.playback = nil
	c.mu.Unlock()

	if c.stale(gen) {
		return
	}
	c.enterListening(gen)
}

// enterListening arms the microphone, resets the duration counter, clears
// the emotion buffer for the new listening window, and subscribes to the
// emotion source.
func (c *Controller) enterListening(gen uint64) {
	c.mu.Lock()
	if c.stale(gen) || c.state == entities.TurnIdle {
		c.mu.Unlock()
		return
	}

	c.buffer.Clear()
	c.captureSeconds = 0
	c.turnCtx.ConversationMessageID = ""
	c.setStateLocked(entities.TurnListening)
	snap := snapshotOf(c.state, c.captureSeconds)

	capture, err := c.device.StartCapture(c.cfg.Capture)
	if err != nil {
		c.mu.Unlock()
		c.emitState(snap)
		c.logger.Error("Failed to open microphone", zap.Error(err))
		c.emitCaptureFailed(err)
		return
	}
	c.capture = capture

	stop := make(chan struct{})
	c.stopTicker = stop

	if c.source != nil {
		c.unsubscribe = c.source.Subscribe(func(sample entities.EmotionSample) {
			c.appendEmotionSample(gen, sample)
		})
	}
	c.mu.Unlock()

	c.emitState(snap)
	go c.watchCaptureDuration(gen, stop)
}

// watchCaptureDuration increments the capture counter once per tick and
// forces a stop when the configured maximum is reached.
func (c *Controller) watchCaptureDuration(gen uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.CaptureTick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.stale(gen) || c.state != entities.TurnListening {
				c.mu.Unlock()
				return
			}
			c.captureSeconds++
			seconds := c.captureSeconds
			c.mu.Unlock()

			c.emitCaptureProgress(seconds)

			if seconds >= c.cfg.MaxCaptureSeconds {
				c.logger.Info("Capture duration cap reached, stopping capture",
					zap.Int("seconds", seconds))
				c.StopCapture()
				return
			}
		}
	}
}

// finalizeCapture encodes the finished recording and hands it to the
// response pipeline. An empty or failed capture takes the re-prompt path.
func (c *Controller) finalizeCapture(gen uint64, capture audio.Capture) {
	if capture == nil {
		c.reprompt(gen)
		return
	}

	encoded, err := c.device.StopCapture(capture)
	if c.stale(gen) {
		return
	}
	if err != nil {
		c.logger.Warn("Capture finalization failed", zap.Error(err))
		c.reprompt(gen)
		return
	}

	c.mu.Lock()
	if c.stale(gen) {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(entities.TurnTranscribing)
	snap := snapshotOf(c.state, c.captureSeconds)
	c.mu.Unlock()

	c.emitState(snap)
	c.runPipeline(gen, encoded)
}

// reprompt substitutes the "please repeat" prompt for the question and plays
// it, without advancing the emotion buffer or invoking the response
// pipeline.
func (c *Controller) reprompt(gen uint64) {
	c.mu.Lock()
	if c.stale(gen) || c.state == entities.TurnIdle {
		c.mu.Unlock()
		return
	}
	c.question = c.cfg.RepromptText
	c.turnCtx.ConversationMessageID = ""
	c.setStateLocked(entities.TurnAwaitingQuestionPlayback)
	snap := snapshotOf(c.state, c.captureSeconds)
	c.mu.Unlock()

	c.emitState(snap)
	c.emitQuestion(c.cfg.RepromptText)
	c.playPrompt(gen, c.cfg.RepromptText)
}

func (c *Controller) appendEmotionSample(gen uint64, sample entities.EmotionSample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stale(gen) || c.state != entities.TurnListening {
		c.logger.Debug("Dropping emotion sample outside listening window",
			zap.String("emotion", sample.Emotion),
			zap.String("state", c.state.String()))
		return
	}
	c.buffer.Append(sample)
}

// teardownListeningLocked stops the duration watcher and cancels the emotion
// subscription. Caller holds c.mu.
func (c *Controller) teardownListeningLocked() {
	if c.stopTicker != nil {
		close(c.stopTicker)
		c.stopTicker = nil
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

// setStateLocked applies a transition after validating it against the
// machine's transition table. Caller holds c.mu.
func (c *Controller) setStateLocked(next entities.TurnState) {
	if c.state == next {
		return
	}
	if !canTransition(c.state, next) {
		c.logger.Error("Rejected invalid turn transition",
			zap.String("from", c.state.String()),
			zap.String("to", next.String()))
		return
	}
	c.logger.Debug("Turn transition",
		zap.String("from", c.state.String()),
		zap.String("to", next.String()))
	c.state = next
}

func (c *Controller) stale(gen uint64) bool {
	return c.generation.Load() != gen
}

func (c *Controller) emitState(snap Snapshot) {
	if c.sink != nil {
		c.sink.TurnStateChanged(snap)
	}
}

func (c *Controller) emitQuestion(text string) {
	if c.sink != nil {
		c.sink.QuestionChanged(text)
	}
}

func (c *Controller) emitResponse(text string) {
	if c.sink != nil {
		c.sink.ResponseReady(text)
	}
}

func (c *Controller) emitCaptureProgress(seconds int) {
	if c.sink != nil {
		c.sink.CaptureProgress(seconds)
	}
}

func (c *Controller) emitCaptureFailed(err error) {
	if c.sink != nil {
		c.sink.CaptureFailed(err)
	}
}
