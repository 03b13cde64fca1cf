package turn

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/somiapp/somi-core/domain/entities"
	"github.com/somiapp/somi-core/domain/repositories"
)

// runPipeline executes the remote-call sequence of one successful capture:
// transcribe, persist the transcript, fire the best-effort emotion
// submissions, generate the AI response, and speak it. Only transcription,
// transcript persistence, and response generation block turn progress; every
// failure maps to a state transition, never to a surfaced error.
func (c *Controller) runPipeline(gen uint64, encoded entities.EncodedAudio) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RemoteTimeout)
	transcription, err := c.svc.Transcriber.Transcribe(ctx, encoded, c.cfg.Language)
	cancel()

	if c.stale(gen) {
		return
	}
	if err != nil {
		c.logger.Warn("Transcription failed, re-prompting", zap.Error(err))
		c.reprompt(gen)
		return
	}
	if invalid := c.classifyTranscript(transcription); invalid != nil {
		c.logger.Info("Transcript rejected, re-prompting",
			zap.String("reason", invalid.Error()),
			zap.Float64("confidence", transcription.Confidence))
		c.reprompt(gen)
		return
	}

	// The buffer is reduced exactly once, here; facial samples arriving
	// after this instant are dropped for the rest of the turn.
	c.mu.Lock()
	if c.stale(gen) {
		c.mu.Unlock()
		return
	}
	dominant := c.buffer.Reduce()
	sampleCount := c.buffer.Len()
	labelCounts := c.buffer.LabelCounts()
	samples := c.buffer.Samples()
	conversationID := c.turnCtx.ConversationID
	question := c.question
	c.setStateLocked(entities.TurnAnalyzingEmotion)
	snap := snapshotOf(c.state, c.captureSeconds)
	c.mu.Unlock()

	c.emitState(snap)

	// Step 1: persist the transcript. Everything downstream is keyed by the
	// message ID this returns.
	ctx, cancel = context.WithTimeout(context.Background(), c.cfg.RemoteTimeout)
	messageID, err := c.svc.Conversations.SaveTranscript(ctx, conversationID, transcription.Text)
	cancel()

	if c.stale(gen) {
		return
	}
	if err != nil {
		c.logger.Error("Transcript save failed, re-arming microphone", zap.Error(err))
		c.enterListening(gen)
		return
	}

	c.mu.Lock()
	if c.stale(gen) {
		c.mu.Unlock()
		return
	}
	c.turnCtx.ConversationMessageID = messageID
	c.mu.Unlock()

	// Step 2: best-effort emotion work, detached from the critical path.
	go c.submitEmotions(gen, messageID, dominant, sampleCount, labelCounts, samples)

	// Step 3: response generation. Blocks turn progress until it resolves.
	c.mu.Lock()
	if c.stale(gen) {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(entities.TurnGeneratingResponse)
	snap = snapshotOf(c.state, c.captureSeconds)
	c.mu.Unlock()

	c.emitState(snap)

	ctx, cancel = context.WithTimeout(context.Background(), c.cfg.RemoteTimeout)
	responseText, err := c.svc.Responder.GenerateResponse(ctx, repositories.ResponseRequest{
		ConversationMessageID: messageID,
		QuestionText:          question,
		UserText:              transcription.Text,
	})
	cancel()

	if c.stale(gen) {
		return
	}
	if err != nil {
		// Swallowed from the user's perspective: no dialog, the microphone
		// simply re-arms so the conversation can continue.
		c.logger.Warn("Response generation failed, re-arming microphone", zap.Error(err))
		c.enterListening(gen)
		return
	}

	// Step 4: show the response as the next question, give the text a beat
	// to render, then speak it.
	c.mu.Lock()
	if c.stale(gen) {
		c.mu.Unlock()
		return
	}
	c.question = responseText
	c.setStateLocked(entities.TurnPlayingResponse)
	snap = snapshotOf(c.state, c.captureSeconds)
	c.mu.Unlock()

	c.emitState(snap)
	c.emitResponse(responseText)
	c.emitQuestion(responseText)

	time.Sleep(c.cfg.ResponseDisplayDelay)
	if c.stale(gen) {
		return
	}

	c.playPrompt(gen, responseText)
}

// submitEmotions runs the best-effort emotion submissions for one message:
// facial (when any samples were captured) and speech (via the turn-context
// fetch) in parallel, then fusion once both acknowledged. Failures are
// logged and never block the turn.
func (c *Controller) submitEmotions(
	gen uint64,
	messageID string,
	dominant *entities.DominantEmotion,
	sampleCount int,
	labelCounts map[string]int,
	samples []entities.EmotionSample,
) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RemoteTimeout)
	defer cancel()

	var wg sync.WaitGroup
	var facialOK, speechOK atomic.Bool

	if dominant != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report := repositories.FacialEmotionReport{
				ConversationMessageID: messageID,
				Dominant:              *dominant,
				SampleCount:           sampleCount,
				LabelCounts:           labelCounts,
				AverageConfidence:     dominant.Confidence,
				Samples:               samples,
			}
			if err := c.svc.Emotions.SubmitFacialEmotion(ctx, report); err != nil {
				c.logger.Warn("Facial emotion submission failed",
					zap.String("messageID", messageID),
					zap.Error(err))
				return
			}
			facialOK.Store(true)
		}()
	} else {
		c.logger.Info("No facial samples captured, skipping facial submission",
			zap.String("messageID", messageID))
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		snippet, err := c.svc.Emotions.FetchTurnContext(ctx, messageID)
		if err != nil {
			c.logger.Warn("Turn context fetch failed",
				zap.String("messageID", messageID),
				zap.Error(err))
			return
		}
		result, err := c.svc.Emotions.InferSpeechEmotion(ctx, snippet)
		if err != nil {
			c.logger.Warn("Speech emotion inference failed",
				zap.String("messageID", messageID),
				zap.Error(err))
			return
		}
		report := repositories.SpeechEmotionReport{
			ConversationMessageID: messageID,
			Emotion:               result.Emotion,
			Confidence:            result.Confidence,
			Detail:                result.Detail,
		}
		if err := c.svc.Emotions.SubmitSpeechEmotion(ctx, report); err != nil {
			c.logger.Warn("Speech emotion submission failed",
				zap.String("messageID", messageID),
				zap.Error(err))
			return
		}
		speechOK.Store(true)
	}()

	wg.Wait()

	if c.stale(gen) {
		return
	}
	// Fusion needs both submissions acknowledged server-side.
	if !facialOK.Load() || !speechOK.Load() {
		return
	}
	if _, err := c.svc.Emotions.FuseEmotions(ctx, messageID); err != nil {
		c.logger.Warn("Emotion fusion failed",
			zap.String("messageID", messageID),
			zap.Error(err))
	}
}

// classifyTranscript returns the reason a transcript must take the re-prompt
// path, or nil when it is valid user input.
func (c *Controller) classifyTranscript(tr repositories.Transcription) error {
	text := normalizeTranscript(tr.Text)
	if text == "" {
		return ErrEmptyTranscript
	}
	if tr.Confidence < c.cfg.MinTranscriptConfidence {
		return ErrLowConfidence
	}
	for _, artifact := range c.cfg.NoSpeechArtifacts {
		if strings.EqualFold(text, normalizeTranscript(artifact)) {
			return ErrNoSpeechArtifact
		}
	}
	return nil
}

// normalizeTranscript trims surrounding space and terminal punctuation so
// artifact matching is insensitive to STT punctuation quirks.
func normalizeTranscript(s string) string {
	s = strings.TrimSpace(s)
	return strings.TrimRight(s, ".!?~…。！？")
}
