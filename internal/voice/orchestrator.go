package voice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mpetrucci/pitchcoach/internal/audio"
	"github.com/mpetrucci/pitchcoach/internal/observability"
	"github.com/mpetrucci/pitchcoach/internal/persona"
	"github.com/mpetrucci/pitchcoach/internal/protocol"
	"github.com/mpetrucci/pitchcoach/internal/reliability"
	"github.com/mpetrucci/pitchcoach/internal/session"
	"github.com/mpetrucci/pitchcoach/internal/transcript"
)

// Phase is the externally visible state of a rehearsal session.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseCapturing     Phase = "capturing"
	PhaseTranscribing  Phase = "transcribing"
	PhaseAwaitingReply Phase = "awaiting_reply"
	PhaseSynthesizing  Phase = "synthesizing"
	PhasePlaying       Phase = "playing"
	PhaseErrored       Phase = "errored"
)

const (
	archiveTimeout = 2 * time.Second
	sendTimeout    = 600 * time.Millisecond
)

// User-facing messages for turn failures, by class.
const (
	detailBusy    = "The service is currently busy. Please wait a moment and try again."
	detailAuth    = "There was an authentication error. Please refresh the page and try again."
	detailDevice  = "There was an audio device problem. Please check your microphone and speakers."
	detailGeneric = "Something went wrong processing your turn. Please try again."
)

// Options tunes the turn pipeline.
type Options struct {
	MinSegmentBytes      int
	TTSFormat            string
	CompletionRetryDelay time.Duration
	SynthesisRetryDelay  time.Duration
	RecaptureDelay       time.Duration
	PlaybackSettleDelay  time.Duration
}

// Orchestrator runs the capture, transcribe, complete, synthesize, play
// loop for rehearsal sessions.
type Orchestrator struct {
	sessions *session.Manager
	provider Provider
	cache    *ResponseCache
	store    transcript.Store
	metrics  *observability.Metrics
	opts     Options
}

func NewOrchestrator(
	sessions *session.Manager,
	provider Provider,
	cache *ResponseCache,
	store transcript.Store,
	metrics *observability.Metrics,
	opts Options,
) *Orchestrator {
	if opts.TTSFormat == "" {
		opts.TTSFormat = "mp3"
	}
	o := &Orchestrator{
		sessions: sessions,
		provider: provider,
		cache:    cache,
		store:    store,
		metrics:  metrics,
		opts:     opts,
	}
	if cache != nil && metrics != nil {
		cache.SetEventHook(func(event string) {
			metrics.CacheEvents.WithLabelValues(event).Inc()
			metrics.ObserveIndicator("cache_" + event)
		})
	}
	return o
}

// turnInput is what a turn starts from: a captured segment, typed text, or
// an already-appended turn that only needs voicing (the scripted greeting).
type turnInput struct {
	segment *audio.Segment
	text    string
	speak   *Turn
}

// turnOutcome reports how a pipeline run ended. silent means nothing was
// appended and no error surfaced (empty transcript, manual-mode capture).
type turnOutcome struct {
	stage  string
	err    error
	silent bool
}

// conn is the per-connection state shared between the control loop and the
// in-flight turn goroutine.
type conn struct {
	o        *Orchestrator
	sess     *session.Session
	per      persona.Persona
	capture  audio.CaptureDevice
	playback audio.PlaybackDevice
	outbound chan<- any

	mu    sync.Mutex
	turns []Turn
	phase Phase
}

// RunConnection drives one rehearsal session over a pair of audio devices
// and an inbound control channel. It returns when ctx is cancelled or the
// inbound channel closes.
func (o *Orchestrator) RunConnection(
	ctx context.Context,
	s *session.Session,
	per persona.Persona,
	inbound <-chan any,
	capture audio.CaptureDevice,
	playback audio.PlaybackDevice,
	outbound chan<- any,
) error {
	c := &conn{
		o:        o,
		sess:     s,
		per:      per,
		capture:  capture,
		playback: playback,
		outbound: outbound,
		phase:    PhaseIdle,
	}

	// Loop-local flags. Only the control loop below touches them.
	var (
		auto          = s.AutoMode
		stopRequested bool
		busy          bool
	)

	outcomes := make(chan turnOutcome, 1)
	recapture := make(chan struct{}, 1)

	startCapture := func() {
		if busy || c.currentPhase() == PhaseCapturing {
			return
		}
		if err := capture.Arm(ctx); err != nil {
			devErr := &reliability.DeviceError{Device: "capture", Err: err}
			o.countProviderError("capture", devErr)
			c.reportError(ctx, "capture", devErr)
			c.setPhase(ctx, PhaseErrored)
			return
		}
		c.setPhase(ctx, PhaseCapturing)
	}

	scheduleRecapture := func(delay time.Duration) {
		go func() {
			if !sleepCtx(ctx, delay) {
				return
			}
			select {
			case recapture <- struct{}{}:
			default:
			}
		}()
	}

	launchTurn := func(in turnInput) {
		busy = true
		turnID := uuid.NewString()
		_ = o.sessions.StartTurn(s.ID, turnID)
		autoNow := auto
		go func() {
			// outcomes is buffered and at most one turn is in flight, so
			// this send never blocks.
			outcomes <- c.executeTurn(ctx, in, autoNow, turnID)
		}()
	}

	// waitTurn joins the in-flight turn goroutine. Callers close outbound
	// after RunConnection returns, so no turn may outlive it.
	waitTurn := func() {
		if busy {
			<-outcomes
			busy = false
		}
	}

	// Scripted opener. It seeds the conversation but is excluded from
	// completion context; it is voiced like any reply, and capture arms
	// once its playback finishes (auto mode).
	greeting := Turn{
		ID:        uuid.NewString(),
		Speaker:   SpeakerPersona,
		Text:      per.Greeting,
		Greeting:  true,
		CreatedAt: time.Now().UTC(),
	}
	c.appendTurn(ctx, greeting)
	o.countEvent("session_started")
	launchTurn(turnInput{speak: &greeting})

	for {
		select {
		case <-ctx.Done():
			waitTurn()
			return ctx.Err()

		case msg, ok := <-inbound:
			if !ok {
				o.countEvent("session_inbound_closed")
				waitTurn()
				return nil
			}
			ctrl, isCtrl := msg.(protocol.ClientControl)
			if !isCtrl {
				continue
			}
			_ = o.sessions.Touch(s.ID)
			phase := c.currentPhase()
			switch ctrl.Action {
			case protocol.ActionTypedText:
				text := strings.TrimSpace(ctrl.Text)
				// Typed input is only accepted while nothing is in flight.
				if text == "" || busy || (phase != PhaseIdle && phase != PhaseErrored) {
					continue
				}
				stopRequested = false
				launchTurn(turnInput{text: text})

			case protocol.ActionSetAutoMode:
				if ctrl.Enabled == nil {
					continue
				}
				auto = *ctrl.Enabled
				_ = o.sessions.SetAutoMode(s.ID, auto)
				if !auto && phase == PhaseCapturing {
					capture.Discard()
					c.setPhase(ctx, PhaseIdle)
				}
				if auto && !busy && (phase == PhaseIdle || phase == PhaseErrored) {
					stopRequested = false
					startCapture()
				}

			case protocol.ActionStartCapture:
				if busy || (phase != PhaseIdle && phase != PhaseErrored) {
					continue
				}
				stopRequested = false
				startCapture()

			case protocol.ActionStop:
				stopRequested = true
				_ = o.sessions.RecordStop(s.ID)
				o.countEvent("stop_requested")
				if phase == PhaseCapturing {
					capture.Discard()
					c.setPhase(ctx, PhaseIdle)
				}
				// An in-flight playback finishes naturally; the stop flag
				// only suppresses the next capture.
			}

		case seg, ok := <-capture.Segments():
			if !ok {
				waitTurn()
				return nil
			}
			if busy || c.currentPhase() != PhaseCapturing {
				continue
			}
			if len(seg.Data) < o.opts.MinSegmentBytes {
				o.countEvent("segment_too_short")
				continue
			}
			_ = o.sessions.Touch(s.ID)
			_ = capture.Disarm(ctx)
			launchTurn(turnInput{segment: &seg})

		case out := <-outcomes:
			busy = false
			_ = o.sessions.FinishTurn(s.ID)

			if out.err == nil {
				c.setPhase(ctx, PhaseIdle)
				if auto && !stopRequested {
					scheduleRecapture(o.opts.RecaptureDelay)
				}
				continue
			}

			class := reliability.Classify(out.err)
			c.reportError(ctx, out.stage, out.err)
			if out.stage == "complete" {
				// Reply failures show up in-line so the rep sees feedback
				// where the persona's answer would have been.
				c.appendTurn(ctx, Turn{
					ID:        uuid.NewString(),
					Speaker:   SpeakerPersona,
					Text:      detailForClass(class),
					CreatedAt: time.Now().UTC(),
				})
			}
			if class.Retryable() && auto && !stopRequested {
				c.setPhase(ctx, PhaseIdle)
				scheduleRecapture(o.retryDelay(out.stage))
			} else {
				c.setPhase(ctx, PhaseErrored)
			}

		case <-recapture:
			if busy || stopRequested || !auto || c.currentPhase() != PhaseIdle {
				continue
			}
			startCapture()
		}
	}
}

// executeTurn runs the transcribe, complete, synthesize, play pipeline for
// one turn. It runs on its own goroutine; shared state goes through c.
func (c *conn) executeTurn(ctx context.Context, in turnInput, auto bool, turnID string) turnOutcome {
	o := c.o
	turnStart := time.Now()

	if in.speak != nil {
		return c.speakTurn(ctx, *in.speak, turnStart)
	}

	repText := in.text
	if in.segment != nil {
		c.setPhase(ctx, PhaseTranscribing)
		stageStart := time.Now()
		text, err := o.provider.Transcribe(ctx, *in.segment)
		if err != nil {
			o.countProviderError("transcribe", err)
			return turnOutcome{stage: "transcribe", err: err}
		}
		o.observeStage("transcribe", time.Since(stageStart))
		repText = strings.TrimSpace(text)

		if repText == "" {
			o.countEvent("transcript_empty")
			return turnOutcome{silent: true}
		}
		if !auto {
			// Manual mode hands the transcript back for review instead of
			// submitting it.
			o.send(ctx, c.outbound, protocol.TranscriptReady{
				Type:      protocol.TypeTranscriptReady,
				SessionID: c.sess.ID,
				Text:      repText,
			})
			return turnOutcome{silent: true}
		}
	}

	c.appendTurn(ctx, Turn{
		ID:        turnID,
		Speaker:   SpeakerRep,
		Text:      repText,
		CreatedAt: time.Now().UTC(),
	})

	c.setPhase(ctx, PhaseAwaitingReply)
	stageStart := time.Now()
	reply, err := o.provider.Complete(ctx, CompletionRequest{
		SystemPrompt: c.per.SystemPrompt,
		Turns:        c.completionTurns(),
	})
	if err != nil {
		o.countProviderError("complete", err)
		return turnOutcome{stage: "complete", err: err}
	}
	o.observeStage("complete", time.Since(stageStart))

	personaTurn := Turn{
		ID:        uuid.NewString(),
		Speaker:   SpeakerPersona,
		Text:      reply,
		CreatedAt: time.Now().UTC(),
	}
	c.appendTurn(ctx, personaTurn)

	return c.speakTurn(ctx, personaTurn, turnStart)
}

// speakTurn voices one persona turn: cache-checked synthesis followed by
// blocking playback.
func (c *conn) speakTurn(ctx context.Context, t Turn, turnStart time.Time) turnOutcome {
	o := c.o

	c.setPhase(ctx, PhaseSynthesizing)
	stageStart := time.Now()
	clipData, hit := o.cache.Get(t.Text, c.per.Voice)
	if !hit {
		var err error
		clipData, err = o.provider.Synthesize(ctx, SpeechRequest{
			Text:   t.Text,
			Voice:  c.per.Voice,
			Format: o.opts.TTSFormat,
		})
		if err != nil {
			// Drop everything rather than risk serving stale audio after a
			// provider incident.
			o.cache.Clear()
			o.countProviderError("synthesize", err)
			return turnOutcome{stage: "synthesize", err: err}
		}
		o.cache.Put(t.Text, c.per.Voice, clipData)
	}
	o.observeStage("synthesize", time.Since(stageStart))

	c.setPhase(ctx, PhasePlaying)
	if !sleepCtx(ctx, o.opts.PlaybackSettleDelay) {
		return turnOutcome{stage: "playback", err: ctx.Err()}
	}
	stageStart = time.Now()
	err := c.playback.Play(ctx, audio.Clip{
		TurnID: t.ID,
		MIME:   MIMEForFormat(o.opts.TTSFormat),
		Data:   clipData,
	})
	switch {
	case err == nil:
	case errors.Is(err, audio.ErrPlaybackStopped):
		o.countEvent("playback_stopped")
	case errors.Is(err, context.Canceled):
		return turnOutcome{stage: "playback", err: err}
	default:
		devErr := &reliability.DeviceError{Device: "playback", Err: err}
		o.countProviderError("playback", devErr)
		return turnOutcome{stage: "playback", err: devErr}
	}
	o.observeStage("playback", time.Since(stageStart))
	o.observeStage("turn_total", time.Since(turnStart))
	return turnOutcome{}
}

func (c *conn) currentPhase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *conn) setPhase(ctx context.Context, p Phase) {
	c.mu.Lock()
	if c.phase == p {
		c.mu.Unlock()
		return
	}
	c.phase = p
	c.mu.Unlock()
	c.o.send(ctx, c.outbound, protocol.StatusChanged{
		Type:      protocol.TypeStatusChanged,
		SessionID: c.sess.ID,
		Phase:     string(p),
	})
}

func (c *conn) appendTurn(ctx context.Context, t Turn) {
	c.mu.Lock()
	c.turns = append(c.turns, t)
	c.mu.Unlock()
	c.o.send(ctx, c.outbound, protocol.TurnAppended{
		Type:      protocol.TypeTurnAppended,
		SessionID: c.sess.ID,
		TurnID:    t.ID,
		Speaker:   string(t.Speaker),
		Text:      t.Text,
		CreatedAt: t.CreatedAt,
	})
	c.o.archive(c.sess, t)
}

// completionTurns snapshots the conversation minus scripted greetings.
func (c *conn) completionTurns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, 0, len(c.turns))
	for _, t := range c.turns {
		if t.Greeting {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (c *conn) reportError(ctx context.Context, stage string, err error) {
	class := reliability.Classify(err)
	c.o.send(ctx, c.outbound, protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: c.sess.ID,
		Code:      stage + "_failed",
		Class:     string(class),
		Retryable: class.Retryable(),
		Detail:    detailForClass(class),
	})
}

func detailForClass(class reliability.Class) string {
	switch class {
	case reliability.ClassTransientRemote:
		return detailBusy
	case reliability.ClassFatalConfig:
		return detailAuth
	case reliability.ClassDeviceError:
		return detailDevice
	default:
		return detailGeneric
	}
}

func (o *Orchestrator) retryDelay(stage string) time.Duration {
	switch stage {
	case "synthesize", "playback":
		return o.opts.SynthesisRetryDelay
	default:
		return o.opts.CompletionRetryDelay
	}
}

func (o *Orchestrator) observeStage(stage string, d time.Duration) {
	if o.metrics == nil {
		return
	}
	o.metrics.ObserveTurnStage(stage, d)
}

func (o *Orchestrator) countEvent(event string) {
	if o.metrics == nil {
		return
	}
	o.metrics.SessionEvents.WithLabelValues(event).Inc()
}

func (o *Orchestrator) countProviderError(stage string, err error) {
	if o.metrics == nil {
		return
	}
	o.metrics.ProviderErrors.WithLabelValues(stage, string(reliability.Classify(err))).Inc()
}

func (o *Orchestrator) archive(s *session.Session, t Turn) {
	if o.store == nil {
		return
	}
	entry := transcript.Entry{
		ID:        t.ID,
		SessionID: s.ID,
		PersonaID: s.PersonaID,
		Speaker:   string(t.Speaker),
		Text:      t.Text,
		CreatedAt: t.CreatedAt,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		_ = o.store.Append(ctx, entry)
	}()
}

// send delivers an outbound event, dropping it if the writer is wedged.
func (o *Orchestrator) send(ctx context.Context, outbound chan<- any, msg any) {
	timer := time.NewTimer(sendTimeout)
	defer timer.Stop()
	select {
	case outbound <- msg:
	case <-timer.C:
		o.countEvent("outbound_drop")
	case <-ctx.Done():
	}
}

// sleepCtx waits for d, reporting false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
