// Package session drives one utterance through capture, translation, and
// conversion, and owns the pipeline state machine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/signflow/internal/conversion"
	"github.com/rbright/signflow/internal/fsm"
	"github.com/rbright/signflow/internal/language"
)

// ErrClosed is returned by Await once the orchestrator has been closed.
var ErrClosed = errors.New("session orchestrator closed")

// Orchestrator is the single writer of pipeline state.
//
// Every transition happens under mu. Capture and remote steps run on their own
// goroutines and report back tagged with the generation that issued them; a
// result whose generation is no longer current is dropped.
type Orchestrator struct {
	logger    *slog.Logger
	capture   CaptureSource
	converter Converter
	now       func() time.Time

	root       context.Context
	cancelRoot context.CancelFunc

	mu            sync.Mutex
	language      language.Code
	generation    uint64
	runID         string
	runCtx        context.Context
	cancelRun     context.CancelFunc
	state         State
	capturing     bool
	captureGen    uint64
	stopRequested bool
	closed        bool
	subs          map[*subscriber]struct{}
}

// NewOrchestrator constructs an idle orchestrator with safe fallbacks for nil collaborators.
func NewOrchestrator(
	logger *slog.Logger,
	capture CaptureSource,
	converter Converter,
	initial language.Code,
) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if capture == nil {
		capture = UnavailableCapture{}
	}
	if converter == nil {
		converter = unavailableConverter{}
	}
	if initial == "" {
		initial = language.Pivot
	}

	root, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		logger:     logger,
		capture:    capture,
		converter:  converter,
		now:        time.Now,
		root:       root,
		cancelRoot: cancel,
		language:   initial,
		state:      Idle{},
		subs:       make(map[*subscriber]struct{}),
	}
}

// Snapshot returns the current immutable pipeline view.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// SetLanguage selects the source language. Any capture or remote step in
// flight is invalidated and the pipeline returns to Idle. Codes outside the
// catalog are ignored.
func (o *Orchestrator) SetLanguage(code language.Code) {
	normalized, err := language.Parse(string(code))
	if err != nil {
		o.logger.Warn("language change ignored", "language", string(code), "error", err.Error())
		return
	}
	code = normalized

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	wasListening := o.state.Phase() == fsm.PhaseListening
	prev := o.runCtx
	o.language = code
	o.advanceLocked(false)
	o.applyLocked(fsm.EventReset, Idle{})
	o.mu.Unlock()

	if wasListening {
		o.capture.End(prev)
	}
}

// StartCapture begins a new capture session. It is a no-op while already
// listening. From Translating or Converting it abandons the outstanding step.
func (o *Orchestrator) StartCapture() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	from := o.state.Phase()
	if _, err := fsm.Transition(from, fsm.EventStart); err != nil {
		o.logger.Debug("start ignored", "phase", from, "generation", o.generation)
		o.mu.Unlock()
		return
	}

	ctx := o.advanceLocked(true)
	gen := o.generation
	lang := o.language
	o.capturing = true
	o.captureGen = gen
	o.applyLocked(fsm.EventStart, Listening{Language: lang})
	o.mu.Unlock()

	if err := o.capture.Begin(ctx, lang, captureSink{o: o, generation: gen}); err != nil {
		o.onCaptureResult(gen, "", fmt.Errorf("begin capture: %w", err))
		o.onCaptureEnded(gen)
	}
}

// StopCapture asks the device to end the current capture early.
func (o *Orchestrator) StopCapture() {
	o.mu.Lock()
	if o.closed || o.state.Phase() != fsm.PhaseListening {
		o.logger.Debug("stop ignored", "phase", o.state.Phase(), "generation", o.generation)
		o.mu.Unlock()
		return
	}
	o.stopRequested = true
	ctx := o.runCtx
	o.mu.Unlock()

	o.capture.End(ctx)
}

// Close invalidates outstanding work and closes every subscription.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	wasListening := o.state.Phase() == fsm.PhaseListening
	prev := o.runCtx
	o.advanceLocked(false)
	o.cancelRoot()
	for sub := range o.subs {
		close(sub.ch)
	}
	o.subs = nil
	o.mu.Unlock()

	if wasListening {
		o.capture.End(prev)
	}
}

func (o *Orchestrator) onCaptureResult(gen uint64, transcript string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.acceptLocked(gen, fsm.PhaseListening, "capture") {
		return
	}
	listening := o.state.(Listening)

	transcript = strings.TrimSpace(transcript)
	if err == nil && transcript == "" {
		err = ErrNoSpeech
	}
	if err != nil {
		if o.stopRequested && errors.Is(err, ErrNoSpeech) {
			o.applyLocked(fsm.EventStopped, Idle{})
			return
		}
		o.failLocked(fsm.EventCaptureFailed, Failed{
			Error: ErrorInfo{Kind: CaptureFailure, Detail: err.Error()},
		})
		return
	}

	utterance := Utterance{
		RawText:        transcript,
		SourceLanguage: listening.Language,
		CapturedAt:     o.now(),
	}
	if listening.Language.IsPivot() {
		if o.applyLocked(fsm.EventCaptured, Converting{Utterance: utterance}) {
			o.spawnClassify(o.runCtx, gen, transcript)
		}
		return
	}
	if o.applyLocked(fsm.EventCapturedForeign, Translating{Utterance: utterance}) {
		o.spawnTranslate(o.runCtx, gen, transcript, listening.Language)
	}
}

func (o *Orchestrator) onCaptureEnded(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.capturing || o.captureGen != gen {
		return
	}
	o.capturing = false
	o.publishLocked()
}

func (o *Orchestrator) onTranslateResult(gen uint64, translated string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.acceptLocked(gen, fsm.PhaseTranslating, "translate") {
		return
	}
	current := o.state.(Translating)

	translated = strings.TrimSpace(translated)
	if err == nil && translated == "" {
		err = errors.New("translation returned empty text")
	}
	if err != nil {
		o.failLocked(fsm.EventTranslateFailed, Failed{
			Utterance: current.Utterance,
			Error:     ErrorInfo{Kind: TranslationFailure, Detail: err.Error()},
		})
		return
	}

	next := Converting{Utterance: current.Utterance, TranslatedText: translated}
	if o.applyLocked(fsm.EventTranslated, next) {
		o.spawnClassify(o.runCtx, gen, translated)
	}
}

func (o *Orchestrator) onConvertResult(gen uint64, result conversion.Result, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.acceptLocked(gen, fsm.PhaseConverting, "classify") {
		return
	}
	current := o.state.(Converting)

	if err == nil {
		if verr := result.Validate(); verr != nil {
			err = fmt.Errorf("malformed conversion result: %w", verr)
		}
	}
	if err != nil {
		o.failLocked(fsm.EventConvertFailed, Failed{
			Utterance:      current.Utterance,
			TranslatedText: current.TranslatedText,
			Error:          ErrorInfo{Kind: ConversionFailure, Detail: err.Error()},
		})
		return
	}

	o.applyLocked(fsm.EventConverted, Ready{
		Utterance:      current.Utterance,
		TranslatedText: current.TranslatedText,
		Result:         result,
	})
}

func (o *Orchestrator) spawnTranslate(ctx context.Context, gen uint64, text string, source language.Code) {
	run(ctx,
		func(ctx context.Context) (string, error) { return o.converter.Translate(ctx, text, source) },
		func(translated string, err error) { o.onTranslateResult(gen, translated, err) },
	)
}

func (o *Orchestrator) spawnClassify(ctx context.Context, gen uint64, text string) {
	run(ctx,
		func(ctx context.Context) (conversion.Result, error) { return o.converter.Classify(ctx, text) },
		func(result conversion.Result, err error) { o.onConvertResult(gen, result, err) },
	)
}

// run executes one remote step off the caller's goroutine and hands its outcome to done.
func run[T any](ctx context.Context, step func(context.Context) (T, error), done func(T, error)) {
	go func() {
		value, err := step(ctx)
		done(value, err)
	}()
}

// advanceLocked starts a new generation, cancelling the previous run's context.
func (o *Orchestrator) advanceLocked(startRun bool) context.Context {
	if o.cancelRun != nil {
		o.cancelRun()
	}
	o.generation++
	o.stopRequested = false
	o.runCtx, o.cancelRun, o.runID = nil, nil, ""
	if !startRun {
		return nil
	}

	o.runCtx, o.cancelRun = context.WithCancel(o.root)
	o.runID = uuid.NewString()
	return o.runCtx
}

// acceptLocked reports whether a step result still belongs to the current run.
func (o *Orchestrator) acceptLocked(gen uint64, want fsm.Phase, step string) bool {
	if gen != o.generation {
		o.logger.Debug("stale result dropped", "step", step, "generation", gen, "current_generation", o.generation)
		return false
	}
	if phase := o.state.Phase(); phase != want {
		o.logger.Debug("out of phase result dropped", "step", step, "phase", phase, "generation", gen)
		return false
	}
	return true
}

// applyLocked validates event against the FSM and installs next.
func (o *Orchestrator) applyLocked(event fsm.Event, next State) bool {
	from := o.state.Phase()
	to, err := fsm.Transition(from, event)
	if err != nil {
		o.logger.Error("transition rejected", "error", err.Error(), "generation", o.generation)
		return false
	}
	if to != next.Phase() {
		o.logger.Error("transition target mismatch", "event", event, "want", to, "got", next.Phase())
		return false
	}

	o.state = next
	o.logger.Debug("session transition",
		"generation", o.generation,
		"run_id", o.runID,
		"event", event,
		"from", from,
		"to", to,
	)
	o.publishLocked()
	return true
}

func (o *Orchestrator) failLocked(event fsm.Event, failed Failed) {
	if o.applyLocked(event, failed) {
		o.logger.Warn("session failed",
			"generation", o.generation,
			"run_id", o.runID,
			"kind", failed.Error.Kind,
			"detail", failed.Error.Detail,
		)
	}
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	return Snapshot{
		Generation: o.generation,
		Language:   o.language,
		Capturing:  o.capturing,
		RunID:      o.runID,
		State:      o.state,
	}
}

// captureSink binds device callbacks to the generation that started the capture.
type captureSink struct {
	o          *Orchestrator
	generation uint64
}

func (s captureSink) Final(transcript string) {
	s.o.onCaptureResult(s.generation, transcript, nil)
}

func (s captureSink) Error(err error) {
	if err == nil {
		err = ErrNoSpeech
	}
	s.o.onCaptureResult(s.generation, "", err)
}

func (s captureSink) Ended() {
	s.o.onCaptureEnded(s.generation)
}

var errConverterUnavailable = errors.New("remote conversion service not configured")

type unavailableConverter struct{}

func (unavailableConverter) Translate(context.Context, string, language.Code) (string, error) {
	return "", errConverterUnavailable
}

func (unavailableConverter) Classify(context.Context, string) (conversion.Result, error) {
	return conversion.Result{}, errConverterUnavailable
}
