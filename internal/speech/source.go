// Package speech turns a bounded microphone clip into one final transcript.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/signflow/internal/audio"
	"github.com/rbright/signflow/internal/language"
	"github.com/rbright/signflow/internal/session"
)

// ErrNoSpeech is reported when a clip is empty, silent, or transcribes to nothing.
var ErrNoSpeech = session.ErrNoSpeech

const (
	// DefaultSilenceLevel is the RMS below which a clip is treated as silence.
	DefaultSilenceLevel = 0.002
	minClipDuration     = 200 * time.Millisecond
)

// Clip is an in-progress recording.
type Clip interface {
	Full() <-chan struct{}
	Stop() []byte
}

// OpenFunc starts a new recording.
type OpenFunc func(ctx context.Context) (Clip, error)

// Transcriber converts WAV audio to text in lang.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte, lang language.Code) (string, error)
}

// Source implements session.CaptureSource: record until End, the clip
// limit, or cancellation, then transcribe remotely.
type Source struct {
	open         OpenFunc
	transcriber  Transcriber
	logger       *slog.Logger
	silenceLevel float64

	mu     sync.Mutex
	active *capture
}

type capture struct {
	ctx  context.Context
	stop chan struct{}
	once sync.Once
}

func (c *capture) end() {
	c.once.Do(func() { close(c.stop) })
}

// NewSource builds a capture source. A non-positive silenceLevel disables the silence gate.
func NewSource(open OpenFunc, transcriber Transcriber, logger *slog.Logger, silenceLevel float64) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{
		open:         open,
		transcriber:  transcriber,
		logger:       logger,
		silenceLevel: silenceLevel,
	}
}

// Begin opens the microphone and returns once recording has started. A
// capture still running from an earlier Begin is ended first. If ctx is
// cancelled before recording starts, the clip is discarded and Begin fails
// without disturbing a capture begun since.
func (s *Source) Begin(ctx context.Context, lang language.Code, sink session.CaptureSink) error {
	s.mu.Lock()
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("begin capture: %w", err)
	}
	if s.active != nil {
		s.active.end()
		s.active = nil
	}
	s.mu.Unlock()

	clip, err := s.open(ctx)
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}

	c := &capture{ctx: ctx, stop: make(chan struct{})}
	s.mu.Lock()
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		clip.Stop()
		s.logger.Debug("superseded capture discarded", "language", lang)
		return fmt.Errorf("begin capture: %w", err)
	}
	if s.active != nil {
		s.active.end()
	}
	s.active = c
	s.mu.Unlock()

	go s.run(ctx, c, clip, lang, sink)
	return nil
}

// End stops the recording begun with ctx early. The clip captured so far is
// still transcribed. A ctx from a finished or superseded Begin is ignored.
func (s *Source) End(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.ctx == ctx {
		s.active.end()
	}
}

func (s *Source) run(ctx context.Context, c *capture, clip Clip, lang language.Code, sink session.CaptureSink) {
	reason := "stopped"
	select {
	case <-c.stop:
	case <-clip.Full():
		reason = "limit"
	case <-ctx.Done():
		reason = "cancelled"
	}
	pcm := clip.Stop()
	s.release(c)
	sink.Ended()

	duration := audio.DurationOf(len(pcm))
	level := audio.RMS(pcm)
	s.logger.Debug("capture ended",
		"reason", reason,
		"language", lang,
		"duration_ms", duration.Milliseconds(),
		"rms", level,
	)
	if ctx.Err() != nil {
		return
	}

	if duration < minClipDuration || (s.silenceLevel > 0 && level < s.silenceLevel) {
		sink.Error(ErrNoSpeech)
		return
	}

	text, err := s.transcriber.Transcribe(ctx, audio.EncodeWAV(pcm), lang)
	if err != nil {
		sink.Error(fmt.Errorf("transcribe: %w", err))
		return
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		sink.Error(ErrNoSpeech)
		return
	}
	sink.Final(text)
}

func (s *Source) release(c *capture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == c {
		s.active = nil
	}
}
