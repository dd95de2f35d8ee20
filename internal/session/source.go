package session

import (
	"context"
	"errors"

	"github.com/rbright/signflow/internal/conversion"
	"github.com/rbright/signflow/internal/language"
)

var (
	// ErrNoSpeech indicates a capture ended without a usable transcript.
	ErrNoSpeech = errors.New("no speech recognized; check microphone input or mute state")
	// ErrCaptureUnavailable indicates no capture device is wired.
	ErrCaptureUnavailable = errors.New("capture source not configured")
)

// CaptureSink receives the outcome of one capture session.
//
// Final fires at most once with the single best transcript. Ended always fires
// eventually after Begin, and only drives the capturing indicator.
type CaptureSink interface {
	Final(transcript string)
	Error(err error)
	Ended()
}

// CaptureSource abstracts a locale-tagged audio-to-text device.
//
// End stops only the capture begun with ctx; ending a capture that already
// finished or was superseded by a later Begin is a no-op.
type CaptureSource interface {
	Begin(ctx context.Context, lang language.Code, sink CaptureSink) error
	End(ctx context.Context)
}

// Converter is the remote conversion service.
type Converter interface {
	Translate(ctx context.Context, text string, source language.Code) (string, error)
	Classify(ctx context.Context, text string) (conversion.Result, error)
}

// UnavailableCapture is the fallback used when no capture device is wired.
type UnavailableCapture struct{}

func (UnavailableCapture) Begin(context.Context, language.Code, CaptureSink) error {
	return ErrCaptureUnavailable
}

func (UnavailableCapture) End(context.Context) {}
