// Package remote talks to the conversion service over HTTP or gRPC.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/signflow/internal/conversion"
	"github.com/rbright/signflow/internal/language"
)

var (
	// ErrTranslation wraps every failure of the translate step.
	ErrTranslation = errors.New("translation failed")
	// ErrConversion wraps every failure of the classify step.
	ErrConversion = errors.New("conversion failed")
	// ErrTranscription wraps every failure of the transcribe step.
	ErrTranscription = errors.New("transcription failed")
	// ErrUnavailable reports a failed readiness probe.
	ErrUnavailable = errors.New("conversion service unavailable")
)

const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

const defaultTimeout = 30 * time.Second

// Config selects and parameterizes one transport.
type Config struct {
	Transport      string
	BaseURL        string
	GRPCEndpoint   string
	TranslatePath  string
	ClassifyPath   string
	TranscribePath string
	HealthPath     string
	Timeout        time.Duration
}

// Client is the full remote surface: the two pipeline steps, transcription
// of captured audio, and a readiness probe.
type Client interface {
	Translate(ctx context.Context, text string, source language.Code) (string, error)
	Classify(ctx context.Context, text string) (conversion.Result, error)
	Transcribe(ctx context.Context, wav []byte, lang language.Code) (string, error)
	Ready(ctx context.Context) error
	Close() error
}

// New returns the client for cfg.Transport.
func New(cfg Config, logger *slog.Logger) (Client, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Transport)) {
	case "", TransportHTTP:
		return NewHTTPClient(cfg, logger)
	case TransportGRPC:
		return NewGRPCClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported remote transport %q", cfg.Transport)
	}
}

// Endpoint renders the address a client of cfg talks to.
func (cfg Config) Endpoint() string {
	if strings.EqualFold(strings.TrimSpace(cfg.Transport), TransportGRPC) {
		return cfg.GRPCEndpoint
	}
	return cfg.BaseURL
}

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

type classifyRequest struct {
	Text string `json:"text"`
}

// classifyResponse is the /convert_speech payload. isl_text carries the sign
// grammar; emotion, confidence, and video_url are optional.
type classifyResponse struct {
	OriginalText string   `json:"original_text"`
	ISLText      string   `json:"isl_text"`
	Emotion      string   `json:"emotion"`
	Confidence   *float64 `json:"confidence"`
	VideoURL     string   `json:"video_url"`
}

type transcribeResponse struct {
	Text string `json:"text"`
}

func (r classifyResponse) result() (conversion.Result, error) {
	grammar := strings.Join(strings.Fields(r.ISLText), " ")
	if grammar == "" {
		return conversion.Result{}, fmt.Errorf("%w: response missing isl_text", ErrConversion)
	}

	result := conversion.Result{
		GrammarText: grammar,
		Emotion:     conversion.ParseEmotion(r.Emotion),
		VideoRef:    strings.TrimSpace(r.VideoURL),
	}
	if r.Confidence != nil {
		result.Confidence = *r.Confidence
	}
	if err := result.Validate(); err != nil {
		return conversion.Result{}, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	return result, nil
}

func decodeJSON(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
