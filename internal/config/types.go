// Package config resolves, parses, validates, and defaults signflow configuration.
package config

import (
	"time"

	"github.com/rbright/signflow/internal/language"
)

// Config is the fully materialized runtime configuration.
type Config struct {
	Language  language.Code
	Remote    RemoteConfig
	Audio     AudioConfig
	Server    ServerConfig
	Indicator IndicatorConfig
	History   HistoryConfig
	Log       LogConfig
}

// RemoteConfig selects the conversion service transport and its endpoints.
type RemoteConfig struct {
	Transport      string
	BaseURL        string
	GRPC           string
	TranslatePath  string
	ClassifyPath   string
	TranscribePath string
	HealthPath     string
	TimeoutMS      int
}

// Timeout returns the per-request deadline.
func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

// AudioConfig controls input selection and clip bounds.
type AudioConfig struct {
	Input        string
	Fallback     string
	MaxSeconds   int
	SilenceLevel float64
}

// MaxDuration returns the longest clip recorded per utterance.
func (a AudioConfig) MaxDuration() time.Duration {
	return time.Duration(a.MaxSeconds) * time.Second
}

// ServerConfig controls the websocket presentation surface.
type ServerConfig struct {
	EnableWebsocket   bool
	Websocket         string
	CommandsPerSecond float64
}

// IndicatorConfig controls audio cues.
type IndicatorConfig struct {
	SoundEnable bool
}

// HistoryConfig controls the finished-run store.
type HistoryConfig struct {
	Enable bool
	Path   string
	Limit  int
}

// LogConfig controls the JSONL logger.
type LogConfig struct {
	Level string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
