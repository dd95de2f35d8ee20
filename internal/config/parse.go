package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rbright/signflow/internal/language"
)

// fileConfig mirrors config.jsonc. Pointer fields distinguish "absent" from
// zero so a partial file only overrides what it names.
type fileConfig struct {
	Language  *string        `json:"language"`
	Remote    *fileRemote    `json:"remote"`
	Audio     *fileAudio     `json:"audio"`
	Server    *fileServer    `json:"server"`
	Indicator *fileIndicator `json:"indicator"`
	History   *fileHistory   `json:"history"`
	Log       *fileLog       `json:"log"`
}

type fileRemote struct {
	Transport      *string `json:"transport"`
	BaseURL        *string `json:"base_url"`
	GRPC           *string `json:"grpc"`
	TranslatePath  *string `json:"translate_path"`
	ClassifyPath   *string `json:"classify_path"`
	TranscribePath *string `json:"transcribe_path"`
	HealthPath     *string `json:"health_path"`
	TimeoutMS      *int    `json:"timeout_ms"`
}

type fileAudio struct {
	Input        *string  `json:"input"`
	Fallback     *string  `json:"fallback"`
	MaxSeconds   *int     `json:"max_seconds"`
	SilenceLevel *float64 `json:"silence_level"`
}

type fileServer struct {
	EnableWebsocket   *bool    `json:"enable_websocket"`
	Websocket         *string  `json:"websocket"`
	CommandsPerSecond *float64 `json:"commands_per_second"`
}

type fileIndicator struct {
	SoundEnable *bool `json:"sound_enable"`
}

type fileHistory struct {
	Enable *bool   `json:"enable"`
	Path   *string `json:"path"`
	Limit  *int    `json:"limit"`
}

type fileLog struct {
	Level *string `json:"level"`
}

// Parse decodes JSONC content over base and validates the result. Blank
// content yields base unchanged.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}

	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload fileConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, locate(normalized, decoder.InputOffset(), err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, locate(normalized, decoder.InputOffset(), err)
	}

	cfg := base
	if err := payload.apply(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (p fileConfig) apply(cfg *Config) error {
	if p.Language != nil {
		code, err := language.Parse(*p.Language)
		if err != nil {
			return fmt.Errorf("language: %w", err)
		}
		cfg.Language = code
	}

	if r := p.Remote; r != nil {
		setString(&cfg.Remote.Transport, r.Transport)
		setString(&cfg.Remote.BaseURL, r.BaseURL)
		setString(&cfg.Remote.GRPC, r.GRPC)
		setString(&cfg.Remote.TranslatePath, r.TranslatePath)
		setString(&cfg.Remote.ClassifyPath, r.ClassifyPath)
		setString(&cfg.Remote.TranscribePath, r.TranscribePath)
		setString(&cfg.Remote.HealthPath, r.HealthPath)
		set(&cfg.Remote.TimeoutMS, r.TimeoutMS)
		cfg.Remote.Transport = strings.ToLower(cfg.Remote.Transport)
	}

	if a := p.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
		set(&cfg.Audio.MaxSeconds, a.MaxSeconds)
		set(&cfg.Audio.SilenceLevel, a.SilenceLevel)
	}

	if s := p.Server; s != nil {
		set(&cfg.Server.EnableWebsocket, s.EnableWebsocket)
		setString(&cfg.Server.Websocket, s.Websocket)
		set(&cfg.Server.CommandsPerSecond, s.CommandsPerSecond)
	}

	if p.Indicator != nil {
		set(&cfg.Indicator.SoundEnable, p.Indicator.SoundEnable)
	}

	if h := p.History; h != nil {
		set(&cfg.History.Enable, h.Enable)
		setString(&cfg.History.Path, h.Path)
		set(&cfg.History.Limit, h.Limit)
	}

	if p.Log != nil {
		setString(&cfg.Log.Level, p.Log.Level)
		cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	}
	return nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra json.RawMessage
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return errors.New("multiple JSON values are not allowed")
	}
	return err
}

// locate prefixes err with the line and column it refers to. Syntax and type
// errors carry their own offset; anything else (unknown fields) uses where
// the decoder stopped.
func locate(content string, fallback int64, err error) error {
	offset := fallback

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	}

	line, col := offsetToLineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}
