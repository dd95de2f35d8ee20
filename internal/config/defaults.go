package config

import "github.com/rbright/signflow/internal/language"

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Language: language.Pivot,
		Remote: RemoteConfig{
			Transport:      "http",
			BaseURL:        "http://127.0.0.1:8000",
			GRPC:           "127.0.0.1:50061",
			TranslatePath:  "/translate",
			ClassifyPath:   "/convert_speech",
			TranscribePath: "/transcribe",
			HealthPath:     "/health",
			TimeoutMS:      30000,
		},
		Audio: AudioConfig{
			Input:        "default",
			Fallback:     "default",
			MaxSeconds:   8,
			SilenceLevel: 0.002,
		},
		Server: ServerConfig{
			EnableWebsocket:   true,
			Websocket:         "127.0.0.1:8765",
			CommandsPerSecond: 5,
		},
		Indicator: IndicatorConfig{SoundEnable: true},
		History: HistoryConfig{
			Enable: true,
			Limit:  20,
		},
		Log: LogConfig{Level: "info"},
	}
}
