package remote

import "github.com/rbright/signflow/internal/config"

// FromConfig maps the remote section of config.jsonc onto a client Config.
func FromConfig(rc config.RemoteConfig) Config {
	return Config{
		Transport:      rc.Transport,
		BaseURL:        rc.BaseURL,
		GRPCEndpoint:   rc.GRPC,
		TranslatePath:  rc.TranslatePath,
		ClassifyPath:   rc.ClassifyPath,
		TranscribePath: rc.TranscribePath,
		HealthPath:     rc.HealthPath,
		Timeout:        rc.Timeout(),
	}
}
