// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package o11y

import (
	"bytes"
	_ "embed"
	"io"
	"log/slog"
	"os"

	"github.com/z5labs/genai-o11y/config"
	"github.com/z5labs/genai-o11y/media"
)

//go:embed default_config.yaml
var defaultConfig []byte

// Config describes every component this module can build.
type Config struct {
	Media     MediaConfig     `config:"media"`
	Logging   LoggingConfig   `config:"logging"`
	Telemetry TelemetryConfig `config:"telemetry"`
	Log       LogConfig       `config:"log"`
}

// MediaConfig configures the media uploader.
type MediaConfig struct {
	media.Config `config:",squash"`

	// EmulatorURL sends storage requests to a Cloud Storage emulator.
	EmulatorURL string `config:"emulatorURL"`
}

// LoggingConfig configures the Cloud Logging exporter.
type LoggingConfig struct {
	ProjectID             string `config:"projectId"`
	InsertIDHashAlgorithm string `config:"insertIdHashAlgorithm"`
	LogID                 string `config:"logId"`
}

// TelemetryConfig selects where spans and logs are exported.
type TelemetryConfig struct {
	ServiceName string `config:"serviceName"`

	// Exporter is one of "gcp", "local" or "none".
	Exporter string `config:"exporter"`
}

// LogConfig configures the module's own diagnostic logs.
type LogConfig struct {
	Level slog.Level `config:"level"`
}

// ConfigSource renders r as a text template, with the env and default
// functions available, and parses the result as YAML.
func ConfigSource(r io.Reader) config.Source {
	return config.FromYaml(
		config.RenderTextTemplate(
			r,
			config.TemplateFunc("env", os.Getenv),
			config.TemplateFunc("default", func(def any, s string) any {
				if len(s) == 0 {
					return def
				}
				return s
			}),
		),
	)
}

// DefaultConfig is the embedded default config. Most values can be set
// with environment variables.
func DefaultConfig() config.Source {
	return ConfigSource(bytes.NewReader(defaultConfig))
}

// Load reads the default config followed by srcs. Later sources override
// earlier ones.
func Load(srcs ...config.Source) (Config, error) {
	var cfg Config
	m, err := config.Read(append([]config.Source{DefaultConfig()}, srcs...)...)
	if err != nil {
		return cfg, ConfigReadError{Cause: err}
	}

	err = m.Unmarshal(&cfg)
	if err != nil {
		return cfg, ConfigUnmarshalError{Cause: err}
	}
	return cfg, nil
}
