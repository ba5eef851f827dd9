// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package o11y

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/z5labs/genai-o11y/logging"
	"github.com/z5labs/genai-o11y/media"
	"github.com/z5labs/genai-o11y/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestConfig_TelemetryInitializer(t *testing.T) {
	t.Run("will select an initializer by name", func(t *testing.T) {
		testCases := []struct {
			Exporter string
			Expected any
		}{
			{Exporter: "gcp", Expected: telemetry.GoogleCloudConfig{}},
			{Exporter: "Local", Expected: telemetry.LocalConfig{}},
			{Exporter: "", Expected: telemetry.LocalConfig{}},
			{Exporter: "none", Expected: telemetry.Noop},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Exporter, func(t *testing.T) {
				var cfg Config
				cfg.Telemetry.Exporter = testCase.Exporter

				initializer, err := cfg.TelemetryInitializer(&bytes.Buffer{}, logging.DiscardHandler{})
				require.NoError(t, err)
				assert.IsType(t, testCase.Expected, initializer)
			})
		}
	})

	t.Run("will return an UnknownExporterError", func(t *testing.T) {
		t.Run("if the exporter name is not supported", func(t *testing.T) {
			var cfg Config
			cfg.Telemetry.Exporter = "zipkin"

			_, err := cfg.TelemetryInitializer(&bytes.Buffer{}, logging.DiscardHandler{})

			var uerr UnknownExporterError
			if !assert.ErrorAs(t, err, &uerr) {
				return
			}
			assert.Equal(t, "zipkin", uerr.Exporter)
		})
	})
}

func TestNewUploader(t *testing.T) {
	t.Run("will return the noop uploader", func(t *testing.T) {
		t.Run("if media upload is disabled", func(t *testing.T) {
			var cfg Config
			cfg.Media.NullURI = "/dev/null"

			u, err := NewUploader(context.Background(), cfg)
			require.NoError(t, err)

			uri, err := u.Upload(context.Background(), "t", "s", "img.png", "aGVsbG8=")
			require.NoError(t, err)
			assert.Equal(t, "/dev/null", uri)
			assert.NoError(t, u.Close(context.Background()))
		})
	})

	t.Run("will return a config error", func(t *testing.T) {
		t.Run("if media upload is enabled with an invalid prefix", func(t *testing.T) {
			var cfg Config
			cfg.Media.Enabled = true
			cfg.Media.URIPrefix = "gs://bucket/"

			u, err := NewUploader(context.Background(), cfg)
			assert.Nil(t, u)
			assert.ErrorIs(t, err, media.ErrURIPrefixTrailingSlash)
		})
	})
}

func TestConfig_LogHandler(t *testing.T) {
	t.Run("will add trace correlation fields", func(t *testing.T) {
		t.Run("if the context carries a span", func(t *testing.T) {
			var cfg Config
			cfg.Logging.ProjectID = "my-project"
			cfg.Log.Level = slog.LevelInfo

			var buf bytes.Buffer
			log := slog.New(cfg.LogHandler(&buf))

			ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
				TraceID: trace.TraceID{1},
				SpanID:  trace.SpanID{1},
			}))
			log.InfoContext(ctx, "hello")
			log.DebugContext(ctx, "dropped")

			var record map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
			assert.Equal(t, "hello", record["msg"])
			assert.Equal(t, "projects/my-project/traces/01000000000000000000000000000000", record[logging.TraceKey])
		})
	})
}
