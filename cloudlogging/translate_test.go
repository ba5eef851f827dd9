// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cloudlogging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/trace"
	ltype "google.golang.org/genproto/googleapis/logging/type"
)

func TestNewTranslator(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the project is empty", func(t *testing.T) {
			tr, err := NewTranslator("")
			if !assert.Nil(t, tr) {
				return
			}
			assert.ErrorIs(t, err, ErrEmptyProject)
		})
	})
}

func TestTranslator_Translate(t *testing.T) {
	t.Run("will populate every log entry field", func(t *testing.T) {
		tr, err := NewTranslator("default-project")
		require.NoError(t, err)

		v := testView()
		v.Record.SeverityNumber = log.SeverityWarn
		v.Record.SeverityText = "WARN"
		v.Record.TraceFlags = trace.FlagsSampled
		v.Record.Body = "hello"

		entry, err := tr.Translate(v)
		require.NoError(t, err)

		assert.Equal(t, "projects/my-project/logs/otlpgenai", entry.GetLogName())
		assert.Equal(t, map[string]string{"provenance": Provenance}, entry.GetLabels())
		assert.Equal(t, "1ad762a74995da09488b23652a992600f09e4ec5", entry.GetInsertId())
		assert.Equal(t, ltype.LogSeverity_WARNING, entry.GetSeverity())
		assert.Equal(t, v.Record.Timestamp.UTC(), entry.GetTimestamp().AsTime())
		assert.Equal(t, "global", entry.GetResource().GetType())
		assert.Equal(t, map[string]string{"project_id": "my-project"}, entry.GetResource().GetLabels())
		assert.Equal(t, "projects/my-project/traces/0102030405060708090a0b0c0d0e0f10", entry.GetTrace())
		assert.Equal(t, "0102030405060708", entry.GetSpanId())
		assert.True(t, entry.GetTraceSampled())
	})

	t.Run("will use the translator project", func(t *testing.T) {
		t.Run("if the view has none", func(t *testing.T) {
			tr, err := NewTranslator("default-project", LogID("custom"))
			require.NoError(t, err)

			v := testView()
			v.Project = ""

			entry, err := tr.Translate(v)
			require.NoError(t, err)
			assert.Equal(t, "projects/default-project/logs/custom", entry.GetLogName())
			assert.Equal(t, "projects/default-project/traces/0102030405060708090a0b0c0d0e0f10", entry.GetTrace())
		})
	})

	t.Run("will leave trace fields empty", func(t *testing.T) {
		t.Run("if the record has no span context", func(t *testing.T) {
			tr, err := NewTranslator("p")
			require.NoError(t, err)

			entry, err := tr.Translate(View{Record: Record{Body: "no trace"}})
			require.NoError(t, err)
			assert.Empty(t, entry.GetTrace())
			assert.Empty(t, entry.GetSpanId())
			assert.False(t, entry.GetTraceSampled())
			assert.Nil(t, entry.GetTimestamp())
			assert.Equal(t, ltype.LogSeverity_DEFAULT, entry.GetSeverity())
		})
	})

	t.Run("will fall back to the observed timestamp", func(t *testing.T) {
		t.Run("if the record has no timestamp", func(t *testing.T) {
			tr, err := NewTranslator("p")
			require.NoError(t, err)

			observed := time.Unix(1700000000, 5)
			entry, err := tr.Translate(View{Record: Record{ObservedTimestamp: observed}})
			require.NoError(t, err)
			assert.Equal(t, observed.UTC(), entry.GetTimestamp().AsTime())
		})
	})

	t.Run("will keep the provenance label", func(t *testing.T) {
		t.Run("if custom labels try to override it", func(t *testing.T) {
			tr, err := NewTranslator("p", WithLabels(map[string]string{"provenance": "other", "env": "test"}))
			require.NoError(t, err)

			entry, err := tr.Translate(testView())
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"provenance": Provenance, "env": "test"}, entry.GetLabels())
		})
	})

	t.Run("will embed the record as an otlp json payload", func(t *testing.T) {
		tr, err := NewTranslator("p")
		require.NoError(t, err)

		v := testView()
		v.Resource.SchemaURL = "https://opentelemetry.io/schemas/1.26.0"
		v.Scope = Scope{Name: "genai", Version: "1.0.0"}
		v.Record.SeverityNumber = log.SeverityInfo
		v.Record.SeverityText = "INFO"
		v.Record.Body = map[string]any{"content": "hi", "parts": []any{"a", int64(2)}}

		entry, err := tr.Translate(v)
		require.NoError(t, err)

		payload := entry.GetJsonPayload().AsMap()
		v1 := payload["otlp"].(map[string]any)["v1"].(map[string]any)

		assert.Equal(t, map[string]any{
			"attributes": map[string]any{"service.name": "svc"},
			"schemaUrl":  "https://opentelemetry.io/schemas/1.26.0",
		}, v1["resource"])
		assert.Equal(t, map[string]any{
			"name":       "genai",
			"version":    "1.0.0",
			"schemaUrl":  "",
			"attributes": map[string]any{},
		}, v1["instrumentationScope"])

		record := v1["log"].(map[string]any)
		assert.Equal(t, "1700000000000000000", record["timeUnixNano"])
		assert.Equal(t, "0", record["observedTimeUnixNano"])
		assert.Equal(t, float64(9), record["severityNumber"])
		assert.Equal(t, "INFO", record["severityText"])
		assert.Equal(t, map[string]any{"content": "hi", "parts": []any{"a", float64(2)}}, record["body"])
		assert.Equal(t, map[string]any{"event.name": "gen_ai.user.message", "a": float64(1), "b": "x"}, record["attributes"])
		assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["traceId"])
		assert.Equal(t, "0102030405060708", record["spanId"])
		assert.Equal(t, float64(0), record["flags"])
	})

	t.Run("will return a payload error", func(t *testing.T) {
		t.Run("if the body is not valid utf-8", func(t *testing.T) {
			tr, err := NewTranslator("p")
			require.NoError(t, err)

			entry, err := tr.Translate(View{Record: Record{Body: "\xff\xfe"}})
			if !assert.Nil(t, entry) {
				return
			}

			var perr PayloadError
			if !assert.ErrorAs(t, err, &perr) {
				return
			}
			assert.Equal(t, "body", perr.Field)
		})

		t.Run("if an attribute has an unsupported type", func(t *testing.T) {
			tr, err := NewTranslator("p")
			require.NoError(t, err)

			_, err = tr.Translate(View{Record: Record{Attributes: map[string]any{"ch": make(chan int)}}})

			var perr PayloadError
			if !assert.ErrorAs(t, err, &perr) {
				return
			}
			assert.Equal(t, "attributes", perr.Field)
		})
	})
}
