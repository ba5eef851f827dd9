// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/z5labs/genai-o11y/config/key"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sourceFunc func(Store) error

func (f sourceFunc) Apply(store Store) error {
	return f(store)
}

type testConfig struct {
	Media struct {
		Enabled   bool          `config:"enabled"`
		URIPrefix string        `config:"uriPrefix"`
		Timeout   time.Duration `config:"timeout"`
	} `config:"media"`
	Workers int `config:"workers"`
}

func TestRead(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if a source fails to apply", func(t *testing.T) {
			applyErr := errors.New("failed to apply")

			_, err := Read(
				Map{"workers": 1},
				sourceFunc(func(Store) error { return applyErr }),
			)

			var serr SourceError
			if !assert.ErrorAs(t, err, &serr) {
				return
			}
			if !assert.Equal(t, 1, serr.Index) {
				return
			}
			if !assert.ErrorIs(t, err, applyErr) {
				return
			}
		})

		t.Run("if the yaml source is invalid", func(t *testing.T) {
			_, err := Read(FromYaml(strings.NewReader("media: [")))

			var yerr InvalidYamlError
			assert.ErrorAs(t, err, &yerr)
		})

		t.Run("if a nested key is set under a scalar value", func(t *testing.T) {
			_, err := Read(
				Map{"media": "scalar"},
				sourceFunc(func(s Store) error {
					return s.Set(key.Chain{key.Name("media"), key.Name("enabled")}, true)
				}),
			)

			var uerr UnexpectedKeyValueTypeError
			if !assert.ErrorAs(t, err, &uerr) {
				return
			}
			assert.Equal(t, "media", uerr.Key)
		})
	})

	t.Run("will override earlier sources", func(t *testing.T) {
		t.Run("if a later source sets the same key", func(t *testing.T) {
			m, err := Read(
				FromYaml(strings.NewReader("media:\n  enabled: false\n  uriPrefix: gs://a\nworkers: 2\n")),
				Map{"media": map[string]any{"enabled": true}},
			)
			require.NoError(t, err)

			var cfg testConfig
			require.NoError(t, m.Unmarshal(&cfg))

			assert.True(t, cfg.Media.Enabled)
			assert.Equal(t, "gs://a", cfg.Media.URIPrefix)
			assert.Equal(t, 2, cfg.Workers)
		})
	})
}

func TestManager_Unmarshal(t *testing.T) {
	t.Run("will coerce values", func(t *testing.T) {
		t.Run("if they are strings rendered from a template", func(t *testing.T) {
			tmpl := `media:
  enabled: {{ env "ENABLED" }}
  timeout: {{ env "TIMEOUT" }}
workers: "{{ env "WORKERS" }}"
`
			env := map[string]string{
				"ENABLED": "true",
				"TIMEOUT": "5s",
				"WORKERS": "4",
			}
			r := RenderTextTemplate(
				strings.NewReader(tmpl),
				TemplateFunc("env", func(k string) string { return env[k] }),
			)

			m, err := Read(FromYaml(r))
			require.NoError(t, err)

			var cfg testConfig
			require.NoError(t, m.Unmarshal(&cfg))

			assert.True(t, cfg.Media.Enabled)
			assert.Equal(t, 5*time.Second, cfg.Media.Timeout)
			assert.Equal(t, 4, cfg.Workers)
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if a duration can not be parsed", func(t *testing.T) {
			m, err := Read(Map{"media": map[string]any{"timeout": "soon"}})
			require.NoError(t, err)

			var cfg testConfig
			err = m.Unmarshal(&cfg)

			var cerr TypeCoercionError
			assert.ErrorAs(t, err, &cerr)
		})
	})
}

func TestTextTemplateRenderer_Read(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the template can not be parsed", func(t *testing.T) {
			r := RenderTextTemplate(strings.NewReader("{{ env "))

			_, err := r.Read(make([]byte, 8))

			var perr TextTemplateParseError
			assert.ErrorAs(t, err, &perr)
		})

		t.Run("if a template function fails", func(t *testing.T) {
			fnErr := errors.New("boom")
			r := RenderTextTemplate(
				strings.NewReader(`{{ fail }}`),
				TemplateFunc("fail", func() (string, error) { return "", fnErr }),
			)

			_, err := r.Read(make([]byte, 8))

			var eerr TextTemplateExecError
			if !assert.ErrorAs(t, err, &eerr) {
				return
			}
			assert.ErrorIs(t, err, fnErr)
		})
	})
}
