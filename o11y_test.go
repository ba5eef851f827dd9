// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package o11y

import (
	"context"
	"errors"
	"testing"

	"github.com/z5labs/genai-o11y/config"
	"github.com/z5labs/genai-o11y/internal/try"

	"github.com/stretchr/testify/assert"
)

type sourceFunc func(config.Store) error

func (f sourceFunc) Apply(store config.Store) error {
	return f(store)
}

func TestRun(t *testing.T) {
	t.Run("will return a ConfigReadError", func(t *testing.T) {
		t.Run("if a config source fails", func(t *testing.T) {
			srcErr := errors.New("failed to read")
			build := AppBuilderFunc[Config](func(ctx context.Context, cfg Config) (App, error) {
				return nil, nil
			})

			err := Run(context.Background(), build, sourceFunc(func(config.Store) error {
				return srcErr
			}))

			var rerr ConfigReadError
			if !assert.ErrorAs(t, err, &rerr) {
				return
			}
			assert.ErrorIs(t, err, srcErr)
		})
	})

	t.Run("will return a ConfigUnmarshalError", func(t *testing.T) {
		t.Run("if the config does not fit the type", func(t *testing.T) {
			build := AppBuilderFunc[Config](func(ctx context.Context, cfg Config) (App, error) {
				return nil, nil
			})

			err := Run(context.Background(), build, config.Map{
				"media": map[string]any{"maxConcurrentUploads": "lots"},
			})

			var uerr ConfigUnmarshalError
			assert.ErrorAs(t, err, &uerr)
		})
	})

	t.Run("will return an AppBuildError", func(t *testing.T) {
		t.Run("if the builder fails", func(t *testing.T) {
			buildErr := errors.New("failed to build")
			build := AppBuilderFunc[Config](func(ctx context.Context, cfg Config) (App, error) {
				return nil, buildErr
			})

			err := Run(context.Background(), build)

			var berr AppBuildError
			if !assert.ErrorAs(t, err, &berr) {
				return
			}
			assert.ErrorIs(t, err, buildErr)
		})
	})

	t.Run("will return an AppRunError", func(t *testing.T) {
		t.Run("if the app fails", func(t *testing.T) {
			runErr := errors.New("failed to run")
			build := AppBuilderFunc[Config](func(ctx context.Context, cfg Config) (App, error) {
				return AppFunc(func(context.Context) error {
					return runErr
				}), nil
			})

			err := Run(context.Background(), build)

			var aerr AppRunError
			if !assert.ErrorAs(t, err, &aerr) {
				return
			}
			assert.ErrorIs(t, err, runErr)
		})
	})

	t.Run("will pass the merged config to the builder", func(t *testing.T) {
		var got Config
		build := AppBuilderFunc[Config](func(ctx context.Context, cfg Config) (App, error) {
			got = cfg
			return AppFunc(func(context.Context) error { return nil }), nil
		})

		err := Run(context.Background(), build, config.Map{
			"logging": map[string]any{"projectId": "from-override"},
		})
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "from-override", got.Logging.ProjectID)
		assert.Equal(t, "otlpgenai", got.Logging.LogID)
	})
}

func TestRecoverPanics(t *testing.T) {
	t.Run("will return a PanicError", func(t *testing.T) {
		t.Run("if the app panics", func(t *testing.T) {
			app := RecoverPanics(AppFunc(func(context.Context) error {
				panic("boom")
			}))

			err := app.Run(context.Background())

			var perr try.PanicError
			if !assert.ErrorAs(t, err, &perr) {
				return
			}
			assert.Equal(t, "boom", perr.Value)
		})
	})
}

func TestNotifyOnSignal(t *testing.T) {
	t.Run("will cancel the app context", func(t *testing.T) {
		t.Run("if the parent context is cancelled", func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			app := NotifyOnSignal(AppFunc(func(ctx context.Context) error {
				cancel()
				<-ctx.Done()
				return ctx.Err()
			}))

			err := app.Run(ctx)
			assert.ErrorIs(t, err, context.Canceled)
		})
	})
}
