// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/z5labs/genai-o11y"
	"github.com/z5labs/genai-o11y/config"

	"github.com/spf13/cobra"
)

type command struct {
	configPath string
	exporter   string
	out        io.Writer
	errOut     io.Writer
}

// env is what every sub command runs with once config and telemetry are ready.
type env struct {
	cfg     o11y.Config
	handler slog.Handler
	log     *slog.Logger
	out     io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &command{
		out:    out,
		errOut: errOut,
	}

	cmd := &cobra.Command{
		Use:           "genai-o11y",
		Short:         "Google Cloud observability helpers for GenAI workloads",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file, rendered as a template before parsing")
	cmd.PersistentFlags().StringVar(&c.exporter, "telemetry", "", "telemetry exporter: gcp, local or none")

	cmd.AddCommand(
		newUploadCmd(c),
		newTranslateCmd(c),
	)
	return cmd
}

// run loads config, installs telemetry and runs f. Telemetry is always
// shut down before run returns.
func (c *command) run(ctx context.Context, overrides config.Map, f func(context.Context, *env) error) error {
	var srcs []config.Source
	if c.configPath != "" {
		file, err := os.Open(c.configPath)
		if err != nil {
			return err
		}
		defer file.Close()

		srcs = append(srcs, o11y.ConfigSource(file))
	}
	if c.exporter != "" {
		srcs = append(srcs, config.Map{"telemetry": map[string]any{"exporter": c.exporter}})
	}
	if len(overrides) > 0 {
		srcs = append(srcs, overrides)
	}

	builder := o11y.AppBuilderFunc[o11y.Config](func(ctx context.Context, cfg o11y.Config) (o11y.App, error) {
		handler := cfg.LogHandler(c.errOut)

		initializer, err := cfg.TelemetryInitializer(c.errOut, handler)
		if err != nil {
			return nil, err
		}
		providers, err := initializer.Init(ctx)
		if err != nil {
			return nil, err
		}
		providers.Install()

		e := &env{
			cfg:     cfg,
			handler: handler,
			log:     slog.New(handler),
			out:     c.out,
		}
		app := o11y.AppFunc(func(ctx context.Context) (err error) {
			defer func() {
				err = errors.Join(err, providers.Shutdown(context.WithoutCancel(ctx)))
			}()

			return f(ctx, e)
		})
		return o11y.RecoverPanics(app), nil
	})

	return o11y.Run(ctx, builder, srcs...)
}
