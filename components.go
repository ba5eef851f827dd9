// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package o11y

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/z5labs/genai-o11y/logging"
	"github.com/z5labs/genai-o11y/media"
	"github.com/z5labs/genai-o11y/media/gcs"
	"github.com/z5labs/genai-o11y/telemetry"
)

// LogHandler returns a JSON slog.Handler writing to w at the configured
// level, with Cloud Logging trace correlation fields added.
func (cfg Config) LogHandler(w io.Writer) slog.Handler {
	return logging.NewHandler(
		slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource: true,
			Level:     cfg.Log.Level,
		}),
		logging.Project(cfg.Logging.ProjectID),
	)
}

// UnknownExporterError is returned for an unsupported telemetry exporter name.
type UnknownExporterError struct {
	Exporter string
}

// Error implements the [builtin.error] interface.
func (e UnknownExporterError) Error() string {
	return fmt.Sprintf("unknown telemetry exporter %q, expected gcp, local or none", e.Exporter)
}

// TelemetryInitializer selects a [telemetry.Initializer]. Local output is
// written to w.
func (cfg Config) TelemetryInitializer(w io.Writer, logHandler slog.Handler) (telemetry.Initializer, error) {
	switch strings.ToLower(cfg.Telemetry.Exporter) {
	case "gcp", "google", "googlecloud":
		return telemetry.GoogleCloud(
			telemetry.ServiceName(cfg.Telemetry.ServiceName),
			telemetry.GoogleCloudProjectID(cfg.Logging.ProjectID),
			telemetry.LogID(cfg.Logging.LogID),
			telemetry.InsertIDHashAlgorithm(cfg.Logging.InsertIDHashAlgorithm),
			telemetry.GoogleCloudLogHandler(logHandler),
		), nil
	case "local", "":
		return telemetry.Local(
			telemetry.ServiceName(cfg.Telemetry.ServiceName),
			telemetry.LocalWriter(w),
		), nil
	case "none", "noop":
		return telemetry.Noop, nil
	default:
		return nil, UnknownExporterError{Exporter: cfg.Telemetry.Exporter}
	}
}

// Uploader is a [media.Uploader] which must be closed to flush pending uploads.
type Uploader interface {
	media.Uploader

	Close(context.Context) error
}

// NewUploader builds the configured [media.Uploader]. When uploads are
// enabled a Cloud Storage client is created and closed along with the
// returned Uploader.
func NewUploader(ctx context.Context, cfg Config, opts ...media.UploaderOption) (Uploader, error) {
	if !cfg.Media.Enabled {
		u, err := media.NewUploader(cfg.Media.Config, nil, opts...)
		if err != nil {
			return nil, err
		}
		return u.(*media.NoopUploader), nil
	}

	// validate before dialing storage
	_, err := media.NewAllocator(cfg.Media.URIPrefix)
	if err != nil {
		return nil, err
	}

	var clientOpts []gcs.ClientOption
	if cfg.Media.EmulatorURL != "" {
		clientOpts = append(clientOpts, gcs.EmulatorURL(cfg.Media.EmulatorURL))
	}
	client, err := gcs.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, err
	}

	u, err := media.NewUploader(cfg.Media.Config, gcs.NewStore(client), opts...)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &gcsUploader{StoreUploader: u.(*media.StoreUploader), close: client.Close}, nil
}

type gcsUploader struct {
	*media.StoreUploader

	close func() error
}

func (u *gcsUploader) Close(ctx context.Context) error {
	return errors.Join(u.StoreUploader.Close(ctx), u.close())
}
