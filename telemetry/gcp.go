// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package telemetry

import (
	"context"
	"errors"
	"log/slog"

	"github.com/z5labs/genai-o11y/cloudlogging"
	"github.com/z5labs/genai-o11y/logging"

	mexporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/metric"
	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"go.opentelemetry.io/contrib/detectors/gcp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/api/option"
)

var ErrMissingProjectID = errors.New("google cloud project id is required")

// GoogleCloudConfig is the config for the Google Cloud Initializer.
type GoogleCloudConfig struct {
	Common

	ProjectID             string `config:"projectId"`
	LogID                 string `config:"logId"`
	InsertIDHashAlgorithm string `config:"insertIdHashAlgorithm"`

	// Writer replaces the Cloud Logging client, mostly for tests.
	Writer        cloudlogging.Writer
	ClientOptions []option.ClientOption
	LogHandler    slog.Handler
}

// GoogleCloudOption are options for the Google Cloud Initializer.
type GoogleCloudOption interface {
	ApplyGCP(*GoogleCloudConfig)
}

type gcpOptionFunc func(*GoogleCloudConfig)

func (f gcpOptionFunc) ApplyGCP(cfg *GoogleCloudConfig) {
	f(cfg)
}

// GoogleCloudProjectID configures the Google Cloud project traces and logs
// are written to.
func GoogleCloudProjectID(id string) GoogleCloudOption {
	return gcpOptionFunc(func(gcc *GoogleCloudConfig) {
		gcc.ProjectID = id
	})
}

// LogID overrides the Cloud Logging log id.
func LogID(id string) GoogleCloudOption {
	return gcpOptionFunc(func(gcc *GoogleCloudConfig) {
		gcc.LogID = id
	})
}

// InsertIDHashAlgorithm selects the digest used for log entry insert ids.
func InsertIDHashAlgorithm(name string) GoogleCloudOption {
	return gcpOptionFunc(func(gcc *GoogleCloudConfig) {
		gcc.InsertIDHashAlgorithm = name
	})
}

// LoggingWriter replaces the Cloud Logging client.
func LoggingWriter(w cloudlogging.Writer) GoogleCloudOption {
	return gcpOptionFunc(func(gcc *GoogleCloudConfig) {
		gcc.Writer = w
	})
}

// GoogleClientOptions are passed to the Cloud Trace, Cloud Monitoring and
// Cloud Logging clients.
func GoogleClientOptions(opts ...option.ClientOption) GoogleCloudOption {
	return gcpOptionFunc(func(gcc *GoogleCloudConfig) {
		gcc.ClientOptions = append(gcc.ClientOptions, opts...)
	})
}

// GoogleCloudLogHandler receives the log exporter's own diagnostics.
func GoogleCloudLogHandler(h slog.Handler) GoogleCloudOption {
	return gcpOptionFunc(func(gcc *GoogleCloudConfig) {
		gcc.LogHandler = h
	})
}

// GoogleCloud returns an Initializer exporting traces to Cloud Trace,
// metrics to Cloud Monitoring and logs to Cloud Logging.
func GoogleCloud(opts ...GoogleCloudOption) Initializer {
	gc := GoogleCloudConfig{
		LogHandler: logging.DiscardHandler{},
	}
	for _, opt := range opts {
		opt.ApplyGCP(&gc)
	}
	return gc
}

// Init implements the [Initializer] interface. Configuration errors, such
// as an unknown hash algorithm, are returned before any client is created.
func (cfg GoogleCloudConfig) Init(ctx context.Context) (_ *Providers, err error) {
	if cfg.ProjectID == "" {
		return nil, ErrMissingProjectID
	}

	hasher, err := cloudlogging.NewInsertIDHasher(cfg.InsertIDHashAlgorithm)
	if err != nil {
		return nil, err
	}
	translator, err := cloudlogging.NewTranslator(
		cfg.ProjectID,
		cloudlogging.LogID(cfg.LogID),
		cloudlogging.WithInsertIDHasher(hasher),
	)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, cfg.Common, resource.WithDetectors(gcp.NewDetector()))
	if err != nil {
		return nil, err
	}

	p := &Providers{}
	defer func() {
		if err == nil {
			return
		}
		err = errors.Join(err, p.Shutdown(ctx))
	}()

	writer := cfg.Writer
	if writer == nil {
		client, err := cloudlogging.NewClient(ctx, cfg.ClientOptions...)
		if err != nil {
			return nil, err
		}
		p.onShutdown(func(context.Context) error {
			return client.Close()
		})
		writer = client
	}

	clientOpts := append([]option.ClientOption{option.WithTelemetryDisabled()}, cfg.ClientOptions...)

	spanExporter, err := texporter.New(
		texporter.WithProjectID(cfg.ProjectID),
		texporter.WithTraceClientOptions(clientOpts),
	)
	if err != nil {
		return nil, err
	}

	metricExporter, err := mexporter.New(
		mexporter.WithProjectID(cfg.ProjectID),
		mexporter.WithMonitoringClientOptions(clientOpts...),
	)
	if err != nil {
		return nil, err
	}
	p.MeterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	p.onShutdown(p.MeterProvider.Shutdown)

	logExporter := cloudlogging.NewExporter(
		writer,
		translator,
		cloudlogging.LogHandler(cfg.LogHandler),
		cloudlogging.MeterProvider(p.MeterProvider),
	)

	p.TracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	p.LoggerProvider = sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)
	p.onShutdown(p.TracerProvider.Shutdown)
	p.onShutdown(p.LoggerProvider.Shutdown)
	return p, nil
}
