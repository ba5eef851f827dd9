// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cloudlogging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/z5labs/genai-o11y/internal/try"
	"github.com/z5labs/genai-o11y/logging"
	"github.com/z5labs/genai-o11y/logging/slogfield"

	"cloud.google.com/go/logging/apiv2/loggingpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/z5labs/genai-o11y/cloudlogging"

// Writer is the subset of the Cloud Logging client used by [Exporter].
// It is satisfied by [cloud.google.com/go/logging/apiv2.Client].
type Writer interface {
	WriteLogEntries(context.Context, *loggingpb.WriteLogEntriesRequest, ...gax.CallOption) (*loggingpb.WriteLogEntriesResponse, error)
}

// TranslateError reports a record which could not be translated. It does
// not prevent the rest of the batch from being written.
type TranslateError struct {
	Index int
	Cause error
}

// Error implements the [builtin.error] interface.
func (e TranslateError) Error() string {
	return fmt.Sprintf("failed to translate log record %d: %s", e.Index, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e TranslateError) Unwrap() error {
	return e.Cause
}

// WriteError is returned when the batch write to Cloud Logging fails.
type WriteError struct {
	Entries int
	Cause   error
}

// Error implements the [builtin.error] interface.
func (e WriteError) Error() string {
	return fmt.Sprintf("failed to write %d log entries: %s", e.Entries, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e WriteError) Unwrap() error {
	return e.Cause
}

type exporterOptions struct {
	logHandler  slog.Handler
	callOptions []gax.CallOption
	parallelism int
	meter       metric.MeterProvider
}

// ExporterOption configures an [Exporter].
type ExporterOption func(*exporterOptions)

// LogHandler configures the underlying slog.Handler.
func LogHandler(h slog.Handler) ExporterOption {
	return func(eo *exporterOptions) {
		eo.logHandler = h
	}
}

// CallOptions are passed to every WriteLogEntries call.
func CallOptions(opts ...gax.CallOption) ExporterOption {
	return func(eo *exporterOptions) {
		eo.callOptions = append(eo.callOptions, opts...)
	}
}

// Parallelism bounds how many records are translated at once.
// Defaults to GOMAXPROCS.
func Parallelism(n int) ExporterOption {
	return func(eo *exporterOptions) {
		if n <= 0 {
			return
		}
		eo.parallelism = n
	}
}

// MeterProvider sets where the written and failed entry counters are
// recorded. Defaults to the global provider.
func MeterProvider(mp metric.MeterProvider) ExporterOption {
	return func(eo *exporterOptions) {
		eo.meter = mp
	}
}

// Exporter is an OpenTelemetry log exporter writing to Cloud Logging.
type Exporter struct {
	log         *slog.Logger
	writer      Writer
	translator  *Translator
	callOptions []gax.CallOption
	parallelism int
	stopped     atomic.Bool

	written metric.Int64Counter
	failed  metric.Int64Counter
}

var _ sdklog.Exporter = (*Exporter)(nil)

// NewExporter returns an Exporter translating records with t and writing
// them with w.
func NewExporter(w Writer, t *Translator, opts ...ExporterOption) *Exporter {
	eo := &exporterOptions{
		logHandler:  logging.DiscardHandler{},
		parallelism: runtime.GOMAXPROCS(0),
		meter:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(eo)
	}

	meter := eo.meter.Meter(instrumentationName)
	return &Exporter{
		log:         logging.New(eo.logHandler),
		writer:      w,
		translator:  t,
		callOptions: eo.callOptions,
		parallelism: eo.parallelism,
		written:     int64Counter(meter, "genai.logging.entries.written", "Log entries sent to Cloud Logging."),
		failed:      int64Counter(meter, "genai.logging.entries.failed", "Log records which could not be translated or written."),
	}
}

func int64Counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{entry}"))
	if err != nil {
		otel.Handle(err)
	}
	return c
}

// Export implements the [sdklog.Exporter] interface. Records are translated
// independently and every successful translation is written in a single
// request with partial success enabled. The returned error joins a
// [TranslateError] per failed record and a [WriteError], if any.
func (e *Exporter) Export(ctx context.Context, records []sdklog.Record) error {
	if e.stopped.Load() || len(records) == 0 {
		return nil
	}

	entries := make([]*loggingpb.LogEntry, len(records))
	errs := make([]error, len(records))

	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for i := range records {
		g.Go(func() error {
			entry, err := e.translate(records[i])
			if err != nil {
				errs[i] = TranslateError{Index: i, Cause: err}
				return nil
			}
			entries[i] = entry
			return nil
		})
	}
	g.Wait()

	batch := make([]*loggingpb.LogEntry, 0, len(entries))
	for _, entry := range entries {
		if entry != nil {
			batch = append(batch, entry)
		}
	}

	translateErrs := errors.Join(errs...)
	if translateErrs != nil {
		e.failed.Add(ctx, int64(len(records)-len(batch)))
		e.log.WarnContext(ctx, "failed to translate some log records", slogfield.Error(translateErrs))
	}
	if len(batch) == 0 {
		return translateErrs
	}

	_, err := e.writer.WriteLogEntries(ctx, &loggingpb.WriteLogEntriesRequest{
		Entries:        batch,
		PartialSuccess: true,
	}, e.callOptions...)
	if err != nil {
		e.failed.Add(ctx, int64(len(batch)))
		e.log.ErrorContext(ctx, "failed to write log entries", slogfield.Int("entries", len(batch)), slogfield.Error(err))
		return errors.Join(translateErrs, WriteError{Entries: len(batch), Cause: err})
	}
	e.written.Add(ctx, int64(len(batch)))
	return translateErrs
}

func (e *Exporter) translate(rec sdklog.Record) (entry *loggingpb.LogEntry, err error) {
	defer try.Recover(&err)

	return e.translator.Translate(ViewFromRecord(e.translator.Project(), rec))
}

// ForceFlush implements the [sdklog.Exporter] interface. Export writes
// synchronously so there is nothing to flush.
func (e *Exporter) ForceFlush(ctx context.Context) error {
	return nil
}

// Shutdown implements the [sdklog.Exporter] interface. Export is a no-op
// afterwards.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.stopped.Store(true)
	return nil
}
