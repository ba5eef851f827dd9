// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/z5labs/genai-o11y/internal/try"
	"github.com/z5labs/genai-o11y/logging"
	"github.com/z5labs/genai-o11y/logging/slogfield"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

const instrumentationName = "github.com/z5labs/genai-o11y/media"

// PendingUpload is a single object write waiting to be executed.
type PendingUpload struct {
	DestinationURI string
	Metadata       map[string]string
	Payload        []byte
	ContentType    string
}

var (
	ErrSchedulerClosed = errors.New("upload scheduler is closed")
	ErrUploadAbandoned = errors.New("upload abandoned during shutdown")
)

// Operation names the store call an [UploadError] came from.
type Operation string

const (
	OpWrite          Operation = "write object"
	OpReadMetadata   Operation = "read object metadata"
	OpUpdateMetadata Operation = "update object metadata"
)

// UploadError is the failure of a single scheduled upload.
type UploadError struct {
	DestinationURI string
	Op             Operation
	Cause          error
}

// Error implements the [builtin.error] interface.
func (e UploadError) Error() string {
	return fmt.Sprintf("failed to %s %s: %s", e.Op, e.DestinationURI, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e UploadError) Unwrap() error {
	return e.Cause
}

// Upload tracks the completion of a scheduled [PendingUpload].
type Upload struct {
	uri  string
	done chan struct{}
	err  error
}

func newUpload(uri string) *Upload {
	return &Upload{
		uri:  uri,
		done: make(chan struct{}),
	}
}

func (u *Upload) finish(err error) {
	u.err = err
	close(u.done)
}

// DestinationURI is where the object is, or will be, written.
func (u *Upload) DestinationURI() string {
	return u.uri
}

// Done is closed once the upload has either succeeded or failed.
func (u *Upload) Done() <-chan struct{} {
	return u.done
}

// Err returns the outcome of the upload. It is always nil before Done is closed.
func (u *Upload) Err() error {
	select {
	case <-u.done:
		return u.err
	default:
		return nil
	}
}

// Wait blocks until the upload completes or ctx is cancelled.
func (u *Upload) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-u.done:
		return u.err
	}
}

type schedulerOptions struct {
	commonOptions

	maxConcurrentUploads int64
	onError              func(string, error)
	tracerProvider       trace.TracerProvider
	meterProvider        metric.MeterProvider
}

// SchedulerOption configures a [Scheduler].
type SchedulerOption interface {
	applyScheduler(*schedulerOptions)
}

type schedulerOptionFunc func(*schedulerOptions)

func (f schedulerOptionFunc) applyScheduler(so *schedulerOptions) {
	f(so)
}

// MaxConcurrentUploads bounds how many uploads execute against the
// store at once. Scheduling never blocks on this bound.
func MaxConcurrentUploads(n int) SchedulerOption {
	return schedulerOptionFunc(func(so *schedulerOptions) {
		if n <= 0 {
			return
		}
		so.maxConcurrentUploads = int64(n)
	})
}

// OnError registers a callback invoked, from the worker goroutine, with
// the destination URI and error of every failed upload.
func OnError(f func(uri string, err error)) SchedulerOption {
	return schedulerOptionFunc(func(so *schedulerOptions) {
		so.onError = f
	})
}

// TracerProvider sets where upload spans are recorded. Defaults to the
// global provider.
func TracerProvider(tp trace.TracerProvider) SchedulerOption {
	return schedulerOptionFunc(func(so *schedulerOptions) {
		so.tracerProvider = tp
	})
}

// MeterProvider sets where upload counters are recorded. Defaults to the
// global provider.
func MeterProvider(mp metric.MeterProvider) SchedulerOption {
	return schedulerOptionFunc(func(so *schedulerOptions) {
		so.meterProvider = mp
	})
}

// Scheduler executes uploads asynchronously against a [Store].
type Scheduler struct {
	log     *slog.Logger
	tracer  trace.Tracer
	store   Store
	sem     *semaphore.Weighted
	onError func(string, error)

	ctx    context.Context
	cancel context.CancelCauseFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	scheduled metric.Int64Counter
	failed    metric.Int64Counter
	uploaded  metric.Int64Counter
}

// NewScheduler returns a Scheduler writing to store.
func NewScheduler(store Store, opts ...SchedulerOption) *Scheduler {
	so := &schedulerOptions{
		commonOptions: commonOptions{
			logHandler: logging.DiscardHandler{},
		},
		maxConcurrentUploads: 8,
		tracerProvider:       otel.GetTracerProvider(),
		meterProvider:        otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt.applyScheduler(so)
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	meter := so.meterProvider.Meter(instrumentationName)
	s := &Scheduler{
		log:       logging.New(so.logHandler),
		tracer:    so.tracerProvider.Tracer(instrumentationName),
		store:     store,
		sem:       semaphore.NewWeighted(so.maxConcurrentUploads),
		onError:   so.onError,
		ctx:       ctx,
		cancel:    cancel,
		scheduled: int64Counter(meter, "genai.media.uploads.scheduled", "Uploads accepted by the scheduler."),
		failed:    int64Counter(meter, "genai.media.uploads.failed", "Uploads which failed to execute."),
		uploaded:  int64Counter(meter, "genai.media.uploads.completed", "Uploads written with merged metadata."),
	}
	return s
}

func int64Counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{upload}"))
	if err != nil {
		otel.Handle(err)
	}
	return c
}

// Schedule queues p for upload and returns immediately. The returned
// [Upload] reports the outcome; the object may not exist until it is done.
func (s *Scheduler) Schedule(p PendingUpload) *Upload {
	u := newUpload(p.DestinationURI)

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		u.finish(ErrSchedulerClosed)
		return u
	}
	s.wg.Add(1)
	s.mu.RUnlock()

	p.Metadata = maps.Clone(p.Metadata)
	s.scheduled.Add(s.ctx, 1)
	go s.run(u, p)
	return u
}

func (s *Scheduler) run(u *Upload, p PendingUpload) {
	defer s.wg.Done()

	ctx, err := s.execute(p)
	defer u.finish(err)
	if err == nil {
		s.uploaded.Add(ctx, 1)
		return
	}

	s.failed.Add(ctx, 1)
	s.log.ErrorContext(
		ctx,
		"failed to upload inline media",
		slogfield.DestinationURI(p.DestinationURI),
		slogfield.Error(err),
	)
	if s.onError != nil {
		s.onError(p.DestinationURI, err)
	}
}

// execute returns the context of the upload span, or the scheduler's own
// context if the upload never started.
func (s *Scheduler) execute(p PendingUpload) (ctx context.Context, err error) {
	ctx = s.ctx
	defer try.Recover(&err)

	err = s.sem.Acquire(s.ctx, 1)
	if err != nil {
		return ctx, UploadError{
			DestinationURI: p.DestinationURI,
			Op:             OpWrite,
			Cause:          errors.Join(ErrUploadAbandoned, context.Cause(s.ctx)),
		}
	}
	defer s.sem.Release(1)

	ctx, span := s.tracer.Start(s.ctx, "Scheduler.execute", trace.WithAttributes(
		attribute.String("destination_uri", p.DestinationURI),
		attribute.String("content_type", p.ContentType),
		attribute.Int("payload_bytes", len(p.Payload)),
	))
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	err = s.store.WriteObject(ctx, p.DestinationURI, p.ContentType, p.Payload)
	if err != nil {
		return ctx, UploadError{DestinationURI: p.DestinationURI, Op: OpWrite, Cause: err}
	}

	// read-modify-write is not atomic but destinations are never shared
	existing, err := s.store.ObjectMetadata(ctx, p.DestinationURI)
	if err != nil {
		return ctx, UploadError{DestinationURI: p.DestinationURI, Op: OpReadMetadata, Cause: err}
	}

	merged := make(map[string]string, len(existing)+len(p.Metadata))
	maps.Copy(merged, existing)
	maps.Copy(merged, p.Metadata)

	err = s.store.UpdateObjectMetadata(ctx, p.DestinationURI, merged)
	if err != nil {
		return ctx, UploadError{DestinationURI: p.DestinationURI, Op: OpUpdateMetadata, Cause: err}
	}

	s.log.DebugContext(
		ctx,
		"uploaded inline media",
		slogfield.DestinationURI(p.DestinationURI),
		slogfield.ContentType(p.ContentType),
	)
	return ctx, nil
}

// Close stops accepting uploads and waits for in-flight ones to finish.
// If ctx is done first, the remaining uploads are cancelled, their
// handles eventually report [ErrUploadAbandoned] or the store's context
// error, and ctx's error is returned.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		s.wg.Wait()
	}()

	select {
	case <-drained:
		s.cancel(ErrSchedulerClosed)
		return nil
	case <-ctx.Done():
		s.cancel(ErrUploadAbandoned)
		s.log.WarnContext(ctx, "abandoned in-flight uploads during shutdown", slogfield.Error(ctx.Err()))
		return ctx.Err()
	}
}
