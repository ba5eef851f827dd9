// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package media uploads inline GenAI media payloads, such as base64 images
// embedded in prompts, to Google Cloud Storage so spans can reference them
// by URI instead of carrying the bytes.
package media

import (
	"context"
	"errors"
	"log/slog"

	"github.com/z5labs/genai-o11y/logging"
	"github.com/z5labs/genai-o11y/logging/slogfield"
)

// Provenance is attached to every uploaded object's metadata.
const Provenance = "go-gcp-o11y-genai"

// NullURI is returned by [NoopUploader] unless configured otherwise.
const NullURI = "/dev/null"

// Uploader stores an inline media payload and returns the URI it will be
// readable at. The URI may be returned before the upload completes.
type Uploader interface {
	Upload(ctx context.Context, traceID, spanID, imageName, inlinePayload string) (string, error)
}

// Config selects and configures an [Uploader].
type Config struct {
	Enabled              bool   `config:"enabled"`
	URIPrefix            string `config:"uriPrefix"`
	MaxConcurrentUploads int    `config:"maxConcurrentUploads"`
	NullURI              string `config:"nullURI"`
}

type commonOptions struct {
	logHandler slog.Handler
}

// CommonOption configures both a [Scheduler] and an [Uploader].
type CommonOption interface {
	SchedulerOption
	UploaderOption
}

type commonOptionFunc func(*commonOptions)

func (f commonOptionFunc) applyScheduler(so *schedulerOptions) {
	f(&so.commonOptions)
}

func (f commonOptionFunc) applyUploader(uo *uploaderOptions) {
	f(&uo.commonOptions)
}

// LogHandler configures the underlying slog.Handler.
func LogHandler(h slog.Handler) CommonOption {
	return commonOptionFunc(func(co *commonOptions) {
		co.logHandler = h
	})
}

type uploaderOptions struct {
	commonOptions

	schedulerOpts []SchedulerOption
}

// UploaderOption configures an [Uploader] built by [NewUploader].
type UploaderOption interface {
	applyUploader(*uploaderOptions)
}

type uploaderOptionFunc func(*uploaderOptions)

func (f uploaderOptionFunc) applyUploader(uo *uploaderOptions) {
	f(uo)
}

// WithSchedulerOptions passes opts through to the [Scheduler] created by [NewUploader].
func WithSchedulerOptions(opts ...SchedulerOption) UploaderOption {
	return uploaderOptionFunc(func(uo *uploaderOptions) {
		uo.schedulerOpts = append(uo.schedulerOpts, opts...)
	})
}

var ErrNilStore = errors.New("media upload is enabled but no store was provided")

// NewUploader returns a [NoopUploader] when cfg disables uploads, otherwise
// a [StoreUploader] writing to store. Configuration errors are returned here
// rather than from Upload.
func NewUploader(cfg Config, store Store, opts ...UploaderOption) (Uploader, error) {
	uo := &uploaderOptions{
		commonOptions: commonOptions{
			logHandler: logging.DiscardHandler{},
		},
	}
	for _, opt := range opts {
		opt.applyUploader(uo)
	}

	if !cfg.Enabled {
		uri := cfg.NullURI
		if uri == "" {
			uri = NullURI
		}
		return &NoopUploader{
			log: logging.New(uo.logHandler),
			uri: uri,
		}, nil
	}

	alloc, err := NewAllocator(cfg.URIPrefix)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, ErrNilStore
	}

	schedOpts := append([]SchedulerOption{
		LogHandler(uo.logHandler),
		MaxConcurrentUploads(cfg.MaxConcurrentUploads),
	}, uo.schedulerOpts...)

	u := &StoreUploader{
		log:       logging.New(uo.logHandler),
		allocator: alloc,
		scheduler: NewScheduler(store, schedOpts...),
	}
	return u, nil
}

// StoreUploader decodes inline payloads and schedules them for upload.
type StoreUploader struct {
	log       *slog.Logger
	allocator *Allocator
	scheduler *Scheduler
}

// Upload implements the [Uploader] interface. It only returns an error
// once the uploader has been closed.
func (u *StoreUploader) Upload(ctx context.Context, traceID, spanID, imageName, inlinePayload string) (string, error) {
	up := u.UploadAsync(ctx, traceID, spanID, imageName, inlinePayload)
	if errors.Is(up.Err(), ErrSchedulerClosed) {
		return "", up.Err()
	}
	return up.DestinationURI(), nil
}

// UploadAsync is like Upload but returns the handle of the scheduled upload.
func (u *StoreUploader) UploadAsync(ctx context.Context, traceID, spanID, imageName, inlinePayload string) *Upload {
	contentType, raw := Decode(ctx, u.log, inlinePayload)
	uri := u.allocator.Allocate(traceID, spanID, contentType)

	return u.scheduler.Schedule(PendingUpload{
		DestinationURI: uri,
		Metadata: map[string]string{
			"provenance":          Provenance,
			"trace_id":            traceID,
			"span_id":             spanID,
			"original_image_name": imageName,
		},
		Payload:     raw,
		ContentType: contentType,
	})
}

// Close waits for scheduled uploads, see [Scheduler.Close].
func (u *StoreUploader) Close(ctx context.Context) error {
	return u.scheduler.Close(ctx)
}

// NoopUploader performs no I/O. It is used when media upload is disabled.
type NoopUploader struct {
	log *slog.Logger
	uri string
}

// Upload implements the [Uploader] interface.
func (u *NoopUploader) Upload(ctx context.Context, traceID, spanID, imageName, _ string) (string, error) {
	u.log.WarnContext(
		ctx,
		"media upload is disabled, discarding inline payload",
		slogfield.TraceID(traceID),
		slogfield.SpanID(spanID),
		slogfield.String("image_name", imageName),
	)
	return u.uri, nil
}

// Close implements the same shutdown method as [StoreUploader].
func (u *NoopUploader) Close(context.Context) error {
	return nil
}
