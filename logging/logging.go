// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package logging provides slog.Handler implementations which correlate
// application logs with Cloud Trace when written as structured JSON to stdout.
package logging

import (
	"context"
	"log/slog"

	"github.com/z5labs/genai-o11y/logging/slogfield"

	"go.opentelemetry.io/otel/trace"
)

// Special JSON fields recognized by the Cloud Logging agent.
const (
	TraceKey        = "logging.googleapis.com/trace"
	SpanIDKey       = "logging.googleapis.com/spanId"
	TraceSampledKey = "logging.googleapis.com/trace_sampled"
)

// Handler is an slog.Handler which adds the trace, span id and sampling
// decision of the current span to every record.
type Handler struct {
	slog    slog.Handler
	project string
}

// HandlerOption configures a [Handler].
type HandlerOption func(*Handler)

// Project qualifies trace ids as projects/<id>/traces/<trace>, which is the
// form Cloud Logging expects for linking an entry to Cloud Trace.
func Project(id string) HandlerOption {
	return func(h *Handler) {
		h.project = id
	}
}

// NewHandler wraps h.
func NewHandler(h slog.Handler, opts ...HandlerOption) *Handler {
	handler := &Handler{slog: h}
	for _, opt := range opts {
		opt(handler)
	}
	return handler
}

// New provides a simple wrapper for slog.New(NewHandler(h, opts...)).
func New(h slog.Handler, opts ...HandlerOption) *slog.Logger {
	return slog.New(NewHandler(h, opts...))
}

// Enabled implements the slog.Handler interface.
func (h *Handler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.slog.Enabled(ctx, lvl)
}

// Handle implements the slog.Handler interface.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return h.slog.Handle(ctx, record)
	}

	traceID := spanCtx.TraceID().String()
	if h.project != "" {
		traceID = "projects/" + h.project + "/traces/" + traceID
	}

	r := record.Clone()
	r.AddAttrs(
		slogfield.String(TraceKey, traceID),
		slogfield.String(SpanIDKey, spanCtx.SpanID().String()),
		slogfield.Bool(TraceSampledKey, spanCtx.IsSampled()),
	)
	return h.slog.Handle(ctx, r)
}

// WithAttrs implements the slog.Handler interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{slog: h.slog.WithAttrs(attrs), project: h.project}
}

// WithGroup implements the slog.Handler interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{slog: h.slog.WithGroup(name), project: h.project}
}

// DiscardHandler drops every record. It is the default handler for
// components which were not given one.
type DiscardHandler struct{}

func (DiscardHandler) Enabled(_ context.Context, _ slog.Level) bool  { return false }
func (DiscardHandler) Handle(_ context.Context, _ slog.Record) error { return nil }
func (h DiscardHandler) WithAttrs(_ []slog.Attr) slog.Handler        { return h }
func (h DiscardHandler) WithGroup(_ string) slog.Handler             { return h }
