// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package slogfield standardizes attribute keys used across this module's logs.
package slogfield

import (
	"log/slog"
	"time"
)

// Any returns an slog.Attr for the supplied value.
func Any(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// Bool returns an slog.Attr for a bool.
func Bool(key string, value bool) slog.Attr {
	return slog.Bool(key, value)
}

// Duration returns an slog.Attr for a time.Duration.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.Duration(key, d)
}

// Error returns an slog.Attr for a error.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// String returns an slog.Attr for a string.
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Int returns an slog.Attr for a int.
func Int(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// TraceID
func TraceID(id string) slog.Attr {
	return slog.String("trace_id", id)
}

// SpanID
func SpanID(id string) slog.Attr {
	return slog.String("span_id", id)
}

// DestinationURI is the gs:// URI an upload is written to.
func DestinationURI(uri string) slog.Attr {
	return slog.String("destination_uri", uri)
}

// ContentType
func ContentType(ct string) slog.Attr {
	return slog.String("content_type", ct)
}

// InsertID
func InsertID(id string) slog.Attr {
	return slog.String("insert_id", id)
}
