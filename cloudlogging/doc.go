// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package cloudlogging translates OpenTelemetry log records into Google
// Cloud Logging entries and exports them.
//
// Every entry is written to projects/<project>/logs/otlpgenai with a
// deterministic insert id, so retried writes of the same record are
// deduplicated by Cloud Logging. The original record is embedded in the
// entry's JSON payload under otlp.v1.
package cloudlogging
