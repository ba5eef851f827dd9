// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cloudlogging

import (
	"strings"

	"go.opentelemetry.io/otel/log"
	ltype "google.golang.org/genproto/googleapis/logging/type"
)

// SeverityFromNumber maps an OpenTelemetry severity number onto the Cloud
// Logging severity levels. Each OpenTelemetry range maps to a single level,
// with TRACE and DEBUG both mapping to DEBUG.
func SeverityFromNumber(n log.Severity) ltype.LogSeverity {
	switch {
	case n <= log.SeverityUndefined:
		return ltype.LogSeverity_DEFAULT
	case n < log.SeverityInfo:
		return ltype.LogSeverity_DEBUG
	case n < log.SeverityWarn:
		return ltype.LogSeverity_INFO
	case n < log.SeverityError:
		return ltype.LogSeverity_WARNING
	case n < log.SeverityFatal:
		return ltype.LogSeverity_ERROR
	default:
		return ltype.LogSeverity_CRITICAL
	}
}

var severityText = map[string]ltype.LogSeverity{
	"trace": ltype.LogSeverity_DEBUG,
	"debug": ltype.LogSeverity_DEBUG,
	"info":  ltype.LogSeverity_INFO,
	"warn":  ltype.LogSeverity_WARNING,
	"error": ltype.LogSeverity_ERROR,
	"fatal": ltype.LogSeverity_CRITICAL,
}

// SeverityFromText maps severity text such as "INFO" or "warn2". Trailing
// digits are ignored and unrecognized text maps to DEFAULT.
func SeverityFromText(text string) ltype.LogSeverity {
	text = strings.TrimRight(strings.ToLower(text), "0123456789")
	sev, ok := severityText[text]
	if !ok {
		return ltype.LogSeverity_DEFAULT
	}
	return sev
}

// Severity prefers the severity number, falling back to text when the
// number is undefined.
func Severity(n log.Severity, text string) ltype.LogSeverity {
	if n != log.SeverityUndefined {
		return SeverityFromNumber(n)
	}
	return SeverityFromText(text)
}
