// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cloudlogging

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"strconv"
	"time"

	"cloud.google.com/go/logging/apiv2/loggingpb"
	"google.golang.org/genproto/googleapis/api/monitoredres"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const (
	// DefaultLogID is the log id entries are written under.
	DefaultLogID = "otlpgenai"

	// Provenance labels every entry written by this package.
	Provenance = "go-gcp-o11y-genai"
)

var ErrEmptyProject = errors.New("project id must not be empty")

// PayloadError is returned when part of a record cannot be represented
// as a JSON payload.
type PayloadError struct {
	Field string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e PayloadError) Error() string {
	return fmt.Sprintf("failed to encode %s as json payload: %s", e.Field, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e PayloadError) Unwrap() error {
	return e.Cause
}

// TranslatorOption configures a [Translator].
type TranslatorOption func(*Translator)

// LogID overrides [DefaultLogID].
func LogID(id string) TranslatorOption {
	return func(t *Translator) {
		if id == "" {
			return
		}
		t.logID = id
	}
}

// WithInsertIDHasher replaces the default sha1 hasher.
func WithInsertIDHasher(h *InsertIDHasher) TranslatorOption {
	return func(t *Translator) {
		t.hasher = h
	}
}

// WithLabels adds labels to every entry. The provenance label can not be overridden.
func WithLabels(labels map[string]string) TranslatorOption {
	return func(t *Translator) {
		maps.Copy(t.labels, labels)
	}
}

// Translator converts [View]s into Cloud Logging entries.
type Translator struct {
	project string
	logID   string
	hasher  *InsertIDHasher
	labels  map[string]string
}

// NewTranslator returns a Translator writing to project unless a view
// names its own project.
func NewTranslator(project string, opts ...TranslatorOption) (*Translator, error) {
	if project == "" {
		return nil, ErrEmptyProject
	}

	hasher, err := NewInsertIDHasher(DefaultHashAlgorithm)
	if err != nil {
		return nil, err
	}
	t := &Translator{
		project: project,
		logID:   DefaultLogID,
		hasher:  hasher,
		labels:  map[string]string{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.labels["provenance"] = Provenance
	return t, nil
}

// Project is the default project entries are written to.
func (t *Translator) Project() string {
	return t.project
}

// Translate builds the log entry for v.
func (t *Translator) Translate(v View) (*loggingpb.LogEntry, error) {
	project := v.Project
	if project == "" {
		project = t.project
		v.Project = project
	}

	payload, err := jsonPayload(v)
	if err != nil {
		return nil, err
	}

	entry := &loggingpb.LogEntry{
		LogName:  fmt.Sprintf("projects/%s/logs/%s", project, url.PathEscape(t.logID)),
		Labels:   maps.Clone(t.labels),
		InsertId: t.hasher.Compute(v),
		Severity: Severity(v.Record.SeverityNumber, v.Record.SeverityText),
		Resource: &monitoredres.MonitoredResource{
			Type:   "global",
			Labels: map[string]string{"project_id": project},
		},
		Payload: &loggingpb.LogEntry_JsonPayload{JsonPayload: payload},
	}
	if ts := entryTime(v.Record); !ts.IsZero() {
		entry.Timestamp = timestamppb.New(ts)
	}
	if v.Record.TraceID.IsValid() {
		entry.Trace = fmt.Sprintf("projects/%s/traces/%s", project, v.Record.TraceID)
		entry.TraceSampled = v.Record.TraceFlags.IsSampled()
	}
	if v.Record.SpanID.IsValid() {
		entry.SpanId = v.Record.SpanID.String()
	}
	return entry, nil
}

func entryTime(r Record) time.Time {
	if !r.Timestamp.IsZero() {
		return r.Timestamp
	}
	return r.ObservedTimestamp
}

func jsonPayload(v View) (*structpb.Struct, error) {
	resource, err := structpb.NewStruct(map[string]any{
		"attributes": nonNil(v.Resource.Attributes),
		"schemaUrl":  v.Resource.SchemaURL,
	})
	if err != nil {
		return nil, PayloadError{Field: "resource", Cause: err}
	}

	scope, err := structpb.NewStruct(map[string]any{
		"name":       v.Scope.Name,
		"version":    v.Scope.Version,
		"schemaUrl":  v.Scope.SchemaURL,
		"attributes": nonNil(v.Scope.Attributes),
	})
	if err != nil {
		return nil, PayloadError{Field: "instrumentationScope", Cause: err}
	}

	body, err := structpb.NewValue(v.Record.Body)
	if err != nil {
		return nil, PayloadError{Field: "body", Cause: err}
	}

	attrs, err := structpb.NewStruct(nonNil(v.Record.Attributes))
	if err != nil {
		return nil, PayloadError{Field: "attributes", Cause: err}
	}

	record := &structpb.Struct{Fields: map[string]*structpb.Value{
		"timeUnixNano":         structpb.NewStringValue(unixNano(v.Record.Timestamp)),
		"observedTimeUnixNano": structpb.NewStringValue(unixNano(v.Record.ObservedTimestamp)),
		"severityNumber":       structpb.NewNumberValue(float64(v.Record.SeverityNumber)),
		"severityText":         structpb.NewStringValue(v.Record.SeverityText),
		"eventName":            structpb.NewStringValue(v.Record.EventName),
		"body":                 body,
		"attributes":           structpb.NewStructValue(attrs),
		"traceId":              structpb.NewStringValue(hexOrEmpty(v.Record.TraceID.IsValid(), v.Record.TraceID.String())),
		"spanId":               structpb.NewStringValue(hexOrEmpty(v.Record.SpanID.IsValid(), v.Record.SpanID.String())),
		"flags":                structpb.NewNumberValue(float64(v.Record.TraceFlags)),
	}}

	v1 := &structpb.Struct{Fields: map[string]*structpb.Value{
		"resource":             structpb.NewStructValue(resource),
		"instrumentationScope": structpb.NewStructValue(scope),
		"log":                  structpb.NewStructValue(record),
	}}
	otlp := &structpb.Struct{Fields: map[string]*structpb.Value{
		"v1": structpb.NewStructValue(v1),
	}}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"otlp": structpb.NewStructValue(otlp),
	}}, nil
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// unixNano follows OTLP/JSON in encoding 64-bit integers as strings.
func unixNano(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}

func hexOrEmpty(valid bool, s string) string {
	if !valid {
		return ""
	}
	return s
}
