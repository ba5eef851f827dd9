// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cloudlogging

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/trace"
)

// View is a read-only projection of an OpenTelemetry log record and the
// context it was emitted in. Attribute values are plain Go values: bool,
// int64, float64, string, []byte, []any, map[string]any or nil.
type View struct {
	Project  string
	Resource Resource
	Scope    Scope
	Record   Record
}

// Resource describes the entity which produced the record.
type Resource struct {
	Attributes map[string]any
	SchemaURL  string
}

// Scope is the instrumentation scope of the logger which emitted the record.
type Scope struct {
	Name       string
	Version    string
	SchemaURL  string
	Attributes map[string]any
}

// Record is the log record itself.
type Record struct {
	Timestamp         time.Time
	ObservedTimestamp time.Time
	SeverityNumber    log.Severity
	SeverityText      string
	EventName         string
	Body              any
	Attributes        map[string]any
	TraceID           trace.TraceID
	SpanID            trace.SpanID
	TraceFlags        trace.TraceFlags
}

// ViewFromRecord projects an SDK log record.
func ViewFromRecord(project string, rec sdklog.Record) View {
	res := rec.Resource()
	scope := rec.InstrumentationScope()

	attrs := make(map[string]any, rec.AttributesLen())
	rec.WalkAttributes(func(kv log.KeyValue) bool {
		attrs[kv.Key] = logValue(kv.Value)
		return true
	})

	return View{
		Project: project,
		Resource: Resource{
			Attributes: attributeSet(res.Set()),
			SchemaURL:  res.SchemaURL(),
		},
		Scope: Scope{
			Name:       scope.Name,
			Version:    scope.Version,
			SchemaURL:  scope.SchemaURL,
			Attributes: attributeSet(&scope.Attributes),
		},
		Record: Record{
			Timestamp:         rec.Timestamp(),
			ObservedTimestamp: rec.ObservedTimestamp(),
			SeverityNumber:    rec.Severity(),
			SeverityText:      rec.SeverityText(),
			EventName:         rec.EventName(),
			Body:              logValue(rec.Body()),
			Attributes:        attrs,
			TraceID:           rec.TraceID(),
			SpanID:            rec.SpanID(),
			TraceFlags:        rec.TraceFlags(),
		},
	}
}

func logValue(v log.Value) any {
	switch v.Kind() {
	case log.KindBool:
		return v.AsBool()
	case log.KindFloat64:
		return v.AsFloat64()
	case log.KindInt64:
		return v.AsInt64()
	case log.KindString:
		return v.AsString()
	case log.KindBytes:
		return v.AsBytes()
	case log.KindSlice:
		vs := v.AsSlice()
		out := make([]any, len(vs))
		for i, item := range vs {
			out[i] = logValue(item)
		}
		return out
	case log.KindMap:
		kvs := v.AsMap()
		out := make(map[string]any, len(kvs))
		for _, kv := range kvs {
			out[kv.Key] = logValue(kv.Value)
		}
		return out
	default:
		return nil
	}
}

func attributeSet(set *attribute.Set) map[string]any {
	if set == nil || set.Len() == 0 {
		return nil
	}
	out := make(map[string]any, set.Len())
	iter := set.Iter()
	for iter.Next() {
		kv := iter.Attribute()
		out[string(kv.Key)] = attributeValue(kv.Value)
	}
	return out
}

func attributeValue(v attribute.Value) any {
	switch v.Type() {
	case attribute.BOOL:
		return v.AsBool()
	case attribute.INT64:
		return v.AsInt64()
	case attribute.FLOAT64:
		return v.AsFloat64()
	case attribute.STRING:
		return v.AsString()
	case attribute.BOOLSLICE:
		return anySlice(v.AsBoolSlice())
	case attribute.INT64SLICE:
		return anySlice(v.AsInt64Slice())
	case attribute.FLOAT64SLICE:
		return anySlice(v.AsFloat64Slice())
	case attribute.STRINGSLICE:
		return anySlice(v.AsStringSlice())
	default:
		return v.Emit()
	}
}

func anySlice[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
