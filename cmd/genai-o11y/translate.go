// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/z5labs/genai-o11y/cloudlogging"
	"github.com/z5labs/genai-o11y/internal/try"

	"cloud.google.com/go/logging/apiv2/loggingpb"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/encoding/protojson"
)

type translateFlags struct {
	project       string
	hashAlgorithm string
	logID         string
	write         bool
}

func newTranslateCmd(c *command) *cobra.Command {
	var flags translateFlags

	cmd := &cobra.Command{
		Use:   "translate [FILE]",
		Short: "Translate OTLP/JSON log records into Cloud Logging entries",
		Long: `Translate reads a stream of JSON log views from FILE, or stdin, and prints
one Cloud Logging LogEntry per line. Each view has the same shape as the
otlp.v1 payload of a translated entry:

  {"resource": {...}, "instrumentationScope": {...}, "log": {...}}

With --write the entries are also written to Cloud Logging.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			b, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}

			overrides := map[string]any{}
			if flags.project != "" {
				overrides["projectId"] = flags.project
			}
			if flags.hashAlgorithm != "" {
				overrides["insertIdHashAlgorithm"] = flags.hashAlgorithm
			}
			if flags.logID != "" {
				overrides["logId"] = flags.logID
			}

			return c.run(cmd.Context(), map[string]any{"logging": overrides}, func(ctx context.Context, e *env) error {
				return translate(ctx, e, flags, b)
			})
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&flags.project, "project", "", "override logging.projectId")
	fs.StringVar(&flags.hashAlgorithm, "hash-algorithm", "", "override logging.insertIdHashAlgorithm")
	fs.StringVar(&flags.logID, "log-id", "", "override logging.logId")
	fs.BoolVar(&flags.write, "write", false, "write the entries to Cloud Logging")
	return cmd
}

func translate(ctx context.Context, e *env, flags translateFlags, b []byte) (err error) {
	hasher, err := cloudlogging.NewInsertIDHasher(e.cfg.Logging.InsertIDHashAlgorithm)
	if err != nil {
		return err
	}
	tr, err := cloudlogging.NewTranslator(
		e.cfg.Logging.ProjectID,
		cloudlogging.LogID(e.cfg.Logging.LogID),
		cloudlogging.WithInsertIDHasher(hasher),
	)
	if err != nil {
		return err
	}

	views, err := decodeViews(b)
	if err != nil {
		return err
	}

	entries := make([]*loggingpb.LogEntry, 0, len(views))
	var errs []error
	for i, v := range views {
		entry, err := tr.Translate(v)
		if err != nil {
			errs = append(errs, cloudlogging.TranslateError{Index: i, Cause: err})
			continue
		}
		entries = append(entries, entry)

		out, err := protojson.Marshal(entry)
		if err != nil {
			return err
		}
		fmt.Fprintln(e.out, string(out))
	}
	if !flags.write || len(entries) == 0 {
		return errors.Join(errs...)
	}

	client, err := cloudlogging.NewClient(ctx)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	defer try.Close(&err, client)

	_, werr := client.WriteLogEntries(ctx, &loggingpb.WriteLogEntriesRequest{
		Entries:        entries,
		PartialSuccess: true,
	})
	if werr != nil {
		errs = append(errs, cloudlogging.WriteError{Entries: len(entries), Cause: werr})
	}
	return errors.Join(errs...)
}

type viewJSON struct {
	Project  string `json:"project"`
	Resource struct {
		Attributes map[string]any `json:"attributes"`
		SchemaURL  string         `json:"schemaUrl"`
	} `json:"resource"`
	Scope struct {
		Name       string         `json:"name"`
		Version    string         `json:"version"`
		SchemaURL  string         `json:"schemaUrl"`
		Attributes map[string]any `json:"attributes"`
	} `json:"instrumentationScope"`
	Log struct {
		TimeUnixNano         string         `json:"timeUnixNano"`
		ObservedTimeUnixNano string         `json:"observedTimeUnixNano"`
		SeverityNumber       int            `json:"severityNumber"`
		SeverityText         string         `json:"severityText"`
		EventName            string         `json:"eventName"`
		Body                 any            `json:"body"`
		Attributes           map[string]any `json:"attributes"`
		TraceID              string         `json:"traceId"`
		SpanID               string         `json:"spanId"`
		Flags                uint8          `json:"flags"`
	} `json:"log"`
}

// InvalidViewError reports a JSON view which could not be converted.
type InvalidViewError struct {
	Index int
	Field string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e InvalidViewError) Error() string {
	return fmt.Sprintf("invalid %s in log view %d: %s", e.Field, e.Index, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidViewError) Unwrap() error {
	return e.Cause
}

func decodeViews(b []byte) ([]cloudlogging.View, error) {
	dec := json.NewDecoder(bytes.NewReader(b))

	var views []cloudlogging.View
	for i := 0; ; i++ {
		var vj viewJSON
		err := dec.Decode(&vj)
		if errors.Is(err, io.EOF) {
			return views, nil
		}
		if err != nil {
			return nil, InvalidViewError{Index: i, Field: "json", Cause: err}
		}

		v, err := vj.view(i)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
}

func (vj viewJSON) view(i int) (cloudlogging.View, error) {
	ts, err := unixNano(vj.Log.TimeUnixNano)
	if err != nil {
		return cloudlogging.View{}, InvalidViewError{Index: i, Field: "timeUnixNano", Cause: err}
	}
	observed, err := unixNano(vj.Log.ObservedTimeUnixNano)
	if err != nil {
		return cloudlogging.View{}, InvalidViewError{Index: i, Field: "observedTimeUnixNano", Cause: err}
	}

	var traceID trace.TraceID
	if vj.Log.TraceID != "" {
		traceID, err = trace.TraceIDFromHex(vj.Log.TraceID)
		if err != nil {
			return cloudlogging.View{}, InvalidViewError{Index: i, Field: "traceId", Cause: err}
		}
	}
	var spanID trace.SpanID
	if vj.Log.SpanID != "" {
		spanID, err = trace.SpanIDFromHex(vj.Log.SpanID)
		if err != nil {
			return cloudlogging.View{}, InvalidViewError{Index: i, Field: "spanId", Cause: err}
		}
	}

	return cloudlogging.View{
		Project: vj.Project,
		Resource: cloudlogging.Resource{
			Attributes: vj.Resource.Attributes,
			SchemaURL:  vj.Resource.SchemaURL,
		},
		Scope: cloudlogging.Scope{
			Name:       vj.Scope.Name,
			Version:    vj.Scope.Version,
			SchemaURL:  vj.Scope.SchemaURL,
			Attributes: vj.Scope.Attributes,
		},
		Record: cloudlogging.Record{
			Timestamp:         ts,
			ObservedTimestamp: observed,
			SeverityNumber:    log.Severity(vj.Log.SeverityNumber),
			SeverityText:      vj.Log.SeverityText,
			EventName:         vj.Log.EventName,
			Body:              vj.Log.Body,
			Attributes:        vj.Log.Attributes,
			TraceID:           traceID,
			SpanID:            spanID,
			TraceFlags:        trace.TraceFlags(vj.Log.Flags),
		},
	}, nil
}

func unixNano(s string) (time.Time, error) {
	if s == "" || s == "0" {
		return time.Time{}, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n), nil
}
