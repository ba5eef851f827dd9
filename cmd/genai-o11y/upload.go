// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/z5labs/genai-o11y"
	"github.com/z5labs/genai-o11y/logging/slogfield"
	"github.com/z5labs/genai-o11y/media"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

type uploadFlags struct {
	traceID     string
	spanID      string
	name        string
	contentType string
	raw         bool
	enable      bool
	uriPrefix   string
	timeout     time.Duration
}

type asyncUploader interface {
	UploadAsync(ctx context.Context, traceID, spanID, imageName, inlinePayload string) *media.Upload
}

func newUploadCmd(c *command) *cobra.Command {
	var flags uploadFlags

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a media file to Cloud Storage and print its URI",
		Long: `Upload reads FILE, or stdin when FILE is "-", encodes it as a data URI and
uploads it the same way an inline GenAI payload would be. With --raw the
input is used as the inline payload as is.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			payload := string(b)
			if !flags.raw {
				payload = dataURI(flags.contentType, b)
			}
			if flags.name == "" {
				flags.name = filepath.Base(args[0])
			}

			overrides := map[string]any{}
			if cmd.Flags().Changed("enable") {
				overrides["enabled"] = flags.enable
			}
			if flags.uriPrefix != "" {
				overrides["uriPrefix"] = flags.uriPrefix
			}

			return c.run(cmd.Context(), map[string]any{"media": overrides}, func(ctx context.Context, e *env) error {
				return upload(ctx, e, flags, payload)
			})
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&flags.traceID, "trace-id", "", "trace id to file the upload under, defaults to the current trace")
	fs.StringVar(&flags.spanID, "span-id", "", "span id to file the upload under, defaults to the current span")
	fs.StringVar(&flags.name, "name", "", "original image name recorded in the object metadata")
	fs.StringVar(&flags.contentType, "content-type", "", "content type of FILE, detected when empty")
	fs.BoolVar(&flags.raw, "raw", false, "treat FILE as an inline payload instead of raw bytes")
	fs.BoolVar(&flags.enable, "enable", false, "override media.enabled")
	fs.StringVar(&flags.uriPrefix, "uri-prefix", "", "override media.uriPrefix, e.g. gs://bucket/path")
	fs.DurationVar(&flags.timeout, "timeout", 30*time.Second, "how long to wait for the upload to complete")
	return cmd
}

func upload(ctx context.Context, e *env, flags uploadFlags, payload string) error {
	ctx, span := otel.Tracer("github.com/z5labs/genai-o11y/cmd/genai-o11y").Start(ctx, "upload")
	defer span.End()

	traceID, spanID := flags.traceID, flags.spanID
	if sc := span.SpanContext(); sc.IsValid() {
		traceID = valueOr(traceID, sc.TraceID().String())
		spanID = valueOr(spanID, sc.SpanID().String())
	}
	traceID = valueOr(traceID, randomHex(16))
	spanID = valueOr(spanID, randomHex(8))

	u, err := o11y.NewUploader(ctx, e.cfg, media.LogHandler(e.handler))
	if err != nil {
		return err
	}

	au, ok := u.(asyncUploader)
	if !ok {
		uri, err := u.Upload(ctx, traceID, spanID, flags.name, payload)
		if err != nil {
			return errors.Join(err, u.Close(ctx))
		}
		fmt.Fprintln(e.out, uri)
		return u.Close(ctx)
	}

	up := au.UploadAsync(ctx, traceID, spanID, flags.name, payload)
	fmt.Fprintln(e.out, up.DestinationURI())

	waitCtx, cancel := context.WithTimeout(ctx, flags.timeout)
	defer cancel()

	err = up.Wait(waitCtx)
	if err != nil {
		e.log.ErrorContext(ctx, "upload failed", slogfield.DestinationURI(up.DestinationURI()), slogfield.Error(err))
	}
	return errors.Join(err, u.Close(waitCtx))
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func dataURI(contentType string, b []byte) string {
	if contentType == "" {
		contentType = http.DetectContentType(b)
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(b)
}

func valueOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func randomHex(n int) string {
	id := uuid.New()
	return hex.EncodeToString(id[:n])
}
