// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package media

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"

	"github.com/z5labs/genai-o11y/logging"
	"github.com/z5labs/genai-o11y/logging/slogfield"
)

// Content types produced by [Decode] when the payload carries none.
const (
	OctetStream = "application/octet-stream"
	TextPlain   = "text/plain"
)

const (
	dataScheme    = "data:"
	charsetParam  = "charset="
	base64Marker  = "base64,"
	maxLoggedSize = 64
)

// Decode extracts the content type and raw bytes from an inline media
// payload. The payload is either bare base64 text or a data URI of the
// form data:<mime-type>[;charset=<cs>];base64,<data>.
//
// Decode never fails. Bare text which is not valid base64 and malformed
// data URIs are returned verbatim as text/plain.
func Decode(ctx context.Context, log *slog.Logger, payload string) (contentType string, raw []byte) {
	if log == nil {
		log = slog.New(logging.DiscardHandler{})
	}

	if !strings.HasPrefix(payload, dataScheme) {
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return TextPlain, []byte(payload)
		}
		return OctetStream, b
	}

	malformed := func(reason string) (string, []byte) {
		log.WarnContext(
			ctx,
			"malformed data uri",
			slogfield.String("reason", reason),
			slogfield.String("data_uri", truncate(payload)),
		)
		return TextPlain, []byte(payload)
	}

	afterScheme := payload[len(dataScheme):]
	if !strings.Contains(afterScheme, "/") || !strings.Contains(afterScheme, ";") {
		return malformed("missing '/' or ';'")
	}

	contentType, params, _ := strings.Cut(afterScheme, ";")
	if !strings.Contains(contentType, "/") {
		return malformed("mime type is missing '/'")
	}

	if strings.HasPrefix(params, charsetParam) {
		var ok bool
		_, params, ok = strings.Cut(params, ";")
		if !ok {
			return malformed("charset is not terminated by ';'")
		}
	}

	encoded, ok := strings.CutPrefix(params, base64Marker)
	if !ok {
		return malformed("missing 'base64,' marker")
	}

	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		log.WarnContext(
			ctx,
			"failed to decode data uri content",
			slogfield.String("data_uri", truncate(payload)),
			slogfield.Error(err),
		)
		return TextPlain, []byte(payload)
	}
	return contentType, b
}

// data URIs can be megabytes of base64 so only a prefix is logged.
func truncate(s string) string {
	if len(s) <= maxLoggedSize {
		return s
	}
	return s[:maxLoggedSize] + "..."
}
