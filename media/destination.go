// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package media

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Scheme is the URI scheme of Google Cloud Storage objects.
const Scheme = "gs://"

var extensions = map[string]string{
	"image/jpeg":      ".jpeg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"application/pdf": ".pdf",
	"text/plain":      ".txt",
}

// ExtensionFor returns the file extension, including the leading dot, for
// the given content type. Unknown content types have no extension.
func ExtensionFor(contentType string) string {
	return extensions[contentType]
}

var (
	ErrEmptyURIPrefix         = errors.New("uri prefix must not be empty")
	ErrURIPrefixScheme        = errors.New("uri prefix must start with " + Scheme)
	ErrURIPrefixTrailingSlash = errors.New("uri prefix must not end with '/'")
)

// InvalidURIPrefixError is returned when an [Allocator] is configured
// with a prefix it can not build object URIs from.
type InvalidURIPrefixError struct {
	Prefix string
	Cause  error
}

// Error implements the [builtin.error] interface.
func (e InvalidURIPrefixError) Error() string {
	return fmt.Sprintf("invalid uri prefix %q: %s", e.Prefix, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidURIPrefixError) Unwrap() error {
	return e.Cause
}

// Allocator computes unique destination URIs for uploads.
type Allocator struct {
	prefix string
	newID  func() string
}

// NewAllocator validates prefix, e.g. gs://my-bucket/genai, and returns an
// Allocator which places objects under it.
func NewAllocator(prefix string) (*Allocator, error) {
	var cause error
	switch {
	case prefix == "":
		cause = ErrEmptyURIPrefix
	case !strings.HasPrefix(prefix, Scheme):
		cause = ErrURIPrefixScheme
	case strings.HasSuffix(prefix, "/"):
		cause = ErrURIPrefixTrailingSlash
	}
	if cause != nil {
		return nil, InvalidURIPrefixError{Prefix: prefix, Cause: cause}
	}

	a := &Allocator{
		prefix: prefix,
		newID:  randomID,
	}
	return a, nil
}

// Allocate returns <prefix>/traces/<traceID>/spans/<spanID>/images/<id><ext>
// where id is 32 random hex characters. Two calls never return the same URI,
// even for identical arguments.
func (a *Allocator) Allocate(traceID, spanID, contentType string) string {
	return fmt.Sprintf(
		"%s/traces/%s/spans/%s/images/%s%s",
		a.prefix,
		traceID,
		spanID,
		a.newID(),
		ExtensionFor(contentType),
	)
}

func randomID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
