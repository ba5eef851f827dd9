// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gcs implements [media.Store] on top of Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/z5labs/genai-o11y/internal/gcphttp"
	"github.com/z5labs/genai-o11y/internal/try"
	"github.com/z5labs/genai-o11y/media"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var (
	ErrMissingScheme = errors.New("uri must start with " + media.Scheme)
	ErrMissingBucket = errors.New("uri has no bucket")
	ErrMissingObject = errors.New("uri has no object name")
)

// InvalidURIError is returned when a destination URI cannot be split
// into a bucket and object name.
type InvalidURIError struct {
	URI   string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e InvalidURIError) Error() string {
	return fmt.Sprintf("invalid gcs uri %q: %s", e.URI, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidURIError) Unwrap() error {
	return e.Cause
}

// ParseURI splits gs://bucket/object/name into its bucket and object name.
func ParseURI(uri string) (bucket string, object string, err error) {
	rest, ok := strings.CutPrefix(uri, media.Scheme)
	if !ok {
		return "", "", InvalidURIError{URI: uri, Cause: ErrMissingScheme}
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", InvalidURIError{URI: uri, Cause: ErrMissingBucket}
	}
	if object == "" {
		return "", "", InvalidURIError{URI: uri, Cause: ErrMissingObject}
	}
	return bucket, object, nil
}

// Store writes objects with a [storage.Client].
type Store struct {
	client *storage.Client
}

// NewStore returns a Store backed by client.
func NewStore(client *storage.Client) *Store {
	return &Store{client: client}
}

func (s *Store) object(uri string) (*storage.ObjectHandle, error) {
	bucket, name, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return s.client.Bucket(bucket).Object(name), nil
}

// WriteObject implements the [media.Store] interface.
func (s *Store) WriteObject(ctx context.Context, uri, contentType string, payload []byte) (err error) {
	obj, err := s.object(uri)
	if err != nil {
		return err
	}

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	defer try.Close(&err, w)

	_, err = w.Write(payload)
	return err
}

// ObjectMetadata implements the [media.Store] interface.
func (s *Store) ObjectMetadata(ctx context.Context, uri string) (map[string]string, error) {
	obj, err := s.object(uri)
	if err != nil {
		return nil, err
	}

	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return nil, err
	}
	return attrs.Metadata, nil
}

// UpdateObjectMetadata implements the [media.Store] interface.
func (s *Store) UpdateObjectMetadata(ctx context.Context, uri string, metadata map[string]string) error {
	obj, err := s.object(uri)
	if err != nil {
		return err
	}

	_, err = obj.Update(ctx, storage.ObjectAttrsToUpdate{Metadata: metadata})
	return err
}

type clientOptions struct {
	emulatorURL *url.URL
	httpOpts    []gcphttp.ClientOption
}

// ClientOption configures [NewClient].
type ClientOption func(*clientOptions) error

// EmulatorURL sends every request to the storage emulator at rawURL
// without authentication.
func EmulatorURL(rawURL string) ClientOption {
	return func(co *clientOptions) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return err
		}
		co.emulatorURL = u
		return nil
	}
}

// WithHTTPOptions passes opts to the underlying [gcphttp.NewClient].
func WithHTTPOptions(opts ...gcphttp.ClientOption) ClientOption {
	return func(co *clientOptions) error {
		co.httpOpts = append(co.httpOpts, opts...)
		return nil
	}
}

// NewClient returns a storage client whose HTTP transport is traced,
// retried and guarded by a circuit breaker.
func NewClient(ctx context.Context, opts ...ClientOption) (*storage.Client, error) {
	co := &clientOptions{}
	for _, opt := range opts {
		err := opt(co)
		if err != nil {
			return nil, err
		}
	}

	httpOpts := []gcphttp.ClientOption{
		gcphttp.WithGoogleOptions(option.WithScopes(storage.ScopeReadWrite)),
		gcphttp.WithCircuitOptions(gcphttp.CircuitName("gcs")),
		gcphttp.RetryRequests(),
	}
	if co.emulatorURL != nil {
		httpOpts = append(
			httpOpts,
			gcphttp.Unauthenticated(),
			gcphttp.WithBaseTransport(rewriteHost{url: co.emulatorURL, rt: http.DefaultTransport}),
		)
	}
	httpOpts = append(httpOpts, co.httpOpts...)

	hc, err := gcphttp.NewClient(ctx, httpOpts...)
	if err != nil {
		return nil, err
	}
	return storage.NewClient(ctx, option.WithHTTPClient(hc))
}

type rewriteHost struct {
	url *url.URL
	rt  http.RoundTripper
}

func (t rewriteHost) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Host = t.url.Host
	req.URL.Scheme = t.url.Scheme
	return t.rt.RoundTrip(req)
}
