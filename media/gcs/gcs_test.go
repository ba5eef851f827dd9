// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gcs

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/z5labs/genai-o11y/media"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ media.Store = (*Store)(nil)

func TestParseURI(t *testing.T) {
	t.Run("will return the bucket and object name", func(t *testing.T) {
		t.Run("if the uri is well formed", func(t *testing.T) {
			bucket, object, err := ParseURI("gs://bucket/traces/t/spans/s/images/abc.png")
			require.NoError(t, err)

			assert.Equal(t, "bucket", bucket)
			assert.Equal(t, "traces/t/spans/s/images/abc.png", object)
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		testCases := []struct {
			Name  string
			URI   string
			Cause error
		}{
			{Name: "if the scheme is not gs", URI: "s3://bucket/object", Cause: ErrMissingScheme},
			{Name: "if the bucket is empty", URI: "gs:///object", Cause: ErrMissingBucket},
			{Name: "if there is no object", URI: "gs://bucket", Cause: ErrMissingObject},
			{Name: "if the object name is empty", URI: "gs://bucket/", Cause: ErrMissingObject},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				_, _, err := ParseURI(testCase.URI)

				var iue InvalidURIError
				if !assert.ErrorAs(t, err, &iue) {
					return
				}
				assert.Equal(t, testCase.URI, iue.URI)
				assert.ErrorIs(t, err, testCase.Cause)
			})
		}
	})
}

func TestRewriteHost(t *testing.T) {
	t.Run("will send the request to the emulator", func(t *testing.T) {
		t.Run("if the original request targets another host", func(t *testing.T) {
			var gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.WriteHeader(http.StatusNoContent)
			}))
			defer srv.Close()

			u, err := url.Parse(srv.URL)
			require.NoError(t, err)

			req, err := http.NewRequest(http.MethodGet, "https://storage.googleapis.com/storage/v1/b/bucket", nil)
			require.NoError(t, err)

			resp, err := rewriteHost{url: u, rt: http.DefaultTransport}.RoundTrip(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusNoContent, resp.StatusCode)
			assert.Equal(t, "/storage/v1/b/bucket", gotPath)
			assert.Equal(t, "storage.googleapis.com", req.URL.Host)
		})
	})
}
