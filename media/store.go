// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package media

import "context"

// Store is the blob store uploads are written to. Objects are addressed
// by their full gs:// URI. Implementations must be safe for concurrent use.
type Store interface {
	// WriteObject creates or overwrites the object at uri.
	WriteObject(ctx context.Context, uri, contentType string, payload []byte) error

	// ObjectMetadata returns the custom metadata of the object at uri.
	// A nil map is returned if the object has none.
	ObjectMetadata(ctx context.Context, uri string) (map[string]string, error)

	// UpdateObjectMetadata replaces the custom metadata of the object at uri.
	UpdateObjectMetadata(ctx context.Context, uri string, metadata map[string]string) error
}
